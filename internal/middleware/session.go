package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
	CtxSessionKey = "session_key" // string
)

// Session は X-Session-ID（無ければcookie）を読み、応答にも返す。
// mint=true なら無い時に新しく発行する（カート系）。
func Session(mint bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := PeekSession(c)
			if len(key) > 128 {
				return c.JSON(http.StatusBadRequest, errorJSON("invalid session id"))
			}
			if key == "" {
				if !mint {
					return c.JSON(http.StatusBadRequest, errorJSON("session id is required"))
				}
				key = uuid.NewString()
			}

			c.Set(CtxSessionKey, key)
			c.Response().Header().Set(SessionHeader, key)
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    key,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			return next(c)
		}
	}
}

// PeekSession はヘッダかcookieのセッションIDを返す（無ければ空）。発行はしない。
func PeekSession(c echo.Context) string {
	key := strings.TrimSpace(c.Request().Header.Get(SessionHeader))
	if key == "" {
		if ck, err := c.Cookie(SessionCookie); err == nil {
			key = strings.TrimSpace(ck.Value)
		}
	}
	return key
}

// SessionFromContext はSessionが入れたキー
func SessionFromContext(c echo.Context) string {
	s, _ := c.Get(CtxSessionKey).(string)
	return s
}
