package middleware

import (
	"net/http"
	"strings"

	"cafe/internal/auth"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // int64
	CtxUserRoleKey = "user_role" // string
	CtxAdminKey    = "admin"     // auth.AdminPrincipal
)

// bearerAuth用のJWT検証ミドルウェア。
// SSEはヘッダを付けられないクライアントがあるので ?token= も見る。
func AuthJWT(v *auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawToken := TokenFromRequest(c)
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する
			p, err := v.Parse(rawToken)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, p.UserID)
			c.Set(CtxUserRoleKey, p.Role)
			c.Set(CtxAdminKey, p)

			return next(c)
		}
	}
}

// TokenFromRequest は Authorization: Bearer か ?token= を返す
func TokenFromRequest(c echo.Context) string {
	authz := c.Request().Header.Get("Authorization")
	if authz != "" {
		//Bearer形式か確認してtokenを抜く
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(c.QueryParam("token"))
}

// AdminFromContext はAuthJWTが入れた管理者を取り出す
func AdminFromContext(c echo.Context) (auth.AdminPrincipal, bool) {
	p, ok := c.Get(CtxAdminKey).(auth.AdminPrincipal)
	return p, ok && p.UserID > 0
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Detail: msg}
}
