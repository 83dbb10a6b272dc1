package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cafe/internal/auth"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mwErrorResponse struct {
	Detail string `json:"detail"`
}

func adminEcho(v *auth.Verifier) *echo.Echo {
	e := echo.New()
	g := e.Group("/admin", AuthJWT(v), AdminRoleGuard())
	g.GET("/me", func(c echo.Context) error {
		p, ok := AdminFromContext(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, map[string]string{"actor": p.ActorID()})
	})
	return e
}

func TestAuthJWT_AdminGuard(t *testing.T) {
	v := auth.NewVerifier("secret")
	e := adminEcho(v)

	admin, err := v.Issue(1, auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	user, err := v.Issue(2, "USER", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		query  string
		status int
		detail string
	}{
		{name: "no token", status: http.StatusUnauthorized, detail: "unauthorized"},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized, detail: "unauthorized"},
		{name: "broken", header: "Bearer xxx", status: http.StatusUnauthorized, detail: "unauthorized"},
		{name: "user role", header: "Bearer " + user, status: http.StatusForbidden, detail: "admin only"},
		{name: "admin header", header: "Bearer " + admin, status: http.StatusOK},
		{name: "admin query", query: "?token=" + admin, status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.detail != "" {
				var body mwErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.detail, body.Detail)
			}
		})
	}
}

func TestSession_MintAndEcho(t *testing.T) {
	e := echo.New()
	e.GET("/cart", func(c echo.Context) error {
		return c.String(http.StatusOK, SessionFromContext(c))
	}, Session(true))
	e.GET("/orders", func(c echo.Context) error {
		return c.String(http.StatusOK, SessionFromContext(c))
	}, Session(false))

	// 無ければ発行してヘッダとcookieで返す
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	minted := rec.Body.String()
	assert.NotEmpty(t, minted)
	assert.Equal(t, minted, rec.Header().Get(SessionHeader))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), SessionCookie+"="+minted)

	// cookie からも読む
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "s-cookie"})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "s-cookie", rec.Body.String())

	// ヘッダ優先
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(SessionHeader, "s-header")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "s-cookie"})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "s-header", rec.Body.String())

	// 発行しないルートでは400
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
