package server

import (
	"context"
	"net/http"

	"cafe/internal/auth"
	"cafe/internal/handler"
	"cafe/internal/metrics"
	"cafe/internal/realtime"

	"github.com/labstack/echo/v4"
)

// Handlers は登録するハンドラ一式
type Handlers struct {
	Cart       *handler.CartHandler
	Payment    *handler.PaymentHandler
	Order      *handler.OrderHandler
	Menu       *handler.MenuHandler
	AdminMenu  *handler.AdminMenuHandler
	AdminOrder *handler.AdminOrderHandler
	Chat       *handler.ChatHandler
	WS         *realtime.WSServer
	SSE        *realtime.SSEServer

	// Health はDBなどの確認（nilなら常にok）
	Health func(ctx context.Context) error
}

func RegisterRoutes(e *echo.Echo, h Handlers, v *auth.Verifier, chatLimit echo.MiddlewareFunc, m *metrics.Metrics) {
	h.Cart.RegisterRoutes(e)
	h.Payment.RegisterRoutes(e)
	h.Order.RegisterRoutes(e)
	h.Menu.RegisterRoutes(e)
	h.AdminMenu.RegisterRoutes(e, v)
	h.AdminOrder.RegisterRoutes(e, v)
	h.Chat.RegisterRoutes(e, chatLimit)

	// realtimeはトークンを自分で検証する（WSは1008で閉じる）
	e.GET("/api/admin/realtime-sales", h.WS.Serve)
	e.GET("/api/admin/orders/realtime/subscribe", h.SSE.Serve)

	e.GET("/health", func(c echo.Context) error {
		if h.Health != nil {
			if err := h.Health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}
