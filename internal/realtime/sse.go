package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	SSEConnectionEstablished = "connection_established"
	SSEHeartbeat             = "heartbeat"
)

// SSEServer は /api/admin/orders/realtime/subscribe
// 再接続しても過去のイベントは送らない。
type SSEServer struct {
	hub   *Hub
	auth  Authenticator
	opts  Options
	token func(c echo.Context) string
	log   *zap.Logger
}

// DI。token はリクエストからトークンを取り出す（ヘッダか ?token=）。
func NewSSEServer(hub *Hub, authn Authenticator, token func(c echo.Context) string, opts Options, log *zap.Logger) *SSEServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SSEServer{hub: hub, auth: authn, opts: opts.withDefaults(), token: token, log: log.Named("realtime.sse")}
}

func (s *SSEServer) Serve(c echo.Context) error {
	if _, err := s.auth.CurrentAdmin(s.token(c)); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "unauthorized"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := s.hub.Register(TransportSSE)
	defer s.hub.Unregister(client)

	if err := writeSSE(w, SSEConnectionEstablished, map[string]string{"clientId": client.ID}); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	idle := time.NewTimer(s.opts.HeartbeatIdle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-client.C():
			if !ok {
				return nil
			}
			if err := writeSSE(w, FrameOrderEvent, e); err != nil {
				s.log.Debug("write failed", zap.String("client_id", client.ID), zap.Error(err))
				return nil
			}

		case <-idle.C:
			if err := writeSSE(w, SSEHeartbeat, map[string]int64{"at": time.Now().Unix()}); err != nil {
				return nil
			}
		}
		idle.Reset(s.opts.HeartbeatIdle)
	}
}

// writeSSE は event: / data: の1件を書いてflushする
func writeSSE(w *echo.Response, name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b); err != nil {
		return err
	}
	w.Flush()
	return nil
}
