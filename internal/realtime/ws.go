package realtime

import (
	"context"
	"net/http"
	"time"

	"cafe/internal/auth"
	"cafe/internal/domain/view"
	"cafe/internal/event"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Authenticator は管理者トークンの検証（auth.Verifier）
type Authenticator interface {
	CurrentAdmin(raw string) (auth.AdminPrincipal, error)
}

// Frame はWSで送るメッセージ1件
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	FrameSnapshot   = "snapshot"
	FrameOrderEvent = "order_event"
	FrameUpdate     = "update"
)

type Options struct {
	UpdateInterval time.Duration // update フレームの間隔
	PingInterval   time.Duration
	WriteWait      time.Duration
	HeartbeatIdle  time.Duration // SSEで何も送らなかった時の heartbeat
}

func (o Options) withDefaults() Options {
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.HeartbeatIdle <= 0 {
		o.HeartbeatIdle = 15 * time.Second
	}
	return o
}

// WSServer は /api/admin/realtime-sales
type WSServer struct {
	hub      *Hub
	dash     *Dashboard
	auth     Authenticator
	opts     Options
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// DI
func NewWSServer(hub *Hub, dash *Dashboard, authn Authenticator, allowedOrigin string, opts Options, log *zap.Logger) *WSServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSServer{
		hub:  hub,
		dash: dash,
		auth: authn,
		opts: opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		log: log.Named("realtime.ws"),
	}
}

// Serve はアップグレード後にトークンを確認する。失敗したら 1008 で閉じる。
func (s *WSServer) Serve(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrader がレスポンスを書いている
		s.log.Debug("upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	if _, err := s.auth.CurrentAdmin(c.QueryParam("token")); err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteWait))
		return nil
	}

	client := s.hub.Register(TransportWS)
	defer s.hub.Unregister(client)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()
	go s.readPump(conn, cancel)

	snap, err := s.dash.Snapshot(ctx)
	if err != nil {
		s.log.Error("snapshot failed", zap.Error(err))
		snap = Snapshot{RecentOrders: []view.Order{}}
	}
	if err := s.write(conn, Frame{Type: FrameSnapshot, Data: snap}); err != nil {
		return nil
	}

	update := time.NewTicker(s.opts.UpdateInterval)
	defer update.Stop()
	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-client.C():
			if !ok {
				return nil
			}
			if err := s.write(conn, orderFrame(e)); err != nil {
				return nil
			}

		case <-update.C:
			u, err := s.dash.Update(ctx)
			if err != nil {
				s.log.Warn("update failed", zap.Error(err))
				continue
			}
			if err := s.write(conn, Frame{Type: FrameUpdate, Data: u}); err != nil {
				return nil
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				return nil
			}
		}
	}
}

// クライアントからは読むだけ（切断の検知）
func (s *WSServer) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WSServer) write(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
	if err := conn.WriteJSON(f); err != nil {
		s.log.Debug("write failed", zap.String("type", f.Type), zap.Error(err))
		return err
	}
	return nil
}

func orderFrame(e event.Event) Frame { return Frame{Type: FrameOrderEvent, Data: e} }
