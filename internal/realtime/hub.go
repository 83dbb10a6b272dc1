// Package realtime は注文イベントを管理画面（WebSocket / SSE）へ配る。
package realtime

import (
	"context"
	"sync"

	"cafe/internal/event"
	"cafe/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Transport string

const (
	TransportWS  Transport = "ws"
	TransportSSE Transport = "sse"
)

// Client は接続1本分。イベントは自分の Mailbox から読む。
type Client struct {
	ID        string
	Transport Transport
	box       *event.Mailbox
}

func (c *Client) C() <-chan event.Event { return c.box.C() }

// Hub はバスを1回だけ購読し、接続中のクライアントへ配る。
// 配信中はロックを持たない（登録のスナップショットに配る）。
type Hub struct {
	mu      sync.RWMutex
	clients map[Transport]map[*Client]struct{}
	size    int
	log     *zap.Logger
	metrics *metrics.Metrics
}

// DI
func NewHub(mailboxSize int, log *zap.Logger, m *metrics.Metrics) *Hub {
	if mailboxSize <= 0 {
		mailboxSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: map[Transport]map[*Client]struct{}{
			TransportWS:  {},
			TransportSSE: {},
		},
		size:    mailboxSize,
		log:     log.Named("realtime"),
		metrics: m,
	}
}

// Register は新しい接続を登録する。切断時は必ず Unregister。
func (h *Hub) Register(t Transport) *Client {
	c := &Client{ID: uuid.NewString(), Transport: t, box: event.NewMailbox(h.size)}

	h.mu.Lock()
	h.clients[t][c] = struct{}{}
	n := len(h.clients[t])
	h.mu.Unlock()

	h.metrics.ClientConnected(string(t))
	h.log.Info("client connected", zap.String("transport", string(t)), zap.String("client_id", c.ID), zap.Int("clients", n))
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.Transport][c]
	delete(h.clients[c.Transport], c)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.box.Close()
	h.metrics.ClientDisconnected(string(c.Transport))
	h.log.Info("client disconnected", zap.String("transport", string(c.Transport)), zap.String("client_id", c.ID))
}

func (h *Hub) Count(t Transport) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[t])
}

// Broadcast は全クライアントのMailboxに入れる。遅いクライアントは古いものから落とす。
func (h *Hub) Broadcast(e event.Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[TransportWS])+len(h.clients[TransportSSE]))
	for _, set := range h.clients {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.box.Put(e) {
			h.metrics.EventDropped("realtime-" + string(c.Transport))
			h.log.Warn("client queue full, dropped oldest event",
				zap.String("transport", string(c.Transport)),
				zap.String("client_id", c.ID),
				zap.String("kind", string(e.Kind)),
				zap.Int64("order_id", e.Order.ID),
			)
		}
	}
}

// Run は購読が閉じるか ctx が終わるまで配り続ける
func (h *Hub) Run(ctx context.Context, sub *event.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			h.Broadcast(e)
		}
	}
}
