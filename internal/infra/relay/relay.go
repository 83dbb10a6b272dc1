// Package relay はEventBusの注文イベントを外部ブローカーへ転送する。
// 配送は at-most-once（失敗はログのみで再送しない）。
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cafe/internal/domain/view"
	"cafe/internal/event"

	"go.uber.org/zap"
)

// Sink は1件ずつ送る先
type Sink interface {
	Send(ctx context.Context, key string, kind event.Kind, payload []byte) error
	Close() error
}

// 外部に出すイベントの形
type envelope struct {
	Kind                 event.Kind `json:"kind"`
	OrderID              int64      `json:"orderId"`
	Order                view.Order `json:"order"`
	GatewayCancelPending bool       `json:"gatewayCancelPending,omitempty"`
	At                   time.Time  `json:"at"`
}

func encode(e event.Event) ([]byte, error) {
	return json.Marshal(envelope{
		Kind:                 e.Kind,
		OrderID:              e.Order.ID,
		Order:                e.Order,
		GatewayCancelPending: e.GatewayCancelPending,
		At:                   e.At,
	})
}

type Forwarder struct {
	sub     *event.Subscription
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
}

// DI
func NewForwarder(sub *event.Subscription, sink Sink, log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forwarder{sub: sub, sink: sink, log: log, timeout: 5 * time.Second}
}

// Run はctxが終わるか購読が閉じられるまで転送する
func (f *Forwarder) Run(ctx context.Context) {
	defer f.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-f.sub.C():
			if !ok {
				return
			}
			if err := f.forward(ctx, e); err != nil {
				f.log.Warn("relay send failed",
					zap.String("kind", string(e.Kind)),
					zap.Int64("order_id", e.Order.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, e event.Event) error {
	payload, err := encode(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.sink.Send(ctx, strconv.FormatInt(e.Order.ID, 10), e.Kind, payload)
}
