// Package event はプロセス内の注文イベント配送。
package event

import (
	"time"

	"cafe/internal/domain/view"
)

type Kind string

const (
	OrderCreated   Kind = "OrderCreated"
	OrderPaid      Kind = "OrderPaid"
	OrderUpdated   Kind = "OrderUpdated"
	OrderCancelled Kind = "OrderCancelled"
)

// Event は注文の変化1件
type Event struct {
	Kind  Kind       `json:"kind"`
	Order view.Order `json:"order"`
	// 明細取消で事業者側の取消が失敗し、手動対応が必要
	GatewayCancelPending bool      `json:"gatewayCancelPending,omitempty"`
	At                   time.Time `json:"at"`
}

// Publisher はusecaseから見たバス
type Publisher interface {
	Publish(e Event)
}
