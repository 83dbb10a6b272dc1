package model

import "time"

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusPreparing     OrderStatus = "preparing"
	OrderStatusReady         OrderStatus = "ready"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusRefunded      OrderStatus = "refunded"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
)

// 決済済み（お金を受け取っている）状態
func (s OrderStatus) PaidFamily() bool {
	switch s {
	case OrderStatusPaid, OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusPreparing, OrderStatusReady,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded, OrderStatusPaymentFailed:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodKakao PaymentMethod = "kakao"
	PaymentMethodNaver PaymentMethod = "naver"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodKakao || m == PaymentMethodNaver
}

// 注文。OrderNumber は支払い完了時に採番される（YYYYMMDD-NNN, KST）。
// Items はrepositoryが読み込む（gormの関連は使わない）。
type Order struct {
	ID                int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber       *string       `gorm:"type:varchar(20);uniqueIndex" json:"orderNumber"`
	SessionKey        string        `gorm:"type:varchar(128);not null;index" json:"sessionKey"`
	TotalAmount       int64         `gorm:"not null" json:"totalAmount"`
	Status            OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod     PaymentMethod `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	PaymentKey        *string       `gorm:"type:varchar(128);index" json:"paymentKey"`
	ItemsSnapshotJSON string        `gorm:"type:text;not null" json:"-"`
	CancelledAmount   int64         `gorm:"not null;default:0" json:"cancelledAmount"`
	RefundAmount      *int64        `json:"-"`
	RefundReason      *string       `gorm:"type:varchar(500)" json:"-"`
	RefundExternalID  *string       `gorm:"type:varchar(128)" json:"-"`
	RefundedAt        *time.Time    `json:"-"`
	ReceiptJSON       *string       `gorm:"type:text" json:"-"`
	PaidAt            *time.Time    `gorm:"index" json:"paidAt"`
	CreatedAt         time.Time     `gorm:"not null;autoCreateTime;index" json:"createdAt"`
	UpdatedAt         time.Time     `gorm:"not null;autoUpdateTime" json:"updatedAt"`

	Items []OrderItem `gorm:"-" json:"items"`
}

// Refund は返金の記録（返金済みのときだけ）
type Refund struct {
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	ExternalID string    `json:"externalId"`
	At         time.Time `json:"at"`
}

func (o Order) Refund() *Refund {
	if o.RefundAmount == nil {
		return nil
	}
	r := &Refund{Amount: *o.RefundAmount}
	if o.RefundReason != nil {
		r.Reason = *o.RefundReason
	}
	if o.RefundExternalID != nil {
		r.ExternalID = *o.RefundExternalID
	}
	if o.RefundedAt != nil {
		r.At = *o.RefundedAt
	}
	return r
}

// 決済事業者側でまだ取り消せる金額
func (o Order) RemainingAmount() int64 {
	return o.TotalAmount - o.CancelledAmount
}

// ItemSnapshot は注文作成時の明細スナップショット（ItemsSnapshotJSON の要素）
type ItemSnapshot struct {
	MenuID     int64  `json:"menuId"`
	MenuName   string `json:"menuName"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
	TotalPrice int64  `json:"totalPrice"`
}
