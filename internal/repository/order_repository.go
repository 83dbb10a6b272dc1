package repository

import (
	"context"
	"time"

	"cafe/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page       int
	Limit      int
	Status     string
	SessionKey string
	From       *time.Time
	To         *time.Time
}

// セッションの注文検索
type SessionOrderFilter struct {
	Statuses      []model.OrderStatus
	PaymentMethod model.PaymentMethod
	CreatedAfter  *time.Time
	Limit         int
}

// Transition と一緒に書き込む列。nilは変更しない。
type OrderPatch struct {
	PaymentKey       *string
	PaidAt           *time.Time
	ReceiptJSON      *string
	CancelledAmount  *int64
	RefundAmount     *int64
	RefundReason     *string
	RefundExternalID *string
	RefundedAt       *time.Time
}

type OrderRepository interface {
	// status=pending, order_number=null で作る。明細は OrderItemRepository.CreateBulk。
	Create(ctx context.Context, order model.Order) (model.Order, error)
	// 明細込みで返す
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByOrderNumber(ctx context.Context, number string) (model.Order, error)
	FindByPaymentKey(ctx context.Context, key string) (model.Order, error)
	FindBySession(ctx context.Context, sessionKey string, f SessionOrderFilter) ([]model.Order, error)

	// expected の時だけ next にする（compare-and-set）。違えば ErrConflict。
	Transition(ctx context.Context, orderID int64, expected, next model.OrderStatus, patch OrderPatch) (model.Order, error)
	// dateKST(YYYYMMDD)の次の番号を振って書き込む。
	AllocateOrderNumber(ctx context.Context, orderID int64, dateKST string) (string, error)

	ListRecent(ctx context.Context, limit int) ([]model.Order, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.Order, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
