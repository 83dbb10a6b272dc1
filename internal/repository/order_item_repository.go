package repository

import (
	"context"

	"cafe/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	FindByID(ctx context.Context, itemID int64) (model.OrderItem, error)
	// expected の時だけ next にする。違えば ErrConflict。
	Transition(ctx context.Context, itemID int64, expected, next model.ItemStatus) (model.OrderItem, error)
	// cancelled 以外を cancelled にする。変えた件数を返す。
	CancelActive(ctx context.Context, orderID int64) (int64, error)
}
