package repository

import (
	"context"

	"cafe/internal/domain/model"
)

type CartItemPatch struct {
	Quantity        *int64
	SpecialRequests *string
}

type CartItemRepository interface {
	// 追加順（id順）
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一メニューは数量を加算
	UpsertByCartAndMenu(ctx context.Context, cartID int64, menuID int64, addQty int64, specialRequests *string) error
	Update(ctx context.Context, cartItemID int64, patch CartItemPatch) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	IsOwnedBySession(ctx context.Context, cartItemID int64, sessionKey string) (bool, error)
}
