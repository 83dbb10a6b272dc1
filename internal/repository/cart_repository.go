package repository

import (
	"context"

	"cafe/internal/domain/model"
)

type CartRepository interface {
	// 無ければ作る。同時に呼ばれても1つだけ。
	GetOrCreateBySession(ctx context.Context, sessionKey string) (model.Cart, error)
	FindBySession(ctx context.Context, sessionKey string) (model.Cart, error)
	// 明細ごとカートを消す
	DeleteBySession(ctx context.Context, sessionKey string) error
}
