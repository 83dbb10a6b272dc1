package repository

import (
	"context"

	"cafe/internal/domain/model"
)

// 一覧検索
type MenuFilter struct {
	Category      string
	AvailableOnly bool
}

// メニューの読み取りと販売可否の切り替えだけを約束。
type MenuRepository interface {
	List(ctx context.Context, f MenuFilter) ([]model.Menu, error)
	FindByID(ctx context.Context, id int64) (model.Menu, error)
	// 論理削除済みも含めて返す（注文不可の判定に使う）
	FindByIDs(ctx context.Context, ids []int64) ([]model.Menu, error)
	SetAvailability(ctx context.Context, id int64, available bool) (model.Menu, error)
}
