package repository

import (
	"context"
	"errors"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"gorm.io/gorm"
)

type MenuGormRepository struct {
	db *gorm.DB
}

// DI
func NewMenuGormRepository(db *gorm.DB) *MenuGormRepository {
	return &MenuGormRepository{db: db}
}

// カテゴリ・販売中で絞り込んで、カテゴリ→ID順で返す。
func (r *MenuGormRepository) List(ctx context.Context, f repo.MenuFilter) ([]model.Menu, error) {
	tx := r.db.WithContext(ctx).Model(&model.Menu{})

	if f.Category != "" {
		tx = tx.Where("category = ?", f.Category)
	}
	if f.AvailableOnly {
		tx = tx.Where("is_available = ?", true)
	}

	var menus []model.Menu
	if err := tx.Order("category asc").Order("id asc").Find(&menus).Error; err != nil {
		return []model.Menu{}, err
	}
	return menus, nil
}

// IDでメニューを取得（論理削除は見つからない扱い）
func (r *MenuGormRepository) FindByID(ctx context.Context, id int64) (model.Menu, error) {
	var m model.Menu
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Menu{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Menu{}, err
	}
	return m, nil
}

// まとめて取得。価格計算は1回のクエリで読む。
func (r *MenuGormRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Menu, error) {
	if len(ids) == 0 {
		return []model.Menu{}, nil
	}
	var menus []model.Menu
	if err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&menus).Error; err != nil {
		return []model.Menu{}, err
	}
	return menus, nil
}

func (r *MenuGormRepository) SetAvailability(ctx context.Context, id int64, available bool) (model.Menu, error) {
	res := r.db.WithContext(ctx).Model(&model.Menu{}).
		Where("id = ?", id).
		Update("is_available", available)
	if res.Error != nil {
		return model.Menu{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.Menu{}, repo.ErrNotFound
	}
	return r.FindByID(ctx, id)
}
