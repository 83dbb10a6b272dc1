package repository

import (
	"context"
	"errors"
	"time"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"gorm.io/gorm"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
		if items[i].Status == "" {
			items[i].Status = model.ItemStatusPending
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *OrderItemGormRepository) FindByID(ctx context.Context, itemID int64) (model.OrderItem, error) {
	var it model.OrderItem
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.OrderItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.OrderItem{}, err
	}
	return it, nil
}

func (r *OrderItemGormRepository) Transition(ctx context.Context, itemID int64, expected, next model.ItemStatus) (model.OrderItem, error) {
	res := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("id = ? AND status = ?", itemID, expected).
		Updates(map[string]any{"status": next, "updated_at": time.Now()})
	if res.Error != nil {
		return model.OrderItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, itemID); err != nil {
			return model.OrderItem{}, err
		}
		return model.OrderItem{}, repo.ErrConflict
	}
	return r.FindByID(ctx, itemID)
}

func (r *OrderItemGormRepository) CancelActive(ctx context.Context, orderID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("order_id = ? AND status <> ?", orderID, model.ItemStatusCancelled).
		Updates(map[string]any{"status": model.ItemStatusCancelled, "updated_at": time.Now()})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
