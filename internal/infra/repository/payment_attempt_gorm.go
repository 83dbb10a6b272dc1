package repository

import (
	"context"
	"errors"
	"time"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"gorm.io/gorm"
)

type PaymentAttemptGormRepository struct {
	db *gorm.DB
}

func NewPaymentAttemptGormRepository(db *gorm.DB) *PaymentAttemptGormRepository {
	return &PaymentAttemptGormRepository{db: db}
}

func (r *PaymentAttemptGormRepository) Create(ctx context.Context, a model.PaymentAttempt) (model.PaymentAttempt, error) {
	if a.Status == "" {
		a.Status = model.AttemptRequested
	}
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		if isUniqueViolation(err) {
			return model.PaymentAttempt{}, repo.ErrConflict
		}
		return model.PaymentAttempt{}, err
	}
	return a, nil
}

func (r *PaymentAttemptGormRepository) Complete(ctx context.Context, attemptID int64, res repo.AttemptResult) error {
	out := r.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]any{
			"status":        res.Status,
			"external_id":   res.ExternalID,
			"error_code":    res.ErrorCode,
			"response_json": res.ResponseJSON,
			"updated_at":    time.Now(),
		})
	if out.Error != nil {
		return out.Error
	}
	if out.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentAttemptGormRepository) FindLatestSucceeded(ctx context.Context, orderID int64, op model.PaymentOperation) (model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND operation = ? AND status = ?", orderID, op, model.AttemptSucceeded).
		Order("id desc").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentAttempt{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentAttempt{}, err
	}
	return a, nil
}

func (r *PaymentAttemptGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentAttempt, error) {
	var out []model.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&out).Error; err != nil {
		return []model.PaymentAttempt{}, err
	}
	return out, nil
}
