package repository

import (
	"context"

	"cafe/internal/domain/model"
)

type AttemptResult struct {
	Status       model.AttemptStatus
	ExternalID   string
	ErrorCode    string
	ResponseJSON string
}

// 決済事業者への操作記録
type PaymentAttemptRepository interface {
	Create(ctx context.Context, a model.PaymentAttempt) (model.PaymentAttempt, error)
	Complete(ctx context.Context, attemptID int64, res AttemptResult) error
	// 成功した最後の操作。無ければ ErrNotFound。
	FindLatestSucceeded(ctx context.Context, orderID int64, op model.PaymentOperation) (model.PaymentAttempt, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentAttempt, error)
}
