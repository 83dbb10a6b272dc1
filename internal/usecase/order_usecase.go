package usecase

import (
	"context"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/domain/view"
	"cafe/internal/infra/qrcode"
	repo "cafe/internal/repository"
)

// OrderUsecase は顧客向けの注文参照（セッション単位）
type OrderUsecase struct {
	orders repo.OrderRepository
}

// DI
func NewOrderUsecase(orders repo.OrderRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders}
}

// Get は自分の注文だけ返す。他人の注文は403。
func (u *OrderUsecase) Get(ctx context.Context, sessionKey string, orderID int64) (view.Order, error) {
	o, err := u.owned(ctx, sessionKey, orderID)
	if err != nil {
		return view.Order{}, err
	}
	return view.FromOrder(o), nil
}

// ListMine はセッションの注文（新しい順）
func (u *OrderUsecase) ListMine(ctx context.Context, sessionKey string, limit int) ([]view.Order, error) {
	if err := checkSession(sessionKey); err != nil {
		return nil, err
	}
	if limit < 0 || limit > 100 {
		return nil, apperr.Validation("invalid limit")
	}
	orders, err := u.orders.FindBySession(ctx, sessionKey, repo.SessionOrderFilter{Limit: limit})
	if err != nil {
		return nil, apperr.Internal("db error", err)
	}
	return view.FromOrders(orders), nil
}

// PickupQR は受け取り用QR（PNG）。注文番号がある支払い済み注文だけ。
func (u *OrderUsecase) PickupQR(ctx context.Context, sessionKey string, orderID int64) ([]byte, error) {
	o, err := u.owned(ctx, sessionKey, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.PaidFamily() || o.OrderNumber == nil {
		return nil, apperr.Conflict("order is not paid")
	}
	png, err := qrcode.PNG(qrcode.PickupContent(o.ID, *o.OrderNumber), 0)
	if err != nil {
		return nil, apperr.Internal("qrcode error", err)
	}
	return png, nil
}

func (u *OrderUsecase) owned(ctx context.Context, sessionKey string, orderID int64) (model.Order, error) {
	if err := checkSession(sessionKey); err != nil {
		return model.Order{}, err
	}
	if orderID <= 0 {
		return model.Order{}, apperr.Validation("invalid id")
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return model.Order{}, repoError(err, "order not found")
	}
	if o.SessionKey != sessionKey {
		return model.Order{}, apperr.Forbidden("forbidden")
	}
	return o, nil
}
