package usecase

import (
	"context"
	"encoding/json"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	repo "cafe/internal/repository"

	"go.uber.org/zap"
)

// Gateways は決済手段ごとのアダプタ
type Gateways map[model.PaymentMethod]payment.Gateway

func (g Gateways) of(m model.PaymentMethod) (payment.Gateway, error) {
	gw, ok := g[m]
	if !ok || gw == nil {
		return nil, apperr.Validation("unsupported payment method")
	}
	return gw, nil
}

// gatewayOps は事業者呼び出しと payment_attempts の記録をまとめたもの。
// C5（承認・補償取消）とC6（取消・返金）が共有する。
type gatewayOps struct {
	gateways Gateways
	attempts repo.PaymentAttemptRepository
	newKey   IDGen
	log      *zap.Logger
}

// 操作の前に requested で1行作る。冪等キーはこの行に残る。
func (g *gatewayOps) begin(ctx context.Context, o model.Order, op model.PaymentOperation, amount int64) (model.PaymentAttempt, error) {
	a, err := g.attempts.Create(ctx, model.PaymentAttempt{
		OrderID:        o.ID,
		Method:         o.PaymentMethod,
		Operation:      op,
		IdempotencyKey: g.newKey(),
		Amount:         amount,
		Status:         model.AttemptRequested,
	})
	if err != nil {
		return model.PaymentAttempt{}, apperr.Internal("db error", err)
	}
	return a, nil
}

// 結果を書く。失敗してもログだけ（事業者側はもう動いている）。
func (g *gatewayOps) finish(ctx context.Context, a model.PaymentAttempt, status model.AttemptStatus, externalID string, result any, cause error) {
	res := repo.AttemptResult{Status: status, ExternalID: externalID}
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res.ResponseJSON = string(b)
		}
	}
	if e, ok := apperr.As(cause); ok {
		res.ErrorCode = e.Code
		if res.ErrorCode == "" {
			res.ErrorCode = string(e.Kind)
		}
	}
	if err := g.attempts.Complete(ctx, a.ID, res); err != nil {
		g.log.Error("payment attempt update failed",
			zap.Int64("order_id", a.OrderID),
			zap.Int64("attempt_id", a.ID),
			zap.String("idempotency_key", a.IdempotencyKey),
			zap.Error(err),
		)
	}
}

// cancel は部分・全額取消。409 は以前の取消が通った扱い。
func (g *gatewayOps) cancel(ctx context.Context, o model.Order, amount int64, reason string) (payment.CancelResult, error) {
	gw, err := g.gateways.of(o.PaymentMethod)
	if err != nil {
		return payment.CancelResult{}, err
	}
	a, err := g.begin(ctx, o, model.PaymentOpCancel, amount)
	if err != nil {
		return payment.CancelResult{}, err
	}

	res, err := gw.Cancel(ctx, payment.CancelRequest{
		Order:          o,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: a.IdempotencyKey,
	})
	if err != nil {
		g.finish(ctx, a, model.AttemptFailed, "", nil, err)
		g.log.Warn("gateway cancel failed",
			zap.Int64("order_id", o.ID),
			zap.String("payment_key", deref(o.PaymentKey)),
			zap.String("idempotency_key", a.IdempotencyKey),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return payment.CancelResult{}, err
	}

	status := model.AttemptSucceeded
	if res.Replayed {
		status = model.AttemptReplayed
	}
	g.finish(ctx, a, status, res.ExternalID, res, nil)
	g.log.Info("gateway cancel done",
		zap.Int64("order_id", o.ID),
		zap.String("payment_key", deref(o.PaymentKey)),
		zap.String("idempotency_key", a.IdempotencyKey),
		zap.Int64("amount", amount),
		zap.Bool("replayed", res.Replayed),
	)
	return res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr[T any](v T) *T { return &v }
