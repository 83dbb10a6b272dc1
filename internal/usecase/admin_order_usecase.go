package usecase

import (
	"context"
	"fmt"
	"strings"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/domain/view"
	"cafe/internal/event"
	"cafe/internal/keylock"
	repo "cafe/internal/repository"

	"go.uber.org/zap"
)

// AdminOrderUsecase は注文ステータスの遷移（管理者操作・取消・返金）を担う。
// 同じ注文への操作は keylock で直列にし、DBは compare-and-set で守る。
type AdminOrderUsecase struct {
	tx    repo.TransactionManager
	repos repo.TxRepos
	ops   *gatewayOps
	bus   event.Publisher
	locks *keylock.Locker
	clock Clock
	log   *zap.Logger
}

// DI
func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	repos repo.TxRepos,
	gateways Gateways,
	bus event.Publisher,
	locks *keylock.Locker,
	clock Clock,
	newKey IDGen,
	log *zap.Logger,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{
		tx:    tx,
		repos: repos,
		ops: &gatewayOps{
			gateways: gateways,
			attempts: repos.PaymentAttempts(),
			newKey:   newKey,
			log:      log,
		},
		bus:   bus,
		locks: locks,
		clock: clock,
		log:   log,
	}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

type AdminUpdateItemStatusInput struct {
	Status string
}

type RefundInput struct {
	OrderID      int64
	RefundAmount *int64
	Reason       string
}

type AdminOrderList struct {
	Items []view.Order `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// ItemStatusOutput の GatewayCancelPending は事業者側の取消が失敗して手動対応が必要な時
type ItemStatusOutput struct {
	Order                view.Order `json:"order"`
	GatewayCancelPending bool       `json:"gatewayCancelPending"`
}

func orderKey(id int64) string { return fmt.Sprintf("order:%d", id) }

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderList, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderList{}, apperr.Validation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderList{}, apperr.Validation("invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return AdminOrderList{}, apperr.Validation("invalid status")
	}

	orders, total, err := u.repos.Orders().ListAdmin(ctx, f)
	if err != nil {
		return AdminOrderList{}, apperr.Internal("db error", err)
	}
	return AdminOrderList{Items: view.FromOrders(orders), Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// AuditLogs は注文と明細の操作履歴
func (u *AdminOrderUsecase) AuditLogs(ctx context.Context, orderID int64) ([]model.AuditLog, error) {
	if orderID <= 0 {
		return nil, apperr.Validation("invalid id")
	}
	resource := model.AuditResourceOrder
	logs, err := u.repos.AuditLogs().List(ctx, repo.AuditLogFilter{
		ResourceType: &resource,
		ResourceID:   &orderID,
		Limit:        100,
	})
	if err != nil {
		return nil, apperr.Internal("db error", err)
	}
	return logs, nil
}

// UpdateStatus は管理者のステータス変更。同じステータスなら何もしない。
// cancelled は全額取消、refunded は残額の返金として扱う。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actor model.Actor, orderID int64, in AdminUpdateOrderStatusInput) (view.Order, error) {
	if orderID <= 0 {
		return view.Order{}, apperr.Validation("invalid id")
	}
	next := model.OrderStatus(strings.TrimSpace(in.Status))
	if !next.Valid() {
		return view.Order{}, apperr.Validation("invalid status")
	}

	unlock := u.locks.Lock(orderKey(orderID))
	defer unlock()

	o, err := u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return view.Order{}, repoError(err, "order not found")
	}
	if o.Status == next {
		return view.FromOrder(o), nil
	}
	if !CanTransition(o.Status, next) {
		return view.Order{}, apperr.Conflict(fmt.Sprintf("cannot change %s order to %s", o.Status, next))
	}

	switch next {
	case model.OrderStatusCancelled:
		return u.cancelLocked(ctx, actor, o, "관리자 취소")
	case model.OrderStatusRefunded:
		return u.refundLocked(ctx, actor, o, nil, "관리자 환불")
	}

	var updated model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		updated, err = r.Orders().Transition(ctx, o.ID, o.Status, next, repo.OrderPatch{})
		if err != nil {
			return repoError(err, "order not found")
		}
		// ★監査ログ（UPDATE_ORDER_STATUS）
		return writeAudit(ctx, r.AuditLogs(), u.clock.Now(), actor,
			model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID,
			statusJSON{string(o.Status)}, statusJSON{string(next)})
	})
	if err != nil {
		return view.Order{}, err
	}

	v := view.FromOrder(updated)
	u.bus.Publish(event.Event{Kind: event.OrderUpdated, Order: v})
	return v, nil
}

// CancelOrder は全額取消（管理者・顧客共通）
func (u *AdminOrderUsecase) CancelOrder(ctx context.Context, actor model.Actor, orderID int64, reason string) (view.Order, error) {
	if orderID <= 0 {
		return view.Order{}, apperr.Validation("invalid id")
	}

	unlock := u.locks.Lock(orderKey(orderID))
	defer unlock()

	o, err := u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return view.Order{}, repoError(err, "order not found")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "주문 취소"
	}
	return u.cancelLocked(ctx, actor, o, reason)
}

// 事業者側の取消が通ってからDBを cancelled にする。
// 取消が失敗したら注文はそのまま。
func (u *AdminOrderUsecase) cancelLocked(ctx context.Context, actor model.Actor, o model.Order, reason string) (view.Order, error) {
	if o.Status == model.OrderStatusCancelled {
		return view.FromOrder(o), nil
	}
	if !CanTransition(o.Status, model.OrderStatusCancelled) {
		return view.Order{}, apperr.Conflict(fmt.Sprintf("cannot cancel %s order", o.Status))
	}

	var patch repo.OrderPatch
	if o.Status.PaidFamily() {
		if remaining := o.RemainingAmount(); remaining > 0 {
			if _, err := u.ops.cancel(ctx, o, remaining, reason); err != nil {
				return view.Order{}, err
			}
			// ここから先は事業者側で取消済み
			ctx = context.WithoutCancel(ctx)
		}
		patch.CancelledAmount = ptr(o.TotalAmount)
	}

	var updated model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.OrderItems().CancelActive(ctx, o.ID); err != nil {
			return apperr.Internal("db error", err)
		}
		var err error
		updated, err = r.Orders().Transition(ctx, o.ID, o.Status, model.OrderStatusCancelled, patch)
		if err != nil {
			return repoError(err, "order not found")
		}
		return writeAudit(ctx, r.AuditLogs(), u.clock.Now(), actor,
			model.AuditActionCancelOrder, model.AuditResourceOrder, o.ID,
			statusJSON{string(o.Status)}, statusJSON{string(model.OrderStatusCancelled)})
	})
	if err != nil {
		if patch.CancelledAmount != nil {
			u.log.Error("order cancelled at gateway but not in db",
				zap.Int64("order_id", o.ID),
				zap.String("payment_key", deref(o.PaymentKey)),
				zap.Error(err),
			)
		}
		return view.Order{}, err
	}

	v := view.FromOrder(updated)
	u.bus.Publish(event.Event{Kind: event.OrderCancelled, Order: v})
	return v, nil
}

// Refund は返金。金額省略時は残額全部。二重返金は409。
func (u *AdminOrderUsecase) Refund(ctx context.Context, actor model.Actor, in RefundInput) (view.Order, error) {
	if in.OrderID <= 0 {
		return view.Order{}, apperr.Validation("invalid orderId")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return view.Order{}, apperr.Validation("reason required")
	}
	if len(reason) > 500 {
		return view.Order{}, apperr.Validation("reason too long")
	}

	unlock := u.locks.Lock(orderKey(in.OrderID))
	defer unlock()

	o, err := u.repos.Orders().FindByID(ctx, in.OrderID)
	if err != nil {
		return view.Order{}, repoError(err, "order not found")
	}
	return u.refundLocked(ctx, actor, o, in.RefundAmount, reason)
}

func (u *AdminOrderUsecase) refundLocked(ctx context.Context, actor model.Actor, o model.Order, amount *int64, reason string) (view.Order, error) {
	if o.Refund() != nil || o.Status == model.OrderStatusRefunded {
		return view.Order{}, apperr.Conflict("order already refunded")
	}
	if !o.Status.PaidFamily() {
		return view.Order{}, apperr.Conflict(fmt.Sprintf("cannot refund %s order", o.Status))
	}

	remaining := o.RemainingAmount()
	amt := remaining
	if amount != nil {
		amt = *amount
	}
	if amt < 1 || amt > remaining {
		return view.Order{}, apperr.Validation(fmt.Sprintf("refund amount must be between 1 and %d", remaining))
	}

	res, err := u.ops.cancel(ctx, o, amt, reason)
	if err != nil {
		return view.Order{}, err
	}
	ctx = context.WithoutCancel(ctx)

	now := u.clock.Now()
	patch := repo.OrderPatch{
		CancelledAmount:  ptr(o.CancelledAmount + amt),
		RefundAmount:     ptr(amt),
		RefundReason:     ptr(reason),
		RefundExternalID: ptr(res.ExternalID),
		RefundedAt:       ptr(now),
	}

	var updated model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		updated, err = r.Orders().Transition(ctx, o.ID, o.Status, model.OrderStatusRefunded, patch)
		if err != nil {
			return repoError(err, "order not found")
		}
		return writeAudit(ctx, r.AuditLogs(), now, actor,
			model.AuditActionRefundOrder, model.AuditResourceOrder, o.ID,
			statusJSON{string(o.Status)},
			map[string]any{"status": model.OrderStatusRefunded, "amount": amt, "reason": reason})
	})
	if err != nil {
		u.log.Error("order refunded at gateway but not in db",
			zap.Int64("order_id", o.ID),
			zap.String("payment_key", deref(o.PaymentKey)),
			zap.String("external_id", res.ExternalID),
			zap.Int64("amount", amt),
			zap.Error(err),
		)
		return view.Order{}, err
	}

	v := view.FromOrder(updated)
	u.bus.Publish(event.Event{Kind: event.OrderUpdated, Order: v})
	return v, nil
}

// UpdateItemStatus は明細単位の遷移。
// 支払い済みの注文で明細を取り消すと、その金額だけ事業者側で部分取消する。
// 部分取消が失敗しても明細の取消は残し、イベントに gatewayCancelPending を付ける。
func (u *AdminOrderUsecase) UpdateItemStatus(ctx context.Context, actor model.Actor, orderID, itemID int64, in AdminUpdateItemStatusInput) (ItemStatusOutput, error) {
	if orderID <= 0 || itemID <= 0 {
		return ItemStatusOutput{}, apperr.Validation("invalid id")
	}
	next := model.ItemStatus(strings.TrimSpace(in.Status))
	if !next.Valid() {
		return ItemStatusOutput{}, apperr.Validation("invalid status")
	}

	unlock := u.locks.Lock(orderKey(orderID))
	defer unlock()

	o, err := u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return ItemStatusOutput{}, repoError(err, "order not found")
	}
	var item model.OrderItem
	found := false
	for _, it := range o.Items {
		if it.ID == itemID {
			item, found = it, true
			break
		}
	}
	if !found {
		return ItemStatusOutput{}, apperr.NotFound("order item not found")
	}
	if item.Status == next {
		return ItemStatusOutput{Order: view.FromOrder(o)}, nil
	}
	if !CanTransitionItem(item.Status, next) {
		return ItemStatusOutput{}, apperr.Conflict(fmt.Sprintf("cannot change %s item to %s", item.Status, next))
	}
	if o.Status != model.OrderStatusPending && !o.Status.PaidFamily() {
		return ItemStatusOutput{}, apperr.Conflict(fmt.Sprintf("cannot change items of %s order", o.Status))
	}
	// 未決済の注文は明細の取消だけ
	if o.Status == model.OrderStatusPending && next != model.ItemStatusCancelled {
		return ItemStatusOutput{}, apperr.Conflict(fmt.Sprintf("cannot change item of unpaid order to %s", next))
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.OrderItems().Transition(ctx, item.ID, item.Status, next); err != nil {
			return repoError(err, "order item not found")
		}
		return writeAudit(ctx, r.AuditLogs(), u.clock.Now(), actor,
			model.AuditActionUpdateItemStatus, model.AuditResourceOrderItem, item.ID,
			statusJSON{string(item.Status)}, statusJSON{string(next)})
	})
	if err != nil {
		return ItemStatusOutput{}, err
	}
	// 明細の変更は確定したので、以降はクライアントの切断で止めない
	ctx = context.WithoutCancel(ctx)

	pendingCancel := false
	refund := next == model.ItemStatusCancelled || next == model.ItemStatusRefunded
	if refund && o.Status.PaidFamily() {
		amt := min(item.TotalPrice, o.RemainingAmount())
		if amt > 0 {
			if _, err := u.ops.cancel(ctx, o, amt, "주문 항목 취소"); err != nil {
				pendingCancel = true
				u.log.Error("partial cancel failed, manual refund required",
					zap.Int64("order_id", o.ID),
					zap.Int64("item_id", item.ID),
					zap.String("payment_key", deref(o.PaymentKey)),
					zap.Int64("amount", amt),
					zap.Error(err),
				)
			} else if _, err := u.repos.Orders().Transition(ctx, o.ID, o.Status, o.Status, repo.OrderPatch{
				CancelledAmount: ptr(o.CancelledAmount + amt),
			}); err != nil {
				return ItemStatusOutput{}, repoError(err, "order not found")
			}
		}
	}

	o, err = u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return ItemStatusOutput{}, repoError(err, "order not found")
	}

	kind := event.OrderUpdated
	if derived := DeriveOrderStatus(o.Status, o.Items); derived != o.Status && CanTransition(o.Status, derived) {
		prev := o.Status
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			var err error
			o, err = r.Orders().Transition(ctx, orderID, prev, derived, repo.OrderPatch{})
			if err != nil {
				return repoError(err, "order not found")
			}
			return writeAudit(ctx, r.AuditLogs(), u.clock.Now(), actor,
				model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, orderID,
				statusJSON{string(prev)}, statusJSON{string(derived)})
		})
		if err != nil {
			return ItemStatusOutput{}, err
		}
		if derived == model.OrderStatusCancelled {
			kind = event.OrderCancelled
		}
	}

	v := view.FromOrder(o)
	u.bus.Publish(event.Event{Kind: kind, Order: v, GatewayCancelPending: pendingCancel})
	return ItemStatusOutput{Order: v, GatewayCancelPending: pendingCancel}, nil
}
