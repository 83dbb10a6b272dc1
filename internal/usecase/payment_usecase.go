package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	"cafe/internal/domain/view"
	"cafe/internal/event"
	"cafe/internal/keylock"
	repo "cafe/internal/repository"

	"go.uber.org/zap"
)

type PaymentOptions struct {
	DedupeWindow time.Duration // NaverPay 二重送信を同じ注文にまとめる期間
}

// PaymentUsecase は注文作成から決済承認までを進める。
// 事業者の承認が返った後の書き込みはクライアントの切断で止めない。
type PaymentUsecase struct {
	tx      repo.TransactionManager
	repos   repo.TxRepos
	pricing *PricingService
	ops     *gatewayOps
	orders  *AdminOrderUsecase
	bus     event.Publisher
	locks   *keylock.Locker
	clock   Clock
	opts    PaymentOptions
	log     *zap.Logger
}

// DI
func NewPaymentUsecase(
	tx repo.TransactionManager,
	repos repo.TxRepos,
	pricing *PricingService,
	gateways Gateways,
	orders *AdminOrderUsecase,
	bus event.Publisher,
	locks *keylock.Locker,
	clock Clock,
	newKey IDGen,
	opts PaymentOptions,
	log *zap.Logger,
) *PaymentUsecase {
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = 10 * time.Minute
	}
	return &PaymentUsecase{
		tx:      tx,
		repos:   repos,
		pricing: pricing,
		ops: &gatewayOps{
			gateways: gateways,
			attempts: repos.PaymentAttempts(),
			newKey:   newKey,
			log:      log,
		},
		orders: orders,
		bus:    bus,
		locks:  locks,
		clock:  clock,
		opts:   opts,
		log:    log,
	}
}

type CreateOrderInput struct {
	PaymentMethod string
	TotalAmount   int64
	Items         []PriceLine
}

type CreateOrderOutput struct {
	OrderID     int64 `json:"orderId"`
	TotalAmount int64 `json:"totalAmount"`
}

// OrderIDが無ければItemsから新しく注文を作る
type PrepareKakaoInput struct {
	OrderID     int64
	TotalAmount int64
	Items       []PriceLine
}

type PrepareKakaoOutput struct {
	OrderID               int64  `json:"orderId"`
	TID                   string `json:"tid"`
	NextRedirectPcURL     string `json:"nextRedirectPcUrl"`
	NextRedirectMobileURL string `json:"nextRedirectMobileUrl"`
	NextRedirectAppURL    string `json:"nextRedirectAppUrl"`
}

type CompleteKakaoInput struct {
	OrderID int64
	TID     string
	PGToken string
}

type PrepareNaverInput struct {
	TotalAmount int64
	Items       []PriceLine
}

type PrepareNaverOutput struct {
	OrderID int64              `json:"orderId"`
	Reused  bool               `json:"reused"`
	SDK     *payment.SDKParams `json:"sdk"`
}

type NaverCallbackInput struct {
	ResultCode    string
	PaymentID     string
	MerchantPayID string
	ResultMessage string
}

const naverResultSuccess = "Success"

// CreateOrder は価格を計算して pending の注文を作る。
func (u *PaymentUsecase) CreateOrder(ctx context.Context, sessionKey string, in CreateOrderInput) (CreateOrderOutput, error) {
	if err := checkSession(sessionKey); err != nil {
		return CreateOrderOutput{}, err
	}
	method := model.PaymentMethod(strings.ToLower(strings.TrimSpace(in.PaymentMethod)))
	if !method.Valid() {
		return CreateOrderOutput{}, apperr.Validation("invalid paymentMethod")
	}

	quote, err := u.pricing.Price(ctx, in.Items)
	if err != nil {
		return CreateOrderOutput{}, err
	}
	if err := CheckClientTotal(quote, in.TotalAmount); err != nil {
		return CreateOrderOutput{}, err
	}

	o, err := u.createPending(ctx, sessionKey, method, quote)
	if err != nil {
		return CreateOrderOutput{}, err
	}
	return CreateOrderOutput{OrderID: o.ID, TotalAmount: o.TotalAmount}, nil
}

// 注文と明細を1トランザクションで作る
func (u *PaymentUsecase) createPending(ctx context.Context, sessionKey string, method model.PaymentMethod, quote PriceQuote) (model.Order, error) {
	items, snaps := quote.orderItems()
	snapJSON, err := json.Marshal(snaps)
	if err != nil {
		return model.Order{}, apperr.Internal("encode snapshot", err)
	}

	var created model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().Create(ctx, model.Order{
			SessionKey:        sessionKey,
			TotalAmount:       quote.Total,
			PaymentMethod:     method,
			ItemsSnapshotJSON: string(snapJSON),
		})
		if err != nil {
			return apperr.Internal("db error", err)
		}
		if err := r.OrderItems().CreateBulk(ctx, o.ID, items); err != nil {
			return apperr.Internal("db error", err)
		}
		created, err = r.Orders().FindByID(ctx, o.ID)
		return repoError(err, "order not found")
	})
	if err != nil {
		return model.Order{}, err
	}

	u.bus.Publish(event.Event{Kind: event.OrderCreated, Order: view.FromOrder(created)})
	return created, nil
}

// PrepareKakao は ready を呼び、tid を paymentKey に保存してリダイレクトURLを返す。
// 失敗しても注文は pending のまま（再試行できる）。
func (u *PaymentUsecase) PrepareKakao(ctx context.Context, sessionKey string, in PrepareKakaoInput) (PrepareKakaoOutput, error) {
	if err := checkSession(sessionKey); err != nil {
		return PrepareKakaoOutput{}, err
	}
	gw, err := u.ops.gateways.of(model.PaymentMethodKakao)
	if err != nil {
		return PrepareKakaoOutput{}, err
	}

	var o model.Order
	if in.OrderID > 0 {
		o, err = u.ownedOrder(ctx, sessionKey, in.OrderID)
		if err != nil {
			return PrepareKakaoOutput{}, err
		}
		if o.PaymentMethod != model.PaymentMethodKakao {
			return PrepareKakaoOutput{}, apperr.Validation("order is not a kakaopay order")
		}
		if o.Status != model.OrderStatusPending {
			return PrepareKakaoOutput{}, apperr.Conflict("order is not pending")
		}
	} else {
		quote, err := u.pricing.Price(ctx, in.Items)
		if err != nil {
			return PrepareKakaoOutput{}, err
		}
		if err := CheckClientTotal(quote, in.TotalAmount); err != nil {
			return PrepareKakaoOutput{}, err
		}
		o, err = u.createPending(ctx, sessionKey, model.PaymentMethodKakao, quote)
		if err != nil {
			return PrepareKakaoOutput{}, err
		}
	}

	unlock := u.locks.Lock(orderKey(o.ID))
	defer unlock()

	name, qty := itemSummary(o.Items)
	a, err := u.ops.begin(ctx, o, model.PaymentOpPrepare, o.TotalAmount)
	if err != nil {
		return PrepareKakaoOutput{}, err
	}
	res, err := gw.Prepare(ctx, payment.PrepareRequest{
		Order:          o,
		ItemName:       name,
		Quantity:       qty,
		IdempotencyKey: a.IdempotencyKey,
	})
	if err != nil {
		u.ops.finish(context.WithoutCancel(ctx), a, model.AttemptFailed, "", nil, err)
		return PrepareKakaoOutput{}, err
	}
	ctx = context.WithoutCancel(ctx)
	u.ops.finish(ctx, a, model.AttemptSucceeded, res.TID, res, nil)

	if _, err := u.repos.Orders().Transition(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPending, repo.OrderPatch{
		PaymentKey: ptr(res.TID),
	}); err != nil {
		return PrepareKakaoOutput{}, repoError(err, "order not found")
	}

	return PrepareKakaoOutput{
		OrderID:               o.ID,
		TID:                   res.TID,
		NextRedirectPcURL:     res.NextRedirectPCURL,
		NextRedirectMobileURL: res.NextRedirectMobURL,
		NextRedirectAppURL:    res.NextRedirectAppURL,
	}, nil
}

// CompleteKakao は pg_token で承認する。sessionKey が空ならセッション確認をしない。
func (u *PaymentUsecase) CompleteKakao(ctx context.Context, sessionKey string, in CompleteKakaoInput) (view.Order, error) {
	if in.OrderID <= 0 {
		return view.Order{}, apperr.Validation("invalid orderId")
	}
	if strings.TrimSpace(in.TID) == "" || strings.TrimSpace(in.PGToken) == "" {
		return view.Order{}, apperr.Validation("tid and pgToken are required")
	}
	return u.approve(ctx, sessionKey, in.OrderID, model.PaymentMethodKakao, payment.Proof{
		TID:     strings.TrimSpace(in.TID),
		PGToken: strings.TrimSpace(in.PGToken),
	})
}

// PrepareNaver はSDKに渡す値を返す。
// 同じセッションで同じ明細・合計の pending 注文が期間内にあればそれを使う。
func (u *PaymentUsecase) PrepareNaver(ctx context.Context, sessionKey string, in PrepareNaverInput) (PrepareNaverOutput, error) {
	if err := checkSession(sessionKey); err != nil {
		return PrepareNaverOutput{}, err
	}
	gw, err := u.ops.gateways.of(model.PaymentMethodNaver)
	if err != nil {
		return PrepareNaverOutput{}, err
	}

	quote, err := u.pricing.Price(ctx, in.Items)
	if err != nil {
		return PrepareNaverOutput{}, err
	}
	if err := CheckClientTotal(quote, in.TotalAmount); err != nil {
		return PrepareNaverOutput{}, err
	}

	// 二重送信の判定と作成はセッション単位で1つずつ
	unlock := u.locks.Lock("naver:" + sessionKey)
	defer unlock()

	since := u.clock.Now().Add(-u.opts.DedupeWindow)
	candidates, err := u.repos.Orders().FindBySession(ctx, sessionKey, repo.SessionOrderFilter{
		Statuses:      []model.OrderStatus{model.OrderStatusPending},
		PaymentMethod: model.PaymentMethodNaver,
		CreatedAfter:  &since,
		Limit:         20,
	})
	if err != nil {
		return PrepareNaverOutput{}, apperr.Internal("db error", err)
	}

	var o model.Order
	reused := false
	for _, c := range candidates {
		if c.TotalAmount == quote.Total && sameItems(c.ItemsSnapshotJSON, in.Items) {
			o, reused = c, true
			break
		}
	}
	if !reused {
		o, err = u.createPending(ctx, sessionKey, model.PaymentMethodNaver, quote)
		if err != nil {
			return PrepareNaverOutput{}, err
		}
	}

	name, qty := quote.summary()
	res, err := gw.Prepare(ctx, payment.PrepareRequest{Order: o, ItemName: name, Quantity: qty})
	if err != nil {
		return PrepareNaverOutput{}, err
	}
	if reused {
		u.log.Info("naverpay prepare reused pending order",
			zap.Int64("order_id", o.ID),
			zap.String("session", sessionKey),
		)
	}
	return PrepareNaverOutput{OrderID: o.ID, Reused: reused, SDK: res.SDK}, nil
}

// CompleteNaver はSDKのreturnUrlから呼ばれる。
// resultCode が Success 以外なら承認せず、注文は pending のまま。
func (u *PaymentUsecase) CompleteNaver(ctx context.Context, in NaverCallbackInput) (view.Order, error) {
	orderID, err := strconv.ParseInt(strings.TrimSpace(in.MerchantPayID), 10, 64)
	if err != nil || orderID <= 0 {
		return view.Order{}, apperr.Validation("invalid merchantPayId")
	}
	if in.ResultCode != naverResultSuccess {
		msg := strings.TrimSpace(in.ResultMessage)
		if msg == "" {
			msg = "naverpay payment was not completed"
		}
		return view.Order{}, apperr.WithCode(apperr.KindGatewayRejected, in.ResultCode, msg, nil)
	}
	if strings.TrimSpace(in.PaymentID) == "" {
		return view.Order{}, apperr.Validation("paymentId is required")
	}
	return u.approve(ctx, "", orderID, model.PaymentMethodNaver, payment.Proof{PaymentID: strings.TrimSpace(in.PaymentID)})
}

// CancelByCustomer は支払い済み注文の全額取消（顧客）
func (u *PaymentUsecase) CancelByCustomer(ctx context.Context, sessionKey string, orderID int64) (view.Order, error) {
	if err := checkSession(sessionKey); err != nil {
		return view.Order{}, err
	}
	o, err := u.ownedOrder(ctx, sessionKey, orderID)
	if err != nil {
		return view.Order{}, err
	}
	if o.Status != model.OrderStatusPaid {
		return view.Order{}, apperr.Conflict("only paid orders can be cancelled")
	}
	return u.orders.CancelOrder(ctx, model.Actor{Type: model.ActorCustomer, ID: sessionKey}, orderID, "고객 요청 취소")
}

// ExpirePendingOrders は olderThan より古い pending を payment_failed にする。
func (u *PaymentUsecase) ExpirePendingOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := u.repos.Orders().ListStalePending(ctx, u.clock.Now().Add(-olderThan), 100)
	if err != nil {
		return 0, apperr.Internal("db error", err)
	}

	expired := 0
	for _, o := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		unlock := u.locks.Lock(orderKey(o.ID))
		ok, err := u.markFailed(ctx, o, "expired")
		unlock()
		if err != nil {
			u.log.Warn("expire pending order failed", zap.Int64("order_id", o.ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// 承認の共通処理
func (u *PaymentUsecase) approve(ctx context.Context, sessionKey string, orderID int64, method model.PaymentMethod, proof payment.Proof) (view.Order, error) {
	gw, err := u.ops.gateways.of(method)
	if err != nil {
		return view.Order{}, err
	}

	// 同じ注文の承認は1つずつ。後から来た方は paid を見て戻る。
	unlock := u.locks.Lock(orderKey(orderID))
	defer unlock()

	o, err := u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return view.Order{}, repoError(err, "order not found")
	}
	if sessionKey != "" && o.SessionKey != sessionKey {
		return view.Order{}, apperr.Forbidden("forbidden")
	}
	if o.PaymentMethod != method {
		return view.Order{}, apperr.Validation("payment method mismatch")
	}
	if o.Status.PaidFamily() {
		return view.FromOrder(o), nil
	}
	if o.Status != model.OrderStatusPending {
		return view.Order{}, apperr.Conflict("order is not pending")
	}
	if method == model.PaymentMethodKakao && (o.PaymentKey == nil || *o.PaymentKey != proof.TID) {
		return view.Order{}, apperr.Validation("tid mismatch")
	}

	a, err := u.ops.begin(ctx, o, model.PaymentOpApprove, o.TotalAmount)
	if err != nil {
		return view.Order{}, err
	}
	res, err := gw.Approve(ctx, payment.ApproveRequest{Order: o, Proof: proof, IdempotencyKey: a.IdempotencyKey})

	// 承認を呼んだ後はクライアントが切れても最後まで書く
	ctx = context.WithoutCancel(ctx)

	replayed := false
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindGatewayIdempotentReplay:
			prior, ok := u.priorApproval(ctx, o.ID)
			if !ok {
				u.ops.finish(ctx, a, model.AttemptReplayed, "", nil, err)
				return view.Order{}, apperr.Wrap(apperr.KindGatewayUnavailable, "approval replayed without a prior result", err)
			}
			u.ops.finish(ctx, a, model.AttemptReplayed, prior.ExternalID, prior, nil)
			res, replayed = prior, true
		case apperr.KindGatewayUnavailable:
			u.ops.finish(ctx, a, model.AttemptFailed, "", nil, err)
			if _, ferr := u.markFailed(ctx, o, "approve unavailable"); ferr != nil {
				u.log.Error("mark payment_failed failed", zap.Int64("order_id", o.ID), zap.Error(ferr))
			}
			return view.Order{}, err
		case apperr.KindGatewayRejected:
			u.ops.finish(ctx, a, model.AttemptFailed, "", nil, err)
			if _, ferr := u.markFailed(ctx, o, "approve rejected"); ferr != nil {
				u.log.Error("mark payment_failed failed", zap.Int64("order_id", o.ID), zap.Error(ferr))
			}
			return view.Order{}, err
		default:
			// 認証エラーなどこちら側の問題は pending のまま
			u.ops.finish(ctx, a, model.AttemptFailed, "", nil, err)
			return view.Order{}, err
		}
	}

	d := decideApproval(o, res)
	switch d.Outcome {
	case approvalDeclined:
		u.ops.finish(ctx, a, model.AttemptFailed, res.ExternalID, res, apperr.WithCode(apperr.KindGatewayRejected, "NOT_APPROVED", d.Reason, nil))
		if _, err := u.markFailed(ctx, o, d.Reason); err != nil {
			u.log.Error("mark payment_failed failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
		return view.Order{}, apperr.WithCode(apperr.KindGatewayRejected, "NOT_APPROVED", d.Reason, nil)

	case approvalMismatch:
		verr := apperr.WithCode(apperr.KindGatewayVerify, "AMOUNT_MISMATCH", d.Reason, nil)
		u.ops.finish(ctx, a, model.AttemptFailed, res.ExternalID, res, verr)
		u.log.Warn("approved amount mismatch, compensating",
			zap.Int64("order_id", o.ID),
			zap.String("external_id", res.ExternalID),
			zap.String("idempotency_key", a.IdempotencyKey),
			zap.Int64("expected", o.TotalAmount),
			zap.Int64("paid", res.PaidAmount),
		)
		u.compensate(ctx, o, res, d.Compensate, "결제 금액 불일치")
		if _, err := u.markFailed(ctx, o, d.Reason); err != nil {
			u.log.Error("mark payment_failed failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
		return view.Order{}, verr
	}

	if !replayed {
		u.ops.finish(ctx, a, model.AttemptSucceeded, res.ExternalID, res, nil)
	}

	paid, err := u.finalize(ctx, o, res)
	if err != nil {
		// DBに書けなかった。事業者側の承認は取り消す。
		u.log.Error("finalize after approval failed, compensating",
			zap.Int64("order_id", o.ID),
			zap.String("external_id", res.ExternalID),
			zap.String("idempotency_key", a.IdempotencyKey),
			zap.Error(err),
		)
		u.compensate(ctx, o, res, res.PaidAmount, "주문 처리 실패")
		return view.Order{}, err
	}

	v := view.FromOrder(paid)
	u.bus.Publish(event.Event{Kind: event.OrderPaid, Order: v})
	return v, nil
}

// 採番・paid への遷移・カート削除を1トランザクションで行う。
// 採番は日付ごとにプロセス内でも直列にする。
func (u *PaymentUsecase) finalize(ctx context.Context, o model.Order, res payment.ApproveResult) (model.Order, error) {
	now := u.clock.Now()
	paidAt := now
	if !res.ApprovedAt.IsZero() {
		paidAt = res.ApprovedAt
	}
	dateKey := model.DateKeyKST(now)

	patch := repo.OrderPatch{PaidAt: &paidAt}
	if o.PaymentMethod == model.PaymentMethodNaver && res.ExternalID != "" {
		patch.PaymentKey = ptr(res.ExternalID)
	}
	if b, err := json.Marshal(res); err == nil {
		patch.ReceiptJSON = ptr(string(b))
	}

	unlock := u.locks.Lock("date:" + dateKey)
	defer unlock()

	var paid model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Orders().AllocateOrderNumber(ctx, o.ID, dateKey); err != nil {
			return repoError(err, "order not found")
		}
		var err error
		paid, err = r.Orders().Transition(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPaid, patch)
		if err != nil {
			return repoError(err, "order not found")
		}
		if err := r.Carts().DeleteBySession(ctx, o.SessionKey); err != nil {
			return apperr.Internal("db error", err)
		}
		return writeAudit(ctx, r.AuditLogs(), now, systemActor,
			model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID,
			statusJSON{string(model.OrderStatusPending)}, statusJSON{string(model.OrderStatusPaid)})
	})
	if err != nil {
		// 別プロセスが先に paid にしていたらそれを返す
		if apperr.IsKind(err, apperr.KindConflict) {
			if cur, ferr := u.repos.Orders().FindByID(ctx, o.ID); ferr == nil && cur.Status.PaidFamily() {
				return cur, nil
			}
		}
		return model.Order{}, err
	}
	return paid, nil
}

// 補償取消。失敗はログに残して運用で対応する。
func (u *PaymentUsecase) compensate(ctx context.Context, o model.Order, res payment.ApproveResult, amount int64, reason string) {
	if amount <= 0 {
		return
	}
	target := o
	if o.PaymentMethod == model.PaymentMethodNaver && res.ExternalID != "" {
		target.PaymentKey = ptr(res.ExternalID)
	}
	if _, err := u.ops.cancel(ctx, target, amount, reason); err != nil {
		u.log.Error("compensating cancel failed, manual refund required",
			zap.Int64("order_id", o.ID),
			zap.String("external_id", res.ExternalID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
	}
}

// pending → payment_failed。他で動いていたら false。
// 呼び出し側が注文のロックを持っていること。
func (u *PaymentUsecase) markFailed(ctx context.Context, o model.Order, reason string) (bool, error) {
	var failed model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		failed, err = r.Orders().Transition(ctx, o.ID, model.OrderStatusPending, model.OrderStatusPaymentFailed, repo.OrderPatch{})
		if err != nil {
			return err
		}
		return writeAudit(ctx, r.AuditLogs(), u.clock.Now(), systemActor,
			model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID,
			statusJSON{string(model.OrderStatusPending)},
			map[string]string{"status": string(model.OrderStatusPaymentFailed), "reason": reason})
	})
	if errors.Is(err, repo.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, repoError(err, "order not found")
	}

	u.bus.Publish(event.Event{Kind: event.OrderUpdated, Order: view.FromOrder(failed)})
	return true, nil
}

// 以前に成功した承認の結果（409の時に使う）
func (u *PaymentUsecase) priorApproval(ctx context.Context, orderID int64) (payment.ApproveResult, bool) {
	a, err := u.repos.PaymentAttempts().FindLatestSucceeded(ctx, orderID, model.PaymentOpApprove)
	if err != nil || a.ResponseJSON == "" {
		return payment.ApproveResult{}, false
	}
	var res payment.ApproveResult
	if err := json.Unmarshal([]byte(a.ResponseJSON), &res); err != nil {
		return payment.ApproveResult{}, false
	}
	return res, true
}

// セッションの注文か確認する。他人の注文は403。
func (u *PaymentUsecase) ownedOrder(ctx context.Context, sessionKey string, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, apperr.Validation("invalid orderId")
	}
	o, err := u.repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return model.Order{}, repoError(err, "order not found")
	}
	if o.SessionKey != sessionKey {
		return model.Order{}, apperr.Forbidden("forbidden")
	}
	return o, nil
}

// 明細の (menuId, quantity) の多重集合が同じか。
// スナップショットが読めなければ一致しない扱い。
func sameItems(snapshotJSON string, lines []PriceLine) bool {
	var snaps []model.ItemSnapshot
	if err := json.Unmarshal([]byte(snapshotJSON), &snaps); err != nil {
		return false
	}
	if len(snaps) != len(lines) || len(snaps) == 0 {
		return false
	}

	counts := make(map[PriceLine]int, len(lines))
	for _, s := range snaps {
		counts[PriceLine{MenuID: s.MenuID, Quantity: s.Quantity}]++
	}
	for _, l := range lines {
		k := PriceLine{MenuID: l.MenuID, Quantity: l.Quantity}
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

// 既存注文の明細から表示名と数量合計を作る
func itemSummary(items []model.OrderItem) (string, int64) {
	q := PriceQuote{Items: make([]PricedItem, 0, len(items))}
	for _, it := range items {
		q.Items = append(q.Items, PricedItem{MenuID: it.MenuID, Name: it.MenuName, Quantity: it.Quantity})
	}
	return q.summary()
}
