package usecase

import (
	"context"
	"testing"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	"cafe/internal/event"
	repo "cafe/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func threeItemMenus() []model.Menu {
	return []model.Menu{
		{Name: "카페라떼", Category: "coffee", Price: 3000, IsAvailable: true},
		{Name: "아메리카노", Category: "coffee", Price: 2000, IsAvailable: true},
		{Name: "쿠키", Category: "dessert", Price: 2000, IsAvailable: true},
	}
}

func (f *fixture) threeItemOrder(t *testing.T) model.Order {
	t.Helper()
	o := f.paidKakaoOrder(t, "sess-1",
		PriceLine{MenuID: f.menuID(0), Quantity: 1},
		PriceLine{MenuID: f.menuID(1), Quantity: 1},
		PriceLine{MenuID: f.menuID(2), Quantity: 1},
	)
	require.Equal(t, int64(7000), o.TotalAmount)
	require.Len(t, o.Items, 3)
	return o
}

func TestAdminOrder_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.paidKakaoOrder(t, "sess-1", PriceLine{MenuID: f.menuID(0), Quantity: 1})

	v, err := f.admin.UpdateStatus(ctx, admin, o.ID, AdminUpdateOrderStatusInput{Status: "preparing"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, v.Status)
	assert.Equal(t, event.OrderUpdated, f.bus.last().Kind)

	// 同じステータスは何もしない
	before := len(f.bus.kinds())
	v, err = f.admin.UpdateStatus(ctx, admin, o.ID, AdminUpdateOrderStatusInput{Status: "preparing"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPreparing, v.Status)
	assert.Len(t, f.bus.kinds(), before)

	_, err = f.admin.UpdateStatus(ctx, admin, o.ID, AdminUpdateOrderStatusInput{Status: "pending"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = f.admin.UpdateStatus(ctx, admin, o.ID, AdminUpdateOrderStatusInput{Status: "brewing"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.admin.UpdateStatus(ctx, admin, 9999, AdminUpdateOrderStatusInput{Status: "ready"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	logs, err := f.admin.AuditLogs(ctx, o.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs[0].Action)
	assert.Equal(t, "1", logs[0].ActorID)
	assert.JSONEq(t, `{"status":"preparing"}`, logs[0].AfterJSON)
}

func TestAdminOrder_CancelPendingSkipsGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.payments.CreateOrder(ctx, "sess-1", CreateOrderInput{PaymentMethod: "kakao", Items: []PriceLine{{MenuID: f.menuID(0), Quantity: 1}}})
	require.NoError(t, err)

	v, err := f.admin.UpdateStatus(ctx, admin, out.OrderID, AdminUpdateOrderStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, v.Status)
	assert.Zero(t, v.CancelledAmount)
	f.kakao.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestAdminOrder_PartialItemCancelDerivesCancelled(t *testing.T) {
	f := newFixture(t, threeItemMenus()...)
	ctx := context.Background()
	o := f.threeItemOrder(t)

	_, err := f.admin.UpdateStatus(ctx, admin, o.ID, AdminUpdateOrderStatusInput{Status: "preparing"})
	require.NoError(t, err)

	f.kakao.On("Cancel", mock.Anything, cancelOf(2000)).Return(payment.CancelResult{CanceledAmount: 2000}, nil).Twice()
	f.kakao.On("Cancel", mock.Anything, cancelOf(3000)).Return(payment.CancelResult{CanceledAmount: 3000}, nil).Once()

	out, err := f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[1].ID, AdminUpdateItemStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.False(t, out.GatewayCancelPending)
	assert.Equal(t, model.OrderStatusPreparing, out.Order.Status)
	assert.Equal(t, int64(2000), out.Order.CancelledAmount)
	assert.Equal(t, event.OrderUpdated, f.bus.last().Kind)

	_, err = f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[0].ID, AdminUpdateItemStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	out, err = f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[2].ID, AdminUpdateItemStatusInput{Status: "cancelled"})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusCancelled, out.Order.Status)
	assert.Equal(t, int64(7000), out.Order.CancelledAmount)
	assert.Equal(t, event.OrderCancelled, f.bus.last().Kind)
	f.kakao.AssertExpectations(t)

	// 取消済みの明細は戻せない
	_, err = f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[0].ID, AdminUpdateItemStatusInput{Status: "pending"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestAdminOrder_PartialCancelFailureFlagsPending(t *testing.T) {
	f := newFixture(t, threeItemMenus()...)
	ctx := context.Background()
	o := f.threeItemOrder(t)

	f.kakao.On("Cancel", mock.Anything, cancelOf(3000)).
		Return(payment.CancelResult{}, apperr.New(apperr.KindGatewayUnavailable, "kakaopay unavailable")).Once()

	out, err := f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[0].ID, AdminUpdateItemStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.True(t, out.GatewayCancelPending)
	assert.Zero(t, out.Order.CancelledAmount)
	assert.Equal(t, model.ItemStatusCancelled, out.Order.Items[0].Status)

	last := f.bus.last()
	assert.True(t, last.GatewayCancelPending)
	assert.Equal(t, event.OrderUpdated, last.Kind)
}

func TestAdminOrder_CompletingAllItemsCompletesOrder(t *testing.T) {
	f := newFixture(t, threeItemMenus()...)
	ctx := context.Background()
	o := f.threeItemOrder(t)

	for _, it := range o.Items {
		_, err := f.admin.UpdateItemStatus(ctx, admin, o.ID, it.ID, AdminUpdateItemStatusInput{Status: "completed"})
		require.NoError(t, err)
	}
	got, err := f.repos.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, got.Status)
	f.kakao.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)

	_, err = f.admin.UpdateItemStatus(ctx, admin, o.ID, 9999, AdminUpdateItemStatusInput{Status: "completed"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAdminOrder_UnpaidOrderItems(t *testing.T) {
	f := newFixture(t, threeItemMenus()...)
	ctx := context.Background()

	created, err := f.payments.CreateOrder(ctx, "sess-1", CreateOrderInput{PaymentMethod: "kakao", Items: []PriceLine{
		{MenuID: f.menuID(0), Quantity: 1},
	}})
	require.NoError(t, err)
	o, err := f.repos.Orders().FindByID(ctx, created.OrderID)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)

	// 未決済のまま完了にはできない
	_, err = f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[0].ID, AdminUpdateItemStatusInput{Status: "completed"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)

	got, err := f.repos.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.Equal(t, model.ItemStatusPending, got.Items[0].Status)

	// 取消は可能で、全明細が取消なら注文も取消
	out, err := f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[0].ID, AdminUpdateItemStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, out.Order.Status)
	f.kakao.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestAdminOrder_Refund(t *testing.T) {
	f := newFixture(t, threeItemMenus()...)
	ctx := context.Background()
	o := f.threeItemOrder(t)

	// 明細を1つ取り消した後は残額までしか返せない
	f.kakao.On("Cancel", mock.Anything, cancelOf(2000)).Return(payment.CancelResult{CanceledAmount: 2000}, nil).Once()
	_, err := f.admin.UpdateItemStatus(ctx, admin, o.ID, o.Items[1].ID, AdminUpdateItemStatusInput{Status: "cancelled"})
	require.NoError(t, err)

	tooMuch := int64(6000)
	_, err = f.admin.Refund(ctx, admin, RefundInput{OrderID: o.ID, RefundAmount: &tooMuch, Reason: "고객 요청"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.admin.Refund(ctx, admin, RefundInput{OrderID: o.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	f.kakao.On("Cancel", mock.Anything, cancelOf(5000)).Return(payment.CancelResult{ExternalID: "R1", CanceledAmount: 5000}, nil).Once()
	v, err := f.admin.Refund(ctx, admin, RefundInput{OrderID: o.ID, Reason: "고객 요청"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunded, v.Status)
	require.NotNil(t, v.Refund)
	assert.Equal(t, int64(5000), v.Refund.Amount)
	assert.Equal(t, "고객 요청", v.Refund.Reason)
	assert.Equal(t, "R1", v.Refund.ExternalID)
	assert.Equal(t, int64(7000), v.CancelledAmount)

	// 二重返金
	_, err = f.admin.Refund(ctx, admin, RefundInput{OrderID: o.ID, Reason: "again"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	f.kakao.AssertExpectations(t)

	logs, err := f.admin.AuditLogs(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuditActionRefundOrder, logs[0].Action)
}

func TestAdminOrder_RefundUnpaidConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.payments.CreateOrder(ctx, "sess-1", CreateOrderInput{PaymentMethod: "kakao", Items: []PriceLine{{MenuID: f.menuID(0), Quantity: 1}}})
	require.NoError(t, err)

	_, err = f.admin.Refund(ctx, admin, RefundInput{OrderID: out.OrderID, Reason: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestAdminOrder_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.paidKakaoOrder(t, "sess-1", PriceLine{MenuID: f.menuID(0), Quantity: 1})
	_, err := f.payments.CreateOrder(ctx, "sess-2", CreateOrderInput{PaymentMethod: "naver", Items: []PriceLine{{MenuID: f.menuID(1), Quantity: 1}}})
	require.NoError(t, err)

	all, err := f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
	assert.Len(t, all.Items, 2)

	paid, err := f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "paid"})
	require.NoError(t, err)
	require.Len(t, paid.Items, 1)
	assert.Equal(t, model.OrderStatusPaid, paid.Items[0].Status)

	_, err = f.admin.List(ctx, repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 101})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "nope"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
