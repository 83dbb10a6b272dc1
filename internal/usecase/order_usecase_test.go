package usecase

import (
	"bytes"
	"context"
	"testing"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_GetAndListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.paidKakaoOrder(t, "sess-1", PriceLine{MenuID: f.menuID(0), Quantity: 1})

	v, err := f.orders.Get(ctx, "sess-1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, v.ID)
	assert.Equal(t, model.OrderStatusPaid, v.Status)

	_, err = f.orders.Get(ctx, "sess-2", o.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	_, err = f.orders.Get(ctx, "sess-1", 9999)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	mine, err := f.orders.ListMine(ctx, "sess-1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	others, err := f.orders.ListMine(ctx, "sess-2", 10)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestOrder_PickupQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.payments.CreateOrder(ctx, "sess-1", CreateOrderInput{PaymentMethod: "kakao", Items: []PriceLine{{MenuID: f.menuID(0), Quantity: 1}}})
	require.NoError(t, err)
	_, err = f.orders.PickupQR(ctx, "sess-1", pending.OrderID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	o := f.paidKakaoOrder(t, "sess-1", PriceLine{MenuID: f.menuID(1), Quantity: 1})
	png, err := f.orders.PickupQR(ctx, "sess-1", o.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestMenu_ListAndSetAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	menus := NewMenuUsecase(f.catalog, f.repos.AuditLogs(), f.clock)

	coffee, err := menus.List(ctx, ListMenusInput{Category: "coffee"})
	require.NoError(t, err)
	assert.Len(t, coffee, 2)

	m, err := menus.SetAvailability(ctx, admin, f.menuID(0), false)
	require.NoError(t, err)
	assert.False(t, m.IsAvailable)

	available, err := menus.List(ctx, ListMenusInput{AvailableOnly: true})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	// 販売停止はすぐに注文できなくなる
	_, err = f.pricing.Price(ctx, []PriceLine{{MenuID: f.menuID(0), Quantity: 1}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = menus.SetAvailability(ctx, admin, 9999, true)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	resource := model.AuditResourceMenu
	logs, err := f.repos.AuditLogs().List(ctx, repo.AuditLogFilter{ResourceType: &resource})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateMenu, logs[0].Action)
	assert.JSONEq(t, `{"isAvailable":false}`, logs[0].AfterJSON)
}
