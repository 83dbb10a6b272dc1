package usecase

import (
	"context"
	"strings"
	"testing"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddMergesSameMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Zero(t, empty.Total)

	_, err = f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 1})
	require.NoError(t, err)
	note := "  얼음 적게 "
	cart, err := f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 2, SpecialRequests: &note})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(3), cart.Items[0].Quantity)
	assert.Equal(t, "아메리카노", cart.Items[0].Name)
	assert.Equal(t, int64(13500), cart.Total)
	assert.Equal(t, int64(3), cart.ItemCount)
	require.NotNil(t, cart.Items[0].SpecialRequests)
	assert.Equal(t, "얼음 적게", *cart.Items[0].SpecialRequests)
}

func TestCart_AddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&model.Menu{}).Where("id = ?", f.menuID(1)).Update("is_available", false).Error)

	long := strings.Repeat("a", 501)
	tests := []struct {
		name    string
		session string
		in      AddCartItemInput
	}{
		{"no session", "", AddCartItemInput{MenuID: f.menuID(0), Quantity: 1}},
		{"bad quantity", "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 0}},
		{"quantity over cap", "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: MaxLineQuantity + 1}},
		{"unknown menu", "sess-1", AddCartItemInput{MenuID: 999, Quantity: 1}},
		{"sold out", "sess-1", AddCartItemInput{MenuID: f.menuID(1), Quantity: 1}},
		{"notes too long", "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 1, SpecialRequests: &long}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.carts.AddItem(ctx, tt.session, tt.in)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestCart_QuantityCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 60})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	// 加算で上限を超えるとロールバック
	_, err = f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 40})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)

	over := int64(MaxLineQuantity + 1)
	_, err = f.carts.UpdateItem(ctx, "sess-1", itemID, UpdateCartItemInput{Quantity: &over})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)

	cart, err = f.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(60), cart.Items[0].Quantity)
	assert.Equal(t, int64(4500*60), cart.Total)
}

func TestCart_UpdateRemoveOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(1), Quantity: 1})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	// 他のセッションの明細は見えない
	qty := int64(5)
	_, err = f.carts.UpdateItem(ctx, "sess-2", itemID, UpdateCartItemInput{Quantity: &qty})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = f.carts.RemoveItem(ctx, "sess-2", itemID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.carts.UpdateItem(ctx, "sess-1", itemID, UpdateCartItemInput{})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	cart, err = f.carts.UpdateItem(ctx, "sess-1", itemID, UpdateCartItemInput{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), cart.Total)

	cart, err = f.carts.RemoveItem(ctx, "sess-1", itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCart_UnavailableExcludedFromTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 1})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(2), Quantity: 2})
	require.NoError(t, err)

	// カートに入れた後で削除された
	require.NoError(t, f.db.Delete(&model.Menu{}, f.menuID(2)).Error)
	f.catalog.Invalidate(ctx)

	cart, err := f.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.False(t, cart.Items[1].Available)
	assert.Equal(t, int64(4500), cart.Total)
	assert.Equal(t, int64(1), cart.ItemCount)
}

func TestCart_Clear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddCartItemInput{MenuID: f.menuID(0), Quantity: 1})
	require.NoError(t, err)
	cart, err := f.carts.Clear(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	cart, err = f.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}
