package usecase

import (
	"context"
	"strings"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/keylock"
	repo "cafe/internal/repository"
)

const maxSpecialRequests = 500

// CartUsecase は /api/cart の業務ロジックです。
// 同じセッションの変更は keylock で1つずつ処理します。
type CartUsecase struct {
	tx      repo.TransactionManager
	catalog MenuCatalog
	locks   *keylock.Locker
}

// DI
func NewCartUsecase(tx repo.TransactionManager, catalog MenuCatalog, locks *keylock.Locker) *CartUsecase {
	return &CartUsecase{tx: tx, catalog: catalog, locks: locks}
}

// CartItemView は表示用。価格はメニューの現在価格、lineTotalは表示専用。
type CartItemView struct {
	ID              int64   `json:"id"`
	MenuID          int64   `json:"menuId"`
	Name            string  `json:"name"`
	Price           int64   `json:"price"`
	ImageURL        string  `json:"imageUrl"`
	Quantity        int64   `json:"quantity"`
	SpecialRequests *string `json:"specialRequests,omitempty"`
	LineTotal       int64   `json:"lineTotal"`
	Available       bool    `json:"available"`
}

type CartView struct {
	SessionID string         `json:"sessionId"`
	Items     []CartItemView `json:"items"`
	Total     int64          `json:"total"`
	ItemCount int64          `json:"itemCount"`
}

type AddCartItemInput struct {
	MenuID          int64
	Quantity        int64
	SpecialRequests *string
}

type UpdateCartItemInput struct {
	Quantity        *int64
	SpecialRequests *string
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, sessionKey string) (CartView, error) {
	if err := checkSession(sessionKey); err != nil {
		return CartView{}, err
	}

	var items []model.CartItem
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateBySession(ctx, sessionKey)
		if err != nil {
			return repoError(err, "cart not found")
		}
		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		return repoError(err, "cart not found")
	})
	if err != nil {
		return CartView{}, err
	}
	return u.buildView(ctx, sessionKey, items)
}

// AddItem はカートに追加（同一メニューは数量加算）。
func (u *CartUsecase) AddItem(ctx context.Context, sessionKey string, in AddCartItemInput) (CartView, error) {
	if err := checkSession(sessionKey); err != nil {
		return CartView{}, err
	}
	if in.MenuID <= 0 {
		return CartView{}, apperr.Validation("invalid menuId")
	}
	if err := checkQuantity(in.Quantity); err != nil {
		return CartView{}, err
	}
	notes, err := normalizeNotes(in.SpecialRequests)
	if err != nil {
		return CartView{}, err
	}

	unlock := u.locks.Lock("cart:" + sessionKey)
	defer unlock()

	var items []model.CartItem
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// メニューチェック（販売中のみ）
		m, err := r.Menus().FindByID(ctx, in.MenuID)
		if err == repo.ErrNotFound {
			return apperr.Validation("menu not found")
		}
		if err != nil {
			return apperr.Internal("db error", err)
		}
		if !m.Orderable() {
			return apperr.Validation("menu is not available")
		}

		cart, err := r.Carts().GetOrCreateBySession(ctx, sessionKey)
		if err != nil {
			return repoError(err, "cart not found")
		}
		if err := r.CartItems().UpsertByCartAndMenu(ctx, cart.ID, in.MenuID, in.Quantity, notes); err != nil {
			return repoError(err, "cart item not found")
		}
		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return repoError(err, "cart not found")
		}
		// 加算後の数量も上限内（超えたらロールバック）
		for _, it := range items {
			if it.MenuID == in.MenuID {
				return checkQuantity(it.Quantity)
			}
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return u.buildView(ctx, sessionKey, items)
}

// UpdateItem は数量・要望の部分更新（所有チェックあり）。
func (u *CartUsecase) UpdateItem(ctx context.Context, sessionKey string, itemID int64, in UpdateCartItemInput) (CartView, error) {
	if err := checkSession(sessionKey); err != nil {
		return CartView{}, err
	}
	if itemID <= 0 {
		return CartView{}, apperr.Validation("invalid id")
	}
	if in.Quantity != nil {
		if err := checkQuantity(*in.Quantity); err != nil {
			return CartView{}, err
		}
	}
	if in.Quantity == nil && in.SpecialRequests == nil {
		return CartView{}, apperr.Validation("nothing to update")
	}
	if in.SpecialRequests != nil && len(*in.SpecialRequests) > maxSpecialRequests {
		return CartView{}, apperr.Validation("specialRequests too long")
	}

	unlock := u.locks.Lock("cart:" + sessionKey)
	defer unlock()

	return u.mutateOwned(ctx, sessionKey, itemID, func(r repo.TxRepos) error {
		return r.CartItems().Update(ctx, itemID, repo.CartItemPatch{
			Quantity:        in.Quantity,
			SpecialRequests: in.SpecialRequests,
		})
	})
}

// RemoveItem は明細削除
func (u *CartUsecase) RemoveItem(ctx context.Context, sessionKey string, itemID int64) (CartView, error) {
	if err := checkSession(sessionKey); err != nil {
		return CartView{}, err
	}
	if itemID <= 0 {
		return CartView{}, apperr.Validation("invalid id")
	}

	unlock := u.locks.Lock("cart:" + sessionKey)
	defer unlock()

	return u.mutateOwned(ctx, sessionKey, itemID, func(r repo.TxRepos) error {
		return r.CartItems().DeleteByID(ctx, itemID)
	})
}

// Clear はカートを空にする（カート行ごと消す）
func (u *CartUsecase) Clear(ctx context.Context, sessionKey string) (CartView, error) {
	if err := checkSession(sessionKey); err != nil {
		return CartView{}, err
	}

	unlock := u.locks.Lock("cart:" + sessionKey)
	defer unlock()

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return repoError(r.Carts().DeleteBySession(ctx, sessionKey), "cart not found")
	})
	if err != nil {
		return CartView{}, err
	}
	return CartView{SessionID: sessionKey, Items: []CartItemView{}}, nil
}

// 自分の明細であることを確認してから変更し、最新の明細を返す
func (u *CartUsecase) mutateOwned(ctx context.Context, sessionKey string, itemID int64, fn func(r repo.TxRepos) error) (CartView, error) {
	var items []model.CartItem
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		owned, err := r.CartItems().IsOwnedBySession(ctx, itemID, sessionKey)
		if err != nil {
			return apperr.Internal("db error", err)
		}
		if !owned {
			return apperr.NotFound("cart item not found")
		}
		if err := fn(r); err != nil {
			return repoError(err, "cart item not found")
		}

		cart, err := r.Carts().FindBySession(ctx, sessionKey)
		if err != nil {
			return repoError(err, "cart not found")
		}
		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		return repoError(err, "cart not found")
	})
	if err != nil {
		return CartView{}, err
	}
	return u.buildView(ctx, sessionKey, items)
}

// 明細にメニュー情報（名前・価格・画像）を付ける。
// 削除・販売停止のメニューは available=false で合計に含めない。
func (u *CartUsecase) buildView(ctx context.Context, sessionKey string, items []model.CartItem) (CartView, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MenuID)
	}
	menus, err := u.catalog.Lookup(ctx, ids)
	if err != nil {
		return CartView{}, apperr.Internal("db error", err)
	}

	view := CartView{SessionID: sessionKey, Items: make([]CartItemView, 0, len(items))}
	for _, it := range items {
		m, ok := menus[it.MenuID]
		if !ok {
			continue
		}
		available := m.Orderable()
		line, err := lineAmount(m.Price, it.Quantity)
		if err != nil {
			return CartView{}, err
		}

		view.Items = append(view.Items, CartItemView{
			ID:              it.ID,
			MenuID:          it.MenuID,
			Name:            m.Name,
			Price:           m.Price,
			ImageURL:        m.ImageURL,
			Quantity:        it.Quantity,
			SpecialRequests: it.SpecialRequests,
			LineTotal:       line,
			Available:       available,
		})
		if available {
			view.Total += line
			view.ItemCount += it.Quantity
		}
	}
	return view, nil
}

func checkSession(sessionKey string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return apperr.Validation("session id is required")
	}
	return nil
}

func normalizeNotes(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if len(v) > maxSpecialRequests {
		return nil, apperr.Validation("specialRequests too long")
	}
	return &v, nil
}
