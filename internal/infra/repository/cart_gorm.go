package repository

import (
	"context"
	"errors"
	"time"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// セッションのカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateBySession(ctx context.Context, sessionKey string) (model.Cart, error) {
	var cart model.Cart

	//トランザクションで探す→無ければ作る
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_key = ?", sessionKey).
			First(&cart).Error

		if findErr == nil {
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		// 無ければ作る
		now := time.Now()
		newCart := model.Cart{
			SessionKey: sessionKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(&newCart).Error; err != nil {
			if !isUniqueViolation(err) {
				return err
			}
			// 同時作成に負けたら相手のカートを読む
			return errCartRace
		}

		cart = newCart
		return nil
	})

	if errors.Is(err, errCartRace) {
		return r.FindBySession(ctx, sessionKey)
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

var errCartRace = errors.New("cart created concurrently")

// セッションのカートを取得
func (r *CartGormRepository) FindBySession(ctx context.Context, sessionKey string) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// 明細ごとカートを削除（無ければ何もしない）
func (r *CartGormRepository) DeleteBySession(ctx context.Context, sessionKey string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		if err := tx.Where("session_key = ?", sessionKey).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		//cart_itemsを全削除
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Cart{}, cart.ID).Error
	})
}

// カート明細を一覧取得（追加順）
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 同一メニューは数量加算。要望は新しく指定された時だけ上書き。
func (r *CartGormRepository) UpsertByCartAndMenu(ctx context.Context, cartID int64, menuID int64, addQty int64, specialRequests *string) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.CartItem

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND menu_id = ?", cartID, menuID).
			First(&item).Error

		if err == nil {
			// 既存ありだったら数量を増やす
			updates := map[string]any{"quantity": item.Quantity + addQty}
			if specialRequests != nil {
				updates["special_requests"] = *specialRequests
			}
			res := tx.Model(&model.CartItem{}).Where("id = ?", item.ID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		now := time.Now()
		newItem := model.CartItem{
			CartID:          cartID,
			MenuID:          menuID,
			Quantity:        addQty,
			SpecialRequests: specialRequests,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.Create(&newItem).Error
	})
}

// 明細の数量・要望を更新
func (r *CartGormRepository) Update(ctx context.Context, cartItemID int64, patch repo.CartItemPatch) error {
	updates := map[string]any{}
	if patch.Quantity != nil {
		updates["quantity"] = *patch.Quantity
	}
	if patch.SpecialRequests != nil {
		updates["special_requests"] = *patch.SpecialRequests
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を取得
func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("id = ?", cartItemID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

//cartItemが、そのセッションのカートに属しているかを判定

func (r *CartGormRepository) IsOwnedBySession(ctx context.Context, cartItemID int64, sessionKey string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Table("cart_items").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.session_key = ?", cartItemID, sessionKey).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}
