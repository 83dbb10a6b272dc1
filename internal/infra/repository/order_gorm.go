package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (model.Order, error) {
	order.ID = 0
	order.Status = model.OrderStatusPending
	order.OrderNumber = nil
	order.Items = nil
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	return r.findOne(ctx, "id = ?", orderID)
}

func (r *OrderGormRepository) FindByOrderNumber(ctx context.Context, number string) (model.Order, error) {
	return r.findOne(ctx, "order_number = ?", number)
}

func (r *OrderGormRepository) FindByPaymentKey(ctx context.Context, key string) (model.Order, error) {
	return r.findOne(ctx, "payment_key = ?", key)
}

func (r *OrderGormRepository) findOne(ctx context.Context, query string, arg any) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where(query, arg).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}

	orders := []model.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return model.Order{}, err
	}
	return orders[0], nil
}

// 新しい順
func (r *OrderGormRepository) FindBySession(ctx context.Context, sessionKey string, f repo.SessionOrderFilter) ([]model.Order, error) {
	q := r.db.WithContext(ctx).Where("session_key = ?", sessionKey)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *f.CreatedAfter)
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var orders []model.Order
	if err := q.Order("id desc").Limit(limit).Find(&orders).Error; err != nil {
		return []model.Order{}, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return []model.Order{}, err
	}
	return orders, nil
}

// expected→next を1文で行う。
func (r *OrderGormRepository) Transition(ctx context.Context, orderID int64, expected, next model.OrderStatus, patch repo.OrderPatch) (model.Order, error) {
	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	if patch.PaymentKey != nil {
		updates["payment_key"] = *patch.PaymentKey
	}
	if patch.PaidAt != nil {
		updates["paid_at"] = *patch.PaidAt
	}
	if patch.ReceiptJSON != nil {
		updates["receipt_json"] = *patch.ReceiptJSON
	}
	if patch.CancelledAmount != nil {
		updates["cancelled_amount"] = *patch.CancelledAmount
	}
	if patch.RefundAmount != nil {
		updates["refund_amount"] = *patch.RefundAmount
	}
	if patch.RefundReason != nil {
		updates["refund_reason"] = *patch.RefundReason
	}
	if patch.RefundExternalID != nil {
		updates["refund_external_id"] = *patch.RefundExternalID
	}
	if patch.RefundedAt != nil {
		updates["refunded_at"] = *patch.RefundedAt
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, expected).
		Updates(updates)
	if res.Error != nil {
		return model.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		// 無いのか、状態が違うのか
		if _, err := r.FindByID(ctx, orderID); err != nil {
			return model.Order{}, err
		}
		return model.Order{}, repo.ErrConflict
	}
	return r.FindByID(ctx, orderID)
}

// 日付ごとのシーケンス行を FOR UPDATE で取り、次の番号を書き込む。
// 呼び出し側のトランザクションが終わるまで同じ日付の採番は待たされる。
func (r *OrderGormRepository) AllocateOrderNumber(ctx context.Context, orderID int64, dateKST string) (string, error) {
	var number string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 初回はその日の既存番号の最大値から始める
		var seed int64
		var last model.Order
		err := tx.Where("order_number LIKE ?", dateKST+"-%").
			Order("order_number desc").
			First(&last).Error
		if err == nil && last.OrderNumber != nil {
			seed = parseSeq(*last.OrderNumber)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.OrderNumberSequence{DateKey: dateKST, LastSeq: seed}).Error; err != nil {
			return err
		}

		var seq model.OrderNumberSequence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("date_key = ?", dateKST).
			First(&seq).Error; err != nil {
			return err
		}

		nextSeq := seq.LastSeq + 1
		if err := tx.Model(&model.OrderNumberSequence{}).
			Where("date_key = ?", dateKST).
			Update("last_seq", nextSeq).Error; err != nil {
			return err
		}

		number = FormatOrderNumber(dateKST, nextSeq)
		res := tx.Model(&model.Order{}).
			Where("id = ? AND order_number IS NULL", orderID).
			Update("order_number", number)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return repo.ErrConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			var cnt int64
			if err := tx.Model(&model.Order{}).Where("id = ?", orderID).Count(&cnt).Error; err != nil {
				return err
			}
			if cnt == 0 {
				return repo.ErrNotFound
			}
			// すでに採番済み
			return repo.ErrConflict
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// FormatOrderNumber は YYYYMMDD-NNN
func FormatOrderNumber(dateKST string, seq int64) string {
	return fmt.Sprintf("%s-%03d", dateKST, seq)
}

func parseSeq(number string) int64 {
	i := strings.LastIndex(number, "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseInt(number[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (r *OrderGormRepository) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 5
	}
	var orders []model.Order
	if err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&orders).Error; err != nil {
		return []model.Order{}, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return []model.Order{}, err
	}
	return orders, nil
}

// 期限切れの pending 注文（古い順）
func (r *OrderGormRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, before).
		Order("id asc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return []model.Order{}, err
	}
	return orders, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//session 絞り込み
	if f.SessionKey != "" {
		q = q.Where("session_key = ?", f.SessionKey)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}
	if err := r.attachItems(ctx, items); err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 明細をまとめて読み込んで各注文に付ける
func (r *OrderGormRepository) attachItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var items []model.OrderItem
	if err := r.db.WithContext(ctx).Where("order_id IN ?", ids).Order("id asc").Find(&items).Error; err != nil {
		return err
	}

	byOrder := make(map[int64][]model.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []model.OrderItem{}
		}
	}
	return nil
}
