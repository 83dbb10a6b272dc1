package usecase

import (
	"context"
	"fmt"
	"math"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	repo "cafe/internal/repository"
)

// MaxLineQuantity は1明細あたりの数量上限
const MaxLineQuantity = 99

// PriceLine は注文したいメニューと数量
type PriceLine struct {
	MenuID   int64 `json:"menuId"`
	Quantity int64 `json:"quantity"`
}

type PricedItem struct {
	MenuID    int64  `json:"menuId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"lineTotal"`
}

type PriceQuote struct {
	Items []PricedItem `json:"items"`
	Total int64        `json:"total"`
}

// PricingService は注文金額を決める唯一の場所。
// クライアントが送ってきた価格は使わない。
type PricingService struct {
	menus repo.MenuRepository
}

// DI
func NewPricingService(menus repo.MenuRepository) *PricingService {
	return &PricingService{menus: menus}
}

// Price はメニューを1回のクエリで読み、行ごとの小計と合計を返す。
func (p *PricingService) Price(ctx context.Context, lines []PriceLine) (PriceQuote, error) {
	if len(lines) == 0 {
		return PriceQuote{}, apperr.Validation("items required")
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if l.MenuID <= 0 {
			return PriceQuote{}, apperr.Validation("invalid menuId")
		}
		if err := checkQuantity(l.Quantity); err != nil {
			return PriceQuote{}, err
		}
		if !seen[l.MenuID] {
			seen[l.MenuID] = true
			ids = append(ids, l.MenuID)
		}
	}

	menus, err := p.menus.FindByIDs(ctx, ids)
	if err != nil {
		return PriceQuote{}, apperr.Internal("db error", err)
	}
	byID := make(map[int64]model.Menu, len(menus))
	for _, m := range menus {
		byID[m.ID] = m
	}

	quote := PriceQuote{Items: make([]PricedItem, 0, len(lines))}
	for _, l := range lines {
		m, ok := byID[l.MenuID]
		if !ok {
			return PriceQuote{}, apperr.Validation(fmt.Sprintf("menu %d not found", l.MenuID))
		}
		if !m.Orderable() {
			return PriceQuote{}, apperr.Validation(fmt.Sprintf("menu %d is not available", l.MenuID))
		}
		lineTotal, err := lineAmount(m.Price, l.Quantity)
		if err != nil {
			return PriceQuote{}, err
		}
		if quote.Total > math.MaxInt64-lineTotal {
			return PriceQuote{}, apperr.Validation("amount too large")
		}
		quote.Items = append(quote.Items, PricedItem{
			MenuID:    m.ID,
			Name:      m.Name,
			UnitPrice: m.Price,
			Quantity:  l.Quantity,
			LineTotal: lineTotal,
		})
		quote.Total += lineTotal
	}
	return quote, nil
}

func checkQuantity(q int64) error {
	if q < 1 || q > MaxLineQuantity {
		return apperr.Validation(fmt.Sprintf("quantity must be between 1 and %d", MaxLineQuantity))
	}
	return nil
}

// 単価×数量（溢れたらValidation）
func lineAmount(price, qty int64) (int64, error) {
	if price < 0 || qty < 0 {
		return 0, apperr.Validation("invalid amount")
	}
	if qty != 0 && price > math.MaxInt64/qty {
		return 0, apperr.Validation("amount too large")
	}
	return price * qty, nil
}

// CheckClientTotal は0以外が送られてきたら一致を要求する
func CheckClientTotal(q PriceQuote, clientTotal int64) error {
	if clientTotal != 0 && clientTotal != q.Total {
		return apperr.Validation("total amount mismatch")
	}
	return nil
}

// 注文明細とスナップショットに変換
func (q PriceQuote) orderItems() ([]model.OrderItem, []model.ItemSnapshot) {
	items := make([]model.OrderItem, 0, len(q.Items))
	snaps := make([]model.ItemSnapshot, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, model.OrderItem{
			MenuID:     it.MenuID,
			MenuName:   it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.LineTotal,
			Status:     model.ItemStatusPending,
		})
		snaps = append(snaps, model.ItemSnapshot{
			MenuID:     it.MenuID,
			MenuName:   it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.LineTotal,
		})
	}
	return items, snaps
}

// 決済画面に出す商品名（"아메리카노 외 2건"）と数量合計
func (q PriceQuote) summary() (string, int64) {
	var qty int64
	for _, it := range q.Items {
		qty += it.Quantity
	}
	if len(q.Items) == 0 {
		return "", 0
	}
	name := q.Items[0].Name
	if len(q.Items) > 1 {
		name = fmt.Sprintf("%s 외 %d건", name, len(q.Items)-1)
	}
	return name, qty
}
