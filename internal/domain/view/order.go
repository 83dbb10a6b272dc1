// Package view は注文の外向き表現（API応答・イベント共通）。
package view

import (
	"time"

	"cafe/internal/domain/model"
)

type OrderItem struct {
	ID         int64            `json:"id"`
	MenuID     int64            `json:"menuId"`
	MenuName   string           `json:"menuName"`
	Quantity   int64            `json:"quantity"`
	UnitPrice  int64            `json:"unitPrice"`
	TotalPrice int64            `json:"totalPrice"`
	Status     model.ItemStatus `json:"status"`
}

type Order struct {
	ID              int64               `json:"id"`
	OrderNumber     *string             `json:"orderNumber"`
	Status          model.OrderStatus   `json:"status"`
	TotalAmount     int64               `json:"totalAmount"`
	CancelledAmount int64               `json:"cancelledAmount"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	Items           []OrderItem         `json:"items"`
	Refund          *model.Refund       `json:"refund,omitempty"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// FromOrder はmodelから応答用に詰め替える
func FromOrder(o model.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			ID:         it.ID,
			MenuID:     it.MenuID,
			MenuName:   it.MenuName,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
			Status:     it.Status,
		})
	}
	return Order{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		CancelledAmount: o.CancelledAmount,
		PaymentMethod:   o.PaymentMethod,
		Items:           items,
		Refund:          o.Refund(),
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func FromOrders(orders []model.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}
