package model

import "time"

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusCancelled ItemStatus = "cancelled"
	ItemStatusRefunded  ItemStatus = "refunded"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusCompleted, ItemStatusCancelled, ItemStatusRefunded:
		return true
	}
	return false
}

// 注文明細。名前と単価は注文時点のもの。
type OrderItem struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64      `gorm:"not null;index" json:"orderId"`
	MenuID     int64      `gorm:"not null;index" json:"menuId"`
	MenuName   string     `gorm:"type:varchar(255);not null" json:"menuName"`
	Quantity   int64      `gorm:"not null" json:"quantity"`
	UnitPrice  int64      `gorm:"not null" json:"unitPrice"`
	TotalPrice int64      `gorm:"not null" json:"totalPrice"`
	Status     ItemStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
