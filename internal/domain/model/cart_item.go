package model

import "time"

// カートの明細
// 同じメニューは1行にまとめ、数量を加算する。
type CartItem struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID          int64     `gorm:"not null;uniqueIndex:idx_cart_menu" json:"cartId"`
	MenuID          int64     `gorm:"not null;uniqueIndex:idx_cart_menu" json:"menuId"`
	Quantity        int64     `gorm:"not null" json:"quantity"`
	SpecialRequests *string   `gorm:"type:varchar(500)" json:"specialRequests,omitempty"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
