package model

import (
	"time"

	"gorm.io/gorm"
)

// メニュー。論理削除されたものは注文できない。
type Menu struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"type:varchar(50);not null;index" json:"category"`
	Price       int64          `gorm:"not null" json:"price"`
	ImageURL    string         `gorm:"type:varchar(512)" json:"imageUrl"`
	IsAvailable bool           `gorm:"not null;default:true" json:"isAvailable"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Orderable は注文・カート追加できるか
func (m Menu) Orderable() bool {
	return m.IsAvailable && !m.DeletedAt.Valid
}
