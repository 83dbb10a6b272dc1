package model

import "time"

// 1セッションにつきカートは1つ。支払い完了で削除される。
type Cart struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionKey string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"sessionKey"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
