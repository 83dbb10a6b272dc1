package model

// 日付（KST, YYYYMMDD）ごとの注文番号カウンタ
type OrderNumberSequence struct {
	DateKey string `gorm:"primaryKey;type:varchar(8)"`
	LastSeq int64  `gorm:"not null"`
}
