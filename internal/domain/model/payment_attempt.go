package model

import "time"

type PaymentOperation string

const (
	PaymentOpPrepare PaymentOperation = "prepare"
	PaymentOpApprove PaymentOperation = "approve"
	PaymentOpCancel  PaymentOperation = "cancel"
)

type AttemptStatus string

const (
	AttemptRequested AttemptStatus = "requested"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
	AttemptReplayed  AttemptStatus = "replayed"
)

// 決済事業者への1回の論理操作。冪等キーはここに残す。
type PaymentAttempt struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        int64            `gorm:"not null;index" json:"orderId"`
	Method         PaymentMethod    `gorm:"type:varchar(20);not null" json:"method"`
	Operation      PaymentOperation `gorm:"type:varchar(20);not null;index" json:"operation"`
	IdempotencyKey string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"idempotencyKey"`
	Amount         int64            `gorm:"not null" json:"amount"`
	Status         AttemptStatus    `gorm:"type:varchar(20);not null" json:"status"`
	ExternalID     string           `gorm:"type:varchar(128)" json:"externalId"`
	ErrorCode      string           `gorm:"type:varchar(64)" json:"errorCode"`
	ResponseJSON   string           `gorm:"type:text" json:"-"`
	CreatedAt      time.Time        `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time        `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
