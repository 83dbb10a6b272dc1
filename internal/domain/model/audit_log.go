package model

import "time"

// 注文ステータス更新、明細の取消、返金など。
type AuditAction string

const (
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//明細ステータスを更新した操作。
	AuditActionUpdateItemStatus AuditAction = "UPDATE_ITEM_STATUS"
	AuditActionCancelOrder      AuditAction = "CANCEL_ORDER"
	AuditActionRefundOrder      AuditAction = "REFUND_ORDER"
	//メニューの販売可否を変えた操作。
	AuditActionUpdateMenu AuditAction = "UPDATE_MENU"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder     AuditResourceType = "order"
	AuditResourceOrderItem AuditResourceType = "order_item"
	AuditResourceMenu      AuditResourceType = "menu"
)

// 誰の操作か
type ActorType string

const (
	ActorAdmin    ActorType = "admin"
	ActorCustomer ActorType = "customer"
	ActorSystem   ActorType = "system"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ActorType ActorType `gorm:"type:varchar(20);not null" json:"actorType"`

	//管理者ならユーザーID、顧客ならセッションキー。
	ActorID string `gorm:"type:varchar(128);not null;index" json:"actorId"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resourceType"`

	ResourceID int64 `gorm:"not null;index" json:"resourceId"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"beforeJson"`
	AfterJSON  string `gorm:"type:text" json:"afterJson"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// Actor は操作主体
type Actor struct {
	Type ActorType
	ID   string
}

func (a Actor) String() string { return string(a.Type) + ":" + a.ID }
