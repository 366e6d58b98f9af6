package model

import "time"

type AuditAction string

const (
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//割引コードの作成/更新/削除。
	AuditActionCreatePromoCode AuditAction = "CREATE_PROMO_CODE"
	AuditActionUpdatePromoCode AuditAction = "UPDATE_PROMO_CODE"
	AuditActionDeletePromoCode AuditAction = "DELETE_PROMO_CODE"
)

type AuditResourceType string

const (
	AuditResourceOrder     AuditResourceType = "order"
	AuditResourcePromoCode AuditResourceType = "promo_code"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した管理者（JWTのsub）
	Actor string `gorm:"type:varchar(255);not null;index" json:"actor"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resourceType"`
	ResourceID   int64             `gorm:"not null;index" json:"resourceId"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"beforeJson"`
	AfterJSON  string `gorm:"type:text" json:"afterJson"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}
