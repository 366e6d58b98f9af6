package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromoCodeType string

const (
	PromoCodeTypePercentage  PromoCodeType = "PERCENTAGE"
	PromoCodeTypeFixedAmount PromoCodeType = "FIXED_AMOUNT"
)

func (t PromoCodeType) Valid() bool {
	return t == PromoCodeTypePercentage || t == PromoCodeTypeFixedAmount
}

// 割引コード。currentUsesは支払い確定時にだけ増える。
type PromoCode struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Name        string        `gorm:"type:varchar(255);not null" json:"name"`
	Description *string       `gorm:"type:text" json:"description,omitempty"`
	Type        PromoCodeType `gorm:"type:varchar(20);not null;index" json:"type"`

	// PERCENTAGEなら0<v<=100、FIXED_AMOUNTなら金額
	Value decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"value"`

	MinOrderAmount *int64 `json:"minOrderAmount,omitempty"`
	// nilまたは0は無制限
	MaxUses     *int64 `json:"maxUses,omitempty"`
	CurrentUses int64  `gorm:"not null;default:0" json:"currentUses"`

	ValidFrom  time.Time `gorm:"not null" json:"validFrom"`
	ValidUntil time.Time `gorm:"not null" json:"validUntil"`
	IsActive   bool      `gorm:"not null;default:true;index" json:"isActive"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// 上限が設定されているか
func (p PromoCode) HasUsageCap() bool {
	return p.MaxUses != nil && *p.MaxUses > 0
}
