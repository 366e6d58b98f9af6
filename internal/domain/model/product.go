package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// 商品の特性（"weight": "350 g" など）。順序を保つためmapではなくslice。
type Characteristic struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Product struct {
	ID    int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Price int64  `gorm:"not null" json:"price"`

	// 表示用のみ。計算には使わない
	OldPrice        *int64 `json:"oldPrice,omitempty"`
	DiscountPercent *int   `json:"discountPercent,omitempty"`

	Images          []string         `gorm:"type:jsonb;serializer:json" json:"images"`
	Breadcrumbs     []string         `gorm:"type:jsonb;serializer:json" json:"breadcrumbs"`
	Characteristics []Characteristic `gorm:"type:jsonb;serializer:json" json:"characteristics"`
	Categories      []string         `gorm:"type:jsonb;serializer:json" json:"categories"`
	AgeGroups       []string         `gorm:"type:jsonb;serializer:json" json:"ageGroups"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// keyが一致する特性の値を返す（大文字小文字は無視）
func (p Product) Characteristic(key string) (string, bool) {
	for _, c := range p.Characteristics {
		if strings.EqualFold(strings.TrimSpace(c.Key), key) {
			return c.Value, true
		}
	}
	return "", false
}
