package model

import "time"

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

// 許可される遷移。同じステータスへの更新はここでは扱わない。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// 終端（DELIVERED / CANCELLED）
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

type DeliveryType string

const (
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDelivery DeliveryType = "delivery"
)

type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string `gorm:"type:varchar(64);not null;uniqueIndex" json:"orderNumber"`

	CustomerName  string  `gorm:"type:varchar(255);not null" json:"customerName"`
	CustomerPhone string  `gorm:"type:varchar(32);not null" json:"customerPhone"`
	CustomerEmail *string `gorm:"type:varchar(255)" json:"customerEmail,omitempty"`

	DeliveryType     DeliveryType `gorm:"type:varchar(20);not null" json:"deliveryType"`
	DeliveryAddress  *string      `gorm:"type:text" json:"deliveryAddress,omitempty"`
	DeliveryCityCode *int64       `json:"deliveryCityCode,omitempty"`

	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	// totalAmount = originalAmount - discountAmount
	OriginalAmount int64 `gorm:"not null" json:"originalAmount"`
	DiscountAmount int64 `gorm:"not null;default:0" json:"discountAmount"`
	TotalAmount    int64 `gorm:"not null" json:"totalAmount"`

	// 弱参照（コード削除後も残る）
	PromoCodeID *int64 `gorm:"index" json:"promoCodeId,omitempty"`
	Currency    string `gorm:"type:varchar(3);not null" json:"currency"`

	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updatedAt"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}
