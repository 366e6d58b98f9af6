package model

// 確定後に外部へ通知するイベント
type OrderEvent string

const (
	OrderEventPaid      OrderEvent = "paid"
	OrderEventShipped   OrderEvent = "shipped"
	OrderEventDelivered OrderEvent = "delivered"
	OrderEventCancelled OrderEvent = "cancelled"
)

// ステータスに対応するイベント。CREATEDには無い。
func EventForStatus(s OrderStatus) (OrderEvent, bool) {
	switch s {
	case OrderStatusPaid:
		return OrderEventPaid, true
	case OrderStatusShipped:
		return OrderEventShipped, true
	case OrderStatusDelivered:
		return OrderEventDelivered, true
	case OrderStatusCancelled:
		return OrderEventCancelled, true
	}
	return "", false
}
