package fulfillment

import (
	"fmt"
	"strings"

	"storefront/internal/domain/model"
)

var eventTitles = map[model.OrderEvent]string{
	model.OrderEventPaid:      "paid",
	model.OrderEventShipped:   "shipped",
	model.OrderEventDelivered: "delivered",
	model.OrderEventCancelled: "cancelled",
}

// 通知用のテキスト（Telegramなど）
func FormatMessage(n Notification) string {
	o := n.Order
	var b strings.Builder

	title, ok := eventTitles[n.Event]
	if !ok {
		title = string(n.Event)
	}
	fmt.Fprintf(&b, "Order %s %s\n", o.OrderNumber, title)
	fmt.Fprintf(&b, "Customer: %s, %s\n", o.CustomerName, o.CustomerPhone)
	if o.CustomerEmail != nil {
		fmt.Fprintf(&b, "Email: %s\n", *o.CustomerEmail)
	}

	if o.DeliveryType == model.DeliveryTypeDelivery && o.DeliveryAddress != nil {
		fmt.Fprintf(&b, "Delivery: %s\n", *o.DeliveryAddress)
	} else {
		b.WriteString("Delivery: pickup\n")
	}

	for _, it := range n.Items {
		fmt.Fprintf(&b, "- %s x%d = %d %s\n", it.ProductNameSnapshot, it.Quantity, it.LineTotal(), o.Currency)
	}

	if o.DiscountAmount > 0 {
		fmt.Fprintf(&b, "Discount: -%d %s\n", o.DiscountAmount, o.Currency)
	}
	fmt.Fprintf(&b, "Total: %d %s", o.TotalAmount, o.Currency)
	return b.String()
}
