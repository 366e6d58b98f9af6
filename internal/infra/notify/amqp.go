package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/fulfillment"

	"github.com/streadway/amqp"
)

// amqp.Channelのうち使うメソッドだけ
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// 注文イベントを topic exchange に "order.<event>" で流す
type AMQPPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp.Channelはgoroutine-safeではない
	channel  amqpChannel
	exchange string
}

type OrderEventMessage struct {
	Event          model.OrderEvent `json:"event"`
	OrderID        int64            `json:"orderId"`
	OrderNumber    string           `json:"orderNumber"`
	Status         string           `json:"status"`
	DeliveryType   string           `json:"deliveryType"`
	OriginalAmount int64            `json:"originalAmount"`
	DiscountAmount int64            `json:"discountAmount"`
	TotalAmount    int64            `json:"totalAmount"`
	PromoCodeID    *int64           `json:"promoCodeId,omitempty"`
	Currency       string           `json:"currency"`
	PaidAt         *time.Time       `json:"paidAt,omitempty"`
	Items          []OrderEventItem `json:"items"`
}

type OrderEventItem struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"productName"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func newAMQPPublisherWithChannel(ch amqpChannel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{channel: ch, exchange: exchange}
}

func (p *AMQPPublisher) Name() string { return "amqp" }

func RoutingKey(event model.OrderEvent) string {
	return "order." + string(event)
}

func (p *AMQPPublisher) Notify(ctx context.Context, n fulfillment.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(toEventMessage(n))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(p.exchange, RoutingKey(n.Event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s-%d", n.Event, n.Order.ID),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func toEventMessage(n fulfillment.Notification) OrderEventMessage {
	o := n.Order
	msg := OrderEventMessage{
		Event:          n.Event,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         string(o.Status),
		DeliveryType:   string(o.DeliveryType),
		OriginalAmount: o.OriginalAmount,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		PromoCodeID:    o.PromoCodeID,
		Currency:       o.Currency,
		PaidAt:         o.PaidAt,
		Items:          make([]OrderEventItem, 0, len(n.Items)),
	}
	for _, it := range n.Items {
		msg.Items = append(msg.Items, OrderEventItem{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}
	return msg
}
