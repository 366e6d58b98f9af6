package fulfillment_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/fulfillment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notifierMock struct {
	mock.Mock
	name string
}

func (m *notifierMock) Name() string { return m.name }

func (m *notifierMock) Notify(ctx context.Context, n fulfillment.Notification) error {
	args := m.Called(n.Event, n.Order.ID)
	return args.Error(0)
}

type carrierMock struct{ mock.Mock }

func (m *carrierMock) RegisterOrder(ctx context.Context, order model.Order, items []model.OrderItem) (string, error) {
	args := m.Called(order.ID)
	return args.String(0), args.Error(1)
}

func deliveryOrder() model.Order {
	addr := "Lenina 1"
	return model.Order{ID: 42, OrderNumber: "2026-000042", DeliveryType: model.DeliveryTypeDelivery, DeliveryAddress: &addr}
}

func TestDispatcher_Run_FailuresDoNotStopOthers(t *testing.T) {
	failing := &notifierMock{name: "telegram"}
	failing.On("Notify", model.OrderEventPaid, int64(42)).Return(errors.New("bot blocked"))
	ok := &notifierMock{name: "amqp"}
	ok.On("Notify", model.OrderEventPaid, int64(42)).Return(nil)
	carrier := new(carrierMock)
	carrier.On("RegisterOrder", int64(42)).Return("cdek-uuid", nil)

	d := fulfillment.NewDispatcher(zap.NewNop(), time.Second, carrier, failing, ok)
	err := d.Run(context.Background(), fulfillment.Notification{Event: model.OrderEventPaid, Order: deliveryOrder()})

	assert.ErrorContains(t, err, "bot blocked")
	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
	carrier.AssertExpectations(t)
}

func TestDispatcher_Run_CarrierOnlyForPaidDelivery(t *testing.T) {
	carrier := new(carrierMock)
	d := fulfillment.NewDispatcher(zap.NewNop(), time.Second, carrier)

	pickup := deliveryOrder()
	pickup.DeliveryType = model.DeliveryTypePickup
	require.NoError(t, d.Run(context.Background(), fulfillment.Notification{Event: model.OrderEventPaid, Order: pickup}))
	require.NoError(t, d.Run(context.Background(), fulfillment.Notification{Event: model.OrderEventShipped, Order: deliveryOrder()}))

	carrier.AssertNotCalled(t, "RegisterOrder", mock.Anything)
}

func TestDispatcher_Run_NoCarrierConfigured(t *testing.T) {
	d := fulfillment.NewDispatcher(zap.NewNop(), time.Second, nil)
	assert.NoError(t, d.Run(context.Background(), fulfillment.Notification{Event: model.OrderEventPaid, Order: deliveryOrder()}))
}

type countingNotifier struct {
	calls atomic.Int32
	block chan struct{}
}

func (c *countingNotifier) Name() string { return "counting" }

func (c *countingNotifier) Notify(ctx context.Context, n fulfillment.Notification) error {
	<-c.block
	c.calls.Add(1)
	return errors.New("always fails")
}

func TestDispatcher_Dispatch_ReturnsImmediatelyAndWaitDrains(t *testing.T) {
	n := &countingNotifier{block: make(chan struct{})}
	d := fulfillment.NewDispatcher(zap.NewNop(), time.Second, nil, n)

	d.Dispatch(deliveryOrder(), nil, model.OrderEventPaid)
	d.Dispatch(deliveryOrder(), nil, model.OrderEventCancelled)
	assert.Equal(t, int32(0), n.calls.Load())

	close(n.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
	assert.Equal(t, int32(2), n.calls.Load())
}

func TestDispatcher_Wait_Timeout(t *testing.T) {
	n := &countingNotifier{block: make(chan struct{})}
	defer close(n.block)
	d := fulfillment.NewDispatcher(zap.NewNop(), time.Minute, nil, n)
	d.Dispatch(deliveryOrder(), nil, model.OrderEventPaid)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
}

func TestFormatMessage(t *testing.T) {
	o := deliveryOrder()
	o.CustomerName = "Anna"
	o.CustomerPhone = "+7999"
	o.DiscountAmount = 500
	o.TotalAmount = 1500
	o.Currency = "RUB"
	msg := fulfillment.FormatMessage(fulfillment.Notification{
		Event: model.OrderEventPaid,
		Order: o,
		Items: []model.OrderItem{{ProductNameSnapshot: "Puzzle", UnitPriceSnapshot: 1000, Quantity: 2}},
	})
	assert.Contains(t, msg, "Order 2026-000042 paid")
	assert.Contains(t, msg, "Delivery: Lenina 1")
	assert.Contains(t, msg, "- Puzzle x2 = 2000 RUB")
	assert.Contains(t, msg, "Discount: -500 RUB")
	assert.Contains(t, msg, "Total: 1500 RUB")
}
