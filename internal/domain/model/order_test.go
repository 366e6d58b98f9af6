package model_test

import (
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to model.OrderStatus
		ok       bool
	}{
		{model.OrderStatusCreated, model.OrderStatusPaid, true},
		{model.OrderStatusCreated, model.OrderStatusCancelled, true},
		{model.OrderStatusCreated, model.OrderStatusShipped, false},
		{model.OrderStatusPaid, model.OrderStatusShipped, true},
		{model.OrderStatusPaid, model.OrderStatusCancelled, true},
		{model.OrderStatusPaid, model.OrderStatusCreated, false},
		{model.OrderStatusShipped, model.OrderStatusDelivered, true},
		{model.OrderStatusShipped, model.OrderStatusCancelled, false},
		{model.OrderStatusDelivered, model.OrderStatusCancelled, false},
		{model.OrderStatusCancelled, model.OrderStatusPaid, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.True(t, model.OrderStatusDelivered.IsTerminal())
	assert.True(t, model.OrderStatusCancelled.IsTerminal())
	assert.False(t, model.OrderStatusPaid.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	s, ok := model.ParseOrderStatus("SHIPPED")
	assert.True(t, ok)
	assert.Equal(t, model.OrderStatusShipped, s)

	_, ok = model.ParseOrderStatus("CANCELED")
	assert.False(t, ok)
	_, ok = model.ParseOrderStatus("paid")
	assert.False(t, ok)
}

func TestProduct_Characteristic(t *testing.T) {
	p := model.Product{Characteristics: []model.Characteristic{
		{Key: "Color", Value: "red"},
		{Key: " Weight ", Value: "350 g"},
	}}
	v, ok := p.Characteristic("weight")
	assert.True(t, ok)
	assert.Equal(t, "350 g", v)

	_, ok = p.Characteristic("size")
	assert.False(t, ok)
}
