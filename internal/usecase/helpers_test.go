package usecase_test

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/repository/memtest"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

// =====================
// mocks
// =====================

type dispatcherMock struct {
	mock.Mock
	mu sync.Mutex
}

func (m *dispatcherMock) Dispatch(order model.Order, items []model.OrderItem, event model.OrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(order.ID, event)
}

type verifierMock struct{ mock.Mock }

func (m *verifierMock) Verify(fields url.Values, signature string) bool {
	args := m.Called(fields, signature)
	return args.Bool(0)
}

// =====================
// fixtures
// =====================

func newStore() *memtest.Store {
	s := memtest.NewStore()
	s.Now = func() time.Time { return now }
	return s
}

func int64p(v int64) *int64 { return &v }

func timep(t time.Time) *time.Time { return &t }

func decimalOf(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func int64String(v int64) string { return strconv.FormatInt(v, 10) }

func seedProduct(s *memtest.Store, name string, price int64) model.Product {
	return s.PutProduct(model.Product{Name: name, Price: price})
}

func seedPromo(s *memtest.Store, code string, typ model.PromoCodeType, value int64, mutate ...func(*model.PromoCode)) model.PromoCode {
	p := model.PromoCode{
		Code:       code,
		Name:       code,
		Type:       typ,
		Value:      decimal.NewFromInt(value),
		ValidFrom:  now.Add(-24 * time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
		IsActive:   true,
	}
	for _, m := range mutate {
		m(&p)
	}
	return s.PutPromo(p)
}

func pickup(productID, qty int64) usecase.CreateOrderInput {
	return usecase.CreateOrderInput{
		CustomerName:  "Ivan Petrov",
		CustomerPhone: "+79990001122",
		DeliveryType:  "pickup",
		Items:         []usecase.CreateOrderItemInput{{ProductID: productID, Quantity: qty}},
	}
}

// HTTPErrorのステータスとメッセージを確認する
func requireHTTPError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, status, he.Status)
	require.Equal(t, msg, he.Message)
}
