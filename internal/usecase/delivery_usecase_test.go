package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type quoteProviderMock struct{ mock.Mock }

func (m *quoteProviderMock) Quote(ctx context.Context, req usecase.DeliveryQuoteRequest) (usecase.DeliveryQuote, error) {
	args := m.Called(req)
	q, _ := args.Get(0).(usecase.DeliveryQuote)
	return q, args.Error(1)
}

func TestParseWeightGrams(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"350 g", 350, true},
		{"350г", 350, true},
		{"350 гр.", 350, true},
		{"1.2kg", 1200, true},
		{"0,35 кг", 350, true},
		{"2 KG", 2000, true},
		{"500", 500, true},
		{"0 g", 0, false},
		{"heavy", 0, false},
		{"", 0, false},
		{"10 lb", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := usecase.ParseWeightGrams(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProductWeightGrams(t *testing.T) {
	p := model.Product{Characteristics: []model.Characteristic{
		{Key: "Color", Value: "red"},
		{Key: "Вес", Value: "1,5 кг"},
	}}
	g, ok := usecase.ProductWeightGrams(p)
	require.True(t, ok)
	assert.Equal(t, int64(1500), g)

	_, ok = usecase.ProductWeightGrams(model.Product{Characteristics: []model.Characteristic{{Key: "weight", Value: "n/a"}}})
	assert.False(t, ok)
}

func TestDeliveryUsecase_QuoteSumsWeights(t *testing.T) {
	s := newStore()
	heavy := s.PutProduct(model.Product{Name: "Bike", Price: 9000, Characteristics: []model.Characteristic{{Key: "weight", Value: "2 kg"}}})
	plain := seedProduct(s, "Card", 100)

	quotes := new(quoteProviderMock)
	quotes.On("Quote", usecase.DeliveryQuoteRequest{CityCode: 270, WeightGrams: 2000 + 3*400, IncludePickupPoints: true}).
		Return(usecase.DeliveryQuote{Price: 450, Currency: "RUB", PeriodMin: 2, PeriodMax: 5}, nil).Once()

	uc := usecase.NewDeliveryUsecase(s.Products(), quotes, 400, zap.NewNop())
	q, err := uc.Quote(context.Background(), usecase.DeliveryQuoteInput{
		CityCode: 270,
		Items: []usecase.CreateOrderItemInput{
			{ProductID: heavy.ID, Quantity: 1},
			{ProductID: plain.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(450), q.Price)
	assert.Equal(t, int64(3200), q.WeightGrams)
	quotes.AssertExpectations(t)
}

func TestDeliveryUsecase_Errors(t *testing.T) {
	s := newStore()
	prod := seedProduct(s, "Card", 100)

	quotes := new(quoteProviderMock)
	quotes.On("Quote", mock.Anything).Return(nil, errors.New("carrier timeout"))
	uc := usecase.NewDeliveryUsecase(s.Products(), quotes, 500, zap.NewNop())
	items := []usecase.CreateOrderItemInput{{ProductID: prod.ID, Quantity: 1}}

	_, err := uc.Quote(context.Background(), usecase.DeliveryQuoteInput{CityCode: 44, Items: items})
	requireHTTPError(t, err, http.StatusBadGateway, "delivery quote unavailable")

	_, err = uc.Quote(context.Background(), usecase.DeliveryQuoteInput{CityCode: 0, Items: items})
	requireHTTPError(t, err, http.StatusBadRequest, "invalid cityCode")

	_, err = uc.Quote(context.Background(), usecase.DeliveryQuoteInput{CityCode: 44})
	requireHTTPError(t, err, http.StatusBadRequest, "items required")

	_, err = uc.Quote(context.Background(), usecase.DeliveryQuoteInput{CityCode: 44, Items: []usecase.CreateOrderItemInput{{ProductID: 777, Quantity: 1}}})
	requireHTTPError(t, err, http.StatusBadRequest, "product 777 not found")

	quotes.AssertNumberOfCalls(t, "Quote", 1)
}
