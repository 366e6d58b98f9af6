package usecase

import (
	"context"
	"fmt"
	"net/http"

	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type DeliveryUsecase struct {
	products      repo.ProductRepository
	quotes        QuoteProvider
	defaultWeight int64
	logger        *zap.Logger
}

func NewDeliveryUsecase(products repo.ProductRepository, quotes QuoteProvider, defaultItemWeightGrams int64, logger *zap.Logger) *DeliveryUsecase {
	return &DeliveryUsecase{products: products, quotes: quotes, defaultWeight: defaultItemWeightGrams, logger: logger}
}

type DeliveryQuoteInput struct {
	CityCode int64
	Items    []CreateOrderItemInput
}

// 見積もりは表示用。支払いや注文作成には影響しない
func (u *DeliveryUsecase) Quote(ctx context.Context, in DeliveryQuoteInput) (DeliveryQuote, error) {
	if in.CityCode <= 0 {
		return DeliveryQuote{}, NewHTTPError(http.StatusBadRequest, "invalid cityCode")
	}
	if len(in.Items) == 0 {
		return DeliveryQuote{}, NewHTTPError(http.StatusBadRequest, "items required")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return DeliveryQuote{}, NewHTTPError(http.StatusBadRequest, "invalid productId")
		}
		if it.Quantity < 1 {
			return DeliveryQuote{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
		}
	}

	products, err := u.products.FindByIDs(ctx, productIDs(in.Items))
	if err != nil {
		return DeliveryQuote{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var weight int64
	for _, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return DeliveryQuote{}, NewHTTPError(http.StatusBadRequest, fmt.Sprintf("product %d not found", it.ProductID))
		}
		g, ok := ProductWeightGrams(p)
		if !ok {
			g = u.defaultWeight
		}
		weight += g * it.Quantity
	}

	q, err := u.quotes.Quote(ctx, DeliveryQuoteRequest{
		CityCode:            in.CityCode,
		WeightGrams:         weight,
		IncludePickupPoints: true,
	})
	if err != nil {
		u.logger.Warn("delivery quote failed", zap.Int64("city_code", in.CityCode), zap.Int64("weight_g", weight), zap.Error(err))
		return DeliveryQuote{}, NewHTTPError(http.StatusBadGateway, "delivery quote unavailable")
	}
	q.WeightGrams = weight
	return q, nil
}
