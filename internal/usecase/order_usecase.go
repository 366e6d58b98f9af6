package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

const (
	maxOrderLines   = 100
	maxItemQuantity = 10000
)

type OrderUsecase struct {
	tx       repo.TransactionManager
	clock    Clock
	ids      IDGenerator
	currency string
	logger   *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, clock Clock, ids IDGenerator, currency string, logger *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, clock: clock, ids: ids, currency: currency, logger: logger}
}

type CreateOrderItemInput struct {
	ProductID int64
	Quantity  int64
}

type CreateOrderInput struct {
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    *string
	DeliveryType     string
	DeliveryAddress  *string
	DeliveryCityCode *int64
	Items            []CreateOrderItemInput

	// クライアントが計算済みの値。originalAmountはサーバーで再計算する
	OriginalAmount int64
	DiscountAmount int64
	PromoCodeID    *int64
}

type OrderItemOutput struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"productName"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

// 表示用。コードが削除されていればnil
type OrderPromoCodeOutput struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type OrderOutput struct {
	ID               int64                 `json:"id"`
	OrderNumber      string                `json:"orderNumber"`
	Status           string                `json:"status"`
	CustomerName     string                `json:"customerName"`
	CustomerPhone    string                `json:"customerPhone"`
	CustomerEmail    *string               `json:"customerEmail,omitempty"`
	DeliveryType     string                `json:"deliveryType"`
	DeliveryAddress  *string               `json:"deliveryAddress,omitempty"`
	DeliveryCityCode *int64                `json:"deliveryCityCode,omitempty"`
	OriginalAmount   int64                 `json:"originalAmount"`
	DiscountAmount   int64                 `json:"discountAmount"`
	TotalAmount      int64                 `json:"totalAmount"`
	PromoCodeID      *int64                `json:"promoCodeId,omitempty"`
	PromoCode        *OrderPromoCodeOutput `json:"promoCode,omitempty"`
	Currency         string                `json:"currency"`
	CreatedAt        time.Time             `json:"createdAt"`
	PaidAt           *time.Time            `json:"paidAt,omitempty"`
	Items            []OrderItemOutput     `json:"items"`
}

func (u *OrderUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderOutput, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.CustomerEmail = trimOptional(in.CustomerEmail)
	in.DeliveryAddress = trimOptional(in.DeliveryAddress)

	if err := validateCreateOrder(in); err != nil {
		return OrderOutput{}, err
	}

	now := u.clock.Now()
	var out OrderOutput

	//注文と明細は同じトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		products, err := r.Products().FindByIDs(ctx, productIDs(in.Items))
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//現在の価格でスナップショット
		items := make([]model.OrderItem, 0, len(in.Items))
		var original int64
		for _, it := range in.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("product %d not found", it.ProductID))
			}
			items = append(items, model.OrderItem{
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            it.Quantity,
				CreatedAt:           now,
			})
			if p.Price > 0 && it.Quantity > (math.MaxInt64-original)/p.Price {
				return NewHTTPError(http.StatusBadRequest, "order amount too large")
			}
			original += p.Price * it.Quantity
		}
		if in.OriginalAmount > 0 && in.OriginalAmount != original {
			u.logger.Info("client original amount differs from server total",
				zap.Int64("client", in.OriginalAmount), zap.Int64("server", original))
		}

		//割引はクライアントの値を信用するが [0, original] に収める
		var discount int64
		var promo *model.PromoCode
		if in.PromoCodeID != nil {
			pc, err := r.PromoCodes().FindByID(ctx, *in.PromoCodeID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusBadRequest, "promo code not found")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			discount = pricing.Clamp(in.DiscountAmount, original)
			promo = &pc
		}

		order := model.Order{
			// 採番前の仮番号（IDが決まったら差し替える）
			OrderNumber:      "tmp-" + u.ids.NewID(),
			CustomerName:     in.CustomerName,
			CustomerPhone:    in.CustomerPhone,
			CustomerEmail:    in.CustomerEmail,
			DeliveryType:     model.DeliveryType(in.DeliveryType),
			DeliveryAddress:  in.DeliveryAddress,
			DeliveryCityCode: in.DeliveryCityCode,
			Status:           model.OrderStatusCreated,
			OriginalAmount:   original,
			DiscountAmount:   discount,
			TotalAmount:      original - discount,
			Currency:         u.currency,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if promo != nil {
			order.PromoCodeID = &promo.ID
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			u.logger.Error("create order failed", zap.Error(err))
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		order.ID = orderID
		order.OrderNumber = FormatOrderNumber(now, orderID)

		if err := r.Orders().SetOrderNumber(ctx, orderID, order.OrderNumber); err != nil {
			u.logger.Error("set order number failed", zap.Int64("order_id", orderID), zap.Error(err))
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			u.logger.Error("create order items failed", zap.Int64("order_id", orderID), zap.Error(err))
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(order, items, promo)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("order created",
		zap.Int64("order_id", out.ID),
		zap.String("order_number", out.OrderNumber),
		zap.Int64("total_amount", out.TotalAmount),
	)
	return out, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		promo, err := findPromoForDisplay(ctx, r, o.PromoCodeID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items, promo)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 弱参照なので見つからなくてもエラーにしない
func findPromoForDisplay(ctx context.Context, r repo.TxRepos, id *int64) (*model.PromoCode, error) {
	if id == nil {
		return nil, nil
	}
	p, err := r.PromoCodes().FindByID(ctx, *id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// 例: 2026-000042
func FormatOrderNumber(now time.Time, orderID int64) string {
	return fmt.Sprintf("%d-%06d", now.Year(), orderID)
}

func validateCreateOrder(in CreateOrderInput) error {
	if in.CustomerName == "" {
		return NewHTTPError(http.StatusBadRequest, "customerName required")
	}
	if len(in.CustomerName) > 255 {
		return NewHTTPError(http.StatusBadRequest, "customerName too long")
	}
	if in.CustomerPhone == "" {
		return NewHTTPError(http.StatusBadRequest, "customerPhone required")
	}
	if len(in.CustomerPhone) > 32 {
		return NewHTTPError(http.StatusBadRequest, "customerPhone too long")
	}

	switch model.DeliveryType(in.DeliveryType) {
	case model.DeliveryTypePickup:
	case model.DeliveryTypeDelivery:
		if in.DeliveryAddress == nil {
			return NewHTTPError(http.StatusBadRequest, "deliveryAddress required for delivery")
		}
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid deliveryType")
	}

	if len(in.Items) == 0 {
		return NewHTTPError(http.StatusBadRequest, "items required")
	}
	if len(in.Items) > maxOrderLines {
		return NewHTTPError(http.StatusBadRequest, "too many items")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return NewHTTPError(http.StatusBadRequest, "invalid productId")
		}
		if it.Quantity < 1 {
			return NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
		}
		if it.Quantity > maxItemQuantity {
			return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("quantity must be <= %d", maxItemQuantity))
		}
	}

	if in.PromoCodeID != nil && *in.PromoCodeID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid promoCodeId")
	}
	return nil
}

func productIDs(items []CreateOrderItemInput) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func toOrderOutput(o model.Order, items []model.OrderItem, promo *model.PromoCode) OrderOutput {
	out := OrderOutput{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		Status:           string(o.Status),
		CustomerName:     o.CustomerName,
		CustomerPhone:    o.CustomerPhone,
		CustomerEmail:    o.CustomerEmail,
		DeliveryType:     string(o.DeliveryType),
		DeliveryAddress:  o.DeliveryAddress,
		DeliveryCityCode: o.DeliveryCityCode,
		OriginalAmount:   o.OriginalAmount,
		DiscountAmount:   o.DiscountAmount,
		TotalAmount:      o.TotalAmount,
		PromoCodeID:      o.PromoCodeID,
		Currency:         o.Currency,
		CreatedAt:        o.CreatedAt,
		PaidAt:           o.PaidAt,
		Items:            make([]OrderItemOutput, 0, len(items)),
	}
	if promo != nil {
		out.PromoCode = &OrderPromoCodeOutput{ID: promo.ID, Code: promo.Code, Name: promo.Name}
	}
	for _, it := range items {
		out.Items = append(out.Items, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}
	return out
}
