package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderItemRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int64 `json:"quantity" validate:"min=1,max=10000"`
}

type OrderCreateRequest struct {
	CustomerName     string             `json:"customerName" validate:"required"`
	CustomerPhone    string             `json:"customerPhone" validate:"required"`
	CustomerEmail    *string            `json:"customerEmail"`
	DeliveryType     string             `json:"deliveryType" validate:"required,oneof=pickup delivery"`
	DeliveryAddress  *string            `json:"deliveryAddress"`
	DeliveryCityCode *int64             `json:"deliveryCityCode"`
	Items            []OrderItemRequest `json:"items" validate:"required,min=1,dive"`

	//クライアントで計算済みの金額
	OriginalAmount int64  `json:"originalAmount"`
	DiscountAmount int64  `json:"discountAmount"`
	PromoCodeID    *int64 `json:"promoCodeId"`
}

// 管理者用の一覧/ステータス変更は AdminOrderHandler
func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/orders", h.create)
	e.POST("/orders/create", h.create)
	e.GET("/orders/:id", h.detail)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	items := make([]usecase.CreateOrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.CreateOrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), usecase.CreateOrderInput{
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		DeliveryType:     req.DeliveryType,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryCityCode: req.DeliveryCityCode,
		Items:            items,
		OriginalAmount:   req.OriginalAmount,
		DiscountAmount:   req.DiscountAmount,
		PromoCodeID:      req.PromoCodeID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
