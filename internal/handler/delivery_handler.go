package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type DeliveryHandler struct {
	uc *usecase.DeliveryUsecase
}

func NewDeliveryHandler(uc *usecase.DeliveryUsecase) *DeliveryHandler {
	return &DeliveryHandler{uc: uc}
}

type DeliveryQuoteRequest struct {
	CityCode int64              `json:"cityCode" validate:"gt=0"`
	Items    []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *DeliveryHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/delivery/quote", h.quote)
}

func (h *DeliveryHandler) quote(c echo.Context) error {
	var req DeliveryQuoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	items := make([]usecase.CreateOrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.CreateOrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	q, err := h.uc.Quote(c.Request().Context(), usecase.DeliveryQuoteInput{
		CityCode: req.CityCode,
		Items:    items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}
