package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ProductRequest struct {
	Name            string                 `json:"name" validate:"required,max=255"`
	Price           int64                  `json:"price" validate:"gte=0"`
	OldPrice        *int64                 `json:"oldPrice" validate:"omitempty,gte=0"`
	DiscountPercent *int                   `json:"discountPercent" validate:"omitempty,gte=0,lte=100"`
	Images          []string               `json:"images"`
	Breadcrumbs     []string               `json:"breadcrumbs"`
	Characteristics []model.Characteristic `json:"characteristics"`
	Categories      []string               `json:"categories"`
	AgeGroups       []string               `json:"ageGroups"`
}

func (r ProductRequest) toInput() usecase.AdminProductInput {
	return usecase.AdminProductInput{
		Name:            r.Name,
		Price:           r.Price,
		OldPrice:        r.OldPrice,
		DiscountPercent: r.DiscountPercent,
		Images:          r.Images,
		Breadcrumbs:     r.Breadcrumbs,
		Characteristics: r.Characteristics,
		Categories:      r.Categories,
		AgeGroups:       r.AgeGroups,
	}
}

// /products の管理者API
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := adminOnly(cfg)
	e.POST("/products", h.createProduct, admin...)
	e.PUT("/products/:id", h.updateProduct, admin...)
	e.DELETE("/products/:id", h.deleteProduct, admin...)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), req.toInput())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, p)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	var req ProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	if err := h.uc.AdminUpdateProduct(c.Request().Context(), id, req.toInput()); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.uc.AdminDeleteProduct(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}
