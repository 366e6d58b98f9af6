package handler

import (
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/pricing"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type PromoCodeHandler struct {
	uc *usecase.PromoCodeUsecase
}

func NewPromoCodeHandler(uc *usecase.PromoCodeUsecase) *PromoCodeHandler {
	return &PromoCodeHandler{uc: uc}
}

type PromoCodeCreateRequest struct {
	Code           string          `json:"code" validate:"required,max=64"`
	Name           string          `json:"name" validate:"required,max=255"`
	Description    *string         `json:"description"`
	Type           string          `json:"type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount *int64          `json:"minOrderAmount" validate:"omitempty,gte=0"`
	MaxUses        *int64          `json:"maxUses" validate:"omitempty,gte=0"`
	ValidFrom      *time.Time      `json:"validFrom" validate:"required"`
	ValidUntil     *time.Time      `json:"validUntil" validate:"required"`
	IsActive       *bool           `json:"isActive"`
}

// codeは受け付けない（変更不可）
type PromoCodeUpdateRequest struct {
	Name           *string          `json:"name" validate:"omitempty,max=255"`
	Description    *string          `json:"description"`
	Type           *string          `json:"type" validate:"omitempty,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value          *decimal.Decimal `json:"value"`
	MinOrderAmount *int64           `json:"minOrderAmount" validate:"omitempty,gte=0"`
	MaxUses        *int64           `json:"maxUses" validate:"omitempty,gte=0"`
	ValidFrom      *time.Time       `json:"validFrom"`
	ValidUntil     *time.Time       `json:"validUntil"`
	IsActive       *bool            `json:"isActive"`
}

type PromoCodeValidateRequest struct {
	Code        string `json:"code"`
	OrderAmount int64  `json:"orderAmount"`
}

func (h *PromoCodeHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	//公開。IPごとのレート制限
	var limit []echo.MiddlewareFunc
	if cfg.ValidateRatePerSec > 0 {
		limit = append(limit, validateRateLimiter(cfg.ValidateRatePerSec))
	}
	e.POST("/promo-codes/validate", h.validate, limit...)

	g := e.Group("/promo-codes", adminOnly(cfg)...)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func validateRateLimiter(perSec float64) echo.MiddlewareFunc {
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSec),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
		},
	})
}

func (h *PromoCodeHandler) create(c echo.Context) error {
	var req PromoCodeCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	actor, ok := getAdminFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	p, err := h.uc.Create(c.Request().Context(), actor, usecase.CreatePromoCodeInput{
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxUses:        req.MaxUses,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		IsActive:       req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PromoCodeHandler) list(c echo.Context) error {
	items, err := h.uc.List(c.Request().Context(), usecase.ListPromoCodesInput{
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *PromoCodeHandler) get(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	p, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PromoCodeHandler) update(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	var req PromoCodeUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	actor, ok := getAdminFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	p, err := h.uc.Update(c.Request().Context(), actor, id, usecase.UpdatePromoCodeInput{
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxUses:        req.MaxUses,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		IsActive:       req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PromoCodeHandler) delete(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	actor, ok := getAdminFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.Delete(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// 無効なコードは isValid=false のボディで 404(not_found) か 400 を返す
func (h *PromoCodeHandler) validate(c echo.Context) error {
	var req PromoCodeValidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.Validate(c.Request().Context(), usecase.ValidatePromoCodeInput{
		Code:        req.Code,
		OrderAmount: req.OrderAmount,
	})
	if err != nil {
		return writeError(c, err)
	}

	if !res.IsValid {
		status := http.StatusBadRequest
		if res.Reason == pricing.ReasonNotFound {
			status = http.StatusNotFound
		}
		return c.JSON(status, res)
	}
	return c.JSON(http.StatusOK, res)
}
