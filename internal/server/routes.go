package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	PromoCode    *handler.PromoCodeHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
	Payment      *handler.PaymentHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Delivery     *handler.DeliveryHandler
	AuditLog     *handler.AuditLogHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Auth.RegisterRoutes(e)

	h.PromoCode.RegisterRoutes(e, cfg)

	h.Order.RegisterRoutes(e)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.Payment.RegisterRoutes(e)

	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, cfg)

	h.Delivery.RegisterRoutes(e)
	h.AuditLog.RegisterRoutes(e, cfg)
}
