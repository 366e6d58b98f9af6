package handler

import (
	"net/http"
	"strings"

	"storefront/internal/infra/payment"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	HeaderSignature   = "X-Signature"
	sourceSuccessPage = "success_page"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// 決済完了ページからの確認
type SuccessPageRequest struct {
	Source string `json:"source"`
	State  string `json:"state"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/orders/:id/pay", h.pay)
}

// form-encoded なら決済事業者のwebhook、JSONなら完了ページ
func (h *PaymentHandler) pay(c echo.Context) error {
	orderID, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	cb, err := readCallback(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ConfirmPayment(c.Request().Context(), orderID, cb)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func readCallback(c echo.Context) (usecase.PaymentCallback, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(ct, echo.MIMEApplicationForm), strings.HasPrefix(ct, echo.MIMEMultipartForm):
		fields, err := c.FormParams()
		if err != nil {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		sig := fields.Get(payment.SignatureField)
		if sig == "" {
			sig = c.Request().Header.Get(HeaderSignature)
		}
		return usecase.SignedWebhook{Fields: fields, Signature: sig}, nil

	case strings.HasPrefix(ct, echo.MIMEApplicationJSON):
		var req SuccessPageRequest
		if err := c.Bind(&req); err != nil {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		if req.Source != sourceSuccessPage {
			return nil, usecase.NewHTTPError(http.StatusBadRequest, "unsupported confirmation source")
		}
		return usecase.SuccessPageConfirmation{State: req.State}, nil
	}

	return nil, usecase.NewHTTPError(http.StatusBadRequest, "unsupported content type")
}
