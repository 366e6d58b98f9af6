package usecase

import (
	"context"
	"net/url"
	"time"

	"storefront/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 決済webhookの署名検証
type SignatureVerifier interface {
	Verify(fields url.Values, signature string) bool
}

// commit後の通知・配送登録。失敗しても呼び出し側には返さない
type OrderEventDispatcher interface {
	Dispatch(order model.Order, items []model.OrderItem, event model.OrderEvent)
}

type DeliveryQuoteRequest struct {
	CityCode            int64
	WeightGrams         int64
	IncludePickupPoints bool
}

type PickupPoint struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type DeliveryQuote struct {
	Price        int64         `json:"price"`
	Currency     string        `json:"currency"`
	PeriodMin    int           `json:"periodMin"`
	PeriodMax    int           `json:"periodMax"`
	WeightGrams  int64         `json:"weightGrams"`
	PickupPoints []PickupPoint `json:"pickupPoints"`
}

// 配送料金の見積もり（キャッシュ付きの実装もある）
type QuoteProvider interface {
	Quote(ctx context.Context, req DeliveryQuoteRequest) (DeliveryQuote, error)
}

type TokenIssuer interface {
	Issue(subject string, role string, now time.Time) (string, time.Time, error)
}

type PasswordVerifier interface {
	Verify(hashed string, plain string) bool
}
