// Package pricing は割引コードの判定と割引額の計算を行う。
// 副作用は一切なく、currentUsesも変更しない。
package pricing

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 判定に失敗した理由
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonInactive       Reason = "inactive"
	ReasonNotYetValid    Reason = "not_yet_valid"
	ReasonExpired        Reason = "expired"
	ReasonUsageExhausted Reason = "usage_exhausted"
	ReasonBelowMinimum   Reason = "below_minimum"
)

type RejectedError struct {
	Reason  Reason
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

func reject(r Reason, msg string) error {
	return &RejectedError{Reason: r, Message: msg}
}

var ErrNotFound = reject(ReasonNotFound, "promo code not found")

// RejectedErrorならその理由を返す
func AsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	ok := errors.As(err, &re)
	return re, ok
}

var hundred = decimal.NewFromInt(100)

// Evaluate は割引額を返す。上から順にチェックし、最初に失敗したものを返す。
func Evaluate(p model.PromoCode, orderAmount int64, now time.Time) (int64, error) {
	if !p.IsActive {
		return 0, reject(ReasonInactive, "promo code is inactive")
	}
	if now.Before(p.ValidFrom) {
		return 0, reject(ReasonNotYetValid, "promo code is not yet valid")
	}
	if now.After(p.ValidUntil) {
		return 0, reject(ReasonExpired, "promo code has expired")
	}
	if p.HasUsageCap() && p.CurrentUses >= *p.MaxUses {
		return 0, reject(ReasonUsageExhausted, "promo code usage limit exhausted")
	}
	if p.MinOrderAmount != nil && orderAmount < *p.MinOrderAmount {
		return 0, reject(ReasonBelowMinimum,
			fmt.Sprintf("order amount is below the minimum of %d for this promo code", *p.MinOrderAmount))
	}

	return Discount(p.Type, p.Value, orderAmount), nil
}

// Discount は種別ごとの割引額。結果は常に [0, orderAmount]。
func Discount(t model.PromoCodeType, value decimal.Decimal, orderAmount int64) int64 {
	if orderAmount <= 0 || !value.IsPositive() {
		return 0
	}

	var d int64
	switch t {
	case model.PromoCodeTypePercentage:
		// 四捨五入（0.5は0から遠い方へ）
		d = decimal.NewFromInt(orderAmount).Mul(value).Div(hundred).Round(0).IntPart()
	case model.PromoCodeTypeFixedAmount:
		d = value.Round(0).IntPart()
	default:
		return 0
	}
	return Clamp(d, orderAmount)
}

// Clamp は割引額を [0, orderAmount] に収める
func Clamp(discount, orderAmount int64) int64 {
	if discount < 0 {
		return 0
	}
	if discount > orderAmount {
		return orderAmount
	}
	return discount
}
