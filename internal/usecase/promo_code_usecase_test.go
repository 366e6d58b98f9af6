package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const actor = "admin@example.com"

func validCreateInput(code string) usecase.CreatePromoCodeInput {
	return usecase.CreatePromoCodeInput{
		Code:       code,
		Name:       "Promo " + code,
		Type:       "FIXED_AMOUNT",
		Value:      decimalOf(300),
		ValidFrom:  timep(now.Add(-time.Hour)),
		ValidUntil: timep(now.Add(time.Hour)),
	}
}

func TestPromoCodeUsecase_CreateAndAudit(t *testing.T) {
	s := newStore()
	uc := usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), fixedClock{t: now}, zap.NewNop())

	in := validCreateInput("  WELCOME  ")
	created, err := uc.Create(context.Background(), actor, in)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", created.Code)
	assert.True(t, created.IsActive)
	assert.Equal(t, int64(0), created.CurrentUses)

	_, err = uc.Create(context.Background(), actor, validCreateInput("WELCOME"))
	requireHTTPError(t, err, http.StatusConflict, "promo code already exists")

	logs := s.AuditLogEntries()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionCreatePromoCode, logs[0].Action)
	assert.Equal(t, model.AuditResourcePromoCode, logs[0].ResourceType)
	assert.Equal(t, created.ID, logs[0].ResourceID)
	assert.Empty(t, logs[0].BeforeJSON)
	assert.Contains(t, logs[0].AfterJSON, `"code":"WELCOME"`)
}

func TestPromoCodeUsecase_CreateValidation(t *testing.T) {
	s := newStore()
	uc := usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), fixedClock{t: now}, zap.NewNop())

	cases := []struct {
		name   string
		mutate func(*usecase.CreatePromoCodeInput)
		msg    string
	}{
		{"empty code", func(in *usecase.CreatePromoCodeInput) { in.Code = " " }, "code required"},
		{"code with space", func(in *usecase.CreatePromoCodeInput) { in.Code = "TWO WORDS" }, "invalid code"},
		{"no window", func(in *usecase.CreatePromoCodeInput) { in.ValidUntil = nil }, "validFrom and validUntil required"},
		{"no name", func(in *usecase.CreatePromoCodeInput) { in.Name = "" }, "name required"},
		{"unknown type", func(in *usecase.CreatePromoCodeInput) { in.Type = "BOGO" }, "invalid type"},
		{"zero value", func(in *usecase.CreatePromoCodeInput) { in.Value = decimal.Zero }, "value must be > 0"},
		{"percentage over 100", func(in *usecase.CreatePromoCodeInput) {
			in.Type = "PERCENTAGE"
			in.Value = decimal.RequireFromString("100.5")
		}, "percentage value must be <= 100"},
		{"negative min order", func(in *usecase.CreatePromoCodeInput) { in.MinOrderAmount = int64p(-1) }, "minOrderAmount must be >= 0"},
		{"reversed window", func(in *usecase.CreatePromoCodeInput) {
			in.ValidFrom, in.ValidUntil = in.ValidUntil, in.ValidFrom
		}, "validFrom must be <= validUntil"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateInput("CODE")
			tc.mutate(&in)
			_, err := uc.Create(context.Background(), actor, in)
			requireHTTPError(t, err, http.StatusBadRequest, tc.msg)
		})
	}
	assert.Empty(t, s.AuditLogEntries())
}

func TestPromoCodeUsecase_ListFilters(t *testing.T) {
	s := newStore()
	uc := usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), fixedClock{t: now}, zap.NewNop())
	seedPromo(s, "SUMMER10", model.PromoCodeTypePercentage, 10)
	seedPromo(s, "WINTER300", model.PromoCodeTypeFixedAmount, 300)
	seedPromo(s, "OLD5", model.PromoCodeTypePercentage, 5, func(p *model.PromoCode) { p.IsActive = false })

	all, err := uc.List(context.Background(), usecase.ListPromoCodesInput{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pct, err := uc.List(context.Background(), usecase.ListPromoCodesInput{Type: "PERCENTAGE", Status: "active"})
	require.NoError(t, err)
	require.Len(t, pct, 1)
	assert.Equal(t, "SUMMER10", pct[0].Code)

	found, err := uc.List(context.Background(), usecase.ListPromoCodesInput{Search: "winter"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "WINTER300", found[0].Code)

	_, err = uc.List(context.Background(), usecase.ListPromoCodesInput{Status: "expired"})
	requireHTTPError(t, err, http.StatusBadRequest, "invalid status")

	_, err = uc.List(context.Background(), usecase.ListPromoCodesInput{Type: "BOGO"})
	requireHTTPError(t, err, http.StatusBadRequest, "invalid type")
}

func TestPromoCodeUsecase_UpdateKeepsCodeAndUsage(t *testing.T) {
	s := newStore()
	uc := usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), fixedClock{t: now}, zap.NewNop())
	p := seedPromo(s, "TEN", model.PromoCodeTypePercentage, 10, func(p *model.PromoCode) {
		p.MaxUses = int64p(10)
		p.CurrentUses = 4
	})

	name := "Ten percent"
	v := decimalOf(15)
	updated, err := uc.Update(context.Background(), actor, p.ID, usecase.UpdatePromoCodeInput{Name: &name, Value: &v})
	require.NoError(t, err)
	assert.Equal(t, "TEN", updated.Code)
	assert.Equal(t, "Ten percent", updated.Name)
	assert.True(t, updated.Value.Equal(v))
	assert.Equal(t, int64(4), updated.CurrentUses)

	_, err = uc.Update(context.Background(), actor, p.ID, usecase.UpdatePromoCodeInput{MaxUses: int64p(3)})
	requireHTTPError(t, err, http.StatusBadRequest, "maxUses cannot be lower than currentUses")

	_, err = uc.Update(context.Background(), actor, 999, usecase.UpdatePromoCodeInput{Name: &name})
	requireHTTPError(t, err, http.StatusNotFound, "promo code not found")

	logs := s.AuditLogEntries()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdatePromoCode, logs[0].Action)
	assert.Contains(t, logs[0].BeforeJSON, `"name":"TEN"`)
	assert.Contains(t, logs[0].AfterJSON, `"name":"Ten percent"`)
}

func TestPromoCodeUsecase_Delete(t *testing.T) {
	s := newStore()
	uc := usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), fixedClock{t: now}, zap.NewNop())
	p := seedPromo(s, "BYE", model.PromoCodeTypeFixedAmount, 100)

	require.NoError(t, uc.Delete(context.Background(), actor, p.ID))
	_, ok := s.Promo(p.ID)
	assert.False(t, ok)

	err := uc.Delete(context.Background(), actor, p.ID)
	requireHTTPError(t, err, http.StatusNotFound, "promo code not found")

	_, err = uc.Get(context.Background(), p.ID)
	requireHTTPError(t, err, http.StatusNotFound, "promo code not found")
}

func TestPromoCodeUsecase_Validate(t *testing.T) {
	s := newStore()
	uc := usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), fixedClock{t: now}, zap.NewNop())

	seedPromo(s, "P25", model.PromoCodeTypePercentage, 25)
	seedPromo(s, "F500", model.PromoCodeTypeFixedAmount, 500)
	seedPromo(s, "MIN1000", model.PromoCodeTypeFixedAmount, 100, func(p *model.PromoCode) { p.MinOrderAmount = int64p(1000) })
	seedPromo(s, "EXPIRED", model.PromoCodeTypeFixedAmount, 100, func(p *model.PromoCode) { p.ValidUntil = now.Add(-time.Second) })
	seedPromo(s, "FUTURE", model.PromoCodeTypeFixedAmount, 100, func(p *model.PromoCode) { p.ValidFrom = now.Add(time.Second) })
	seedPromo(s, "OFF", model.PromoCodeTypeFixedAmount, 100, func(p *model.PromoCode) { p.IsActive = false })

	cases := []struct {
		code     string
		amount   int64
		valid    bool
		discount int64
		reason   pricing.Reason
	}{
		{"P25", 2000, true, 500, ""},
		{"F500", 300, true, 300, ""},
		{"MIN1000", 999, false, 0, pricing.ReasonBelowMinimum},
		{"MIN1000", 1000, true, 100, ""},
		{"EXPIRED", 1000, false, 0, pricing.ReasonExpired},
		{"FUTURE", 1000, false, 0, pricing.ReasonNotYetValid},
		{"OFF", 1000, false, 0, pricing.ReasonInactive},
		{"MISSING", 1000, false, 0, pricing.ReasonNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			res, err := uc.Validate(context.Background(), usecase.ValidatePromoCodeInput{Code: tc.code, OrderAmount: tc.amount})
			require.NoError(t, err)
			assert.Equal(t, tc.valid, res.IsValid)
			assert.Equal(t, tc.discount, res.DiscountAmount)
			assert.Equal(t, tc.reason, res.Reason)
			if tc.valid {
				require.NotNil(t, res.PromoCode)
				assert.Empty(t, res.Error)
			} else {
				assert.Nil(t, res.PromoCode)
				assert.NotEmpty(t, res.Error)
			}
		})
	}

	_, err := uc.Validate(context.Background(), usecase.ValidatePromoCodeInput{Code: "", OrderAmount: 100})
	requireHTTPError(t, err, http.StatusBadRequest, "code is required")

	_, err = uc.Validate(context.Background(), usecase.ValidatePromoCodeInput{Code: "P25", OrderAmount: -5})
	requireHTTPError(t, err, http.StatusBadRequest, "orderAmount must be > 0")
}
