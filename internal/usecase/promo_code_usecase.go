package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var maxPercentage = decimal.NewFromInt(100)

type PromoCodeUsecase struct {
	promos    repo.PromoCodeRepository
	auditRepo repo.AuditLogRepository
	clock     Clock
	logger    *zap.Logger
}

func NewPromoCodeUsecase(promos repo.PromoCodeRepository, auditRepo repo.AuditLogRepository, clock Clock, logger *zap.Logger) *PromoCodeUsecase {
	return &PromoCodeUsecase{promos: promos, auditRepo: auditRepo, clock: clock, logger: logger}
}

type CreatePromoCodeInput struct {
	Code           string
	Name           string
	Description    *string
	Type           string
	Value          decimal.Decimal
	MinOrderAmount *int64
	MaxUses        *int64
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	IsActive       *bool
}

// nilのフィールドは変更しない。codeは変更できない
type UpdatePromoCodeInput struct {
	Name           *string
	Description    *string
	Type           *string
	Value          *decimal.Decimal
	MinOrderAmount *int64
	MaxUses        *int64
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	IsActive       *bool
}

type ListPromoCodesInput struct {
	Type   string
	Status string // active / inactive
	Search string
}

type ValidatePromoCodeInput struct {
	Code        string
	OrderAmount int64
}

type ValidationResult struct {
	IsValid        bool             `json:"isValid"`
	DiscountAmount int64            `json:"discountAmount,omitempty"`
	PromoCode      *model.PromoCode `json:"promoCode,omitempty"`
	Error          string           `json:"error,omitempty"`
	Reason         pricing.Reason   `json:"reason,omitempty"`
}

func (u *PromoCodeUsecase) Create(ctx context.Context, actor string, in CreatePromoCodeInput) (model.PromoCode, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "code required")
	}
	if len(code) > 64 || strings.ContainsAny(code, " \t\r\n") {
		return model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "invalid code")
	}
	if in.ValidFrom == nil || in.ValidUntil == nil {
		return model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "validFrom and validUntil required")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	p := model.PromoCode{
		Code:           code,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Type:           model.PromoCodeType(strings.TrimSpace(in.Type)),
		Value:          in.Value,
		MinOrderAmount: in.MinOrderAmount,
		MaxUses:        in.MaxUses,
		CurrentUses:    0,
		ValidFrom:      *in.ValidFrom,
		ValidUntil:     *in.ValidUntil,
		IsActive:       active,
	}
	if err := validatePromoCode(p); err != nil {
		return model.PromoCode{}, err
	}

	created, err := u.promos.Create(ctx, p)
	if errors.Is(err, repo.ErrDuplicate) {
		return model.PromoCode{}, NewHTTPError(http.StatusConflict, "promo code already exists")
	}
	if err != nil {
		u.logger.Error("create promo code failed", zap.String("code", code), zap.Error(err))
		return model.PromoCode{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.audit(ctx, actor, model.AuditActionCreatePromoCode, created.ID, nil, created)
	return created, nil
}

func (u *PromoCodeUsecase) List(ctx context.Context, in ListPromoCodesInput) ([]model.PromoCode, error) {
	var f repo.PromoCodeListFilter

	if t := strings.TrimSpace(in.Type); t != "" {
		typ := model.PromoCodeType(t)
		if !typ.Valid() {
			return []model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "invalid type")
		}
		f.Type = &typ
	}

	switch strings.TrimSpace(in.Status) {
	case "":
	case "active":
		v := true
		f.Active = &v
	case "inactive":
		v := false
		f.Active = &v
	default:
		return []model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	if len(in.Search) > 100 {
		return []model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "search too long")
	}
	f.Search = in.Search

	items, err := u.promos.List(ctx, f)
	if err != nil {
		u.logger.Error("list promo codes failed", zap.Error(err))
		return []model.PromoCode{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return items, nil
}

func (u *PromoCodeUsecase) Get(ctx context.Context, id int64) (model.PromoCode, error) {
	if id <= 0 {
		return model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := u.promos.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.PromoCode{}, NewHTTPError(http.StatusNotFound, "promo code not found")
	}
	if err != nil {
		return model.PromoCode{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p, nil
}

func (u *PromoCodeUsecase) Update(ctx context.Context, actor string, id int64, in UpdatePromoCodeInput) (model.PromoCode, error) {
	before, err := u.Get(ctx, id)
	if err != nil {
		return model.PromoCode{}, err
	}

	p := before
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Type != nil {
		p.Type = model.PromoCodeType(strings.TrimSpace(*in.Type))
	}
	if in.Value != nil {
		p.Value = *in.Value
	}
	if in.MinOrderAmount != nil {
		p.MinOrderAmount = in.MinOrderAmount
	}
	if in.MaxUses != nil {
		p.MaxUses = in.MaxUses
	}
	if in.ValidFrom != nil {
		p.ValidFrom = *in.ValidFrom
	}
	if in.ValidUntil != nil {
		p.ValidUntil = *in.ValidUntil
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if err := validatePromoCode(p); err != nil {
		return model.PromoCode{}, err
	}
	// 使用済み回数より小さい上限にはできない
	if p.HasUsageCap() && *p.MaxUses < p.CurrentUses {
		return model.PromoCode{}, NewHTTPError(http.StatusBadRequest, "maxUses cannot be lower than currentUses")
	}

	err = u.promos.Update(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return model.PromoCode{}, NewHTTPError(http.StatusNotFound, "promo code not found")
	}
	if err != nil {
		u.logger.Error("update promo code failed", zap.Int64("promo_code_id", id), zap.Error(err))
		return model.PromoCode{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.audit(ctx, actor, model.AuditActionUpdatePromoCode, id, before, p)
	return p, nil
}

func (u *PromoCodeUsecase) Delete(ctx context.Context, actor string, id int64) error {
	if id <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	err := u.promos.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "promo code not found")
	}
	if err != nil {
		u.logger.Error("delete promo code failed", zap.Int64("promo_code_id", id), zap.Error(err))
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	u.audit(ctx, actor, model.AuditActionDeletePromoCode, id, nil, nil)
	return nil
}

// 読み取りのみ。currentUsesは支払い確定時にしか増えない
func (u *PromoCodeUsecase) Validate(ctx context.Context, in ValidatePromoCodeInput) (ValidationResult, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return ValidationResult{}, NewHTTPError(http.StatusBadRequest, "code is required")
	}
	if in.OrderAmount <= 0 {
		return ValidationResult{}, NewHTTPError(http.StatusBadRequest, "orderAmount must be > 0")
	}

	p, err := u.promos.FindByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		return rejected(pricing.ErrNotFound), nil
	}
	if err != nil {
		u.logger.Error("find promo code failed", zap.Error(err))
		return ValidationResult{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	discount, err := pricing.Evaluate(p, in.OrderAmount, u.clock.Now())
	if err != nil {
		return rejected(err), nil
	}

	return ValidationResult{
		IsValid:        true,
		DiscountAmount: discount,
		PromoCode:      &p,
	}, nil
}

func rejected(err error) ValidationResult {
	res := ValidationResult{IsValid: false, Error: err.Error()}
	if re, ok := pricing.AsRejected(err); ok {
		res.Reason = re.Reason
	}
	return res
}

func validatePromoCode(p model.PromoCode) error {
	if p.Name == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if len(p.Name) > 255 {
		return NewHTTPError(http.StatusBadRequest, "name too long")
	}
	if !p.Type.Valid() {
		return NewHTTPError(http.StatusBadRequest, "invalid type")
	}
	if !p.Value.IsPositive() {
		return NewHTTPError(http.StatusBadRequest, "value must be > 0")
	}
	if p.Type == model.PromoCodeTypePercentage && p.Value.GreaterThan(maxPercentage) {
		return NewHTTPError(http.StatusBadRequest, "percentage value must be <= 100")
	}
	if p.MinOrderAmount != nil && *p.MinOrderAmount < 0 {
		return NewHTTPError(http.StatusBadRequest, "minOrderAmount must be >= 0")
	}
	if p.MaxUses != nil && *p.MaxUses < 0 {
		return NewHTTPError(http.StatusBadRequest, "maxUses must be >= 0")
	}
	if p.ValidFrom.After(p.ValidUntil) {
		return NewHTTPError(http.StatusBadRequest, "validFrom must be <= validUntil")
	}
	return nil
}

// 監査ログは本体の操作が終わった後なので失敗してもエラーにしない
func (u *PromoCodeUsecase) audit(ctx context.Context, actor string, action model.AuditAction, id int64, before, after interface{}) {
	err := u.auditRepo.Create(ctx, model.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: model.AuditResourcePromoCode,
		ResourceID:   id,
		BeforeJSON:   toJSON(before),
		AfterJSON:    toJSON(after),
		CreatedAt:    u.clock.Now(),
	})
	if err != nil {
		u.logger.Warn("audit log write failed", zap.String("action", string(action)), zap.Int64("resource_id", id), zap.Error(err))
	}
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
