package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type PromoCodeListFilter struct {
	Type   *model.PromoCodeType
	Active *bool
	// code/name/description の部分一致
	Search string
}

type PromoCodeRepository interface {
	Create(ctx context.Context, p model.PromoCode) (model.PromoCode, error)
	FindByID(ctx context.Context, id int64) (model.PromoCode, error)
	//完全一致（大文字小文字を区別）
	FindByCode(ctx context.Context, code string) (model.PromoCode, error)
	List(ctx context.Context, f PromoCodeListFilter) ([]model.PromoCode, error)
	Update(ctx context.Context, p model.PromoCode) error
	Delete(ctx context.Context, id int64) error

	//current_uses = current_uses + 1。上限に達していたら false
	IncrementUsage(ctx context.Context, id int64) (bool, error)
}
