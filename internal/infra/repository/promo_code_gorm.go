package repository

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type PromoCodeGormRepository struct {
	db *gorm.DB
}

func NewPromoCodeGormRepository(db *gorm.DB) *PromoCodeGormRepository {
	return &PromoCodeGormRepository{db: db}
}

func (r *PromoCodeGormRepository) Create(ctx context.Context, p model.PromoCode) (model.PromoCode, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return model.PromoCode{}, repo.ErrDuplicate
		}
		return model.PromoCode{}, err
	}
	return p, nil
}

func (r *PromoCodeGormRepository) FindByID(ctx context.Context, id int64) (model.PromoCode, error) {
	var p model.PromoCode
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if isNotFound(err) {
		return model.PromoCode{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PromoCode{}, err
	}
	return p, nil
}

func (r *PromoCodeGormRepository) FindByCode(ctx context.Context, code string) (model.PromoCode, error) {
	var p model.PromoCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&p).Error
	if isNotFound(err) {
		return model.PromoCode{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PromoCode{}, err
	}
	return p, nil
}

func (r *PromoCodeGormRepository) List(ctx context.Context, f repo.PromoCodeListFilter) ([]model.PromoCode, error) {
	q := r.db.WithContext(ctx).Model(&model.PromoCode{})

	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("code ILIKE ? OR name ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var items []model.PromoCode
	if err := q.Order("created_at desc").Order("id desc").Find(&items).Error; err != nil {
		return []model.PromoCode{}, err
	}
	return items, nil
}

// codeとcurrent_usesは更新しない
func (r *PromoCodeGormRepository) Update(ctx context.Context, p model.PromoCode) error {
	res := r.db.WithContext(ctx).Model(&model.PromoCode{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":             p.Name,
		"description":      p.Description,
		"type":             p.Type,
		"value":            p.Value,
		"min_order_amount": p.MinOrderAmount,
		"max_uses":         p.MaxUses,
		"valid_from":       p.ValidFrom,
		"valid_until":      p.ValidUntil,
		"is_active":        p.IsActive,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 物理削除。注文側のpromo_code_idは弱参照なので残る
func (r *PromoCodeGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.PromoCode{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 上限に達していないときだけ+1（同時実行でもmax_usesを超えない）
func (r *PromoCodeGormRepository) IncrementUsage(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PromoCode{}).
		Where("id = ? AND (max_uses IS NULL OR max_uses = 0 OR current_uses < max_uses)", id).
		UpdateColumn("current_uses", gorm.Expr("current_uses + ?", 1))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
