package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type productRepoMock struct{ mock.Mock }

func (m *productRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *productRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *productRepoMock) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	panic("not used in ProductUsecase tests")
}

func (m *productRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

func (m *productRepoMock) Update(ctx context.Context, p model.Product) error {
	return m.Called(p).Error(0)
}

func (m *productRepoMock) SoftDelete(ctx context.Context, id int64) error {
	return m.Called(id).Error(0)
}

// =====================
// Public: List / Detail
// =====================

func TestProductUsecase_ListPublicProducts_InvalidInput(t *testing.T) {
	uc := usecase.NewProductUsecase(new(productRepoMock), fixedClock{t: now})

	cases := []struct {
		name string
		in   usecase.ListProductsInput
		msg  string
	}{
		{"page", usecase.ListProductsInput{Page: 0, Limit: 20}, "invalid page"},
		{"limit", usecase.ListProductsInput{Page: 1, Limit: 101}, "invalid limit"},
		{"sort", usecase.ListProductsInput{Page: 1, Limit: 20, Sort: "random"}, "invalid sort"},
		{"price range", usecase.ListProductsInput{Page: 1, Limit: 20, MinPrice: int64p(500), MaxPrice: int64p(100)}, "min_price must be <= max_price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.ListPublicProducts(context.Background(), tc.in)
			requireHTTPError(t, err, http.StatusBadRequest, tc.msg)
		})
	}
}

func TestProductUsecase_ListPublicProducts_Success(t *testing.T) {
	pRepo := new(productRepoMock)
	uc := usecase.NewProductUsecase(pRepo, fixedClock{t: now})

	q := repo.ProductListQuery{Page: 1, Limit: 20, Q: "train", Category: "toys", Sort: "price_asc"}
	pRepo.On("ListPublic", q).Return([]model.Product{{ID: 1, Name: "Wooden train"}}, int64(1), nil)

	out, err := uc.ListPublicProducts(context.Background(), usecase.ListProductsInput{Page: 1, Limit: 20, Q: " train ", Category: "toys", Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.Limit)
	require.Len(t, out.Items, 1)
	pRepo.AssertExpectations(t)
}

func TestProductUsecase_GetProductDetail(t *testing.T) {
	pRepo := new(productRepoMock)
	uc := usecase.NewProductUsecase(pRepo, fixedClock{t: now})
	pRepo.On("FindByID", int64(1)).Return(model.Product{ID: 1, Name: "Kite"}, nil)
	pRepo.On("FindByID", int64(2)).Return(nil, repo.ErrNotFound)
	pRepo.On("FindByID", int64(3)).Return(nil, errors.New("db down"))

	p, err := uc.GetProductDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Kite", p.Name)

	_, err = uc.GetProductDetail(context.Background(), 2)
	requireHTTPError(t, err, http.StatusNotFound, "not found")

	_, err = uc.GetProductDetail(context.Background(), 3)
	requireHTTPError(t, err, http.StatusInternalServerError, "db error")
}

// =====================
// Admin: Create / Update / Delete
// =====================

func TestProductUsecase_AdminCreateProduct(t *testing.T) {
	pRepo := new(productRepoMock)
	uc := usecase.NewProductUsecase(pRepo, fixedClock{t: now})

	pRepo.On("Create", mock.MatchedBy(func(p model.Product) bool {
		return p.Name == "Robot" && p.Price == 4500 && p.CreatedAt.Equal(now) &&
			p.Images != nil && p.Categories != nil && p.Characteristics != nil
	})).Return(model.Product{ID: 10, Name: "Robot", Price: 4500}, nil)

	created, err := uc.AdminCreateProduct(context.Background(), usecase.AdminProductInput{Name: " Robot ", Price: 4500})
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID)
	pRepo.AssertExpectations(t)

	_, err = uc.AdminCreateProduct(context.Background(), usecase.AdminProductInput{Name: "X", Characteristics: []model.Characteristic{{Key: " ", Value: "1"}}})
	requireHTTPError(t, err, http.StatusBadRequest, "characteristic key required")

	_, err = uc.AdminCreateProduct(context.Background(), usecase.AdminProductInput{Name: "X", Price: -1})
	requireHTTPError(t, err, http.StatusBadRequest, "price must be >= 0")
}

func TestProductUsecase_AdminUpdateAndDelete(t *testing.T) {
	pRepo := new(productRepoMock)
	uc := usecase.NewProductUsecase(pRepo, fixedClock{t: now})

	pRepo.On("Update", mock.MatchedBy(func(p model.Product) bool { return p.ID == 5 })).Return(nil)
	pRepo.On("Update", mock.MatchedBy(func(p model.Product) bool { return p.ID == 6 })).Return(repo.ErrNotFound)
	pRepo.On("SoftDelete", int64(5)).Return(nil)
	pRepo.On("SoftDelete", int64(6)).Return(repo.ErrNotFound)

	require.NoError(t, uc.AdminUpdateProduct(context.Background(), 5, usecase.AdminProductInput{Name: "Kite", Price: 100}))
	requireHTTPError(t, uc.AdminUpdateProduct(context.Background(), 6, usecase.AdminProductInput{Name: "Kite"}), http.StatusNotFound, "not found")
	requireHTTPError(t, uc.AdminUpdateProduct(context.Background(), 0, usecase.AdminProductInput{Name: "Kite"}), http.StatusBadRequest, "invalid product id")

	require.NoError(t, uc.AdminDeleteProduct(context.Background(), 5))
	requireHTTPError(t, uc.AdminDeleteProduct(context.Background(), 6), http.StatusNotFound, "not found")
	pRepo.AssertExpectations(t)
}
