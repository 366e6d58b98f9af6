// Package memtest はrepositoryインタフェースのメモリ実装。
// usecase/handlerのテスト専用。mainからは使わない。
package memtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type state struct {
	promos     map[int64]model.PromoCode
	products   map[int64]model.Product
	orders     map[int64]model.Order
	orderItems map[int64][]model.OrderItem
	auditLogs  []model.AuditLog
	nextID     int64
}

func (s *state) clone() *state {
	c := &state{
		promos:     make(map[int64]model.PromoCode, len(s.promos)),
		products:   make(map[int64]model.Product, len(s.products)),
		orders:     make(map[int64]model.Order, len(s.orders)),
		orderItems: make(map[int64][]model.OrderItem, len(s.orderItems)),
		auditLogs:  append([]model.AuditLog(nil), s.auditLogs...),
		nextID:     s.nextID,
	}
	for k, v := range s.promos {
		c.promos[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	return c
}

// Store は1つのmutexで全テーブルを守る。WithinTxの間はロックを保持し、エラーなら巻き戻す
type Store struct {
	mu  sync.Mutex
	st  *state
	Now func() time.Time

	// 次のWithinTxで返すエラー（失敗系テスト用）
	FailTx error
}

func NewStore() *Store {
	return &Store{
		st: &state{
			promos:     map[int64]model.PromoCode{},
			products:   map[int64]model.Product{},
			orders:     map[int64]model.Order{},
			orderItems: map[int64][]model.OrderItem{},
		},
		Now: time.Now,
	}
}

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

// locked=false はWithinTxの中（ロック取得済み）
type repos struct {
	s      *Store
	locked bool
}

func (r *repos) lock() func() {
	if !r.locked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (s *Store) Promos() repo.PromoCodeRepository { return &promoRepo{repos{s: s, locked: true}} }
func (s *Store) Products() repo.ProductRepository { return &productRepo{repos{s: s, locked: true}} }
func (s *Store) Orders() repo.OrderRepository { return &orderRepo{repos{s: s, locked: true}} }
func (s *Store) OrderItems() repo.OrderItemRepository { return &orderItemRepo{repos{s: s, locked: true}} }
func (s *Store) AuditLogs() repo.AuditLogRepository { return &auditRepo{repos{s: s, locked: true}} }

type txRepos struct{ s *Store }

func (t txRepos) Orders() repo.OrderRepository { return &orderRepo{repos{s: t.s}} }
func (t txRepos) OrderItems() repo.OrderItemRepository { return &orderItemRepo{repos{s: t.s}} }
func (t txRepos) Products() repo.ProductRepository { return &productRepo{repos{s: t.s}} }
func (t txRepos) PromoCodes() repo.PromoCodeRepository { return &promoRepo{repos{s: t.s}} }
func (t txRepos) AuditLogs() repo.AuditLogRepository { return &auditRepo{repos{s: t.s}} }

var _ repo.TransactionManager = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailTx != nil {
		err := s.FailTx
		s.FailTx = nil
		return err
	}

	snapshot := s.st.clone()
	if err := fn(txRepos{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// ---- テスト用の直接操作 ----

func (s *Store) PutPromo(p model.PromoCode) model.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	} else if p.ID > s.st.nextID {
		s.st.nextID = p.ID
	}
	s.st.promos[p.ID] = p
	return p
}

func (s *Store) PutProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	} else if p.ID > s.st.nextID {
		s.st.nextID = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Now()
	}
	s.st.products[p.ID] = p
	return p
}

func (s *Store) Promo(id int64) (model.PromoCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.promos[id]
	return p, ok
}

func (s *Store) Order(id int64) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	return o, ok
}

func (s *Store) AuditLogEntries() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.st.auditLogs...)
}

// ---- promo codes ----

type promoRepo struct{ repos }

func (r *promoRepo) Create(ctx context.Context, p model.PromoCode) (model.PromoCode, error) {
	defer r.lock()()
	for _, x := range r.s.st.promos {
		if x.Code == p.Code {
			return model.PromoCode{}, repo.ErrDuplicate
		}
	}
	p.ID = r.s.id()
	now := r.s.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.promos[p.ID] = p
	return p, nil
}

func (r *promoRepo) FindByID(ctx context.Context, id int64) (model.PromoCode, error) {
	defer r.lock()()
	p, ok := r.s.st.promos[id]
	if !ok {
		return model.PromoCode{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *promoRepo) FindByCode(ctx context.Context, code string) (model.PromoCode, error) {
	defer r.lock()()
	for _, p := range r.s.st.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return model.PromoCode{}, repo.ErrNotFound
}

func (r *promoRepo) List(ctx context.Context, f repo.PromoCodeListFilter) ([]model.PromoCode, error) {
	defer r.lock()()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := []model.PromoCode{}
	for _, p := range r.s.st.promos {
		if f.Type != nil && p.Type != *f.Type {
			continue
		}
		if f.Active != nil && p.IsActive != *f.Active {
			continue
		}
		if search != "" && !matchesPromo(p, search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func matchesPromo(p model.PromoCode, search string) bool {
	if strings.Contains(strings.ToLower(p.Code), search) || strings.Contains(strings.ToLower(p.Name), search) {
		return true
	}
	return p.Description != nil && strings.Contains(strings.ToLower(*p.Description), search)
}

func (r *promoRepo) Update(ctx context.Context, p model.PromoCode) error {
	defer r.lock()()
	cur, ok := r.s.st.promos[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Code = cur.Code
	p.CurrentUses = cur.CurrentUses
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = r.s.Now()
	r.s.st.promos[p.ID] = p
	return nil
}

func (r *promoRepo) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	if _, ok := r.s.st.promos[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.st.promos, id)
	return nil
}

func (r *promoRepo) IncrementUsage(ctx context.Context, id int64) (bool, error) {
	defer r.lock()()
	p, ok := r.s.st.promos[id]
	if !ok {
		return false, nil
	}
	if p.MaxUses != nil && *p.MaxUses > 0 && p.CurrentUses >= *p.MaxUses {
		return false, nil
	}
	p.CurrentUses++
	r.s.st.promos[id] = p
	return true, nil
}

// ---- products ----

type productRepo struct{ repos }

func (r *productRepo) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	defer r.lock()()
	name := strings.ToLower(strings.TrimSpace(q.Q))
	var hits []model.Product
	for _, p := range r.s.st.products {
		if p.DeletedAt.Valid {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if q.Category != "" && !contains(p.Categories, q.Category) {
			continue
		}
		if q.AgeGroup != "" && !contains(p.AgeGroups, q.AgeGroup) {
			continue
		}
		if q.MinPrice != nil && p.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && p.Price > *q.MaxPrice {
			continue
		}
		hits = append(hits, p)
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch q.Sort {
		case "price_asc":
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			return a.ID < b.ID
		case "price_desc":
			if a.Price != b.Price {
				return a.Price > b.Price
			}
			return a.ID > b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})

	total := int64(len(hits))
	start := (q.Page - 1) * q.Limit
	if start < 0 || start > len(hits) {
		start = len(hits)
	}
	end := start + q.Limit
	if end > len(hits) {
		end = len(hits)
	}
	return append([]model.Product{}, hits[start:end]...), total, nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	defer r.lock()()
	p, ok := r.s.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	defer r.lock()()
	out := make(map[int64]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.st.products[id]; ok && !p.DeletedAt.Valid {
			out[id] = p
		}
	}
	return out, nil
}

func (r *productRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	defer r.lock()()
	p.ID = r.s.id()
	now := r.s.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.products[p.ID] = p
	return p, nil
}

func (r *productRepo) Update(ctx context.Context, p model.Product) error {
	defer r.lock()()
	cur, ok := r.s.st.products[p.ID]
	if !ok || cur.DeletedAt.Valid {
		return repo.ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = r.s.Now()
	r.s.st.products[p.ID] = p
	return nil
}

func (r *productRepo) SoftDelete(ctx context.Context, id int64) error {
	defer r.lock()()
	p, ok := r.s.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return repo.ErrNotFound
	}
	p.DeletedAt = gorm.DeletedAt{Time: r.s.Now(), Valid: true}
	r.s.st.products[id] = p
	return nil
}

// ---- orders ----

type orderRepo struct{ repos }

func (r *orderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	defer r.lock()()
	o, ok := r.s.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// ロックはStore全体で取っているので FindByID と同じ
func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) Create(ctx context.Context, order model.Order) (int64, error) {
	defer r.lock()()
	for _, o := range r.s.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return 0, repo.ErrDuplicate
		}
	}
	order.ID = r.s.id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.s.Now()
	}
	r.s.st.orders[order.ID] = order
	return order.ID, nil
}

func (r *orderRepo) SetOrderNumber(ctx context.Context, orderID int64, number string) error {
	defer r.lock()()
	o, ok := r.s.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.OrderNumber = number
	r.s.st.orders[orderID] = o
	return nil
}

func (r *orderRepo) UpdateStatusIf(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	defer r.lock()()
	o, ok := r.s.st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = r.s.Now()
	r.s.st.orders[orderID] = o
	return true, nil
}

func (r *orderRepo) MarkPaid(ctx context.Context, orderID int64, paidAt time.Time) (bool, error) {
	defer r.lock()()
	o, ok := r.s.st.orders[orderID]
	if !ok || o.Status != model.OrderStatusCreated {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.PaidAt = &paidAt
	o.UpdatedAt = paidAt
	r.s.st.orders[orderID] = o
	return true, nil
}

func (r *orderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	defer r.lock()()
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var hits []model.Order
	for _, o := range r.s.st.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		hits = append(hits, o)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })

	total := int64(len(hits))
	start := (f.Page - 1) * f.Limit
	if start > len(hits) {
		start = len(hits)
	}
	end := start + f.Limit
	if end > len(hits) {
		end = len(hits)
	}
	return append([]model.Order{}, hits[start:end]...), total, nil
}

// ---- order items ----

type orderItemRepo struct{ repos }

func (r *orderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	defer r.lock()()
	for _, it := range items {
		it.ID = r.s.id()
		it.OrderID = orderID
		r.s.st.orderItems[orderID] = append(r.s.st.orderItems[orderID], it)
	}
	return nil
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	defer r.lock()()
	return append([]model.OrderItem{}, r.s.st.orderItems[orderID]...), nil
}

// ---- audit logs ----

type auditRepo struct{ repos }

func (r *auditRepo) Create(ctx context.Context, log model.AuditLog) error {
	defer r.lock()()
	log.ID = r.s.id()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.s.Now()
	}
	r.s.st.auditLogs = append(r.s.st.auditLogs, log)
	return nil
}

func (r *auditRepo) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	defer r.lock()()
	out := []model.AuditLog{}
	for i := len(r.s.st.auditLogs) - 1; i >= 0; i-- {
		l := r.s.st.auditLogs[i]
		if f.Actor != nil && l.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(out) {
		offset = len(out)
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
