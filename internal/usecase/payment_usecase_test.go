package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	"storefront/internal/infra/payment"
	"storefront/internal/repository/memtest"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentFixture struct {
	store    *memtest.Store
	disp     *dispatcherMock
	orders   *usecase.OrderUsecase
	payments *usecase.PaymentUsecase
	promos   *usecase.PromoCodeUsecase
}

func newPaymentFixture(verifier usecase.SignatureVerifier) *paymentFixture {
	s := newStore()
	disp := new(dispatcherMock)
	clock := fixedClock{t: now}
	l := zap.NewNop()
	return &paymentFixture{
		store:    s,
		disp:     disp,
		orders:   usecase.NewOrderUsecase(s, clock, &seqIDs{}, "RUB", l),
		payments: usecase.NewPaymentUsecase(s, verifier, disp, clock, l),
		promos:   usecase.NewPromoCodeUsecase(s.Promos(), s.AuditLogs(), clock, l),
	}
}

func (f *paymentFixture) orderWithPromo(t *testing.T, promo model.PromoCode, price, discount int64) usecase.OrderOutput {
	t.Helper()
	prod := seedProduct(f.store, "Kite", price)
	in := pickup(prod.ID, 1)
	in.DiscountAmount = discount
	in.PromoCodeID = &promo.ID
	out, err := f.orders.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	return out
}

var completed = usecase.SuccessPageConfirmation{State: "COMPLETE"}

func TestScenarioA_ValidateOrderPay(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	ctx := context.Background()

	created, err := f.promos.Create(ctx, "admin@example.com", usecase.CreatePromoCodeInput{
		Code:           "SAVE20",
		Name:           "Save 20",
		Type:           "PERCENTAGE",
		Value:          decimalOf(20),
		MinOrderAmount: int64p(1000),
		MaxUses:        int64p(100),
		ValidFrom:      timep(now.Add(-1)),
		ValidUntil:     timep(now.AddDate(0, 1, 0)),
	})
	require.NoError(t, err)

	res, err := f.promos.Validate(ctx, usecase.ValidatePromoCodeInput{Code: "SAVE20", OrderAmount: 1500})
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, int64(300), res.DiscountAmount)

	order := f.orderWithPromo(t, created, 1500, res.DiscountAmount)
	assert.Equal(t, int64(1200), order.TotalAmount)

	f.disp.On("Dispatch", order.ID, model.OrderEventPaid).Once()
	paid, err := f.payments.ConfirmPayment(ctx, order.ID, completed)
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)

	p, _ := f.store.Promo(created.ID)
	assert.Equal(t, int64(1), p.CurrentUses)
	f.disp.AssertExpectations(t)
}

func TestScenarioB_ExhaustedCodeRejected(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	seedPromo(f.store, "ONCE", model.PromoCodeTypeFixedAmount, 100, func(p *model.PromoCode) {
		p.MaxUses = int64p(1)
		p.CurrentUses = 1
	})

	res, err := f.promos.Validate(context.Background(), usecase.ValidatePromoCodeInput{Code: "ONCE", OrderAmount: 1000})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, pricing.ReasonUsageExhausted, res.Reason)
	assert.Contains(t, res.Error, "usage limit")
}

func TestScenarioC_AlreadyPaidRejected(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	promo := seedPromo(f.store, "TEN", model.PromoCodeTypePercentage, 10)
	order := f.orderWithPromo(t, promo, 1000, 100)

	f.disp.On("Dispatch", order.ID, model.OrderEventPaid).Once()
	_, err := f.payments.ConfirmPayment(context.Background(), order.ID, completed)
	require.NoError(t, err)

	_, err = f.payments.ConfirmPayment(context.Background(), order.ID, completed)
	requireHTTPError(t, err, http.StatusBadRequest, "order already paid")

	p, _ := f.store.Promo(promo.ID)
	assert.Equal(t, int64(1), p.CurrentUses)
	f.disp.AssertExpectations(t)
}

func TestConfirmPayment_ConcurrentCallsPayOnce(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	promo := seedPromo(f.store, "TEN", model.PromoCodeTypePercentage, 10)
	order := f.orderWithPromo(t, promo, 1000, 100)
	f.disp.On("Dispatch", order.ID, model.OrderEventPaid).Once()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.ConfirmPayment(context.Background(), order.ID, completed)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	require.Len(t, errs, n-1)
	for _, err := range errs {
		requireHTTPError(t, err, http.StatusBadRequest, "order already paid")
	}
	p, _ := f.store.Promo(promo.ID)
	assert.Equal(t, int64(1), p.CurrentUses)
	f.disp.AssertExpectations(t)
}

func TestConfirmPayment_UsageNeverExceedsCap(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	promo := seedPromo(f.store, "TWICE", model.PromoCodeTypeFixedAmount, 50, func(p *model.PromoCode) {
		p.MaxUses = int64p(2)
	})
	f.disp.On("Dispatch", mock.Anything, model.OrderEventPaid)

	// 3件とも検証時点では有効だった注文
	var orders []usecase.OrderOutput
	for i := 0; i < 3; i++ {
		orders = append(orders, f.orderWithPromo(t, promo, 500, 50))
	}
	for _, o := range orders {
		paid, err := f.payments.ConfirmPayment(context.Background(), o.ID, completed)
		require.NoError(t, err)
		assert.Equal(t, "PAID", paid.Status)
	}

	p, _ := f.store.Promo(promo.ID)
	assert.Equal(t, int64(2), p.CurrentUses)

	res, err := f.promos.Validate(context.Background(), usecase.ValidatePromoCodeInput{Code: "TWICE", OrderAmount: 500})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, pricing.ReasonUsageExhausted, res.Reason)
}

func TestConfirmPayment_DeletedPromoStillPays(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	promo := seedPromo(f.store, "GONE", model.PromoCodeTypeFixedAmount, 100)
	order := f.orderWithPromo(t, promo, 1000, 100)
	require.NoError(t, f.promos.Delete(context.Background(), "admin@example.com", promo.ID))

	f.disp.On("Dispatch", order.ID, model.OrderEventPaid).Once()
	paid, err := f.payments.ConfirmPayment(context.Background(), order.ID, completed)
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)
	assert.Equal(t, int64(900), paid.TotalAmount)
}

func TestValidate_DoesNotConsumeUsage(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	promo := seedPromo(f.store, "TEN", model.PromoCodeTypePercentage, 10, func(p *model.PromoCode) {
		p.MaxUses = int64p(1)
	})

	for i := 0; i < 5; i++ {
		res, err := f.promos.Validate(context.Background(), usecase.ValidatePromoCodeInput{Code: "TEN", OrderAmount: 1000})
		require.NoError(t, err)
		assert.True(t, res.IsValid)
	}
	p, _ := f.store.Promo(promo.ID)
	assert.Equal(t, int64(0), p.CurrentUses)
}

func TestConfirmPayment_SignedWebhook(t *testing.T) {
	verifier := payment.NewHMACVerifier("secret")
	f := newPaymentFixture(verifier)
	promo := seedPromo(f.store, "TEN", model.PromoCodeTypePercentage, 10)
	order := f.orderWithPromo(t, promo, 1000, 100)

	fields := url.Values{}
	fields.Set("payment_status", "success")
	fields.Set("order_id", int64String(order.ID))

	t.Run("bad signature leaves order untouched", func(t *testing.T) {
		_, err := f.payments.ConfirmPayment(context.Background(), order.ID, usecase.SignedWebhook{Fields: fields, Signature: "00ff"})
		requireHTTPError(t, err, http.StatusBadRequest, "invalid signature")

		o, _ := f.store.Order(order.ID)
		assert.Equal(t, model.OrderStatusCreated, o.Status)
		assert.Nil(t, o.PaidAt)
		p, _ := f.store.Promo(promo.ID)
		assert.Equal(t, int64(0), p.CurrentUses)
		f.disp.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("not successful", func(t *testing.T) {
		failed := url.Values{"order_id": {int64String(order.ID)}, "payment_status": {"declined"}}
		_, err := f.payments.ConfirmPayment(context.Background(), order.ID, usecase.SignedWebhook{Fields: failed, Signature: verifier.Sign(failed)})
		requireHTTPError(t, err, http.StatusBadRequest, "payment is not successful")
	})

	t.Run("valid signature pays", func(t *testing.T) {
		f.disp.On("Dispatch", order.ID, model.OrderEventPaid).Once()
		paid, err := f.payments.ConfirmPayment(context.Background(), order.ID, usecase.SignedWebhook{Fields: fields, Signature: verifier.Sign(fields)})
		require.NoError(t, err)
		assert.Equal(t, "PAID", paid.Status)
		require.NotNil(t, paid.PaidAt)
		assert.True(t, paid.PaidAt.Equal(now))
		f.disp.AssertExpectations(t)
	})
}

func TestConfirmPayment_Rejections(t *testing.T) {
	verifier := new(verifierMock)
	verifier.On("Verify", mock.Anything, "good").Return(true)
	f := newPaymentFixture(verifier)
	prod := seedProduct(f.store, "Kite", 1000)
	order, err := f.orders.CreateOrder(context.Background(), pickup(prod.ID, 1))
	require.NoError(t, err)

	cases := []struct {
		name    string
		orderID int64
		cb      usecase.PaymentCallback
		status  int
		msg     string
	}{
		{"invalid id", 0, completed, http.StatusBadRequest, "invalid id"},
		{"state not complete", order.ID, usecase.SuccessPageConfirmation{State: "PENDING"}, http.StatusBadRequest, "payment is not complete"},
		{"other order in payload", order.ID, usecase.SignedWebhook{Fields: url.Values{"order_id": {"999"}, "payment_status": {"success"}}, Signature: "good"}, http.StatusBadRequest, "order mismatch"},
		{"unknown order", 424242, completed, http.StatusNotFound, "order not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.payments.ConfirmPayment(context.Background(), tc.orderID, tc.cb)
			requireHTTPError(t, err, tc.status, tc.msg)
		})
	}
	f.disp.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestConfirmPayment_CancelledOrder(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	prod := seedProduct(f.store, "Kite", 1000)
	order, err := f.orders.CreateOrder(context.Background(), pickup(prod.ID, 1))
	require.NoError(t, err)

	admin := usecase.NewAdminOrderUsecase(f.store, f.disp, fixedClock{t: now}, zap.NewNop())
	f.disp.On("Dispatch", order.ID, model.OrderEventCancelled).Once()
	_, err = admin.UpdateStatus(context.Background(), "admin@example.com", order.ID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	require.NoError(t, err)

	_, err = f.payments.ConfirmPayment(context.Background(), order.ID, completed)
	requireHTTPError(t, err, http.StatusBadRequest, "cannot pay a cancelled order")
	f.disp.AssertExpectations(t)
}

func TestConfirmPayment_StorageFailureNotDispatched(t *testing.T) {
	f := newPaymentFixture(new(verifierMock))
	prod := seedProduct(f.store, "Kite", 1000)
	order, err := f.orders.CreateOrder(context.Background(), pickup(prod.ID, 1))
	require.NoError(t, err)

	f.store.FailTx = errors.New("connection reset")
	_, err = f.payments.ConfirmPayment(context.Background(), order.ID, completed)
	require.Error(t, err)

	o, _ := f.store.Order(order.ID)
	assert.Equal(t, model.OrderStatusCreated, o.Status)
	f.disp.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}
