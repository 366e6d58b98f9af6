package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 支払い確定の入力。SignedWebhook か SuccessPageConfirmation のどちらか
type PaymentCallback interface {
	paymentCallback()
}

// 決済事業者からの form-encoded webhook
type SignedWebhook struct {
	Fields    url.Values
	Signature string
}

// 決済完了ページからの確認 {source: "success_page", state: "COMPLETE"}
type SuccessPageConfirmation struct {
	State string
}

func (SignedWebhook) paymentCallback()           {}
func (SuccessPageConfirmation) paymentCallback() {}

const (
	webhookPaymentStatusSuccess = "success"
	successPageStateComplete    = "COMPLETE"
)

type PaymentUsecase struct {
	tx         repo.TransactionManager
	verifier   SignatureVerifier
	dispatcher OrderEventDispatcher
	clock      Clock
	logger     *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, verifier SignatureVerifier, dispatcher OrderEventDispatcher, clock Clock, logger *zap.Logger) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, verifier: verifier, dispatcher: dispatcher, clock: clock, logger: logger}
}

func (u *PaymentUsecase) ConfirmPayment(ctx context.Context, orderID int64, cb PaymentCallback) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	//DBに触る前に入力を確認する
	if err := u.checkCallback(orderID, cb); err != nil {
		return OrderOutput{}, err
	}

	var (
		paid  model.Order
		items []model.OrderItem
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := markOrderPaid(ctx, r, orderID, u.clock, u.logger)
		if err != nil {
			return err
		}
		its, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		paid, items = o, its
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("order paid",
		zap.Int64("order_id", paid.ID),
		zap.String("order_number", paid.OrderNumber),
		zap.String("source", callbackSource(cb)),
	)

	//commit後。失敗しても支払いは確定済み
	u.dispatcher.Dispatch(paid, items, model.OrderEventPaid)

	return toOrderOutput(paid, items, nil), nil
}

func (u *PaymentUsecase) checkCallback(orderID int64, cb PaymentCallback) error {
	switch p := cb.(type) {
	case SignedWebhook:
		if !u.verifier.Verify(p.Fields, p.Signature) {
			u.logger.Warn("payment webhook signature mismatch",
				zap.Int64("order_id", orderID),
				zap.Bool("signature_present", p.Signature != ""),
			)
			return NewHTTPError(http.StatusBadRequest, "invalid signature")
		}
		if ref := firstValue(p.Fields, "order_id"); ref != "" && ref != strconv.FormatInt(orderID, 10) {
			u.logger.Warn("payment webhook order mismatch", zap.Int64("order_id", orderID), zap.String("payload_order_id", ref))
			return NewHTTPError(http.StatusBadRequest, "order mismatch")
		}
		if st := firstValue(p.Fields, "payment_status"); st != webhookPaymentStatusSuccess {
			return NewHTTPError(http.StatusBadRequest, "payment is not successful")
		}
		return nil
	case SuccessPageConfirmation:
		if p.State != successPageStateComplete {
			return NewHTTPError(http.StatusBadRequest, "payment is not complete")
		}
		return nil
	default:
		return NewHTTPError(http.StatusBadRequest, "unsupported confirmation")
	}
}

// markOrderPaid は CREATED -> PAID とpromoの使用回数+1を呼び出し元のTx内で行う。
// 決済確認と管理画面のどちらからも使う。
func markOrderPaid(ctx context.Context, r repo.TxRepos, orderID int64, clock Clock, logger *zap.Logger) (model.Order, error) {
	//Tx内で読み直す（行ロック）
	o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		logger.Error("load order failed", zap.Int64("order_id", orderID), zap.Error(err))
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	switch o.Status {
	case model.OrderStatusCreated:
	case model.OrderStatusPaid:
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "order already paid")
	case model.OrderStatusCancelled:
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "cannot pay a cancelled order")
	default:
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "cannot pay order in status "+string(o.Status))
	}

	now := clock.Now()
	ok, err := r.Orders().MarkPaid(ctx, orderID, now)
	if err != nil {
		logger.Error("mark order paid failed", zap.Int64("order_id", orderID), zap.Error(err))
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !ok {
		//同時に別のリクエストが先に確定した
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "order already paid")
	}

	if o.PromoCodeID != nil {
		applied, err := r.PromoCodes().IncrementUsage(ctx, *o.PromoCodeID)
		if err != nil {
			logger.Error("increment promo usage failed", zap.Int64("order_id", orderID), zap.Int64("promo_code_id", *o.PromoCodeID), zap.Error(err))
			return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !applied {
			// 上限到達か削除済み。支払い自体は確定させる
			logger.Warn("promo usage not incremented: limit reached or code deleted",
				zap.Int64("order_id", orderID),
				zap.Int64("promo_code_id", *o.PromoCodeID),
			)
		}
	}

	o.Status = model.OrderStatusPaid
	o.PaidAt = &now
	o.UpdatedAt = now
	return o, nil
}

func callbackSource(cb PaymentCallback) string {
	switch cb.(type) {
	case SignedWebhook:
		return "webhook"
	case SuccessPageConfirmation:
		return "success_page"
	}
	return "unknown"
}

func firstValue(fields url.Values, key string) string {
	return fields.Get(key)
}
