// Package fulfillment は支払い確定などのcommit後に走る外部連携をまとめる。
// ここでの失敗はログに残すだけで、呼び出し元の結果は変えない。
package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Notification struct {
	Event model.OrderEvent
	Order model.Order
	Items []model.OrderItem
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// 配送業者への注文登録。戻り値は業者側の識別子
type CarrierRegistrar interface {
	RegisterOrder(ctx context.Context, order model.Order, items []model.OrderItem) (string, error)
}

type Dispatcher struct {
	notifiers []Notifier
	carrier   CarrierRegistrar
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// carrierはnilでもよい
func NewDispatcher(logger *zap.Logger, timeout time.Duration, carrier CarrierRegistrar, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		notifiers: notifiers,
		carrier:   carrier,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dispatch はすぐ戻る。処理は別goroutineで行う
func (d *Dispatcher) Dispatch(order model.Order, items []model.OrderItem, event model.OrderEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("dispatch panic", zap.Int64("order_id", order.ID), zap.Any("panic", r))
			}
		}()

		// リクエストのctxはcommit後に切れるので使わない
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		_ = d.Run(ctx, Notification{Event: event, Order: order, Items: items})
	}()
}

// Run は全ての通知先と配送登録を並行に実行する。
// 1つが失敗しても他は止めない。戻り値は最初のエラー（ログ済み）。
func (d *Dispatcher) Run(ctx context.Context, n Notification) error {
	var g errgroup.Group

	for _, nt := range d.notifiers {
		g.Go(func() error {
			if err := nt.Notify(ctx, n); err != nil {
				d.logger.Warn("notification failed",
					zap.String("notifier", nt.Name()),
					zap.String("event", string(n.Event)),
					zap.Int64("order_id", n.Order.ID),
					zap.Error(err),
				)
				return fmt.Errorf("%s: %w", nt.Name(), err)
			}
			return nil
		})
	}

	if d.needsCarrier(n) {
		g.Go(func() error {
			ref, err := d.carrier.RegisterOrder(ctx, n.Order, n.Items)
			if err != nil {
				d.logger.Warn("carrier registration failed",
					zap.Int64("order_id", n.Order.ID),
					zap.String("order_number", n.Order.OrderNumber),
					zap.Error(err),
				)
				return fmt.Errorf("carrier: %w", err)
			}
			d.logger.Info("carrier order registered",
				zap.Int64("order_id", n.Order.ID),
				zap.String("carrier_ref", ref),
			)
			return nil
		})
	}

	return g.Wait()
}

func (d *Dispatcher) needsCarrier(n Notification) bool {
	return d.carrier != nil &&
		n.Event == model.OrderEventPaid &&
		n.Order.DeliveryType == model.DeliveryTypeDelivery
}

// Wait は実行中のDispatchを待つ。ctxが先に終わればそのエラーを返す
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
