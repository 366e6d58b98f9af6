package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/fulfillment"
	"storefront/internal/handler"
	"storefront/internal/infra/auth"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/carrier"
	"storefront/internal/infra/db"
	"storefront/internal/infra/notify"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const adminTokenTTL = 12 * time.Hour

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// CDEK未設定のときの見積もり
type unavailableQuotes struct{}

func (unavailableQuotes) Quote(ctx context.Context, req usecase.DeliveryQuoteRequest) (usecase.DeliveryQuote, error) {
	return usecase.DeliveryQuote{}, errors.New("delivery carrier is not configured")
}

func main() {
	// .envは任意
	_ = godotenv.Load()

	// promo codeのvalueは数値としてJSONに出す（"25"ではなく25）
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	l, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	if err := run(cfg, l); err != nil {
		l.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, l *zap.Logger) error {
	//DB接続
	gormDB, err := db.Connect(cfg, l)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	//Repository（GORM実装）生成
	promoRepo := infraRepo.NewPromoCodeGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	verifier := payment.NewHMACVerifier(cfg.PaymentWebhookSecret)

	//通知先
	var notifiers []fulfillment.Notifier
	if cfg.TelegramBotToken != "" {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.RabbitMQURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			// 通知は必須ではないので起動は続ける
			l.Warn("rabbitmq unavailable, order events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			notifiers = append(notifiers, pub)
		}
	}

	//配送（CDEK）
	var registrar fulfillment.CarrierRegistrar
	var quotes usecase.QuoteProvider = unavailableQuotes{}
	if cfg.CDEKClientID != "" {
		cdek := carrier.NewCDEKClient(carrier.CDEKConfig{
			BaseURL:         cfg.CDEKBaseURL,
			ClientID:        cfg.CDEKClientID,
			ClientSecret:    cfg.CDEKClientSecret,
			FromCityCode:    cfg.CDEKFromCityCode,
			TariffCode:      cfg.CDEKTariffCode,
			Currency:        cfg.Currency,
			ItemWeightGrams: cfg.DefaultItemWeightG,
		})
		registrar = cdek
		quotes = cdek

		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer func() { _ = rdb.Close() }()
			quotes = cache.NewCachedQuoteProvider(cdek, rdb, cfg.QuoteCacheTTL, l)
		}
	}

	dispatcher := fulfillment.NewDispatcher(l, cfg.DispatchTimeout, registrar, notifiers...)

	//Usecase生成
	promoUC := usecase.NewPromoCodeUsecase(promoRepo, auditRepo, clock, l)
	orderUC := usecase.NewOrderUsecase(txm, clock, idGen, cfg.Currency, l)
	paymentUC := usecase.NewPaymentUsecase(txm, verifier, dispatcher, clock, l)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, dispatcher, clock, l)
	productUC := usecase.NewProductUsecase(productRepo, clock)
	deliveryUC := usecase.NewDeliveryUsecase(productRepo, quotes, cfg.DefaultItemWeightG, l)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)
	authUC := usecase.NewAdminAuthUsecase(
		cfg.AdminEmail,
		cfg.AdminPasswordHash,
		auth.NewBcryptPasswordVerifier(),
		auth.NewJWTIssuer(cfg.JWTSecret, adminTokenTTL),
		clock,
		l,
	)

	//Handler生成
	e := server.New(cfg, l, server.Handlers{
		Health:       handler.NewHealthHandler(sqlDB),
		Auth:         handler.NewAuthHandler(authUC),
		PromoCode:    handler.NewPromoCodeHandler(promoUC),
		Order:        handler.NewOrderHandler(orderUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Delivery:     handler.NewDeliveryHandler(deliveryUC),
		AuditLog:     handler.NewAuditLogHandler(auditUC),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//Server起動
	return server.Start(ctx, e, server.Addr(cfg.Port), dispatcher, l)
}
