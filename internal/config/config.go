package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // development/production
	FEURL string // フロントURL（CORSで使う）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret            string // 管理者JWTの署名シークレット
	PaymentWebhookSecret string // 決済webhookのHMAC鍵
	AdminEmail           string
	AdminPasswordHash    string // bcrypt

	Currency string // RUB

	TelegramBotToken string // 空なら通知しない
	TelegramChatID   string
	TelegramAPIURL   string

	RabbitMQURL      string // 空ならイベントを流さない
	RabbitMQExchange string

	RedisAddr     string // 空なら見積もりをキャッシュしない
	QuoteCacheTTL time.Duration

	CDEKBaseURL        string
	CDEKClientID       string // 空なら配送連携なし
	CDEKClientSecret   string
	CDEKFromCityCode   int64
	CDEKTariffCode     int
	DefaultItemWeightG int64

	ValidateRatePerSec float64       // /promo-codes/validate のIPごとの上限
	DispatchTimeout    time.Duration // 通知1回あたり
}

// Loadは環境変数
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port:  os.Getenv("PORT"),
		GoEnv: getenv("GO_ENV", "development"),
		FEURL: getenv("FE_URL", "http://localhost:3000"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret:            os.Getenv("JWT_SECRET"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		AdminEmail:           os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash:    os.Getenv("ADMIN_PASSWORD_HASH"),

		Currency: getenv("CURRENCY", "RUB"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramAPIURL:   getenv("TELEGRAM_API_URL", "https://api.telegram.org"),

		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: getenv("RABBITMQ_EXCHANGE", "orders"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		CDEKBaseURL:      os.Getenv("CDEK_BASE_URL"),
		CDEKClientID:     os.Getenv("CDEK_CLIENT_ID"),
		CDEKClientSecret: os.Getenv("CDEK_CLIENT_SECRET"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return Config{}, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if cfg.AdminEmail == "" {
		return Config{}, fmt.Errorf("ADMIN_EMAIL is required")
	}
	if cfg.AdminPasswordHash == "" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD_HASH is required")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == "" {
		return Config{}, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if cfg.CDEKClientID != "" && cfg.CDEKClientSecret == "" {
		return Config{}, fmt.Errorf("CDEK_CLIENT_SECRET is required when CDEK_CLIENT_ID is set")
	}

	//数値
	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.CDEKTariffCode, err = atoiDefault("CDEK_TARIFF_CODE", 136); err != nil {
		return Config{}, err
	}
	fromCity, err := atoiDefault("CDEK_FROM_CITY_CODE", 44)
	if err != nil {
		return Config{}, err
	}
	cfg.CDEKFromCityCode = int64(fromCity)

	weight, err := atoiDefault("DEFAULT_ITEM_WEIGHT_G", 500)
	if err != nil {
		return Config{}, err
	}
	if weight <= 0 {
		return Config{}, fmt.Errorf("DEFAULT_ITEM_WEIGHT_G must be > 0")
	}
	cfg.DefaultItemWeightG = int64(weight)

	if cfg.ValidateRatePerSec, err = floatDefault("VALIDATE_RATE_PER_SEC", 5); err != nil {
		return Config{}, err
	}
	if cfg.QuoteCacheTTL, err = durationDefault("QUOTE_CACHE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DispatchTimeout, err = durationDefault("DISPATCH_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// 本番かどうか（ログ形式の切り替え）
func (c Config) IsProd() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
