package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Checkout     CheckoutConfig
	Media        MediaConfig
	AWS          AWSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Checkout.TaxRateDecimal(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REVO_APP_ENV" required:"true"`
	Port         string `envconfig:"REVO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REVO_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"REVO_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"REVO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"REVO_DB_DSN"`
	Driver string `envconfig:"REVO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REVO_DB_HOST"`
	LegacyPort     int    `envconfig:"REVO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REVO_DB_USER"`
	LegacyPassword string `envconfig:"REVO_DB_PASSWORD"`
	LegacyName     string `envconfig:"REVO_DB_NAME"`
	LegacySSLMode  string `envconfig:"REVO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REVO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REVO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REVO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REVO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REVO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REVO_REDIS_ADDR"`
	Password     string        `envconfig:"REVO_REDIS_PASSWORD"`
	DB           int           `envconfig:"REVO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REVO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REVO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REVO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REVO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REVO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"REVO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"REVO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"REVO_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	TradeInWindow   time.Duration `envconfig:"REVO_RATE_LIMIT_TRADEIN_WINDOW" default:"1h"`
	TradeInUserMax  int           `envconfig:"REVO_RATE_LIMIT_TRADEIN_USER_MAX" default:"10"`
	CheckoutWindow  time.Duration `envconfig:"REVO_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutUserMax int           `envconfig:"REVO_RATE_LIMIT_CHECKOUT_USER_MAX" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REVO_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"REVO_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	RequestIdempotencyTTL time.Duration `envconfig:"REVO_EVENTING_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

// CheckoutConfig holds the pricing policy applied when an order is snapshotted.
type CheckoutConfig struct {
	Currency                   string        `envconfig:"REVO_CHECKOUT_CURRENCY" default:"usd"`
	TaxRate                    string        `envconfig:"REVO_CHECKOUT_TAX_RATE" default:"0"`
	ShippingFeeCents           int64         `envconfig:"REVO_CHECKOUT_SHIPPING_FEE_CENTS" default:"0"`
	FreeShippingThresholdCents int64         `envconfig:"REVO_CHECKOUT_FREE_SHIPPING_THRESHOLD_CENTS" default:"0"`
	GatewayTimeout             time.Duration `envconfig:"REVO_CHECKOUT_GATEWAY_TIMEOUT" default:"10s"`
}

// TaxRateDecimal parses TaxRate as a fraction (0.0825 for 8.25%).
func (c CheckoutConfig) TaxRateDecimal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.TaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvCheckoutTaxRate, c.TaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be in [0, 1), got %s", EnvCheckoutTaxRate, raw)
	}
	return rate, nil
}

type MediaConfig struct {
	MaxPhotos     int    `envconfig:"REVO_MEDIA_MAX_PHOTOS" default:"5"`
	MaxPhotoBytes int64  `envconfig:"REVO_MEDIA_MAX_PHOTO_BYTES" default:"10485760"`
	KeyPrefix     string `envconfig:"REVO_MEDIA_KEY_PREFIX" default:"tradein"`
}

type AWSConfig struct {
	Region          string `envconfig:"REVO_AWS_REGION" default:"us-east-1"`
	Bucket          string `envconfig:"REVO_AWS_S3_BUCKET"`
	AccessKeyID     string `envconfig:"REVO_AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"REVO_AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `envconfig:"REVO_AWS_S3_ENDPOINT"`
	PublicBaseURL   string `envconfig:"REVO_AWS_S3_PUBLIC_BASE_URL"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"REVO_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"REVO_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"REVO_PUBSUB_ORDERS_TOPIC" default:"revo-order-events"`
	OrdersSubscription  string `envconfig:"REVO_PUBSUB_ORDERS_SUBSCRIPTION"`
	TradeInTopic        string `envconfig:"REVO_PUBSUB_TRADEIN_TOPIC" default:"revo-tradein-events"`
	TradeInSubscription string `envconfig:"REVO_PUBSUB_TRADEIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"REVO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"REVO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"REVO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"REVO_STRIPE_API_KEY"`
	Secret string `envconfig:"REVO_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"REVO_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
