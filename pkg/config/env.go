package config

// EnvPrefix scopes every variable read by Load.
const EnvPrefix = "REVO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "REVO_APP_ENV"
	EnvPort         = "REVO_APP_PORT"
	EnvLogLevel     = "REVO_LOG_LEVEL"
	EnvLogFormat    = "REVO_LOG_FORMAT"
	EnvLogWarnStack = "REVO_LOG_WARN_STACK"

	EnvDBDSN      = "REVO_DB_DSN"
	EnvDBHost     = "REVO_DB_HOST"
	EnvDBPort     = "REVO_DB_PORT"
	EnvDBUser     = "REVO_DB_USER"
	EnvDBPassword = "REVO_DB_PASSWORD"
	EnvDBName     = "REVO_DB_NAME"
	EnvDBSSLMode  = "REVO_DB_SSLMODE"

	EnvRedisURL = "REVO_REDIS_URL"

	EnvJWTSecret  = "REVO_JWT_SECRET"
	EnvJWTIssuer  = "REVO_JWT_ISSUER"
	EnvJWTExpMins = "REVO_JWT_EXPIRATION_MINUTES"

	EnvAutoMigrate = "REVO_AUTO_MIGRATE"

	EnvCheckoutCurrency         = "REVO_CHECKOUT_CURRENCY"
	EnvCheckoutTaxRate          = "REVO_CHECKOUT_TAX_RATE"
	EnvCheckoutShippingFeeCents = "REVO_CHECKOUT_SHIPPING_FEE_CENTS"
	EnvCheckoutGatewayTimeout   = "REVO_CHECKOUT_GATEWAY_TIMEOUT"

	EnvMediaMaxPhotos     = "REVO_MEDIA_MAX_PHOTOS"
	EnvMediaMaxPhotoBytes = "REVO_MEDIA_MAX_PHOTO_BYTES"

	EnvAWSRegion   = "REVO_AWS_REGION"
	EnvAWSS3Bucket = "REVO_AWS_S3_BUCKET"

	EnvGCPProjectID      = "REVO_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "REVO_PUBSUB_ORDERS_TOPIC"
	EnvPubSubTradeTopic  = "REVO_PUBSUB_TRADEIN_TOPIC"

	EnvStripeAPIKey = "REVO_STRIPE_API_KEY"
	EnvStripeSecret = "REVO_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv    = "REVO_STRIPE_ENV"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
