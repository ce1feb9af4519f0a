package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "NOMAS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "NOMAS_APP_ENV"
	EnvPort            = "NOMAS_APP_PORT"
	EnvLogLevel        = "NOMAS_LOG_LEVEL"
	EnvPublicURL       = "NOMAS_APP_PUBLIC_URL"
	EnvCORSOrigins     = "NOMAS_CORS_ORIGINS"
	EnvDBDSN           = "NOMAS_DB_DSN"
	EnvDBHost          = "NOMAS_DB_HOST"
	EnvDBUser          = "NOMAS_DB_USER"
	EnvDBPassword      = "NOMAS_DB_PASSWORD"
	EnvDBName          = "NOMAS_DB_NAME"
	EnvRedisURL        = "NOMAS_REDIS_URL"
	EnvJWTSecret       = "NOMAS_JWT_SECRET"
	EnvJWTIssuer       = "NOMAS_JWT_ISSUER"
	EnvJWTExpMins      = "NOMAS_JWT_EXPIRATION_MINUTES"
	EnvStripeAPIKey    = "NOMAS_STRIPE_API_KEY"
	EnvStripeSecret    = "NOMAS_STRIPE_SECRET"
	EnvStripeEnv       = "NOMAS_STRIPE_ENV"
	EnvRabbitMQURL     = "NOMAS_RABBITMQ_URL"
	EnvCronInterval    = "NOMAS_CRON_INTERVAL"
	EnvPendingTTL      = "NOMAS_PENDING_BOOKING_TTL"
	EnvWebhookIdemTTL  = "NOMAS_WEBHOOK_IDEMPOTENCY_TTL"
	EnvBookingsPerMin  = "NOMAS_RATE_LIMIT_BOOKINGS_PER_MINUTE"
	EnvOutboxRetention = "NOMAS_OUTBOX_RETENTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
