package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CLIPCLASH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CLIPCLASH_DB_DSN"
	EnvDBHost = "CLIPCLASH_DB_HOST"
	EnvDBUser = "CLIPCLASH_DB_USER"
	EnvDBName = "CLIPCLASH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Catalog      CatalogConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLIPCLASH_APP_ENV" required:"true"`
	Port         string `envconfig:"CLIPCLASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLIPCLASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLIPCLASH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CLIPCLASH_DB_DSN"`
	Driver string `envconfig:"CLIPCLASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLIPCLASH_DB_HOST"`
	LegacyPort     int    `envconfig:"CLIPCLASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLIPCLASH_DB_USER"`
	LegacyPassword string `envconfig:"CLIPCLASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLIPCLASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLIPCLASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLIPCLASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLIPCLASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLIPCLASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLIPCLASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLIPCLASH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLIPCLASH_REDIS_ADDR"`
	Password     string        `envconfig:"CLIPCLASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLIPCLASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLIPCLASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLIPCLASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLIPCLASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLIPCLASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLIPCLASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CLIPCLASH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CLIPCLASH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CLIPCLASH_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"CLIPCLASH_STRIPE_API_KEY"`
	Secret     string `envconfig:"CLIPCLASH_STRIPE_WEBHOOK_SECRET"`
	Env        string `envconfig:"CLIPCLASH_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"CLIPCLASH_STRIPE_SUCCESS_URL" default:"https://clipclash.app/purchase/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"CLIPCLASH_STRIPE_CANCEL_URL" default:"https://clipclash.app/purchase/cancelled"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CatalogConfig optionally overrides the built-in price catalog.
// The value is a JSON array of catalog entries (see internal/catalog).
type CatalogConfig struct {
	EntriesJSON string `envconfig:"CLIPCLASH_CATALOG_ENTRIES_JSON"`
}

type WebhookConfig struct {
	EventIdempotencyTTL time.Duration `envconfig:"CLIPCLASH_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CLIPCLASH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CLIPCLASH_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CLIPCLASH_CORS_ALLOWED_ORIGINS"`
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
