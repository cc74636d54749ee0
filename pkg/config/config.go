package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "DOCVIA_DB_DSN"
	EnvDBHost = "DOCVIA_DB_HOST"
	EnvDBUser = "DOCVIA_DB_USER"
	EnvDBName = "DOCVIA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"DOCVIA_APP_ENV" required:"true"`
	Port         string `envconfig:"DOCVIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DOCVIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DOCVIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DOCVIA_DB_DSN"`
	Driver string `envconfig:"DOCVIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DOCVIA_DB_HOST"`
	LegacyPort     int    `envconfig:"DOCVIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DOCVIA_DB_USER"`
	LegacyPassword string `envconfig:"DOCVIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"DOCVIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"DOCVIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DOCVIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DOCVIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DOCVIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DOCVIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DOCVIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DOCVIA_REDIS_ADDR"`
	Password     string        `envconfig:"DOCVIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"DOCVIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DOCVIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DOCVIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DOCVIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DOCVIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DOCVIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DOCVIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DOCVIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DOCVIA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"DOCVIA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"DOCVIA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"DOCVIA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"DOCVIA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DOCVIA_ARGON_KEY_LEN" default:"32"`
}

type StripeConfig struct {
	APIKey string `envconfig:"DOCVIA_STRIPE_API_KEY"`
	Secret string `envconfig:"DOCVIA_STRIPE_SECRET"`
	Env    string `envconfig:"DOCVIA_STRIPE_ENV" default:"test"`
}

// Environment reports the raw configured Stripe environment.
func (s StripeConfig) Environment() string {
	return s.Env
}

type BillingConfig struct {
	ConfirmBaseURL        string        `envconfig:"DOCVIA_BILLING_CONFIRM_BASE_URL" required:"true"`
	ConfirmTokenTTL       time.Duration `envconfig:"DOCVIA_BILLING_CONFIRM_TOKEN_TTL" default:"5m"`
	FreePlanAppLimit      int           `envconfig:"DOCVIA_BILLING_FREE_PLAN_APP_LIMIT" default:"1"`
	WebhookIdempotencyTTL time.Duration `envconfig:"DOCVIA_BILLING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DOCVIA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DOCVIA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		db.DSN = "file::memory:?cache=shared"
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
