package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "PANELCRAFT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "PANELCRAFT_APP_ENV"
	EnvPort       = "PANELCRAFT_APP_PORT"
	EnvDBDSN      = "PANELCRAFT_DB_DSN"
	EnvDBHost     = "PANELCRAFT_DB_HOST"
	EnvDBUser     = "PANELCRAFT_DB_USER"
	EnvDBName     = "PANELCRAFT_DB_NAME"
	EnvRedisURL   = "PANELCRAFT_REDIS_URL"
	EnvJWTSecret  = "PANELCRAFT_JWT_SECRET"
	EnvJWTIssuer  = "PANELCRAFT_JWT_ISSUER"
	EnvJWTExpMins = "PANELCRAFT_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Billing       BillingConfig
	Commercial    CommercialConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"PANELCRAFT_APP_ENV" required:"true"`
	Port         string `envconfig:"PANELCRAFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PANELCRAFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PANELCRAFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PANELCRAFT_DB_DSN"`
	Driver string `envconfig:"PANELCRAFT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PANELCRAFT_DB_HOST"`
	LegacyPort     int    `envconfig:"PANELCRAFT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PANELCRAFT_DB_USER"`
	LegacyPassword string `envconfig:"PANELCRAFT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PANELCRAFT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PANELCRAFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PANELCRAFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PANELCRAFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PANELCRAFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PANELCRAFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PANELCRAFT_REDIS_URL" required:"true"`
	Password     string        `envconfig:"PANELCRAFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PANELCRAFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PANELCRAFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PANELCRAFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PANELCRAFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PANELCRAFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PANELCRAFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PANELCRAFT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PANELCRAFT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PANELCRAFT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PANELCRAFT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PANELCRAFT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PANELCRAFT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PANELCRAFT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PANELCRAFT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PANELCRAFT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"PANELCRAFT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"PANELCRAFT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

// BillingConfig drives invoice generation for delivered orders.
type BillingConfig struct {
	TaxRatePercent int `envconfig:"PANELCRAFT_BILLING_TAX_RATE_PERCENT" default:"20"`
	PaymentDueDays int `envconfig:"PANELCRAFT_BILLING_PAYMENT_DUE_DAYS" default:"30"`
}

// CommercialConfig drives quote issuance defaults.
type CommercialConfig struct {
	QuoteValidityDays int `envconfig:"PANELCRAFT_QUOTE_VALIDITY_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PANELCRAFT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PANELCRAFT_AUTO_MIGRATE" default:"false"`
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
