package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Sessions SessionsConfig
	Redis    RedisConfig
	DB       DBConfig
	Receipts ReceiptsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sessions.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRUTERIA_APP_ENV" required:"true"`
	Port         string `envconfig:"FRUTERIA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FRUTERIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRUTERIA_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FRUTERIA_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"FRUTERIA_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the shop's REST API that owns products, stock and sales.
type BackendConfig struct {
	BaseURL            string        `envconfig:"FRUTERIA_BACKEND_URL" required:"true"`
	ProductsPath       string        `envconfig:"FRUTERIA_BACKEND_PRODUCTS_PATH" default:"/api/products"`
	SalesPath          string        `envconfig:"FRUTERIA_BACKEND_SALES_PATH" default:"/api/sales"`
	APIToken           string        `envconfig:"FRUTERIA_BACKEND_API_TOKEN"`
	Timeout            time.Duration `envconfig:"FRUTERIA_BACKEND_TIMEOUT" default:"10s"`
	BreakerMaxFailures uint32        `envconfig:"FRUTERIA_BACKEND_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"FRUTERIA_BACKEND_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	return nil
}

// SessionsConfig selects where in-progress sale sessions live.
type SessionsConfig struct {
	Store string        `envconfig:"FRUTERIA_SESSION_STORE" default:"memory"`
	TTL   time.Duration `envconfig:"FRUTERIA_SESSION_TTL" default:"12h"`
}

// Kind returns the normalized store kind.
func (s SessionsConfig) Kind() string {
	kind := strings.ToLower(strings.TrimSpace(s.Store))
	if kind == "" {
		return SessionStoreMemory
	}
	return kind
}

func (s SessionsConfig) validate(redis RedisConfig) error {
	switch s.Kind() {
	case SessionStoreMemory:
		return nil
	case SessionStoreRedis:
		if redis.URL == "" && redis.Address == "" {
			return fmt.Errorf("%s=redis requires %s or %s", EnvSessionKind, EnvRedisURL, EnvRedisAddr)
		}
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvSessionKind, s.Store)
}

type RedisConfig struct {
	URL          string        `envconfig:"FRUTERIA_REDIS_URL"`
	Address      string        `envconfig:"FRUTERIA_REDIS_ADDR"`
	Password     string        `envconfig:"FRUTERIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRUTERIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRUTERIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRUTERIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRUTERIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRUTERIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRUTERIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	Driver      string `envconfig:"FRUTERIA_DB_DRIVER" default:"sqlite"`
	DSN         string `envconfig:"FRUTERIA_DB_DSN"`
	SQLitePath  string `envconfig:"FRUTERIA_DB_SQLITE_PATH" default:"fruteria-receipts.db"`
	AutoMigrate bool   `envconfig:"FRUTERIA_DB_AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"FRUTERIA_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"FRUTERIA_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"FRUTERIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRUTERIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// DriverName returns the normalized driver.
func (db DBConfig) DriverName() string {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	if driver == "" {
		return DBDriverSQLite
	}
	return driver
}

// ReceiptsConfig toggles the local journal of committed sales.
type ReceiptsConfig struct {
	Enabled bool `envconfig:"FRUTERIA_RECEIPTS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	switch db.DriverName() {
	case DBDriverSQLite:
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	case DBDriverPostgres:
		if db.DSN == "" {
			return fmt.Errorf("%s is required when %s=postgres", EnvDBDSN, EnvDBDriver)
		}
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
}
