package config

// EnvPrefix namespaces every variable; the explicit tags below are also
// honoured without the prefix.
const EnvPrefix = "FRUTERIA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv      = "FRUTERIA_APP_ENV"
	EnvPort        = "FRUTERIA_APP_PORT"
	EnvLogLevel    = "FRUTERIA_LOG_LEVEL"
	EnvBackendURL  = "FRUTERIA_BACKEND_URL"
	EnvSessionKind = "FRUTERIA_SESSION_STORE"
	EnvRedisURL    = "FRUTERIA_REDIS_URL"
	EnvRedisAddr   = "FRUTERIA_REDIS_ADDR"
	EnvDBDriver    = "FRUTERIA_DB_DRIVER"
	EnvDBDSN       = "FRUTERIA_DB_DSN"
)
