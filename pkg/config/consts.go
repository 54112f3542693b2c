package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "FARMDIRECT_APP_ENV"
	EnvPort       = "FARMDIRECT_APP_PORT"
	EnvDBDSN      = "FARMDIRECT_DB_DSN"
	EnvDBHost     = "FARMDIRECT_DB_HOST"
	EnvDBUser     = "FARMDIRECT_DB_USER"
	EnvDBName     = "FARMDIRECT_DB_NAME"
	EnvRedisURL   = "FARMDIRECT_REDIS_URL"
	EnvJWTSecret  = "FARMDIRECT_JWT_SECRET"
	EnvJWTIssuer  = "FARMDIRECT_JWT_ISSUER"
	EnvJWTExpMins = "FARMDIRECT_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
