package config

const (
	EnvPrefix = "LEDGERSYNC"

	AppEnvDev   = "dev"
	AppEnvLocal = "local"
	AppEnvProd  = "prod"

	StoreBackendSheets = "sheets"
	StoreBackendTable  = "table"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv       = "LEDGERSYNC_APP_ENV"
	EnvPort         = "LEDGERSYNC_APP_PORT"
	EnvLogLevel     = "LEDGERSYNC_LOG_LEVEL"
	EnvLogWarnStack = "LEDGERSYNC_LOG_WARN_STACK"
	EnvTimezone     = "LEDGERSYNC_TIMEZONE"
	EnvCORSOrigins  = "LEDGERSYNC_CORS_ORIGINS"

	EnvSquareAccessToken    = "LEDGERSYNC_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv            = "LEDGERSYNC_SQUARE_ENV"
	EnvSquareLocationID     = "LEDGERSYNC_SQUARE_LOCATION_ID"
	EnvSquareAPIVersion     = "LEDGERSYNC_SQUARE_API_VERSION"
	EnvSquareTimeout        = "LEDGERSYNC_SQUARE_TIMEOUT"
	EnvSquareMaxAttempts    = "LEDGERSYNC_SQUARE_MAX_ATTEMPTS"
	EnvSquareInitialBackoff = "LEDGERSYNC_SQUARE_INITIAL_BACKOFF"
	EnvSquareMaxBackoff     = "LEDGERSYNC_SQUARE_MAX_BACKOFF"

	EnvStoreBackend = "LEDGERSYNC_STORE_BACKEND"

	EnvSheetsSpreadsheetID = "LEDGERSYNC_SHEETS_SPREADSHEET_ID"
	EnvSheetsIncomeRange   = "LEDGERSYNC_SHEETS_INCOME_RANGE"
	EnvSheetsHasHeader     = "LEDGERSYNC_SHEETS_HAS_HEADER"
	EnvSheetsTimeout       = "LEDGERSYNC_SHEETS_TIMEOUT"

	EnvGCPCredentialsJSON = "LEDGERSYNC_GCP_CREDENTIALS_JSON"
	EnvGCPCredentialsFile = "LEDGERSYNC_GOOGLE_APPLICATION_CREDENTIALS"

	EnvDBDSN    = "LEDGERSYNC_DB_DSN"
	EnvDBDriver = "LEDGERSYNC_DB_DRIVER"

	EnvRedisURL  = "LEDGERSYNC_REDIS_URL"
	EnvRedisAddr = "LEDGERSYNC_REDIS_ADDR"

	EnvSyncDays       = "LEDGERSYNC_SYNC_DAYS"
	EnvSyncTolerance  = "LEDGERSYNC_SYNC_TOLERANCE"
	EnvSyncChannel    = "LEDGERSYNC_SYNC_CHANNEL"
	EnvSyncPartyLabel = "LEDGERSYNC_SYNC_PARTY_LABEL"

	EnvCronInterval = "LEDGERSYNC_CRON_INTERVAL"
	EnvCronLockTTL  = "LEDGERSYNC_CRON_LOCK_TTL"
)
