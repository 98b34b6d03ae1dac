package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App    AppConfig
	Square SquareConfig
	Store  StoreConfig
	Sheets SheetsConfig
	GCP    GCPConfig
	DB     DBConfig
	Redis  RedisConfig
	Sync   SyncConfig
	Cron   CronConfig
}

// Load reads the process environment once; the result is treated as read-only afterwards.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGERSYNC_APP_ENV" default:"local"`
	Port         string `envconfig:"LEDGERSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LEDGERSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGERSYNC_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LEDGERSYNC_LOG_FORMAT"`
	Timezone     string `envconfig:"LEDGERSYNC_TIMEZONE" default:"Australia/Sydney"`
	// CORSOrigins is a comma-separated allow list for the read-only API.
	CORSOrigins []string `envconfig:"LEDGERSYNC_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, AppEnvLocal)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// Location resolves the ledger's operating timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	name := strings.TrimSpace(a.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type SquareConfig struct {
	AccessToken    string        `envconfig:"LEDGERSYNC_SQUARE_ACCESS_TOKEN" required:"true"`
	Env            string        `envconfig:"LEDGERSYNC_SQUARE_ENV" default:"production"`
	LocationID     string        `envconfig:"LEDGERSYNC_SQUARE_LOCATION_ID"`
	APIVersion     string        `envconfig:"LEDGERSYNC_SQUARE_API_VERSION" default:"2025-01-23"`
	Timeout        time.Duration `envconfig:"LEDGERSYNC_SQUARE_TIMEOUT" default:"30s"`
	MaxAttempts    int           `envconfig:"LEDGERSYNC_SQUARE_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"LEDGERSYNC_SQUARE_INITIAL_BACKOFF" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"LEDGERSYNC_SQUARE_MAX_BACKOFF" default:"4s"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "production"
	}
	return env
}

type StoreConfig struct {
	Backend string `envconfig:"LEDGERSYNC_STORE_BACKEND" default:"sheets"`
}

type SheetsConfig struct {
	SpreadsheetID string        `envconfig:"LEDGERSYNC_SHEETS_SPREADSHEET_ID"`
	IncomeRange   string        `envconfig:"LEDGERSYNC_SHEETS_INCOME_RANGE" default:"Income!A:F"`
	HasHeader     bool          `envconfig:"LEDGERSYNC_SHEETS_HAS_HEADER" default:"true"`
	Timeout       time.Duration `envconfig:"LEDGERSYNC_SHEETS_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	CredentialsJSON        string `envconfig:"LEDGERSYNC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEDGERSYNC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGERSYNC_DB_DSN"`
	Driver string `envconfig:"LEDGERSYNC_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"LEDGERSYNC_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"LEDGERSYNC_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGERSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGERSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"LEDGERSYNC_DB_AUTO_MIGRATE" default:"false"`
	SlowQuery       time.Duration `envconfig:"LEDGERSYNC_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGERSYNC_REDIS_URL"`
	Address      string        `envconfig:"LEDGERSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGERSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGERSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGERSYNC_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"LEDGERSYNC_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"LEDGERSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGERSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGERSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SyncConfig struct {
	Days       int    `envconfig:"LEDGERSYNC_SYNC_DAYS" default:"30"`
	Tolerance  string `envconfig:"LEDGERSYNC_SYNC_TOLERANCE" default:"0.01"`
	Channel    string `envconfig:"LEDGERSYNC_SYNC_CHANNEL" default:"Square"`
	PartyLabel string `envconfig:"LEDGERSYNC_SYNC_PARTY_LABEL" default:"Square Customer"`
}

// ToleranceAmount parses the configured tolerance; validate() guarantees it is well formed.
func (s SyncConfig) ToleranceAmount() decimal.Decimal {
	tol, err := decimal.NewFromString(strings.TrimSpace(s.Tolerance))
	if err != nil {
		return decimal.New(1, -2)
	}
	return tol
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LEDGERSYNC_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LEDGERSYNC_CRON_LOCK_TTL" default:"30m"`
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case StoreBackendSheets:
		if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvSheetsSpreadsheetID, EnvStoreBackend, StoreBackendSheets)
		}
	case StoreBackendTable:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvStoreBackend, StoreBackendTable)
		}
	default:
		return fmt.Errorf("%s must be %q or %q", EnvStoreBackend, StoreBackendSheets, StoreBackendTable)
	}
	if c.Sync.Days < 1 {
		return fmt.Errorf("%s must be at least 1", EnvSyncDays)
	}
	tol, err := decimal.NewFromString(strings.TrimSpace(c.Sync.Tolerance))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvSyncTolerance, err)
	}
	if tol.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvSyncTolerance)
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.App.Timezone)); err != nil {
		return fmt.Errorf("parsing %s: %w", EnvTimezone, err)
	}
	return nil
}
