package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/ledgersync/pkg/config"
	"github.com/angelmondragon/ledgersync/pkg/db"
	"github.com/angelmondragon/ledgersync/pkg/logger"
)

// MaybeRunDev brings the ledger_rows schema up to date when LEDGERSYNC_DB_AUTO_MIGRATE is set
// in a local or dev environment. Anywhere else migrations go through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.DB.AutoMigrate || !cfg.App.IsDev() {
		return nil
	}
	if client == nil {
		return fmt.Errorf("auto-migrate: db client is required")
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	dialect := Dialect(db.Driver(cfg.DB))
	ctx = logg.WithFields(ctx, map[string]any{"dir": DefaultDir, "dialect": dialect})
	if err := Run(ctx, sqlDB, dialect, DefaultDir, "up"); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("auto-migrate: read version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "version", version), "ledger schema up to date")
	return nil
}
