// Package app assembles the sync service and its adapters from configuration. Every binary
// shares this wiring so the CLI, the API and the cron worker reconcile the same way.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/payments"
	"github.com/angelmondragon/ledgersync/internal/sync"
	"github.com/angelmondragon/ledgersync/pkg/config"
	"github.com/angelmondragon/ledgersync/pkg/db"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/migrate"
	"github.com/angelmondragon/ledgersync/pkg/sheets"
	"github.com/angelmondragon/ledgersync/pkg/square"
)

// Resources holds the wired service plus the adapters the binaries may need directly.
type Resources struct {
	Service *sync.Service
	Remote  *payments.SquareLedger
	Store   ledger.Store
	Options sync.Options
	DB      *db.Client

	sheets  *sheets.Client
	closers []func() error
}

// BuildParams are the optional overrides for Build.
type BuildParams struct {
	Recorder      sync.Recorder
	SquareOpts    []square.Option
	StoreOverride ledger.Store
}

// Build connects the Square client and the configured ledger store and returns the sync
// service. Callers must Close the resources.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, params BuildParams) (*Resources, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	res := &Resources{Options: OptionsFromConfig(cfg)}

	client, err := square.NewClient(ctx, cfg.Square, logg, params.SquareOpts...)
	if err != nil {
		return nil, fmt.Errorf("square client: %w", err)
	}
	remote, err := payments.NewSquareLedger(client, client.LocationID(), res.Options.Location, logg)
	if err != nil {
		return nil, err
	}
	res.Remote = remote

	if params.StoreOverride != nil {
		res.Store = params.StoreOverride
	} else if err := res.openStore(ctx, cfg, logg); err != nil {
		_ = res.Close()
		return nil, err
	}

	svc, err := sync.NewService(sync.ServiceParams{
		Remote:   remote,
		Store:    res.Store,
		Options:  res.Options,
		Logger:   logg,
		Recorder: params.Recorder,
	})
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	res.Service = svc
	return res, nil
}

// OptionsFromConfig maps configuration onto sync options.
func OptionsFromConfig(cfg *config.Config) sync.Options {
	return sync.Options{
		Channel:    cfg.Sync.Channel,
		PartyLabel: cfg.Sync.PartyLabel,
		Range:      cfg.Sheets.IncomeRange,
		HasHeader:  cfg.Sheets.HasHeader,
		Tolerance:  cfg.Sync.ToleranceAmount(),
		Location:   cfg.App.Location(),
	}
}

func (r *Resources) openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case config.StoreBackendTable:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return fmt.Errorf("ledger table store: %w", err)
		}
		r.DB = client
		r.closers = append(r.closers, client.Close)
		if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
			return err
		}
		r.Store = ledger.NewTableStore(client.DB())
	default:
		client, err := sheets.NewClient(ctx, cfg.Sheets, cfg.GCP, logg)
		if err != nil {
			return fmt.Errorf("ledger sheets store: %w", err)
		}
		r.sheets = client
		r.Store = client
	}
	return nil
}

// PingStore checks that the ledger store answers.
func (r *Resources) PingStore(ctx context.Context) error {
	switch {
	case r.DB != nil:
		return r.DB.Ping(ctx)
	case r.sheets != nil:
		return r.sheets.Ping(ctx, r.Options.Range)
	case r.Store != nil:
		_, err := r.Store.ReadRange(ctx, r.Options.Range)
		return err
	default:
		return fmt.Errorf("ledger store not configured")
	}
}

// Close releases every adapter opened by Build.
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i]())
	}
	r.closers = nil
	return err
}
