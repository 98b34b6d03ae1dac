package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/ledgersync/internal/sync"
	"github.com/angelmondragon/ledgersync/pkg/logger"
)

// LedgerSyncJobName is the job label used in logs and metrics.
const LedgerSyncJobName = "ledger-sync"

const defaultLastRunTTL = 7 * 24 * time.Hour

type syncRunner interface {
	Sync(ctx context.Context, days int, dryRun bool) (*sync.SyncResult, error)
}

type runStore interface {
	StoreLastRun(ctx context.Context, mode string, payload []byte, ttl time.Duration) error
}

// LedgerSyncJobParams configure the scheduled ledger sync.
type LedgerSyncJobParams struct {
	Logger  *logger.Logger
	Service syncRunner
	// Runs is optional; when set the summary of each run is kept for the API.
	Runs       runStore
	Days       int
	LastRunTTL time.Duration
}

// LedgerSyncJob appends missing payments for the trailing window on every cycle.
type LedgerSyncJob struct {
	logg    *logger.Logger
	service syncRunner
	runs    runStore
	days    int
	ttl     time.Duration
	now     func() time.Time
}

// LastRun is the summary persisted after each scheduled sync.
type LastRun struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Days       int       `json:"days"`
	Missing    int       `json:"missing"`
	Appended   int       `json:"appended"`
	SheetOnly  int       `json:"sheet_only"`
	Error      string    `json:"error,omitempty"`
}

// NewLedgerSyncJob validates the params and builds the job.
func NewLedgerSyncJob(params LedgerSyncJobParams) (*LedgerSyncJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("sync service required")
	}
	if params.Days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", params.Days)
	}
	ttl := params.LastRunTTL
	if ttl <= 0 {
		ttl = defaultLastRunTTL
	}
	return &LedgerSyncJob{
		logg:    params.Logger,
		service: params.Service,
		runs:    params.Runs,
		days:    params.Days,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

func (j *LedgerSyncJob) Name() string { return LedgerSyncJobName }

func (j *LedgerSyncJob) Run(ctx context.Context) error {
	result, err := j.service.Sync(ctx, j.days, false)
	j.record(ctx, result, err)
	if err != nil {
		return fmt.Errorf("ledger sync: %w", err)
	}
	return nil
}

func (j *LedgerSyncJob) record(ctx context.Context, result *sync.SyncResult, runErr error) {
	if j.runs == nil {
		return
	}
	summary := LastRun{FinishedAt: j.now().UTC(), Days: j.days}
	if result != nil && result.Report != nil {
		summary.RunID = result.Report.RunID
		summary.Missing = len(result.Report.Result.Missing)
		summary.SheetOnly = len(result.Report.Result.SheetOnly)
		summary.Appended = len(result.Appended)
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		j.logg.Error(ctx, "encode last run summary", err)
		return
	}
	if err := j.runs.StoreLastRun(ctx, string(sync.ModeSync), payload, j.ttl); err != nil {
		j.logg.Warn(ctx, fmt.Sprintf("failed to store last run summary: %v", err))
	}
}
