// Package sync drives a reconciliation run: fetch remote payments and local ledger rows,
// reconcile them, then report or append what is missing.
package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/reconcile"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/money"
)

const (
	phaseFetchingRemote = "fetching_remote"
	phaseFetchingLocal  = "fetching_local"
	phaseReconciling    = "reconciling"
	phaseReporting      = "reporting"
	phaseAppending      = "appending"
	phaseIdle           = "idle"
)

// RemoteLedger is the read-only payment source.
type RemoteLedger interface {
	ListCompletedPayments(ctx context.Context, days int) ([]ledger.RemotePayment, error)
	ListUnpaidInvoices(ctx context.Context) ([]ledger.Invoice, error)
}

// Recorder receives run outcomes, typically Prometheus collectors.
type Recorder interface {
	ObserveSync(mode string, missing, appended int)
}

// Service runs check, sync and report passes. It keeps no state between runs.
type Service struct {
	remote   RemoteLedger
	store    ledger.Store
	opts     Options
	format   ledger.RowFormat
	firstRow int
	logger   *logger.Logger
	recorder Recorder
	now      func() time.Time

	// appendMu serializes writes from this process; cross-process exclusion is the caller's job.
	appendMu gosync.Mutex
}

// ServiceParams bundles the Service dependencies.
type ServiceParams struct {
	Remote   RemoteLedger
	Store    ledger.Store
	Options  Options
	Logger   *logger.Logger
	Recorder Recorder
}

// NewService validates the options and wires the driver.
func NewService(params ServiceParams) (*Service, error) {
	if params.Remote == nil {
		return nil, fmt.Errorf("remote ledger is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	opts, err := params.Options.normalize()
	if err != nil {
		return nil, err
	}
	rng, _ := ledger.ParseRange(opts.Range)

	return &Service{
		remote:   params.Remote,
		store:    params.Store,
		opts:     opts,
		format:   ledger.RowFormat{Channel: opts.Channel, PartyLabel: opts.PartyLabel},
		firstRow: rng.StartRow,
		logger:   params.Logger,
		recorder: params.Recorder,
		now:      time.Now,
	}, nil
}

// SyncResult lists the payments appended, or that would be appended under dry run.
type SyncResult struct {
	Report   *Report                `json:"report"`
	Appended []ledger.RemotePayment `json:"appended"`
	Rows     [][]string             `json:"rows"`
	DryRun   bool                   `json:"dry_run"`
}

// Check reconciles without writing.
func (s *Service) Check(ctx context.Context, days int) (*Report, error) {
	ctx, runID := s.begin(ctx, ModeCheck, days)
	report, err := s.reconcile(ctx, runID, ModeCheck, days, false)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, report, 0)
	return report, nil
}

// Report reconciles both directions and includes unpaid invoices. It never writes.
func (s *Service) Report(ctx context.Context, days int) (*Report, error) {
	ctx, runID := s.begin(ctx, ModeReport, days)
	report, err := s.reconcile(ctx, runID, ModeReport, days, true)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, report, 0)
	return report, nil
}

// Sync appends one row per missing payment unless dryRun is set. A store failure returns the
// computed result alongside a LEDGER_STORE_UNAVAILABLE error whose details list the payments
// that were not written.
func (s *Service) Sync(ctx context.Context, days int, dryRun bool) (*SyncResult, error) {
	ctx, runID := s.begin(ctx, ModeSync, days)
	report, err := s.reconcile(ctx, runID, ModeSync, days, false)
	if err != nil {
		return nil, err
	}

	missing := report.Result.Missing
	result := &SyncResult{
		Report:   report,
		Appended: missing,
		Rows:     s.format.BuildRows(missing),
		DryRun:   dryRun,
	}
	if dryRun || len(missing) == 0 {
		s.finish(ctx, report, 0)
		return result, nil
	}

	ctx = s.logger.WithPhase(ctx, phaseAppending)
	s.logger.Info(s.logger.WithField(ctx, "rows", len(result.Rows)), "appending missing payments to ledger")

	s.appendMu.Lock()
	err = s.store.AppendRows(ctx, s.opts.Range, result.Rows)
	s.appendMu.Unlock()
	if err != nil {
		result.Appended = nil
		wrapped := pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "append missing payments").
			WithDetails(map[string]any{"missing": summarize(missing)})
		s.logger.Error(ctx, "ledger append failed", wrapped)
		s.observe(report.Mode, len(missing), 0)
		return result, wrapped
	}

	report.Appended = len(missing)
	s.finish(ctx, report, len(missing))
	return result, nil
}

// UnpaidInvoices lists outstanding invoices without touching the ledger.
func (s *Service) UnpaidInvoices(ctx context.Context) ([]ledger.Invoice, error) {
	ctx = s.logger.WithPhase(ctx, phaseFetchingRemote)
	invoices, err := s.remote.ListUnpaidInvoices(ctx)
	if err != nil {
		s.logger.Error(ctx, "invoice fetch failed", err)
		return nil, err
	}
	return invoices, nil
}

func (s *Service) begin(ctx context.Context, mode Mode, days int) (context.Context, string) {
	runID := uuid.NewString()
	ctx = s.logger.WithRunID(ctx, runID)
	ctx = s.logger.WithMode(ctx, string(mode))
	return s.logger.WithField(ctx, "days", days), runID
}

func (s *Service) finish(ctx context.Context, report *Report, appended int) {
	ctx = s.logger.WithPhase(ctx, phaseIdle)
	ctx = s.logger.WithFields(ctx, map[string]any{
		"remote":     report.RemoteCount,
		"local":      report.LocalCount,
		"missing":    len(report.Result.Missing),
		"sheet_only": len(report.Result.SheetOnly),
		"appended":   appended,
	})
	s.logger.Info(ctx, "reconciliation run finished")
	s.observe(report.Mode, len(report.Result.Missing), appended)
}

func (s *Service) observe(mode Mode, missing, appended int) {
	if s.recorder != nil {
		s.recorder.ObserveSync(string(mode), missing, appended)
	}
}

func (s *Service) reconcile(ctx context.Context, runID string, mode Mode, days int, withInvoices bool) (*Report, error) {
	if days < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be at least 1")
	}
	start, end := ledger.TrailingWindow(s.now(), days, s.opts.Location)

	var (
		remote   []ledger.RemotePayment
		cells    [][]string
		invoices []ledger.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pctx := s.logger.WithPhase(gctx, phaseFetchingRemote)
		s.logger.Debug(pctx, "fetching remote payments")
		payments, err := s.remote.ListCompletedPayments(pctx, days)
		if err != nil {
			s.logger.Error(pctx, "remote fetch failed", err)
			return err
		}
		remote = payments
		return nil
	})
	g.Go(func() error {
		pctx := s.logger.WithPhase(gctx, phaseFetchingLocal)
		s.logger.Debug(pctx, "reading ledger range")
		rows, err := s.store.ReadRange(pctx, s.opts.Range)
		if err != nil {
			s.logger.Error(pctx, "ledger read failed", err)
			if pkgerrors.CodeOf(err) == pkgerrors.CodeStoreUnavailable {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "read ledger range")
		}
		cells = rows
		return nil
	})
	if withInvoices {
		g.Go(func() error {
			list, err := s.remote.ListUnpaidInvoices(gctx)
			if err != nil {
				return err
			}
			invoices = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ctx = s.logger.WithPhase(ctx, phaseReconciling)
	local := s.localRows(cells, start)
	remote = orderRemote(remote)
	result := reconcile.Reconcile(remote, local, s.opts.Tolerance)

	report := &Report{
		RunID:       runID,
		Mode:        mode,
		Days:        days,
		WindowStart: start,
		WindowEnd:   end,
		Tolerance:   s.opts.Tolerance,
		RemoteCount: len(remote),
		LocalCount:  len(local),
		Result:      result,
		Invoices:    invoices,
		FirstRow:    s.firstRow,
	}
	if mode != ModeSync {
		s.logger.Debug(s.logger.WithPhase(ctx, phaseReporting), "reconciliation computed")
	}
	return report, nil
}

// localRows parses the range and drops manual rows dated before the window so old cash
// entries cannot absorb new payments. Synced rows are always kept so their ids stay known.
func (s *Service) localRows(cells [][]string, windowStart time.Time) []ledger.LocalRow {
	parsed := ledger.ParseRows(cells, s.opts.HasHeader, s.opts.Location)
	out := make([]ledger.LocalRow, 0, len(parsed))
	for _, row := range parsed {
		if !row.HasExternalID() && !row.Date.IsZero() && row.Date.Before(windowStart) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func orderRemote(in []ledger.RemotePayment) []ledger.RemotePayment {
	out := make([]ledger.RemotePayment, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MissingSummary is the operator-facing view of a payment that was not written.
type MissingSummary struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

func summarize(payments []ledger.RemotePayment) []MissingSummary {
	out := make([]MissingSummary, 0, len(payments))
	for _, p := range payments {
		out = append(out, MissingSummary{ID: p.ID, Date: p.DateString(), Amount: money.Format(p.Amount)})
	}
	return out
}
