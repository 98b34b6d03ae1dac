package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/angelmondragon/ledgersync/api/responses"
	"github.com/angelmondragon/ledgersync/api/validators"
	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/sync"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/money"
	"github.com/angelmondragon/ledgersync/pkg/redis"
)

const maxDays = 365

// Reconciler is the read-only slice of sync.Service the API exposes.
type Reconciler interface {
	Check(ctx context.Context, days int) (*sync.Report, error)
	Report(ctx context.Context, days int) (*sync.Report, error)
	UnpaidInvoices(ctx context.Context) ([]ledger.Invoice, error)
}

// RunReader reads the summaries the cron worker stores after each scheduled run.
type RunReader interface {
	LastRun(ctx context.Context, mode string) ([]byte, error)
	RunHistory(ctx context.Context, mode string, limit int) ([][]byte, error)
}

type reconciliationResponse struct {
	*sync.Report
	Clean          bool   `json:"clean"`
	MissingTotal   string `json:"missing_total"`
	SheetOnlyTotal string `json:"sheet_only_total"`
}

type invoicesResponse struct {
	Invoices         []ledger.Invoice `json:"invoices"`
	Count            int              `json:"count"`
	OutstandingTotal string           `json:"outstanding_total"`
}

// GetReconciliation runs a check (or a full report with ?full=true) over ?days=N.
func GetReconciliation(svc Reconciler, defaultDays int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		days, err := validators.ParseQueryInt(r, "days", defaultDays, 1, maxDays)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		full, err := validators.ParseQueryBool(r, "full", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var report *sync.Report
		if full {
			report, err = svc.Report(ctx, days)
		} else {
			report, err = svc.Check(ctx, days)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, reconciliationResponse{
			Report:         report,
			Clean:          report.Clean(),
			MissingTotal:   money.Format(report.MissingTotal()),
			SheetOnlyTotal: money.Format(report.SheetOnlyTotal()),
		})
	}
}

func GetUnpaidInvoices(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		invoices, err := svc.UnpaidInvoices(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if invoices == nil {
			invoices = []ledger.Invoice{}
		}
		responses.WriteSuccess(w, invoicesResponse{
			Invoices:         invoices,
			Count:            len(invoices),
			OutstandingTotal: money.Format((&sync.Report{Invoices: invoices}).OutstandingTotal()),
		})
	}
}

// GetLastSync returns the summary the cron worker stored after its latest sync.
func GetLastSync(runs RunReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if runs == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "run history is not configured"))
			return
		}
		payload, err := runs.LastRun(ctx, string(sync.ModeSync))
		if err != nil {
			if errors.Is(err, redis.ErrNotFound) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no scheduled sync recorded yet"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read last sync"))
			return
		}
		if !json.Valid(payload) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stored run summary is not valid JSON"))
			return
		}
		responses.WriteSuccess(w, json.RawMessage(payload))
	}
}

type historyResponse struct {
	Runs  []json.RawMessage `json:"runs"`
	Count int               `json:"count"`
}

// GetSyncHistory lists recent scheduled sync summaries, newest first, bounded by ?limit.
func GetSyncHistory(runs RunReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if runs == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "run history is not configured"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, redis.HistoryLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payloads, err := runs.RunHistory(ctx, string(sync.ModeSync), limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read sync history"))
			return
		}
		out := historyResponse{Runs: make([]json.RawMessage, 0, len(payloads))}
		for _, payload := range payloads {
			// Entries written by an older worker may not decode; skip rather than fail the page.
			if json.Valid(payload) {
				out.Runs = append(out.Runs, json.RawMessage(payload))
			}
		}
		out.Count = len(out.Runs)
		responses.WriteSuccess(w, out)
	}
}
