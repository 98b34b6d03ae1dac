// Package payments adapts the Square API into the remote ledger the reconciler consumes.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ledgersync/internal/ledger"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/square"
)

type squareAPI interface {
	ListPayments(ctx context.Context, params square.ListPaymentsParams) ([]*sq.Payment, error)
	ListInvoices(ctx context.Context, locationID string) ([]*sq.Invoice, error)
	ListLocations(ctx context.Context) ([]*sq.Location, error)
}

// SquareLedger lists completed payments and unpaid invoices from Square. It never writes.
type SquareLedger struct {
	client     squareAPI
	locationID string
	loc        *time.Location
	now        func() time.Time
	logger     *logger.Logger
}

// NewSquareLedger builds a remote ledger over the Square client. An empty locationID means
// invoices are listed for every location.
func NewSquareLedger(client squareAPI, locationID string, loc *time.Location, logg *logger.Logger) (*SquareLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("square client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SquareLedger{
		client:     client,
		locationID: strings.TrimSpace(locationID),
		loc:        loc,
		now:        time.Now,
		logger:     logg,
	}, nil
}

// ListCompletedPayments returns COMPLETED payments with a positive amount created during the
// trailing window of days ending now. Order is not meaningful.
func (l *SquareLedger) ListCompletedPayments(ctx context.Context, days int) ([]ledger.RemotePayment, error) {
	if days < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be at least 1")
	}
	start, end := ledger.TrailingWindow(l.now(), days, l.loc)

	raw, err := l.client.ListPayments(ctx, square.ListPaymentsParams{
		BeginTime:  start,
		EndTime:    end,
		LocationID: l.locationID,
	})
	if err != nil {
		return nil, err
	}

	var (
		out      = make([]ledger.RemotePayment, 0, len(raw))
		warnings error
		excluded int
	)
	for _, p := range raw {
		payment, err := toRemotePayment(p, l.loc)
		if err != nil {
			warnings = multierr.Append(warnings, err)
			continue
		}
		if !payment.IsCompleted() || !payment.Amount.IsPositive() {
			excluded++
			continue
		}
		out = append(out, payment)
	}
	l.warn(ctx, "square payments skipped during normalization", warnings)

	ctx = l.logger.WithFields(ctx, map[string]any{
		"days":     days,
		"fetched":  len(raw),
		"kept":     len(out),
		"excluded": excluded,
	})
	l.logger.Debug(ctx, "square payments normalized")
	return out, nil
}

// ListUnpaidInvoices returns invoices in UNPAID, SENT, PARTIALLY_PAID or SCHEDULED with the
// amount still owed.
func (l *SquareLedger) ListUnpaidInvoices(ctx context.Context) ([]ledger.Invoice, error) {
	locations, err := l.invoiceLocations(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out      []ledger.Invoice
		seen     = make(map[string]struct{})
		warnings error
	)
	for _, locationID := range locations {
		raw, err := l.client.ListInvoices(ctx, locationID)
		if err != nil {
			return nil, err
		}
		for _, inv := range raw {
			invoice, err := toInvoice(inv)
			if err != nil {
				warnings = multierr.Append(warnings, fmt.Errorf("location %s: %w", locationID, err))
				continue
			}
			if !IsUnpaidStatus(invoice.Status) {
				continue
			}
			if _, dup := seen[invoice.ID]; dup {
				continue
			}
			seen[invoice.ID] = struct{}{}
			out = append(out, invoice)
		}
	}
	l.warn(ctx, "square invoices skipped during normalization", warnings)
	return out, nil
}

func (l *SquareLedger) invoiceLocations(ctx context.Context) ([]string, error) {
	if l.locationID != "" {
		return []string{l.locationID}, nil
	}
	locations, err := l.client.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc == nil {
			continue
		}
		if id := strings.TrimSpace(stringValue(loc.GetID())); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (l *SquareLedger) warn(ctx context.Context, msg string, warnings error) {
	if warnings == nil {
		return
	}
	errs := multierr.Errors(warnings)
	ctx = l.logger.WithFields(ctx, map[string]any{
		"skipped":  len(errs),
		"warnings": warnings.Error(),
	})
	l.logger.Warn(ctx, msg)
}
