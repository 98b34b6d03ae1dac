package sync

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/reconcile"
	"github.com/angelmondragon/ledgersync/pkg/money"
)

// Mode is the driver operation that produced a report.
type Mode string

const (
	ModeCheck  Mode = "check"
	ModeSync   Mode = "sync"
	ModeReport Mode = "report"
)

// Report is the outcome of one reconciliation pass.
type Report struct {
	RunID       string           `json:"run_id"`
	Mode        Mode             `json:"mode"`
	Days        int              `json:"days"`
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
	Tolerance   decimal.Decimal  `json:"tolerance"`
	RemoteCount int              `json:"remote_count"`
	LocalCount  int              `json:"local_count"`
	Result      reconcile.Result `json:"result"`
	Invoices    []ledger.Invoice `json:"invoices,omitempty"`

	// Appended counts the missing payments a sync wrote to the ledger.
	Appended int `json:"appended,omitempty"`

	// FirstRow is the sheet row number of range index 0.
	FirstRow int `json:"first_row"`
}

// Clean reports whether every remote payment is in the ledger. Ledger-only rows are expected
// (cash, other channels) and do not make a report dirty.
func (r *Report) Clean() bool {
	return r == nil || r.Result.Clean()
}

// MissingTotal sums the payments absent from the ledger.
func (r *Report) MissingTotal() decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(r.Result.Missing))
	for _, p := range r.Result.Missing {
		amounts = append(amounts, p.Amount)
	}
	return money.Sum(amounts...)
}

// SheetOnlyTotal sums the ledger rows with no remote counterpart.
func (r *Report) SheetOnlyTotal() decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(r.Result.SheetOnly))
	for _, row := range r.Result.SheetOnly {
		amounts = append(amounts, row.Amount)
	}
	return money.Sum(amounts...)
}

// OutstandingTotal sums what unpaid invoices still owe.
func (r *Report) OutstandingTotal() decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(r.Invoices))
	for _, inv := range r.Invoices {
		amounts = append(amounts, inv.Outstanding)
	}
	return money.Sum(amounts...)
}

// SheetRow converts a range index into the row number shown in the spreadsheet.
func (r *Report) SheetRow(index int) int {
	return r.FirstRow + index
}

// Render writes the human-readable discrepancy report.
func (r *Report) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := func(format string, args ...any) {
		fmt.Fprintf(tw, format, args...)
	}

	p("Ledger reconciliation (%s): %s to %s, %d days\n", r.Mode,
		r.WindowStart.Format(ledger.DateLayout), r.WindowEnd.Format(ledger.DateLayout), r.Days)
	p("Remote payments: %d\tLedger rows: %d\tTolerance: %s\n", r.RemoteCount, r.LocalCount, money.Format(r.Tolerance))

	p("\nMissing from ledger: %d (%s)\n", len(r.Result.Missing), money.Format(r.MissingTotal()))
	for _, pay := range r.Result.Missing {
		p("  %s\t%s\t%s\t%s\n", pay.DateString(), money.Format(pay.Amount), pay.ID, pay.Reference)
	}

	if r.Mode == ModeReport {
		p("\nLedger only: %d (%s)\n", len(r.Result.SheetOnly), money.Format(r.SheetOnlyTotal()))
		for _, row := range r.Result.SheetOnly {
			p("  row %d\t%s\t%s\t%s\t%s\n", r.SheetRow(row.Index), row.RawDate, money.Format(row.Amount), row.PaymentMethod, truncate(row.Description, 40))
		}

		p("\nUnpaid invoices: %d (%s)\n", len(r.Invoices), money.Format(r.OutstandingTotal()))
		for _, inv := range r.Invoices {
			due := inv.DueDate
			if due == "" {
				due = "-"
			}
			p("  %s\t%s\t%s\tdue %s\t%s\n", firstNonEmpty(inv.Number, inv.ID), inv.Recipient, inv.Status, due, money.Format(inv.Outstanding))
		}
	}

	switch missing := len(r.Result.Missing); {
	case missing == 0:
		p("\nStatus: clean\n")
	case r.Appended >= missing:
		p("\nStatus: appended %d missing payment(s) to ledger\n", r.Appended)
	default:
		p("\nStatus: %d payment(s) missing from ledger\n", missing)
	}
	return tw.Flush()
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
