// Package reconcile matches remote payments against local ledger rows.
//
// Matching runs in two phases. A remote payment whose id appears as the external id of any
// local row is matched outright, whatever the amounts say, and consumes nothing. Remaining
// payments are matched by amount against local rows that carry no external id: each payment,
// in input order, takes the first such row within tolerance and that row cannot be used again.
//
// The amount phase is first-match, not best-fit. With duplicate amounts in the same window,
// reordering either input can change which row pairs with which payment although the number
// of unmatched payments stays the same. Reports depend on this ordering; keep it.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ledgersync/internal/ledger"
)

// MatchRule records how a record was classified.
type MatchRule string

const (
	RuleID     MatchRule = "id"
	RuleAmount MatchRule = "amount"
	RuleNone   MatchRule = "none"
)

// DefaultTolerance is one cent.
var DefaultTolerance = decimal.New(1, -2)

// RemoteMatch annotates a remote payment. LocalIndex is the matched row's Index, or -1.
type RemoteMatch struct {
	Payment    ledger.RemotePayment `json:"payment"`
	Rule       MatchRule            `json:"rule"`
	LocalIndex int                  `json:"local_index"`
}

// LocalMatch annotates a local row. RemoteID is the payment it paired with by amount.
type LocalMatch struct {
	Row      ledger.LocalRow `json:"row"`
	Rule     MatchRule       `json:"rule"`
	RemoteID string          `json:"remote_id,omitempty"`
}

// Result holds both directions of a reconciliation.
type Result struct {
	Remote    []RemoteMatch          `json:"remote"`
	Local     []LocalMatch           `json:"local"`
	Missing   []ledger.RemotePayment `json:"missing"`
	SheetOnly []ledger.LocalRow      `json:"sheet_only"`
}

// Clean reports whether every remote payment is reflected locally.
func (r Result) Clean() bool {
	return len(r.Missing) == 0
}

// FindMissingRemote returns the remote payments with no local counterpart, in input order.
// Payments with a non-positive amount never participate.
func FindMissingRemote(remote []ledger.RemotePayment, local []ledger.LocalRow, tolerance decimal.Decimal) []ledger.RemotePayment {
	matches := matchRemote(remote, local, normalizeTolerance(tolerance))
	missing := make([]ledger.RemotePayment, 0)
	for _, m := range matches {
		if m.Rule == RuleNone {
			missing = append(missing, m.Payment)
		}
	}
	return missing
}

// FindLocalOnly returns local rows with a positive amount that no remote payment accounts for,
// in input order. External ids are ignored: each row, in order, consumes the first remaining
// remote payment within tolerance.
func FindLocalOnly(remote []ledger.RemotePayment, local []ledger.LocalRow, tolerance decimal.Decimal) []ledger.LocalRow {
	matches := matchLocal(remote, local, normalizeTolerance(tolerance))
	out := make([]ledger.LocalRow, 0)
	for _, m := range matches {
		if m.Rule == RuleNone {
			out = append(out, m.Row)
		}
	}
	return out
}

// Reconcile runs both directions and keeps the per-record annotations.
func Reconcile(remote []ledger.RemotePayment, local []ledger.LocalRow, tolerance decimal.Decimal) Result {
	tol := normalizeTolerance(tolerance)
	res := Result{
		Remote:    matchRemote(remote, local, tol),
		Local:     matchLocal(remote, local, tol),
		Missing:   make([]ledger.RemotePayment, 0),
		SheetOnly: make([]ledger.LocalRow, 0),
	}
	for _, m := range res.Remote {
		if m.Rule == RuleNone {
			res.Missing = append(res.Missing, m.Payment)
		}
	}
	for _, m := range res.Local {
		if m.Rule == RuleNone {
			res.SheetOnly = append(res.SheetOnly, m.Row)
		}
	}
	return res
}

func matchRemote(remote []ledger.RemotePayment, local []ledger.LocalRow, tol decimal.Decimal) []RemoteMatch {
	knownIDs := make(map[string]int)
	pool := newAmountPool(tol)
	for i, row := range local {
		if row.HasExternalID() {
			id := strings.TrimSpace(row.ExternalID)
			if _, ok := knownIDs[id]; !ok {
				knownIDs[id] = i
			}
			continue
		}
		if row.Amount.IsPositive() {
			pool.add(i, row.Amount)
		}
	}

	out := make([]RemoteMatch, 0, len(remote))
	for _, p := range remote {
		if !p.Amount.IsPositive() {
			continue
		}
		if i, ok := knownIDs[strings.TrimSpace(p.ID)]; ok {
			out = append(out, RemoteMatch{Payment: p, Rule: RuleID, LocalIndex: local[i].Index})
			continue
		}
		if i, ok := pool.take(p.Amount); ok {
			out = append(out, RemoteMatch{Payment: p, Rule: RuleAmount, LocalIndex: local[i].Index})
			continue
		}
		out = append(out, RemoteMatch{Payment: p, Rule: RuleNone, LocalIndex: -1})
	}
	return out
}

func matchLocal(remote []ledger.RemotePayment, local []ledger.LocalRow, tol decimal.Decimal) []LocalMatch {
	pool := newAmountPool(tol)
	for i, p := range remote {
		if p.Amount.IsPositive() {
			pool.add(i, p.Amount)
		}
	}

	out := make([]LocalMatch, 0, len(local))
	for _, row := range local {
		if !row.Amount.IsPositive() {
			continue
		}
		if i, ok := pool.take(row.Amount); ok {
			out = append(out, LocalMatch{Row: row, Rule: RuleAmount, RemoteID: remote[i].ID})
			continue
		}
		out = append(out, LocalMatch{Row: row, Rule: RuleNone})
	}
	return out
}

func normalizeTolerance(tol decimal.Decimal) decimal.Decimal {
	if tol.IsNegative() {
		return decimal.Zero
	}
	return tol
}
