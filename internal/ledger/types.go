package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"

	PaymentStatusCompleted = "COMPLETED"
)

// RemotePayment is one payment as the processor reports it. Read-only from our side.
type RemotePayment struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reference string          `json:"reference,omitempty"`
}

// DateString renders the payment's ledger-local calendar date.
func (p RemotePayment) DateString() string {
	if p.Date.IsZero() {
		return ""
	}
	return p.Date.Format(DateLayout)
}

// IsCompleted reports whether the processor considers the payment settled.
func (p RemotePayment) IsCompleted() bool {
	return strings.EqualFold(strings.TrimSpace(p.Status), PaymentStatusCompleted)
}

// Invoice is an outstanding invoice with the amount still owed, not the original total.
type Invoice struct {
	ID          string          `json:"id"`
	Number      string          `json:"number,omitempty"`
	Recipient   string          `json:"recipient,omitempty"`
	Status      string          `json:"status"`
	DueDate     string          `json:"due_date,omitempty"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// LocalRow is one income entry read back from the ledger store.
type LocalRow struct {
	// Index is the row's position in the range as read, header included.
	Index         int             `json:"index"`
	RawDate       string          `json:"raw_date"`
	Date          time.Time       `json:"date,omitempty"`
	Party         string          `json:"party"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	ExternalID    string          `json:"external_id,omitempty"`
}

// HasExternalID reports whether the row was written by a previous sync.
func (r LocalRow) HasExternalID() bool {
	return strings.TrimSpace(r.ExternalID) != ""
}

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseDate accepts the date spellings found in the ledger; ok is false when none match.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			y, m, d := t.In(loc).Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}
