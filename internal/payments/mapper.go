package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/pkg/money"
)

var unpaidStatuses = map[string]struct{}{
	"UNPAID":         {},
	"SENT":           {},
	"PARTIALLY_PAID": {},
	"SCHEDULED":      {},
}

// IsUnpaidStatus reports whether an invoice status still expects money.
func IsUnpaidStatus(status string) bool {
	_, ok := unpaidStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// toRemotePayment normalizes a Square payment. Missing id, created_at or amount is an error so
// the caller can skip the record.
func toRemotePayment(p *sq.Payment, loc *time.Location) (ledger.RemotePayment, error) {
	if p == nil {
		return ledger.RemotePayment{}, fmt.Errorf("payment is nil")
	}
	id := strings.TrimSpace(stringValue(p.GetID()))
	if id == "" {
		return ledger.RemotePayment{}, fmt.Errorf("payment missing id")
	}
	createdRaw := strings.TrimSpace(stringValue(p.GetCreatedAt()))
	if createdRaw == "" {
		return ledger.RemotePayment{}, fmt.Errorf("payment %s missing created_at", id)
	}
	created, err := time.Parse(time.RFC3339, createdRaw)
	if err != nil {
		return ledger.RemotePayment{}, fmt.Errorf("payment %s has invalid created_at %q: %w", id, createdRaw, err)
	}
	amt := p.GetAmountMoney()
	if amt == nil || amt.GetAmount() == nil {
		return ledger.RemotePayment{}, fmt.Errorf("payment %s missing amount_money", id)
	}

	if loc == nil {
		loc = time.UTC
	}
	y, m, d := created.In(loc).Date()
	return ledger.RemotePayment{
		ID:        id,
		Date:      time.Date(y, m, d, 0, 0, 0, 0, loc),
		Amount:    money.FromCents(*amt.GetAmount()),
		Status:    strings.ToUpper(strings.TrimSpace(stringValue(p.GetStatus()))),
		Reference: strings.TrimSpace(stringValue(p.GetReferenceID())),
	}, nil
}

func toInvoice(inv *sq.Invoice) (ledger.Invoice, error) {
	if inv == nil {
		return ledger.Invoice{}, fmt.Errorf("invoice is nil")
	}
	id := strings.TrimSpace(stringValue(inv.GetID()))
	if id == "" {
		return ledger.Invoice{}, fmt.Errorf("invoice missing id")
	}
	status := ""
	if s := inv.GetStatus(); s != nil {
		status = strings.ToUpper(string(*s))
	}

	out := ledger.Invoice{
		ID:          id,
		Number:      strings.TrimSpace(stringValue(inv.GetInvoiceNumber())),
		Recipient:   recipientName(inv.GetPrimaryRecipient()),
		Status:      status,
		Outstanding: decimal.Zero,
	}
	for _, req := range inv.GetPaymentRequests() {
		if req == nil {
			continue
		}
		owed := moneyAmount(req.GetComputedAmountMoney()).Sub(moneyAmount(req.GetTotalCompletedAmountMoney()))
		if owed.IsPositive() {
			out.Outstanding = out.Outstanding.Add(owed)
		}
		due := strings.TrimSpace(stringValue(req.GetDueDate()))
		if due != "" && (out.DueDate == "" || due < out.DueDate) {
			out.DueDate = due
		}
	}
	return out, nil
}

func recipientName(r *sq.InvoiceRecipient) string {
	if r == nil {
		return ""
	}
	if company := strings.TrimSpace(stringValue(r.GetCompanyName())); company != "" {
		return company
	}
	return strings.TrimSpace(strings.TrimSpace(stringValue(r.GetGivenName())) + " " + strings.TrimSpace(stringValue(r.GetFamilyName())))
}

func moneyAmount(m *sq.Money) decimal.Decimal {
	if m == nil || m.GetAmount() == nil {
		return decimal.Zero
	}
	return money.FromCents(*m.GetAmount())
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
