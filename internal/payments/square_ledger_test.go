package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/square"
)

type stubSquare struct {
	payments      []*sq.Payment
	invoices      map[string][]*sq.Invoice
	locations     []*sq.Location
	err           error
	lastParams    square.ListPaymentsParams
	invoiceCalls  []string
	locationCalls int
}

func (s *stubSquare) ListPayments(_ context.Context, params square.ListPaymentsParams) ([]*sq.Payment, error) {
	s.lastParams = params
	return s.payments, s.err
}

func (s *stubSquare) ListInvoices(_ context.Context, locationID string) ([]*sq.Invoice, error) {
	s.invoiceCalls = append(s.invoiceCalls, locationID)
	return s.invoices[locationID], s.err
}

func (s *stubSquare) ListLocations(context.Context) ([]*sq.Location, error) {
	s.locationCalls++
	return s.locations, s.err
}

func decodeJSON[T any](t *testing.T, raw string) T {
	t.Helper()
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return out
}

func newTestLedger(t *testing.T, client squareAPI, locationID string, out *bytes.Buffer) *SquareLedger {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "payments-test", Level: logger.ParseLevel("debug"), Output: out})
	l, err := NewSquareLedger(client, locationID, time.UTC, logg)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	l.now = func() time.Time { return time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestListCompletedPaymentsFiltersAndNormalizes(t *testing.T) {
	stub := &stubSquare{payments: decodeJSON[[]*sq.Payment](t, `[
		{"id":"P1","status":"COMPLETED","created_at":"2026-01-10T01:00:00Z","amount_money":{"amount":28000,"currency":"AUD"},"reference_id":"job-7"},
		{"id":"P2","status":"COMPLETED","created_at":"2026-01-12T01:00:00Z","amount_money":{"amount":16000,"currency":"AUD"}},
		{"id":"Z0","status":"COMPLETED","created_at":"2026-01-12T02:00:00Z","amount_money":{"amount":0,"currency":"AUD"}},
		{"id":"A1","status":"APPROVED","created_at":"2026-01-13T02:00:00Z","amount_money":{"amount":5000,"currency":"AUD"}},
		{"id":"F1","status":"FAILED","created_at":"2026-01-13T03:00:00Z","amount_money":{"amount":5000,"currency":"AUD"}}
	]`)}
	var logs bytes.Buffer
	l := newTestLedger(t, stub, "L1", &logs)

	got, err := l.ListCompletedPayments(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 completed payments, got %d", len(got))
	}
	if got[0].ID != "P1" || got[0].DateString() != "2026-01-10" || !got[0].Amount.Equal(decimal.RequireFromString("280")) || got[0].Reference != "job-7" {
		t.Fatalf("unexpected first payment %+v", got[0])
	}
	if !stub.lastParams.BeginTime.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)) || stub.lastParams.LocationID != "L1" {
		t.Fatalf("unexpected params %+v", stub.lastParams)
	}
}

func TestListCompletedPaymentsSkipsMalformedRecordsWithWarning(t *testing.T) {
	stub := &stubSquare{payments: decodeJSON[[]*sq.Payment](t, `[
		{"status":"COMPLETED","created_at":"2026-01-10T01:00:00Z","amount_money":{"amount":100,"currency":"AUD"}},
		{"id":"NODATE","status":"COMPLETED","amount_money":{"amount":100,"currency":"AUD"}},
		{"id":"NOAMT","status":"COMPLETED","created_at":"2026-01-10T01:00:00Z"},
		{"id":"OK","status":"completed","created_at":"2026-01-10T01:00:00Z","amount_money":{"amount":100,"currency":"AUD"}}
	]`)}
	var logs bytes.Buffer
	l := newTestLedger(t, stub, "", &logs)

	got, err := l.ListCompletedPayments(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "OK" {
		t.Fatalf("expected only the well-formed payment, got %+v", got)
	}
	if !bytes.Contains(logs.Bytes(), []byte(`"skipped":3`)) {
		t.Fatalf("expected a single warning counting 3 skipped records, logs: %s", logs.String())
	}
}

func TestListCompletedPaymentsRejectsInvalidDays(t *testing.T) {
	l := newTestLedger(t, &stubSquare{}, "", &bytes.Buffer{})
	if _, err := l.ListCompletedPayments(context.Background(), 0); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListCompletedPaymentsPropagatesClientError(t *testing.T) {
	stub := &stubSquare{err: pkgerrors.New(pkgerrors.CodeDependency, "square down")}
	l := newTestLedger(t, stub, "", &bytes.Buffer{})
	if _, err := l.ListCompletedPayments(context.Background(), 30); pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestListUnpaidInvoicesAcrossLocations(t *testing.T) {
	stub := &stubSquare{
		locations: decodeJSON[[]*sq.Location](t, `[{"id":"L1"},{"id":"L2"},{"name":"no id"}]`),
		invoices: map[string][]*sq.Invoice{
			"L1": decodeJSON[[]*sq.Invoice](t, `[
				{"id":"I1","invoice_number":"0001","status":"PARTIALLY_PAID","primary_recipient":{"given_name":"Jane","family_name":"Doe"},
				 "payment_requests":[
					{"due_date":"2026-02-01","computed_amount_money":{"amount":30000,"currency":"AUD"},"total_completed_amount_money":{"amount":10000,"currency":"AUD"}},
					{"due_date":"2026-01-20","computed_amount_money":{"amount":5000,"currency":"AUD"}}
				 ]},
				{"id":"I2","status":"PAID","payment_requests":[{"computed_amount_money":{"amount":1000,"currency":"AUD"}}]}
			]`),
			"L2": decodeJSON[[]*sq.Invoice](t, `[
				{"id":"I3","status":"SENT","primary_recipient":{"company_name":"Acme Pty"},
				 "payment_requests":[{"computed_amount_money":{"amount":1000,"currency":"AUD"},"total_completed_amount_money":{"amount":2000,"currency":"AUD"}}]},
				{"status":"UNPAID"}
			]`),
		},
	}
	l := newTestLedger(t, stub, "", &bytes.Buffer{})

	got, err := l.ListUnpaidInvoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.locationCalls != 1 || len(stub.invoiceCalls) != 2 {
		t.Fatalf("expected every location queried, got %v", stub.invoiceCalls)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 unpaid invoices, got %+v", got)
	}
	if got[0].ID != "I1" || !got[0].Outstanding.Equal(decimal.RequireFromString("250")) || got[0].DueDate != "2026-01-20" || got[0].Recipient != "Jane Doe" {
		t.Fatalf("unexpected first invoice %+v", got[0])
	}
	if got[1].ID != "I3" || !got[1].Outstanding.IsZero() || got[1].Recipient != "Acme Pty" {
		t.Fatalf("expected overpaid invoice to owe zero, got %+v", got[1])
	}
}

func TestListUnpaidInvoicesUsesConfiguredLocation(t *testing.T) {
	stub := &stubSquare{invoices: map[string][]*sq.Invoice{}}
	l := newTestLedger(t, stub, "L9", &bytes.Buffer{})

	if _, err := l.ListUnpaidInvoices(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.locationCalls != 0 || len(stub.invoiceCalls) != 1 || stub.invoiceCalls[0] != "L9" {
		t.Fatalf("expected only configured location, got %v (locations calls %d)", stub.invoiceCalls, stub.locationCalls)
	}
}

func TestIsUnpaidStatus(t *testing.T) {
	for _, s := range []string{"UNPAID", "sent", "PARTIALLY_PAID", "SCHEDULED"} {
		if !IsUnpaidStatus(s) {
			t.Fatalf("expected %s to be unpaid", s)
		}
	}
	for _, s := range []string{"PAID", "CANCELED", "DRAFT", ""} {
		if IsUnpaidStatus(s) {
			t.Fatalf("expected %s not to be unpaid", s)
		}
	}
}

func TestToRemotePaymentUsesLedgerTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	p := decodeJSON[*sq.Payment](t, `{"id":"P1","status":"COMPLETED","created_at":"2026-01-09T20:00:00Z","amount_money":{"amount":100,"currency":"AUD"}}`)
	got, err := toRemotePayment(p, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DateString() != "2026-01-10" {
		t.Fatalf("expected Sydney calendar date, got %s", got.DateString())
	}
}
