package square

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sqcore "github.com/square/square-go-sdk/core"

	"github.com/angelmondragon/ledgersync/pkg/config"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/retry"
)

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, sleeps *recordedSleeps) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "square-test", Output: io.Discard})
	c, err := NewClient(context.Background(), config.SquareConfig{
		AccessToken: "tok",
		Env:         "sandbox",
		APIVersion:  "2025-01-23",
	}, logg,
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, InitialBackoff: time.Second, MaximumBackoff: 4 * time.Second, Sleep: sleeps.sleep}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	if _, err := NewClient(context.Background(), config.SquareConfig{AccessToken: "x"}, nil); err == nil {
		t.Fatal("expected logger required error")
	}
	if _, err := NewClient(context.Background(), config.SquareConfig{}, logg); err == nil {
		t.Fatal("expected token required error")
	}
	if _, err := NewClient(context.Background(), config.SquareConfig{AccessToken: "x", Env: "staging"}, logg); err == nil {
		t.Fatal("expected environment error")
	}
	c, err := NewClient(context.Background(), config.SquareConfig{AccessToken: "x", LocationID: " L1 "}, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Environment() != productionEnv || c.baseURL != baseURLs[productionEnv] || c.LocationID() != "L1" {
		t.Fatalf("unexpected client config: env=%s base=%s loc=%s", c.Environment(), c.baseURL, c.LocationID())
	}
}

func TestListPaymentsPaginatesAndSendsHeaders(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v2/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("Square-Version"); got != "2025-01-23" {
			t.Errorf("unexpected version header %q", got)
		}
		q := r.URL.Query()
		if q.Get("sort_order") != "ASC" || q.Get("begin_time") != "2026-01-01T00:00:00Z" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		if q.Get("cursor") == "" {
			_, _ = io.WriteString(w, `{"payments":[{"id":"P1","status":"COMPLETED","created_at":"2026-01-10T01:00:00Z","amount_money":{"amount":28000,"currency":"AUD"}}],"cursor":"page-2"}`)
			return
		}
		if q.Get("cursor") != "page-2" {
			t.Errorf("unexpected cursor %q", q.Get("cursor"))
		}
		_, _ = io.WriteString(w, `{"payments":[{"id":"P2","status":"COMPLETED","created_at":"2026-01-12T01:00:00Z","amount_money":{"amount":16000,"currency":"AUD"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &recordedSleeps{})
	payments, err := c.ListPayments(context.Background(), ListPaymentsParams{
		BeginTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 payments over 2 calls, got %d over %d", len(payments), calls)
	}
	if stringValue(payments[1].GetID()) != "P2" {
		t.Fatalf("unexpected second payment %q", stringValue(payments[1].GetID()))
	}
}

func TestGetRetriesServerErrorsWithBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream")
			return
		}
		_, _ = io.WriteString(w, `{"locations":[{"id":"L1"}]}`)
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	c := newTestClient(t, srv, sleeps)
	locations, err := c.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("list locations: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locations))
	}
	if len(sleeps.waits) != 2 || sleeps.waits[0] != time.Second || sleeps.waits[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule %v", sleeps.waits)
	}
}

func TestGetExhaustsRetriesAsDependencyError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &recordedSleeps{})
	_, err := c.ListLocations(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %s", pkgerrors.CodeOf(err))
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	body := `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST","detail":"` + strings.Repeat("x", 800) + `"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	c := newTestClient(t, srv, sleeps)
	_, err := c.ListPayments(context.Background(), ListPaymentsParams{})
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 || len(sleeps.waits) != 0 {
		t.Fatalf("expected a single attempt, got %d calls and %d waits", calls, len(sleeps.waits))
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["status"] != http.StatusBadRequest {
		t.Fatalf("expected status in details, got %#v", typed.Details())
	}
	if got := details["body"].(string); len(got) != maxErrorBody+3 {
		t.Fatalf("expected truncated body, got %d bytes", len(got))
	}
}

func TestMapSquareErrorAuthenticationCategory(t *testing.T) {
	c := &Client{}
	apiErr := sqcore.NewAPIError(http.StatusForbidden, errors.New(`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`))
	err := c.mapSquareError(apiErr, "op")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %s", pkgerrors.CodeOf(err))
	}
	var wrapped *sqcore.APIError
	if !errors.As(err, &wrapped) || wrapped.StatusCode != http.StatusForbidden {
		t.Fatalf("expected wrapped sdk api error, got %v", err)
	}
	if got := pkgerrors.CodeOf(c.mapSquareError(errors.New("dial tcp: refused"), "op")); got != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency for transport error, got %s", got)
	}
}

func TestRateLimitFailsWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"errors":[{"category":"RATE_LIMIT_ERROR","code":"RATE_LIMITED"}]}`)
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	c := newTestClient(t, srv, sleeps)
	_, err := c.ListLocations(context.Background())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 || len(sleeps.waits) != 0 {
		t.Fatalf("expected a single attempt, got %d calls and %d waits", calls, len(sleeps.waits))
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatal("expected rate limit to be flagged retryable for the next cycle")
	}
}

func TestListInvoicesRetriesFailedPageWithSameCursor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v2/invoices" || r.URL.Query().Get("location_id") != "L1" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		switch cursor := r.URL.Query().Get("cursor"); {
		case cursor == "":
			_, _ = io.WriteString(w, `{"invoices":[{"id":"inv-1","status":"UNPAID"}],"cursor":"c2"}`)
		case cursor == "c2" && n == 2:
			w.WriteHeader(http.StatusInternalServerError)
		case cursor == "c2":
			_, _ = io.WriteString(w, `{"invoices":[{"id":"inv-2","status":"SENT"}]}`)
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	c := newTestClient(t, srv, sleeps)
	invoices, err := c.ListInvoices(context.Background(), "L1")
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 2 || stringValue(invoices[1].GetID()) != "inv-2" {
		t.Fatalf("unexpected invoices %+v", invoices)
	}
	if atomic.LoadInt32(&calls) != 3 || len(sleeps.waits) != 1 {
		t.Fatalf("expected one retried page, got %d calls and waits %v", calls, sleeps.waits)
	}
}

func TestListInvoicesRequiresLocation(t *testing.T) {
	c := &Client{}
	if _, err := c.ListInvoices(context.Background(), " "); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &recordedSleeps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListLocations(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("access_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}
