package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ledgersync/api/controllers"
	"github.com/angelmondragon/ledgersync/internal/ledger"
	"github.com/angelmondragon/ledgersync/internal/reconcile"
	"github.com/angelmondragon/ledgersync/internal/sync"
	"github.com/angelmondragon/ledgersync/pkg/config"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/redis"
)

type stubReconciler struct {
	days     int
	full     bool
	report   *sync.Report
	invoices []ledger.Invoice
	err      error
}

func (s *stubReconciler) Check(_ context.Context, days int) (*sync.Report, error) {
	s.days, s.full = days, false
	return s.report, s.err
}

func (s *stubReconciler) Report(_ context.Context, days int) (*sync.Report, error) {
	s.days, s.full = days, true
	return s.report, s.err
}

func (s *stubReconciler) UnpaidInvoices(context.Context) ([]ledger.Invoice, error) {
	return s.invoices, s.err
}

type stubRuns struct {
	payload []byte
	history [][]byte
	limit   *int
	err     error
}

func (s stubRuns) LastRun(context.Context, string) ([]byte, error) { return s.payload, s.err }

func (s stubRuns) RunHistory(_ context.Context, _ string, limit int) ([][]byte, error) {
	if s.limit != nil {
		*s.limit = limit
	}
	return s.history, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "test"},
		Sync: config.SyncConfig{Days: 30},
	}
}

func newTestRouter(rec controllers.Reconciler, runs controllers.RunReader, readiness map[string]controllers.Pinger) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(testConfig(), logg, readiness, rec, runs, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	}))
}

func sampleReport() *sync.Report {
	return &sync.Report{
		RunID: "run-1",
		Mode:  sync.ModeCheck,
		Days:  30,
		Result: reconcile.Result{
			Missing: []ledger.RemotePayment{{
				ID:     "P2",
				Date:   time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
				Amount: decimal.RequireFromString("160.00"),
				Status: "COMPLETED",
			}},
		},
	}
}

func decodeData(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var envelope struct {
		Data  map[string]any `json:"data"`
		Error map[string]any `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data == nil {
		return envelope.Error
	}
	return envelope.Data
}

func TestHealthLiveAndRequestID(t *testing.T) {
	router := newTestRouter(&stubReconciler{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if got := resp.Header().Get("X-Ledgersync-Env"); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	readiness := map[string]controllers.Pinger{
		"redis": controllers.PingFunc(func(context.Context) error { return nil }),
		"store": controllers.PingFunc(func(context.Context) error { return errors.New("quota exceeded") }),
		"db":    nil,
	}
	router := newTestRouter(&stubReconciler{}, nil, readiness)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	body := decodeData(t, resp.Body)
	details, _ := body["details"].(map[string]any)
	failed, _ := details["failed"].([]any)
	if len(failed) != 1 || failed[0] != "store" {
		t.Fatalf("unexpected failure details %#v", body)
	}
}

func TestReconciliationDefaultsToCheck(t *testing.T) {
	rec := &stubReconciler{report: sampleReport()}
	router := newTestRouter(rec, nil, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if rec.days != 30 || rec.full {
		t.Fatalf("expected default check over 30 days, got days=%d full=%v", rec.days, rec.full)
	}
	body := decodeData(t, resp.Body)
	if body["clean"] != false || body["missing_total"] != "$160.00" || body["run_id"] != "run-1" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestReconciliationFullReport(t *testing.T) {
	rec := &stubReconciler{report: sampleReport()}
	router := newTestRouter(rec, nil, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation?days=7&full=true", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if rec.days != 7 || !rec.full {
		t.Fatalf("expected full report over 7 days, got days=%d full=%v", rec.days, rec.full)
	}
}

func TestReconciliationRejectsBadDays(t *testing.T) {
	rec := &stubReconciler{report: sampleReport()}
	router := newTestRouter(rec, nil, nil)
	for _, q := range []string{"days=0", "days=abc", "days=400", "full=sometimes"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation?"+q, nil))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, resp.Code)
		}
	}
	if rec.days != 0 {
		t.Fatal("service should not be called for invalid input")
	}
}

func TestReconciliationStoreUnavailable(t *testing.T) {
	rec := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeStoreUnavailable, "read ledger range")}
	router := newTestRouter(rec, nil, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	body := decodeData(t, resp.Body)
	if body["code"] != string(pkgerrors.CodeStoreUnavailable) {
		t.Fatalf("unexpected error %#v", body)
	}
}

func TestUnpaidInvoices(t *testing.T) {
	rec := &stubReconciler{invoices: []ledger.Invoice{
		{ID: "I1", Status: "UNPAID", Outstanding: decimal.RequireFromString("100")},
		{ID: "I2", Status: "PARTIALLY_PAID", Outstanding: decimal.RequireFromString("25.50")},
	}}
	router := newTestRouter(rec, nil, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/unpaid", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decodeData(t, resp.Body)
	if body["count"] != float64(2) || body["outstanding_total"] != "$125.50" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestLastSync(t *testing.T) {
	router := newTestRouter(&stubReconciler{}, stubRuns{payload: []byte(`{"run_id":"r1","appended":2}`)}, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sync/last", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decodeData(t, resp.Body)
	if body["run_id"] != "r1" || body["appended"] != float64(2) {
		t.Fatalf("unexpected body %#v", body)
	}

	router = newTestRouter(&stubReconciler{}, stubRuns{err: redis.ErrNotFound}, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sync/last", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	router = newTestRouter(&stubReconciler{}, nil, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sync/last", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without run history, got %d", resp.Code)
	}
}

func TestSyncHistory(t *testing.T) {
	var limit int
	runs := stubRuns{
		history: [][]byte{[]byte(`{"run_id":"r2"}`), []byte(`not json`), []byte(`{"run_id":"r1"}`)},
		limit:   &limit,
	}
	router := newTestRouter(&stubReconciler{}, runs, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sync/history?limit=3", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if limit != 3 {
		t.Fatalf("expected limit 3 forwarded, got %d", limit)
	}
	body := decodeData(t, resp.Body)
	if body["count"] != float64(2) {
		t.Fatalf("expected invalid entries skipped, got %#v", body)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sync/history?limit=500", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit out of range, got %d", resp.Code)
	}

	router = newTestRouter(&stubReconciler{}, nil, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sync/history", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without run history, got %d", resp.Code)
	}
}

func TestMetricsMounted(t *testing.T) {
	router := newTestRouter(&stubReconciler{}, nil, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", resp.Code, resp.Body.String())
	}
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	rec := &panicReconciler{}
	router := newTestRouter(rec, nil, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/unpaid", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

type panicReconciler struct{ stubReconciler }

func (*panicReconciler) UnpaidInvoices(context.Context) ([]ledger.Invoice, error) {
	panic("boom")
}
