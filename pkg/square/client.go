package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/ledgersync/pkg/config"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/retry"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultAPIVersion = "2025-01-23"
	defaultTimeout    = 30 * time.Second

	maxErrorBody = 512
	maxErrorRead = 64 << 10
	maxPages     = 1000
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    sq.Environments.Sandbox,
	productionEnv: sq.Environments.Production,
}

// Client reads payments, invoices and locations through the Square SDK with centralized
// logging, retry and error mapping.
type Client struct {
	sdk         *sqclient.Client
	httpClient  *http.Client
	environment string
	baseURL     string
	apiVersion  string
	locationID  string
	policy      retry.Policy
	logger      *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryPolicy overrides the retry policy derived from config.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p.Normalize()
	}
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		environment: env,
		baseURL:     baseURLs[env],
		apiVersion:  apiVersion,
		locationID:  strings.TrimSpace(cfg.LocationID),
		policy: retry.Policy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaximumBackoff: cfg.MaxBackoff,
		}.Normalize(),
		logger: logg,
	}
	for _, opt := range opts {
		opt(c)
	}

	// The SDK makes a single attempt per call; retries and backoff come from c.policy.
	c.sdk = sqclient.NewClient(
		sqoption.WithBaseURL(c.baseURL),
		sqoption.WithToken(accessToken),
		sqoption.WithMaxAttempts(1),
		sqoption.WithHTTPClient(statusDoer{client: c.httpClient}),
		&sqcore.VersionOption{Version: c.apiVersion},
	)

	logg.Info(ctx, "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID returns the configured location, empty when every location is in scope.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// ListPaymentsParams bounds a payment listing. Zero times leave the bound open.
type ListPaymentsParams struct {
	BeginTime  time.Time
	EndTime    time.Time
	LocationID string
}

// ListPayments returns every payment created inside the window, oldest first.
func (c *Client) ListPayments(ctx context.Context, params ListPaymentsParams) ([]*sq.Payment, error) {
	req := &sq.ListPaymentsRequest{SortOrder: sq.String(string(sq.SortOrderAsc))}
	if !params.BeginTime.IsZero() {
		req.BeginTime = sq.String(params.BeginTime.UTC().Format(time.RFC3339))
	}
	if !params.EndTime.IsZero() {
		req.EndTime = sq.String(params.EndTime.UTC().Format(time.RFC3339))
	}
	if loc := strings.TrimSpace(params.LocationID); loc != "" {
		req.LocationID = sq.String(loc)
	}

	c.log(ctx, "request", "list_payments", map[string]any{
		"begin_time":  stringValue(req.BeginTime),
		"end_time":    stringValue(req.EndTime),
		"location_id": stringValue(req.LocationID),
	})

	out, err := collectPages(ctx, c, "list payments", func(ctx context.Context) (*sqcore.Page[*sq.Payment], error) {
		return c.sdk.Payments.List(ctx, req)
	})
	if err != nil {
		c.log(ctx, "error", "list_payments", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "list_payments", map[string]any{"count": len(out)})
	return out, nil
}

// ListInvoices returns every invoice for the location.
func (c *Client) ListInvoices(ctx context.Context, locationID string) ([]*sq.Invoice, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square location id is required to list invoices")
	}

	c.log(ctx, "request", "list_invoices", map[string]any{"location_id": locationID})

	req := &sq.ListInvoicesRequest{LocationID: locationID}
	out, err := collectPages(ctx, c, "list invoices", func(ctx context.Context) (*sqcore.Page[*sq.Invoice], error) {
		return c.sdk.Invoices.List(ctx, req)
	})
	if err != nil {
		c.log(ctx, "error", "list_invoices", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "list_invoices", map[string]any{"location_id": locationID, "count": len(out)})
	return out, nil
}

// ListLocations returns the merchant's locations.
func (c *Client) ListLocations(ctx context.Context) ([]*sq.Location, error) {
	c.log(ctx, "request", "list_locations", nil)

	var resp *sq.ListLocationsResponse
	err := c.call(ctx, "list locations", func(ctx context.Context) error {
		var err error
		resp, err = c.sdk.Locations.List(ctx)
		return err
	})
	if err != nil {
		c.log(ctx, "error", "list_locations", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	c.log(ctx, "response", "list_locations", map[string]any{"count": len(resp.Locations)})
	return resp.Locations, nil
}

// collectPages walks an SDK pager to the end. Every page fetch runs under the retry policy
// and replays the same cursor.
func collectPages[T any](ctx context.Context, c *Client, op string, first func(context.Context) (*sqcore.Page[T], error)) ([]T, error) {
	var page *sqcore.Page[T]
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		page, err = first(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var out []T
	for fetched := 1; ; fetched++ {
		out = append(out, page.Results...)

		var next *sqcore.Page[T]
		done := false
		err := c.call(ctx, op, func(ctx context.Context) error {
			var err error
			next, err = page.GetNextPage(ctx)
			if errors.Is(err, sqcore.ErrNoPages) {
				done = true
				return nil
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		if done || next == nil {
			return out, nil
		}
		if fetched >= maxPages {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("square %s exceeded %d pages", op, maxPages))
		}
		page = next
	}
}

// call runs one SDK request under the retry policy. 4xx responses fail immediately;
// 5xx and transport failures are retried.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		mapped := c.mapSquareError(err, op)
		if status := statusOf(err); status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			return retry.Permanent(mapped)
		}
		if attempt < c.policy.MaxAttempts {
			c.log(ctx, "retry", op, map[string]any{"attempt": attempt, "status": statusOf(err), "error": err.Error()})
		}
		return mapped
	})
}

func (c *Client) mapSquareError(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
	}
	body := ""
	if inner := apiErr.Unwrap(); inner != nil {
		body = truncate(inner.Error(), maxErrorBody)
	}
	code := domainCodeForStatus(apiErr.StatusCode)
	for _, sqErr := range extractSquareErrors(apiErr) {
		if sqErr != nil && sqErr.Category == sq.ErrorCategoryAuthenticationError {
			code = pkgerrors.CodeUnauthorized
			break
		}
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op)).
		WithDetails(map[string]any{"status": apiErr.StatusCode, "body": body})
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func statusOf(err error) int {
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// statusDoer returns the statuses the SDK would retry on its own (408, 429, 5xx) as
// *sqcore.APIError before its retrier sleeps on them.
type statusDoer struct {
	client *http.Client
}

func (d statusDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusRequestTimeout &&
		resp.StatusCode != http.StatusTooManyRequests &&
		resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorRead))
	var inner error
	if len(raw) > 0 {
		inner = errors.New(string(raw))
	}
	return nil, sqcore.NewAPIError(resp.StatusCode, inner)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	case "retry":
		c.logger.Warn(ctx, fmt.Sprintf("square %s retrying", op))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "secret", "email", "phone", "authorization"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = productionEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
