package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/angelmondragon/ledgersync/pkg/config"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/logger"
)

const (
	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"
	defaultTimeout   = 30 * time.Second
)

var (
	errSpreadsheetIDRequired = errors.New("spreadsheet id is required")
	errClientNotInitialized  = errors.New("sheets client not initialized")
)

// Client reads and writes ledger ranges in one spreadsheet.
type Client struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	timeout       time.Duration
	logg          *logger.Logger
}

// NewClient builds a Sheets client using service-account credentials from gcp, or the
// ambient application default credentials when none are configured. Extra options are
// appended last so callers can override the endpoint.
func NewClient(ctx context.Context, cfg config.SheetsConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errSpreadsheetIDRequired
	}
	opts := append(clientOptions(gcp), extra...)
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "spreadsheet_id", spreadsheetID), "sheets client initialized")
	}
	return &Client{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		timeout:       timeout,
		logg:          logg,
	}, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// SpreadsheetID returns the spreadsheet this client is bound to.
func (c *Client) SpreadsheetID() string {
	if c == nil {
		return ""
	}
	return c.spreadsheetID
}

// ReadRange returns the formatted values of the range. A range that does not exist yet
// reads as empty.
func (c *Client) ReadRange(ctx context.Context, rangeID string) ([][]string, error) {
	if c == nil || c.values == nil {
		return nil, unavailable(errClientNotInitialized, "read range", rangeID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.values.Get(c.spreadsheetID, rangeID).Context(ctx).Do()
	if err != nil {
		if isMissingRange(err) {
			return [][]string{}, nil
		}
		return nil, unavailable(err, "read range", rangeID)
	}
	return fromValues(resp.Values), nil
}

func (c *Client) AppendRow(ctx context.Context, rangeID string, values []string) error {
	return c.AppendRows(ctx, rangeID, [][]string{values})
}

// AppendRows inserts rows after the last row of the table found in rangeID. Values are
// entered as if typed by a user so dates and amounts are parsed by the sheet.
func (c *Client) AppendRows(ctx context.Context, rangeID string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if c == nil || c.values == nil {
		return unavailable(errClientNotInitialized, "append rows", rangeID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.values.Append(c.spreadsheetID, rangeID, &gsheets.ValueRange{Values: toValues(rows)}).
		ValueInputOption(valueInputOption).
		InsertDataOption(insertDataOption).
		Context(ctx).
		Do()
	if err != nil {
		return unavailable(err, "append rows", rangeID)
	}
	if c.logg != nil {
		c.logg.Debug(c.logg.WithFields(ctx, map[string]any{"range": rangeID, "rows": len(rows)}), "sheet rows appended")
	}
	return nil
}

// UpdateRange overwrites cells starting at the range's top-left corner.
func (c *Client) UpdateRange(ctx context.Context, rangeID string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if c == nil || c.values == nil {
		return unavailable(errClientNotInitialized, "update range", rangeID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.values.Update(c.spreadsheetID, rangeID, &gsheets.ValueRange{Values: toValues(rows)}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return unavailable(err, "update range", rangeID)
	}
	return nil
}

// Ping reads the spreadsheet's first cell to confirm access.
func (c *Client) Ping(ctx context.Context, rangeID string) error {
	_, err := c.ReadRange(ctx, rangeID)
	return err
}

func unavailable(err error, op, rangeID string) error {
	details := map[string]any{"range": rangeID}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		details["status"] = apiErr.Code
		if apiErr.Message != "" {
			details["message"] = apiErr.Message
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, op).WithDetails(details)
}

// isMissingRange matches the 400 the API returns for a sheet tab that does not exist.
func isMissingRange(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range")
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

func fromValues(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case nil:
			case string:
				cells[j] = v
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}
