package ledger

import "context"

// Store is the tabular backing store for the local ledger. Implementations report every
// failure with the LEDGER_STORE_UNAVAILABLE error code.
type Store interface {
	// ReadRange returns all rows in the range, header included. A missing range reads as empty.
	ReadRange(ctx context.Context, rangeID string) ([][]string, error)
	AppendRow(ctx context.Context, rangeID string, values []string) error
	// AppendRows writes after the last existing row. An empty rows slice is a no-op.
	AppendRows(ctx context.Context, rangeID string, rows [][]string) error
	// UpdateRange overwrites cells in place starting at the range's top-left cell.
	UpdateRange(ctx context.Context, rangeID string, rows [][]string) error
}
