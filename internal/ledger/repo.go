package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgersync/internal/repo"
	"github.com/angelmondragon/ledgersync/pkg/db"
	"github.com/angelmondragon/ledgersync/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
	"github.com/angelmondragon/ledgersync/pkg/retry"
)

const rowIndexConstraint = "idx_ledger_rows_sheet_row"

// appendPolicy retries appends that lost a race for the next row index.
var appendPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 20 * time.Millisecond,
	MaximumBackoff: 100 * time.Millisecond,
}

// TableStore keeps ledger sheets in the ledger_rows table so the sync can run without a
// spreadsheet. Rows are stored from column A; ranges select a window of them.
type TableStore struct {
	base repo.Base
}

// NewTableStore returns a Store bound to the provided database.
func NewTableStore(db *gorm.DB) *TableStore {
	return &TableStore{base: repo.NewBase(db)}
}

var _ Store = (*TableStore)(nil)

func (s *TableStore) ReadRange(ctx context.Context, rangeID string) ([][]string, error) {
	rng, err := ParseRange(rangeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "invalid ledger range")
	}

	query := s.base.DB(ctx).
		Where("sheet = ? AND row_index >= ?", rng.Sheet, rng.StartRow)
	if rng.EndRow > 0 {
		query = query.Where("row_index <= ?", rng.EndRow)
	}
	var stored []models.LedgerRow
	if err := query.Order("row_index ASC").Find(&stored).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "read ledger rows")
	}
	if len(stored) == 0 {
		return [][]string{}, nil
	}

	// Gaps read back as empty rows, matching how a spreadsheet returns a range.
	last := stored[len(stored)-1].RowIndex
	out := make([][]string, last-rng.StartRow+1)
	for i := range out {
		out[i] = []string{}
	}
	for _, row := range stored {
		out[row.RowIndex-rng.StartRow] = window(row.Cells, rng)
	}
	return out, nil
}

func (s *TableStore) AppendRow(ctx context.Context, rangeID string, values []string) error {
	return s.AppendRows(ctx, rangeID, [][]string{values})
}

func (s *TableStore) AppendRows(ctx context.Context, rangeID string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	rng, err := ParseRange(rangeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "invalid ledger range")
	}

	err = retry.Do(ctx, appendPolicy, func(ctx context.Context, _ int) error {
		err := s.appendOnce(ctx, rng, rows)
		if err != nil && !db.IsUniqueViolation(err, rowIndexConstraint) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "append ledger rows")
	}
	return nil
}

func (s *TableStore) appendOnce(ctx context.Context, rng Range, rows [][]string) error {
	return s.base.Tx(ctx, func(tx *gorm.DB) error {
		last, err := repo.MaxInt(tx, &models.LedgerRow{}, "row_index", "sheet = ?", rng.Sheet)
		if err != nil {
			return err
		}
		if last < rng.StartRow-1 {
			last = rng.StartRow - 1
		}

		records := make([]models.LedgerRow, 0, len(rows))
		for i, values := range rows {
			records = append(records, models.LedgerRow{
				ID:       uuid.New(),
				Sheet:    rng.Sheet,
				RowIndex: last + i + 1,
				Cells:    place(nil, values, rng.StartCol),
			})
		}
		return tx.Create(&records).Error
	})
}

func (s *TableStore) UpdateRange(ctx context.Context, rangeID string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	rng, err := ParseRange(rangeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "invalid ledger range")
	}
	if rng.EndRow > 0 && len(rows) > rng.EndRow-rng.StartRow+1 {
		return pkgerrors.New(pkgerrors.CodeStoreUnavailable, "update exceeds addressed range")
	}

	err = s.base.Tx(ctx, func(tx *gorm.DB) error {
		for i, values := range rows {
			if w := rng.Width(); w > 0 && len(values) > w {
				values = values[:w]
			}
			index := rng.StartRow + i

			var existing models.LedgerRow
			res := tx.Where("sheet = ? AND row_index = ?", rng.Sheet, index).
				Limit(1).
				Find(&existing)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				created := models.LedgerRow{
					ID:       uuid.New(),
					Sheet:    rng.Sheet,
					RowIndex: index,
					Cells:    place(nil, values, rng.StartCol),
				}
				if err := tx.Create(&created).Error; err != nil {
					return err
				}
				continue
			}
			existing.Cells = place(existing.Cells, values, rng.StartCol)
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "update ledger rows")
	}
	return nil
}

// place writes values into cells starting at the 1-based column, growing the row as needed.
func place(cells []string, values []string, startCol int) []string {
	if startCol < 1 {
		startCol = 1
	}
	need := startCol - 1 + len(values)
	out := make([]string, max(len(cells), need))
	copy(out, cells)
	copy(out[startCol-1:], values)
	return out
}

func window(cells []string, rng Range) []string {
	from := rng.StartCol - 1
	if from >= len(cells) {
		return []string{}
	}
	to := len(cells)
	if rng.EndCol > 0 && rng.EndCol < to {
		to = rng.EndCol
	}
	out := make([]string, to-from)
	copy(out, cells[from:to])
	return out
}
