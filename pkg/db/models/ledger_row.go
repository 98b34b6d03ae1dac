package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/ledgersync/pkg/db/types"
)

// LedgerRow is one row of a table-backed ledger sheet. RowIndex is 1-based like a spreadsheet.
type LedgerRow struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	Sheet     string        `gorm:"column:sheet;not null;uniqueIndex:idx_ledger_rows_sheet_row"`
	RowIndex  int           `gorm:"column:row_index;not null;uniqueIndex:idx_ledger_rows_sheet_row"`
	Cells     dbtypes.Cells `gorm:"column:cells;type:text;not null"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (LedgerRow) TableName() string { return "ledger_rows" }
