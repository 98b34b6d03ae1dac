package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgersync/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ledgersync/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.LedgerRow{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestTableStoreReadMissingSheetIsEmpty(t *testing.T) {
	store := NewTableStore(setupLedgerTestDB(t))

	rows, err := store.ReadRange(context.Background(), "Income!A:F")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTableStoreAppendThenRead(t *testing.T) {
	ctx := context.Background()
	store := NewTableStore(setupLedgerTestDB(t))

	require.NoError(t, store.AppendRow(ctx, "Income!A:F", []string{"Date", "Client", "Description", "Amount", "Method", "Payment ID"}))
	require.NoError(t, store.AppendRows(ctx, "Income!A:F", [][]string{
		{"2026-01-10", "Square Customer", "Square Payment P1", "$280.00", "Square", "P1"},
		{"2026-01-12", "Square Customer", "Square Payment P2", "$160.00", "Square", "P2"},
	}))

	rows, err := store.ReadRange(ctx, "Income!A:F")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Payment ID", rows[0][5])
	assert.Equal(t, "P2", rows[2][5])

	body, err := store.ReadRange(ctx, "Income!A2:F")
	require.NoError(t, err)
	require.Len(t, body, 2)
	assert.Equal(t, "$280.00", body[0][3])
}

func TestTableStoreAppendEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	db := setupLedgerTestDB(t)
	store := NewTableStore(db)

	require.NoError(t, store.AppendRows(ctx, "Income!A:F", nil))

	var count int64
	require.NoError(t, db.Model(&models.LedgerRow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTableStoreColumnWindow(t *testing.T) {
	ctx := context.Background()
	store := NewTableStore(setupLedgerTestDB(t))

	require.NoError(t, store.AppendRow(ctx, "Income!A:F", []string{"a", "b", "c", "d", "e", "f"}))

	rows, err := store.ReadRange(ctx, "Income!B1:C")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"b", "c"}, rows[0])
}

func TestTableStoreUpdateRangeOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	store := NewTableStore(setupLedgerTestDB(t))

	require.NoError(t, store.AppendRows(ctx, "Income!A:F", [][]string{
		{"2026-01-10", "Cash", "Cleaning", "$90.00", "Cash", ""},
		{"2026-01-11", "Cash", "Cleaning", "$95.00", "Cash", ""},
	}))
	require.NoError(t, store.UpdateRange(ctx, "Income!D2", [][]string{{"$99.00"}}))

	rows, err := store.ReadRange(ctx, "Income!A:F")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "$90.00", rows[0][3])
	assert.Equal(t, "$99.00", rows[1][3])
	assert.Equal(t, "Cleaning", rows[1][2])
}

func TestTableStoreUpdateBeyondLastRowLeavesGap(t *testing.T) {
	ctx := context.Background()
	store := NewTableStore(setupLedgerTestDB(t))

	require.NoError(t, store.AppendRow(ctx, "Notes!A:B", []string{"first", "x"}))
	require.NoError(t, store.UpdateRange(ctx, "Notes!A3:B3", [][]string{{"third", "y"}}))

	rows, err := store.ReadRange(ctx, "Notes")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Empty(t, rows[1])
	assert.Equal(t, "third", rows[2][0])

	require.NoError(t, store.AppendRow(ctx, "Notes!A:B", []string{"fourth", "z"}))
	rows, err = store.ReadRange(ctx, "Notes")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "fourth", rows[3][0])
}

func TestTableStoreInvalidRange(t *testing.T) {
	store := NewTableStore(setupLedgerTestDB(t))

	_, err := store.ReadRange(context.Background(), "Income!F:A")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStoreUnavailable, pkgerrors.CodeOf(err))
}
