package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Base is embedded by gorm-backed stores.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Tx runs fn in a transaction bound to ctx; any error from fn rolls it back and is returned as is.
func (b Base) Tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.DB(ctx).Transaction(fn)
}

// MaxInt returns MAX(column) over model rows matching the condition, or 0 when none match.
func MaxInt(tx *gorm.DB, model any, column string, query string, args ...any) (int, error) {
	var out int
	err := tx.Model(model).
		Where(query, args...).
		Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", column)).
		Scan(&out).Error
	return out, err
}
