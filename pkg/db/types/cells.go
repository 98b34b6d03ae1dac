package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Cells stores one ledger row's cell values as a JSON array of strings.
type Cells []string

func (c *Cells) Scan(src any) error {
	if src == nil {
		*c = Cells{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("Cells: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		*c = Cells{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("Cells: decode: %w", err)
	}
	*c = Cells(out)
	return nil
}

func (c Cells) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(c))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
