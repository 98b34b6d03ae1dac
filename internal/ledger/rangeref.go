package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Range is a parsed A1 reference such as "Income!A2:F" or "'Cash Book'!B3:D10".
// Columns and rows are 1-based; zero means unbounded.
type Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses A1 notation. A bare sheet name addresses the whole sheet.
func ParseRange(ref string) (Range, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Range{}, fmt.Errorf("range is required")
	}

	sheet, cells := ref, ""
	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		sheet, cells = ref[:idx], ref[idx+1:]
	}
	sheet = strings.TrimSpace(sheet)
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return Range{}, fmt.Errorf("range %q has no sheet name", ref)
	}

	r := Range{Sheet: sheet, StartCol: 1, StartRow: 1}
	cells = strings.TrimSpace(cells)
	if cells == "" {
		return r, nil
	}

	start, end, hasEnd := strings.Cut(cells, ":")
	col, row, err := parseCell(start)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", ref, err)
	}
	if col > 0 {
		r.StartCol = col
	}
	if row > 0 {
		r.StartRow = row
	}
	if !hasEnd {
		r.EndCol, r.EndRow = col, row
		return r, nil
	}
	col, row, err = parseCell(end)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", ref, err)
	}
	r.EndCol, r.EndRow = col, row
	if r.EndCol > 0 && r.EndCol < r.StartCol {
		return Range{}, fmt.Errorf("range %q: end column before start column", ref)
	}
	if r.EndRow > 0 && r.EndRow < r.StartRow {
		return Range{}, fmt.Errorf("range %q: end row before start row", ref)
	}
	return r, nil
}

// String renders the range back to A1 notation.
func (r Range) String() string {
	sheet := r.Sheet
	if strings.ContainsAny(sheet, " '!") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	start := ColumnName(r.StartCol) + rowLabel(r.StartRow)
	end := ColumnName(r.EndCol) + rowLabel(r.EndRow)
	if end == "" {
		return sheet + "!" + start
	}
	return sheet + "!" + start + ":" + end
}

// Width is the number of addressed columns, or 0 when unbounded.
func (r Range) Width() int {
	if r.EndCol == 0 {
		return 0
	}
	return r.EndCol - r.StartCol + 1
}

// ColumnName converts a 1-based column index to letters (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	if col <= 0 {
		return ""
	}
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}

func rowLabel(row int) string {
	if row <= 0 {
		return ""
	}
	return strconv.Itoa(row)
}

func parseCell(s string) (col, row int, err error) {
	s = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "$", "")))
	if s == "" {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	digits := s[i:]
	if digits == "" {
		return col, 0, nil
	}
	for _, ch := range digits {
		if !unicode.IsDigit(ch) {
			return 0, 0, fmt.Errorf("invalid cell reference %q", s)
		}
	}
	row, err = strconv.Atoi(digits)
	if err != nil || row == 0 {
		return 0, 0, fmt.Errorf("invalid row in %q", s)
	}
	return col, row, nil
}
