package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/ledgersync/pkg/money"
)

// Column order of the income range. Other tooling reads these positions; do not reorder.
const (
	ColDate = iota
	ColParty
	ColDescription
	ColAmount
	ColPaymentMethod
	ColExternalID

	ColumnCount
)

const shortIDLength = 8

// RowFormat labels the rows a sync appends.
type RowFormat struct {
	Channel    string
	PartyLabel string
}

// BuildRow renders a payment into the fixed income layout:
// [date, party, "<channel> Payment <short id>", "$<amount>", channel, id].
func (f RowFormat) BuildRow(p RemotePayment) []string {
	channel := strings.TrimSpace(f.Channel)
	row := make([]string, ColumnCount)
	row[ColDate] = p.DateString()
	row[ColParty] = f.PartyLabel
	row[ColDescription] = fmt.Sprintf("%s Payment %s", channel, ShortID(p.ID))
	row[ColAmount] = money.Format(p.Amount)
	row[ColPaymentMethod] = channel
	row[ColExternalID] = p.ID
	return row
}

// BuildRows renders payments in order.
func (f RowFormat) BuildRows(payments []RemotePayment) [][]string {
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, f.BuildRow(p))
	}
	return rows
}

// ShortID truncates an external id for descriptions.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// ParseRow maps raw cells onto a LocalRow. Short rows are padded; malformed amounts become zero.
func ParseRow(index int, cells []string, loc *time.Location) LocalRow {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	row := LocalRow{
		Index:         index,
		RawDate:       cell(ColDate),
		Party:         cell(ColParty),
		Description:   cell(ColDescription),
		Amount:        money.Parse(cell(ColAmount)),
		PaymentMethod: cell(ColPaymentMethod),
		ExternalID:    cell(ColExternalID),
	}
	if d, ok := ParseDate(row.RawDate, loc); ok {
		row.Date = d
	}
	return row
}

// ParseRows converts a range read into LocalRows, skipping the header and blank rows.
func ParseRows(cells [][]string, hasHeader bool, loc *time.Location) []LocalRow {
	rows := make([]LocalRow, 0, len(cells))
	for i, raw := range cells {
		if i == 0 && hasHeader && looksLikeHeader(raw, loc) {
			continue
		}
		if isBlank(raw) {
			continue
		}
		rows = append(rows, ParseRow(i, raw, loc))
	}
	return rows
}

// looksLikeHeader requires label text in the date column as well as the amount column, so a
// data row with a corrupt amount is still read and its external id still counts.
func looksLikeHeader(cells []string, loc *time.Location) bool {
	date := strings.TrimSpace(valueAt(cells, ColDate))
	if date == "" {
		return false
	}
	if _, ok := ParseDate(date, loc); ok {
		return false
	}
	_, ok := money.ParseStrict(valueAt(cells, ColAmount))
	return !ok
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func valueAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
