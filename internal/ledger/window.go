package ledger

import "time"

// TrailingWindow returns [start of the day days-1 before now, now] in loc.
// days below 1 is treated as 1.
func TrailingWindow(now time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	if days < 1 {
		days = 1
	}
	local := now.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d-(days-1), 0, 0, 0, 0, loc)
	return start, local
}
