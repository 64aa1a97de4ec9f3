package utils

import "time"

// FormatPrettyTimestamp renders t relative to now's calendar day in now's
// location:
//
//	"today at 14:30", "yesterday at 09:15", "on 02 Jan 2024 at 10:00"
//
// A zero t renders as "unknown time".
func FormatPrettyTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	t = t.In(now.Location())
	clock := t.Format("15:04")

	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	day := time.Date(ty, tm, td, 0, 0, 0, 0, now.Location())
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())

	switch {
	case day.Equal(today):
		return "today at " + clock
	case day.Equal(today.AddDate(0, 0, -1)):
		return "yesterday at " + clock
	default:
		return "on " + t.Format("02 Jan 2006") + " at " + clock
	}
}
