package domain

import "time"

// TimestampLayout is the stored timestamp format: local-time, zero-padded,
// millisecond precision. Both the ingest and query sides format with this
// layout so that window-cutoff comparisons work lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000"

// FormatTime renders a time in the stored timestamp format.
func FormatTime(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTime parses a stored timestamp back into a local time.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}
