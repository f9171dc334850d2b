package util

import (
	"net/http"
	"strconv"
	"time"
)

// DateLayout is the calendar-date layout shared by the API and the view.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order. RFC1123 covers Flask's default JSON encoding of datetimes.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate parses a calendar date in any of the known layouts, or unix
// milliseconds. The result is truncated to midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return StartOfDay(t), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return StartOfDay(time.UnixMilli(ms)), true
	}
	return time.Time{}, false
}

// NormalizeDate rewrites s as YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return FormatDate(t), true
}

// FormatDate formats t as a UTC calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaySeries returns n consecutive calendar dates starting at the UTC date of from.
func DaySeries(from time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	day := StartOfDay(from)
	out := make([]string, n)
	for i := range out {
		out[i] = FormatDate(day.AddDate(0, 0, i))
	}
	return out
}
