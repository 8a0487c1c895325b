package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// instantLayouts carry their own offset.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

// localLayouts are interpreted in the store's time zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// parseDue converts a due value to a date ("2006-01-02") or a local
// RFC3339 datetime. The first ten characters of the result are always the
// local calendar date.
func parseDue(v any, loc *time.Location) (string, bool) {
	switch d := v.(type) {
	case string:
		return parseDueString(strings.TrimSpace(d), loc)
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return "", false
		}
		return fromUnix(f, loc)
	case float64:
		return fromUnix(d, loc)
	case int:
		return fromUnix(float64(d), loc)
	case int64:
		return fromUnix(float64(d), loc)
	case map[string]any:
		for _, k := range nestedDueField {
			if s, ok := d[k].(string); ok {
				if due, ok := parseDueString(strings.TrimSpace(s), loc); ok {
					return due, true
				}
			}
		}
	}
	return "", false
}

func parseDueString(s string, loc *time.Location) (string, bool) {
	if s == "" {
		return "", false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromUnix(f, loc)
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc).Format(time.RFC3339), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Format(time.RFC3339), true
		}
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t.Format(dateLayout), true
	}
	return "", false
}

// maxUnix is 10000-01-01T00:00:00Z; later instants have no four digit year.
const maxUnix = 253402300800

// fromUnix accepts seconds, or milliseconds for values above 1e11.
func fromUnix(f float64, loc *time.Location) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return "", false
	}
	if f > 1e11 {
		f /= 1000
	}
	if f >= maxUnix {
		return "", false
	}
	sec, frac := math.Modf(f)
	t := time.Unix(int64(sec), int64(frac*1e9)).In(loc)
	if t.Year() > 9999 {
		return "", false
	}
	return t.Format(time.RFC3339), true
}

// localDate returns the calendar date prefix of a stored due value.
func localDate(due string) (time.Time, bool) {
	if len(due) < len(dateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, due[:len(dateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
