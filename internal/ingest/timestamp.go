package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// timestampLayouts are tried in order before any heuristic parsing
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"02.01.2006 15:04:05",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds
// (1e11 s is the year 5138; 1e11 ms is 1973)
const epochMillisThreshold = 1e11

// ParseTimestamp parses s using the known layouts, then as epoch seconds or
// milliseconds, then with dateparse. Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		if math.Abs(v) >= epochMillisThreshold {
			return time.UnixMilli(int64(math.Round(v))).UTC(), nil
		}
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
