package risk

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // account timezones must resolve on hosts without zoneinfo

	"tradejournal/internal/ports"
)

// DayWindow returns the [start, end) calendar day containing now in loc.
// Every daily boundary in the engine comes from here.
func DayWindow(now time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// LoadLocation resolves an IANA zone name. An empty name yields fallback (UTC when nil).
func LoadLocation(name string, fallback *time.Location) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, ports.ErrConfigurationError)
	}
	return loc, nil
}
