package cron

import (
	"fmt"
	"strings"
	"time"
)

// Schedule is a parsed five-field cron expression. Each field is a bitmask of
// the values it allows.
type Schedule struct {
	minutes     uint64 // 0-59
	hours       uint64 // 0-23
	daysOfMonth uint64 // 1-31
	months      uint64 // 1-12
	daysOfWeek  uint64 // 0-6 (0=Sunday)

	// Day fields written as "*" do not restrict the day
	domAny bool
	dowAny bool

	expr string
}

// Longest a search for the next occurrence may scan. Feb 29 schedules are
// the sparsest valid case.
const searchHorizon = 8 * 366 * 24 * time.Hour

var aliases = map[string]string{
	"@hourly":   "0 * * * *",
	"hourly":    "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"daily":     "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"weekly":    "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"monthly":   "0 0 1 * *",
}

// Parse parses a five-field cron expression.
// Returns error if:
// - Format is invalid (not 5 fields)
// - Any field contains invalid syntax
// - Impossible dates are specified (e.g., Feb 31st)
func Parse(expr string) (*Schedule, error) {
	return parse(expr)
}

// ParseFrequency parses a scout frequency: a cron expression or one of the
// aliases @hourly, @daily, @weekly, @monthly (with or without the @). An
// empty frequency or "manual" returns a nil schedule, meaning the scout only
// runs on demand.
func ParseFrequency(freq string) (*Schedule, error) {
	freq = strings.ToLower(strings.TrimSpace(freq))
	if freq == "" || freq == "manual" {
		return nil, nil
	}
	if expr, ok := aliases[freq]; ok {
		s, err := parse(expr)
		if err != nil {
			return nil, err
		}
		s.expr = freq
		return s, nil
	}
	if strings.HasPrefix(freq, "@") {
		return nil, fmt.Errorf("unknown frequency alias %q", freq)
	}
	return parse(freq)
}

// String returns the expression the schedule was parsed from
func (s *Schedule) String() string {
	return s.expr
}

// Next calculates the next count occurrences strictly after the given time,
// in after's location. Fewer are returned only if the schedule has no
// occurrence within the search horizon.
func (s *Schedule) Next(after time.Time, count int) []time.Time {
	results := make([]time.Time, 0, count)

	current := after.Truncate(time.Minute).Add(time.Minute)
	limit := current.Add(searchHorizon)

	for len(results) < count && current.Before(limit) {
		if !s.matchesDay(current) {
			// Skip to the start of the next day
			y, m, d := current.Date()
			current = time.Date(y, m, d+1, 0, 0, 0, 0, current.Location())
			continue
		}
		if !has(s.hours, current.Hour()) {
			y, m, d := current.Date()
			current = time.Date(y, m, d, current.Hour()+1, 0, 0, 0, current.Location())
			continue
		}
		if has(s.minutes, current.Minute()) {
			results = append(results, current)
		}
		current = current.Add(time.Minute)
	}

	return results
}

// Between calculates all occurrences within the window [start, end)
func (s *Schedule) Between(start, end time.Time) []time.Time {
	results := []time.Time{}

	current := start.Truncate(time.Minute)
	if current.Before(start) {
		current = current.Add(time.Minute)
	}

	for current.Before(end) {
		if s.matches(current) {
			results = append(results, current)
		}
		current = current.Add(time.Minute)
	}

	return results
}

// Due reports whether a run is owed at now: true when the scout never ran,
// or when an occurrence falls in (last, now].
func (s *Schedule) Due(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	next := s.Next(*last, 1)
	return len(next) == 1 && !next[0].After(now)
}
