package cron

import (
	"fmt"
	"strconv"
	"strings"
)

type bounds struct {
	min, max int
	names    map[string]int
}

var (
	minuteBounds = bounds{min: 0, max: 59}
	hourBounds   = bounds{min: 0, max: 23}
	domBounds    = bounds{min: 1, max: 31}
	monthBounds  = bounds{min: 1, max: 12, names: map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}}
	// 7 is accepted as Sunday and folded onto 0
	dowBounds = bounds{min: 0, max: 7, names: map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}}
)

// parse parses a cron expression into a Schedule
func parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], minuteBounds)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}

	hours, err := parseField(fields[1], hourBounds)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}

	daysOfMonth, err := parseField(fields[2], domBounds)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}

	months, err := parseField(fields[3], monthBounds)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}

	daysOfWeek, err := parseField(fields[4], dowBounds)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}
	if has(daysOfWeek, 7) {
		daysOfWeek = daysOfWeek&^(1<<7) | 1
	}

	s := &Schedule{
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: daysOfMonth,
		months:      months,
		daysOfWeek:  daysOfWeek,
		domAny:      strings.HasPrefix(fields[2], "*"),
		dowAny:      strings.HasPrefix(fields[4], "*"),
		expr:        expr,
	}

	// With a restricted weekday the day-of-month is OR'ed, so the schedule
	// can still run
	if s.dowAny {
		if err := validateImpossibleDates(daysOfMonth, months); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// parseField parses a comma separated list of values, ranges and steps
func parseField(field string, b bounds) (uint64, error) {
	if field == "" {
		return 0, fmt.Errorf("empty field")
	}

	var mask uint64
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty value in list")
		}
		bits, err := parsePart(strings.ToLower(part), b)
		if err != nil {
			return 0, err
		}
		mask |= bits
	}
	return mask, nil
}

// parsePart parses one of: *, N, N-M, */S, N-M/S, N/S
func parsePart(part string, b bounds) (uint64, error) {
	rangePart, stepPart, hasStep := strings.Cut(part, "/")

	step := 1
	if hasStep {
		var err error
		step, err = strconv.Atoi(stepPart)
		if err != nil {
			return 0, fmt.Errorf("invalid step value: %w", err)
		}
		if step <= 0 {
			return 0, fmt.Errorf("step must be greater than 0")
		}
	}

	var start, end int
	switch {
	case rangePart == "*":
		start, end = b.min, b.max
	case strings.Contains(rangePart, "-"):
		lo, hi, _ := strings.Cut(rangePart, "-")
		var err error
		if start, err = parseValue(lo, b); err != nil {
			return 0, fmt.Errorf("invalid range start: %w", err)
		}
		if end, err = parseValue(hi, b); err != nil {
			return 0, fmt.Errorf("invalid range end: %w", err)
		}
		if start > end {
			return 0, fmt.Errorf("invalid range: start %d > end %d", start, end)
		}
	default:
		v, err := parseValue(rangePart, b)
		if err != nil {
			return 0, err
		}
		start, end = v, v
		if hasStep {
			end = b.max
		}
	}

	var mask uint64
	for v := start; v <= end; v += step {
		mask |= 1 << uint(v)
	}
	return mask, nil
}

// parseValue parses a number or a name within bounds
func parseValue(s string, b bounds) (int, error) {
	if v, ok := b.names[s]; ok {
		return v, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < b.min || v > b.max {
		return 0, fmt.Errorf("value %d out of bounds [%d, %d]", v, b.min, b.max)
	}
	return v, nil
}

// validateImpossibleDates errors only if the schedule can never run
func validateImpossibleDates(daysOfMonth, months uint64) error {
	for month := 1; month <= 12; month++ {
		if !has(months, month) {
			continue
		}
		for day := 1; day <= daysInMonth(month); day++ {
			if has(daysOfMonth, day) {
				return nil
			}
		}
	}
	return fmt.Errorf("impossible date: no month in the schedule has any of its days")
}

// daysInMonth returns the maximum number of days in a month, allowing Feb 29
func daysInMonth(month int) int {
	switch month {
	case 2:
		return 29
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
