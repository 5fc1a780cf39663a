package cron

import "time"

// matches checks if a time matches the schedule
func (s *Schedule) matches(t time.Time) bool {
	return has(s.minutes, t.Minute()) &&
		has(s.hours, t.Hour()) &&
		s.matchesDay(t)
}

// matchesDay applies the month and the day-of-month vs day-of-week rule.
//
// Cron standard behavior:
// - If both day fields are restricted: match if EITHER matches (OR logic)
// - If only one is restricted: match on that field only
// - If both are *: match any day
//
// Dates come from a time.Time, so they always exist; Feb 29 only shows up in
// leap years.
func (s *Schedule) matchesDay(t time.Time) bool {
	if !has(s.months, int(t.Month())) {
		return false
	}

	domMatch := has(s.daysOfMonth, t.Day())
	dowMatch := has(s.daysOfWeek, int(t.Weekday()))

	switch {
	case s.domAny && s.dowAny:
		return true
	case s.domAny:
		return dowMatch
	case s.dowAny:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

func has(mask uint64, v int) bool {
	return mask&(1<<uint(v)) != 0
}
