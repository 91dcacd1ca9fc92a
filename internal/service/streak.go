package service

import (
	"time"

	"github.com/ritmo-academy/academy-api/internal/dto"
)

// ComputeStreak derives the current and longest run of consecutive
// attendance days from a student's attendance dates. Dates may arrive in
// any order and with duplicates; only the calendar day matters. The
// current streak counts backwards from today, where a visit yesterday
// still keeps it alive when none happened yet today.
func ComputeStreak(dates []time.Time, today time.Time) dto.Streak {
	if len(dates) == 0 {
		return dto.Streak{}
	}

	days := make(map[int64]struct{}, len(dates))
	for _, d := range dates {
		days[dayOrdinal(d)] = struct{}{}
	}

	longest := 0
	for day := range days {
		if _, prev := days[day-1]; prev {
			continue
		}
		length := 1
		for next := day + 1; ; next++ {
			if _, ok := days[next]; !ok {
				break
			}
			length++
		}
		if length > longest {
			longest = length
		}
	}

	current := 0
	anchor := dayOrdinal(today)
	if _, ok := days[anchor]; !ok {
		// No visit today yet; a streak ending yesterday still counts.
		anchor--
	}
	for {
		if _, ok := days[anchor]; !ok {
			break
		}
		current++
		anchor--
	}

	return dto.Streak{Current: current, Max: longest}
}

// dayOrdinal collapses a timestamp to a day index that increments by one
// per calendar day, so consecutive days differ by exactly 1.
func dayOrdinal(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
