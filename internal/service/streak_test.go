package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("bad date %q: %v", value, err)
	}
	return parsed
}

func TestComputeStreak(t *testing.T) {
	today := "2025-06-10"

	tests := []struct {
		name        string
		dates       []string
		wantCurrent int
		wantMax     int
	}{
		{
			name:        "empty history",
			dates:       nil,
			wantCurrent: 0,
			wantMax:     0,
		},
		{
			name:        "visited today and yesterday",
			dates:       []string{"2025-06-09", "2025-06-10"},
			wantCurrent: 2,
			wantMax:     2,
		},
		{
			name:        "current run shorter than an older one",
			dates:       []string{"2025-06-01", "2025-06-02", "2025-06-03", "2025-06-04", "2025-06-05", "2025-06-10"},
			wantCurrent: 1,
			wantMax:     5,
		},
		{
			name:        "no visit today but visited yesterday",
			dates:       []string{"2025-06-08", "2025-06-09"},
			wantCurrent: 2,
			wantMax:     2,
		},
		{
			name:        "gap before yesterday breaks the current streak",
			dates:       []string{"2025-06-05", "2025-06-06"},
			wantCurrent: 0,
			wantMax:     2,
		},
		{
			name:        "duplicate same-day visits count once",
			dates:       []string{"2025-06-09", "2025-06-09", "2025-06-10", "2025-06-10"},
			wantCurrent: 2,
			wantMax:     2,
		},
		{
			name:        "single visit today",
			dates:       []string{"2025-06-10"},
			wantCurrent: 1,
			wantMax:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := make([]time.Time, 0, len(tt.dates))
			for _, d := range tt.dates {
				dates = append(dates, day(t, d))
			}
			streak := ComputeStreak(dates, day(t, today))
			assert.Equal(t, tt.wantCurrent, streak.Current, "current")
			assert.Equal(t, tt.wantMax, streak.Max, "max")
		})
	}
}

func TestComputeStreakIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2025, 6, 10, 23, 45, 0, 0, time.UTC)
	dates := []time.Time{
		time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 10, 1, 15, 0, 0, time.UTC),
	}
	streak := ComputeStreak(dates, today)
	assert.Equal(t, 2, streak.Current)
	assert.Equal(t, 2, streak.Max)
}
