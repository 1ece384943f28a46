package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestNextFireTimeDailyAtFixedTime(t *testing.T) {
	n := Node{Enabled: true, Time: TimeOfDay{Hour: 3, Minute: 30}}
	got := n.NextFireTime(at(2026, 8, 1, 10, 0))
	require.Equal(t, at(2026, 8, 2, 3, 30), got)
}

func TestNextFireTimeLaterSameDay(t *testing.T) {
	n := Node{Enabled: true, Time: TimeOfDay{Hour: 22, Minute: 0}}
	got := n.NextFireTime(at(2026, 8, 1, 10, 0))
	require.Equal(t, at(2026, 8, 1, 22, 0), got)
}

func TestNextFireTimeDisabledNeverFires(t *testing.T) {
	n := Node{Enabled: false, Time: TimeOfDay{Hour: 3}}
	require.True(t, n.NextFireTime(at(2026, 8, 1, 0, 0)).IsZero())
}

func TestNextFireTimeRestrictedToWeekdays(t *testing.T) {
	// 2026-08-01 is a Saturday; restrict to Monday only.
	n := Node{
		Enabled:  true,
		Time:     TimeOfDay{Hour: 9},
		Weekdays: NewWeekdaySet(time.Monday),
	}
	got := n.NextFireTime(at(2026, 8, 1, 0, 0))
	require.Equal(t, time.Monday, got.Weekday())
	require.Equal(t, at(2026, 8, 3, 9, 0), got)
}

func TestNextFireTimeSingleDateInPastNeverFiresAgain(t *testing.T) {
	n := Node{
		Enabled: true,
		Date:    at(2026, 7, 1, 0, 0),
		Time:    TimeOfDay{Hour: 9},
	}
	require.True(t, n.NextFireTime(at(2026, 8, 1, 0, 0)).IsZero())
}

func TestNextFireTimeIntervalWithinWindow(t *testing.T) {
	n := Node{
		Enabled:      true,
		IntervalSecs: 3600,
		BeginTime:    TimeOfDay{Hour: 8},
		EndTime:      TimeOfDay{Hour: 18},
	}
	got := n.NextFireTime(at(2026, 8, 1, 10, 15))
	require.Equal(t, at(2026, 8, 1, 11, 0), got)
}

func TestNextFireTimeIntervalPastWindowRollsToNextDay(t *testing.T) {
	n := Node{
		Enabled:      true,
		IntervalSecs: 3600,
		BeginTime:    TimeOfDay{Hour: 8},
		EndTime:      TimeOfDay{Hour: 18},
	}
	got := n.NextFireTime(at(2026, 8, 1, 19, 0))
	require.Equal(t, at(2026, 8, 2, 8, 0), got)
}

func TestNextFireTimeIntervalWindowWrapsPastMidnight(t *testing.T) {
	n := Node{
		Enabled:      true,
		IntervalSecs: 1800,
		BeginTime:    TimeOfDay{Hour: 23},
		EndTime:      TimeOfDay{Hour: 1},
	}
	got := n.NextFireTime(at(2026, 8, 1, 23, 45))
	require.Equal(t, at(2026, 8, 2, 0, 0), got)
}

func TestNewWeekdaySetBuildsBitmap(t *testing.T) {
	set := NewWeekdaySet(time.Sunday, time.Saturday)
	require.True(t, set.Get(uint64(time.Sunday)))
	require.True(t, set.Get(uint64(time.Saturday)))
	require.False(t, set.Get(uint64(time.Wednesday)))
}
