package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(hour, minute int, weekday time.Weekday) time.Time {
	// 2026-08-02 is a Sunday; offset from there to land on weekday.
	base := time.Date(2026, 8, 2, hour, minute, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(weekday))
}

func TestActiveWithinSimpleWindow(t *testing.T) {
	n := Node{Begin: TimeOfDay{Hour: 1, Minute: 0}, End: TimeOfDay{Hour: 5, Minute: 0}}
	require.True(t, n.Active(at(2, 30, time.Monday)))
	require.False(t, n.Active(at(6, 0, time.Monday)))
}

func TestActiveWrapsPastMidnight(t *testing.T) {
	n := Node{Begin: TimeOfDay{Hour: 22, Minute: 0}, End: TimeOfDay{Hour: 2, Minute: 0}}
	require.True(t, n.Active(at(23, 0, time.Monday)))
	require.True(t, n.Active(at(1, 0, time.Monday)))
	require.False(t, n.Active(at(10, 0, time.Monday)))
}

func TestActiveRestrictedToWeekdays(t *testing.T) {
	n := Node{
		Weekdays: NewWeekdaySet(time.Saturday, time.Sunday),
		Begin:    TimeOfDay{Hour: 0, Minute: 0},
		End:      TimeOfDay{Hour: 23, Minute: 59},
	}
	require.True(t, n.Active(at(10, 0, time.Saturday)))
	require.False(t, n.Active(at(10, 0, time.Tuesday)))
}

func TestScheduleEmptyIsAlwaysActive(t *testing.T) {
	var s Schedule
	require.True(t, s.Active(time.Now()))
}

func TestScheduleActiveIfAnyWindowMatches(t *testing.T) {
	s := Schedule{
		{Begin: TimeOfDay{Hour: 1}, End: TimeOfDay{Hour: 2}},
		{Begin: TimeOfDay{Hour: 13}, End: TimeOfDay{Hour: 14}},
	}
	require.True(t, s.Active(at(13, 30, time.Wednesday)))
	require.False(t, s.Active(at(5, 0, time.Wednesday)))
}
