package scheduler

import (
	"time"

	"github.com/arkeep-io/arkeep/server/internal/catalog"
	"github.com/arkeep-io/arkeep/shared/bitset"
)

// Node is spec.md's ScheduleNode: a richer trigger model than the
// gocron cron string a Policy carries directly. It supplements rather
// than replaces Policy.Schedule — a policy with no Node configured
// keeps running on its plain cron expression, exactly as the teacher's
// scheduler already does; Node exists for policies that need a
// calendar date, a weekday restriction, or an interval-seconds repeat
// that a five-field cron string cannot express compactly.
type Node struct {
	UUID           string
	ParentUUID     string
	Date           time.Time // zero = no single-date restriction
	Weekdays       *bitset.Bitmap
	Time           TimeOfDay // zero = interval-only, no time-of-day anchor
	ArchiveType    catalog.ArchiveType
	IntervalSecs   int // 0 = no repeat; fires once at Time
	BeginTime      TimeOfDay
	EndTime        TimeOfDay
	Enabled        bool
	TestAfterCreate bool
	NoStorage      bool
	CustomText     string
}

// TimeOfDay is a wall-clock time within a day, ignoring date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) isZero() bool { return t.Hour == 0 && t.Minute == 0 }

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// NextFireTime returns the next time at or after after that n should
// fire, or the zero time if n is disabled or can never fire again
// (a single Date restriction already in the past with no interval).
func (n Node) NextFireTime(after time.Time) time.Time {
	if !n.Enabled {
		return time.Time{}
	}

	day := after
	for i := 0; i < 366*2; i++ { // bounded search: at most two years out
		if n.dateMatches(day) {
			if t, ok := n.fireTimeOnDay(day, after); ok {
				return t
			}
		}
		day = startOfNextDay(day)
	}
	return time.Time{}
}

func (n Node) dateMatches(day time.Time) bool {
	if !n.Date.IsZero() && !sameDate(n.Date, day) {
		return false
	}
	if n.Weekdays != nil && !n.Weekdays.Get(uint64(day.Weekday())) {
		return false
	}
	return true
}

// fireTimeOnDay returns the earliest fire time on day that is >= after,
// honoring either a fixed Time anchor or an IntervalSecs repeat within
// [BeginTime, EndTime).
func (n Node) fireTimeOnDay(day, after time.Time) (time.Time, bool) {
	y, m, d := day.Date()

	if n.IntervalSecs <= 0 {
		if n.Time.isZero() {
			return time.Time{}, false
		}
		candidate := time.Date(y, m, d, n.Time.Hour, n.Time.Minute, 0, 0, day.Location())
		if candidate.Before(after) {
			return time.Time{}, false
		}
		return candidate, true
	}

	begin := time.Date(y, m, d, n.BeginTime.Hour, n.BeginTime.Minute, 0, 0, day.Location())
	end := time.Date(y, m, d, n.EndTime.Hour, n.EndTime.Minute, 0, 0, day.Location())
	if n.EndTime.minutes() <= n.BeginTime.minutes() {
		end = end.AddDate(0, 0, 1) // window wraps past midnight
	}

	start := begin
	if after.After(start) {
		elapsed := after.Sub(begin)
		step := time.Duration(n.IntervalSecs) * time.Second
		ticks := elapsed / step
		start = begin.Add(ticks * step)
		if start.Before(after) {
			start = start.Add(step)
		}
	}
	if start.Before(begin) || !start.Before(end) {
		return time.Time{}, false
	}
	return start, true
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// NewWeekdaySet builds a 7-bit Bitmap marking days, indexed the same
// way as time.Weekday (0 = Sunday). Mirrors maintenance.NewWeekdaySet;
// kept as a separate copy since Node.Weekdays is evaluated independently
// of any maintenance window.
func NewWeekdaySet(days ...time.Weekday) *bitset.Bitmap {
	b := bitset.New(7)
	for _, d := range days {
		b.Set(uint64(d))
	}
	return b
}
