// Package maintenance implements MaintenanceNode windows that gate
// background index and purge work (spec.md §4.5): a time-of-day range,
// optionally restricted to a weekday set or a single calendar date.
package maintenance

import (
	"time"

	"github.com/arkeep-io/arkeep/shared/bitset"
)

// Node is one maintenance window. Weekdays is nil to mean "every day";
// when set it is a 7-bit set (bitset.Bitmap sized 7, time.Sunday=0
// through time.Saturday=6) mirroring the weekday-set representation
// spec.md's ScheduleNode also uses for its own weekday restriction.
// Date, if non-zero, restricts the window to a single calendar day;
// when both Date and Weekdays are set, both must match.
type Node struct {
	Date     time.Time // zero value = no single-date restriction
	Weekdays *bitset.Bitmap
	Begin    TimeOfDay
	End      TimeOfDay
}

// TimeOfDay is a wall-clock time within a day, ignoring date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// Active reports whether now falls inside the window. A window whose
// End is earlier than its Begin wraps past midnight (e.g. 22:00-02:00).
func (n Node) Active(now time.Time) bool {
	if !n.Date.IsZero() && !sameDate(n.Date, now) {
		return false
	}
	if n.Weekdays != nil && !n.Weekdays.Get(uint64(now.Weekday())) {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	begin, end := n.Begin.minutes(), n.End.minutes()
	if begin <= end {
		return cur >= begin && cur < end
	}
	return cur >= begin || cur < end // wraps past midnight
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NewWeekdaySet builds a 7-bit Weekdays bitmap with days set, where
// each day is a time.Weekday value (0=Sunday .. 6=Saturday).
func NewWeekdaySet(days ...time.Weekday) *bitset.Bitmap {
	b := bitset.New(7)
	for _, d := range days {
		b.Set(uint64(d))
	}
	return b
}

// Schedule gates a list of windows as one policy: Active reports true
// if any window in the list is currently active, or if the list is
// empty (no maintenance restriction configured at all).
type Schedule []Node

// Active reports whether now falls inside any window of s.
func (s Schedule) Active(now time.Time) bool {
	if len(s) == 0 {
		return true
	}
	for _, n := range s {
		if n.Active(now) {
			return true
		}
	}
	return false
}
