// Package schedule implements the availability core: interval arithmetic
// over the shop's opening windows, slot-grid generation, and the search for
// the nearest free slots around a rejected time.
package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two half-open intervals intersect. Touching
// intervals do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Subtract removes the busy intervals from the window and returns the
// remaining free intervals, ordered and coalesced. Overlapping and
// out-of-order busy intervals are tolerated.
func Subtract(window Interval, busy []Interval) []Interval {
	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var free []Interval
	cursor := window.Start
	for _, b := range sorted {
		if !b.Overlaps(window) {
			continue
		}
		if b.Start.After(cursor) {
			gap := Interval{Start: cursor, End: b.Start}
			if gap.End.After(window.End) {
				gap.End = window.End
			}
			if gap.End.After(gap.Start) {
				free = append(free, gap)
			}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(window.End) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// SlotGrid enumerates candidate slot starts inside the window, stepping by
// granularity from the window start. A slot ending exactly at the window
// close is valid.
func SlotGrid(window Interval, duration, granularity time.Duration) []time.Time {
	var starts []time.Time
	for t := window.Start; t.Before(window.End); t = t.Add(granularity) {
		if t.Add(duration).After(window.End) {
			break
		}
		starts = append(starts, t)
	}
	return starts
}

// Nearest finds, among the free intervals long enough for duration, the
// latest-fitting slot ending at or before target and the earliest slot
// starting at or after target. Either side may be nil.
func Nearest(target time.Time, free []Interval, duration time.Duration) (previous, next *time.Time) {
	for _, iv := range free {
		if iv.Duration() < duration {
			continue
		}
		if !iv.End.After(target) {
			start := iv.End.Add(-duration)
			if previous == nil || start.After(*previous) {
				s := start
				previous = &s
			}
		}
		if !iv.Start.Before(target) {
			if next == nil || iv.Start.Before(*next) {
				s := iv.Start
				next = &s
			}
		}
	}
	return previous, next
}
