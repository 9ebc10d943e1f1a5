package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/figarolabs/figaro-booking/internal/catalog"
)

// ErrCalendarUnavailable marks a failed busy-interval fetch. The calculator
// propagates it instead of treating the day as free.
var ErrCalendarUnavailable = errors.New("schedule: calendar unavailable")

// BusySource reports the occupied intervals of the shared calendar inside a
// window. Fetched fresh on every call, never cached across turns.
type BusySource interface {
	BusyIntervals(ctx context.Context, window Interval) ([]Interval, error)
}

// Slot is a candidate booking start with its implied end.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Calculator answers "is [t, t+d) free?" and "which slots of duration d
// exist in band B on day X?" against a live busy source.
type Calculator struct {
	cat  *catalog.Catalog
	busy BusySource
	now  func() time.Time
}

// NewCalculator creates a calculator over the given catalog and busy source.
func NewCalculator(cat *catalog.Catalog, busy BusySource) *Calculator {
	return &Calculator{cat: cat, busy: busy, now: time.Now}
}

// WithClock overrides the clock. Tests use this to pin "today".
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	if now != nil {
		c.now = now
	}
	return c
}

// EffectiveStart returns the first admissible slot start in the band on the
// given date, or nil when the band is already over for today.
//
// For a future date this is simply the band start. For today the minimum
// lead time is applied first, then the result is clamped up to the band
// start, and finally rounded up to the next granularity grid point measured
// from the band start.
func (c *Calculator) EffectiveStart(date time.Time, band catalog.TimeBand) *time.Time {
	bandStart, bandEnd := c.cat.BandWindow(date, band)
	now := c.now().In(c.cat.Location)

	ny, nm, nd := now.Date()
	dy, dm, dd := date.In(c.cat.Location).Date()
	if ny != dy || nm != dm || nd != dd {
		return &bandStart
	}

	earliest := now.Add(c.cat.LeadTime)
	if earliest.Before(bandStart) {
		return &bandStart
	}
	if !earliest.Before(bandEnd) {
		return nil
	}
	offset := earliest.Sub(bandStart)
	if rem := offset % c.cat.Granularity; rem != 0 {
		earliest = earliest.Add(c.cat.Granularity - rem)
	}
	return &earliest
}

// IsFree reports whether [start, end) is free of busy intervals.
func (c *Calculator) IsFree(ctx context.Context, start, end time.Time) (bool, error) {
	busy, err := c.busy.BusyIntervals(ctx, Interval{Start: start, End: end})
	if err != nil {
		return false, fmt.Errorf("schedule: check availability: %w", err)
	}
	requested := Interval{Start: start, End: end}
	for _, b := range busy {
		if requested.Overlaps(b) {
			return false, nil
		}
	}
	return true, nil
}

// AvailableSlots lists the free slots of the given total duration in the
// band on the given date, on the configured granularity grid.
func (c *Calculator) AvailableSlots(ctx context.Context, date time.Time, band catalog.TimeBand, totalDuration time.Duration) ([]Slot, error) {
	start := c.EffectiveStart(date, band)
	if start == nil {
		return nil, nil
	}
	bandStart, bandEnd := c.cat.BandWindow(date, band)

	busy, err := c.busy.BusyIntervals(ctx, Interval{Start: bandStart, End: bandEnd})
	if err != nil {
		return nil, fmt.Errorf("schedule: list slots for %s: %w", band.Name, err)
	}

	var slots []Slot
	for _, t := range SlotGrid(Interval{Start: *start, End: bandEnd}, totalDuration, c.cat.Granularity) {
		candidate := Interval{Start: t, End: t.Add(totalDuration)}
		blocked := false
		for _, b := range busy {
			if candidate.Overlaps(b) {
				blocked = true
				break
			}
		}
		if !blocked {
			slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
		}
	}
	return slots, nil
}
