package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/figarolabs/figaro-booking/internal/catalog"
)

// Alternatives is the pair of substitute slots around a rejected time.
// Either side may be nil; both nil means no substitute exists that day.
type Alternatives struct {
	Previous *Slot
	Next     *Slot
}

// Finder searches for the closest free slots around a rejected requested
// time, across every opening band of that day. The search never widens
// beyond the requested day.
type Finder struct {
	cat  *catalog.Catalog
	busy BusySource
}

// NewFinder creates an alternative slot finder.
func NewFinder(cat *catalog.Catalog, busy BusySource) *Finder {
	return &Finder{cat: cat, busy: busy}
}

// FindNearby returns the latest-fitting free slot ending at or before
// requestedStart and the earliest free slot starting at or after it.
func (f *Finder) FindNearby(ctx context.Context, requestedStart time.Time, totalDuration time.Duration) (Alternatives, error) {
	var free []Interval
	for _, band := range f.cat.Bands() {
		bandStart, bandEnd := f.cat.BandWindow(requestedStart, band)
		window := Interval{Start: bandStart, End: bandEnd}
		busy, err := f.busy.BusyIntervals(ctx, window)
		if err != nil {
			return Alternatives{}, fmt.Errorf("schedule: find alternatives in %s: %w", band.Name, err)
		}
		free = append(free, Subtract(window, busy)...)
	}

	previous, next := Nearest(requestedStart, free, totalDuration)
	var alts Alternatives
	if previous != nil {
		alts.Previous = &Slot{Start: *previous, End: previous.Add(totalDuration)}
	}
	if next != nil {
		alts.Next = &Slot{Start: *next, End: next.Add(totalDuration)}
	}
	return alts, nil
}
