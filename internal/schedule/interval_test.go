package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rome = mustLoadRome()

func mustLoadRome() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		panic(err)
	}
	return loc
}

func at(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 3, 10, hour, min, 0, 0, rome)
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := Interval{Start: at(t, 9, 0), End: at(t, 10, 0)}

	assert.True(t, a.Overlaps(Interval{Start: at(t, 9, 30), End: at(t, 10, 30)}))
	assert.True(t, a.Overlaps(Interval{Start: at(t, 8, 0), End: at(t, 9, 15)}))
	assert.True(t, a.Overlaps(Interval{Start: at(t, 9, 15), End: at(t, 9, 45)}))

	// Touching intervals do not overlap.
	assert.False(t, a.Overlaps(Interval{Start: at(t, 10, 0), End: at(t, 11, 0)}))
	assert.False(t, a.Overlaps(Interval{Start: at(t, 8, 0), End: at(t, 9, 0)}))
}

func TestSubtractEmitsOrderedGaps(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 13, 0)}
	busy := []Interval{
		{Start: at(t, 11, 0), End: at(t, 11, 45)},
		{Start: at(t, 9, 30), End: at(t, 10, 0)},
	}

	free := Subtract(window, busy)

	require.Len(t, free, 3)
	assert.Equal(t, Interval{Start: at(t, 9, 0), End: at(t, 9, 30)}, free[0])
	assert.Equal(t, Interval{Start: at(t, 10, 0), End: at(t, 11, 0)}, free[1])
	assert.Equal(t, Interval{Start: at(t, 11, 45), End: at(t, 13, 0)}, free[2])
}

func TestSubtractToleratesOverlappingBusy(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 13, 0)}
	busy := []Interval{
		{Start: at(t, 9, 0), End: at(t, 10, 30)},
		{Start: at(t, 10, 0), End: at(t, 11, 0)},
		{Start: at(t, 8, 0), End: at(t, 9, 15)},
	}

	free := Subtract(window, busy)

	require.Len(t, free, 1)
	assert.Equal(t, Interval{Start: at(t, 11, 0), End: at(t, 13, 0)}, free[0])
}

func TestSubtractBusyOutsideWindowIsIgnored(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 13, 0)}
	busy := []Interval{
		{Start: at(t, 7, 0), End: at(t, 8, 0)},
		{Start: at(t, 14, 0), End: at(t, 15, 0)},
	}

	free := Subtract(window, busy)

	require.Len(t, free, 1)
	assert.Equal(t, window, free[0])
}

func TestSubtractFullyBusyWindow(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 13, 0)}
	busy := []Interval{{Start: at(t, 8, 0), End: at(t, 14, 0)}}

	assert.Empty(t, Subtract(window, busy))
}

// Union of the free intervals with the busy-inside-window parts must cover
// the window exactly, with no two free intervals overlapping.
func TestSubtractCoverageProperty(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 20, 0)}
	busy := []Interval{
		{Start: at(t, 9, 15), End: at(t, 9, 45)},
		{Start: at(t, 12, 0), End: at(t, 13, 30)},
		{Start: at(t, 13, 0), End: at(t, 14, 0)},
		{Start: at(t, 19, 45), End: at(t, 20, 30)},
	}

	free := Subtract(window, busy)

	var covered time.Duration
	for i, iv := range free {
		assert.True(t, iv.End.After(iv.Start), "free interval %d must have positive length", i)
		covered += iv.Duration()
		for j := i + 1; j < len(free); j++ {
			assert.False(t, iv.Overlaps(free[j]), "free intervals %d and %d overlap", i, j)
		}
		for _, b := range busy {
			assert.False(t, iv.Overlaps(b), "free interval %d overlaps busy %v", i, b)
		}
	}
	// 11h window minus 30m, 2h coalesced, 15m inside-window busy.
	assert.Equal(t, 11*time.Hour-(30+120+15)*time.Minute, covered)
}

func TestSlotGridMorningBand(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 13, 0)}

	starts := SlotGrid(window, 45*time.Minute, 15*time.Minute)

	require.Len(t, starts, 14)
	assert.Equal(t, at(t, 9, 0), starts[0])
	// Last slot ends exactly at window close.
	assert.Equal(t, at(t, 12, 15), starts[13])
}

func TestSlotGridNeverExceedsWindowEnd(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 13, 0)}

	for _, duration := range []time.Duration{15 * time.Minute, 45 * time.Minute, 60 * time.Minute} {
		for _, start := range SlotGrid(window, duration, 15*time.Minute) {
			assert.False(t, start.Add(duration).After(window.End))
		}
	}
}

func TestSlotGridDurationLongerThanWindow(t *testing.T) {
	window := Interval{Start: at(t, 9, 0), End: at(t, 10, 0)}

	assert.Empty(t, SlotGrid(window, 2*time.Hour, 15*time.Minute))
}

func TestNearestAroundRejectedSlot(t *testing.T) {
	free := []Interval{
		{Start: at(t, 10, 0), End: at(t, 11, 0)},
		{Start: at(t, 11, 45), End: at(t, 13, 0)},
	}

	previous, next := Nearest(at(t, 11, 0), free, 45*time.Minute)

	require.NotNil(t, previous)
	require.NotNil(t, next)
	assert.Equal(t, at(t, 10, 15), *previous)
	assert.Equal(t, at(t, 11, 45), *next)
}

func TestNearestSkipsShortIntervals(t *testing.T) {
	free := []Interval{
		{Start: at(t, 10, 30), End: at(t, 11, 0)}, // 30m, too short for 45m
		{Start: at(t, 9, 0), End: at(t, 10, 0)},
		{Start: at(t, 12, 0), End: at(t, 12, 30)}, // too short
		{Start: at(t, 15, 0), End: at(t, 16, 0)},
	}

	previous, next := Nearest(at(t, 11, 0), free, 45*time.Minute)

	require.NotNil(t, previous)
	require.NotNil(t, next)
	assert.Equal(t, at(t, 9, 15), *previous)
	assert.Equal(t, at(t, 15, 0), *next)
}

func TestNearestEitherSideAbsent(t *testing.T) {
	previous, next := Nearest(at(t, 11, 0), []Interval{{Start: at(t, 11, 45), End: at(t, 13, 0)}}, 45*time.Minute)
	assert.Nil(t, previous)
	require.NotNil(t, next)

	previous, next = Nearest(at(t, 11, 0), []Interval{{Start: at(t, 9, 0), End: at(t, 10, 0)}}, 45*time.Minute)
	require.NotNil(t, previous)
	assert.Nil(t, next)

	previous, next = Nearest(at(t, 11, 0), nil, 45*time.Minute)
	assert.Nil(t, previous)
	assert.Nil(t, next)
}

// The previous slot must end at or before the requested start; the next
// slot must start at or after it.
func TestNearestNeverOverlapsRequest(t *testing.T) {
	free := []Interval{
		{Start: at(t, 9, 0), End: at(t, 11, 0)},
		{Start: at(t, 11, 45), End: at(t, 14, 0)},
	}
	target := at(t, 11, 0)
	duration := 45 * time.Minute

	previous, next := Nearest(target, free, duration)

	require.NotNil(t, previous)
	require.NotNil(t, next)
	assert.False(t, previous.Add(duration).After(target))
	assert.False(t, next.Before(target))
}
