package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figarolabs/figaro-booking/internal/catalog"
	"github.com/figarolabs/figaro-booking/internal/schedule"
)

// fakeCalendar implements CalendarAPI and schedule.BusySource over an
// in-memory event list, so the recheck sees exactly what was written.
type fakeCalendar struct {
	events   []Event
	nextID   int
	pageSize int
	failWith error
}

func (f *fakeCalendar) BusyIntervals(_ context.Context, window schedule.Interval) ([]schedule.Interval, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var busy []schedule.Interval
	for _, ev := range f.events {
		iv := schedule.Interval{Start: ev.Start, End: ev.End}
		if iv.Overlaps(window) {
			busy = append(busy, iv)
		}
	}
	return busy, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, ev Event) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.nextID++
	ev.ID = fmt.Sprintf("evt-%d", f.nextID)
	f.events = append(f.events, ev)
	return ev.ID, nil
}

func (f *fakeCalendar) GetEvent(_ context.Context, eventID string) (*Event, error) {
	for i := range f.events {
		if f.events[i].ID == eventID {
			ev := f.events[i]
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("fake: event %s not found", eventID)
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, ev Event) error {
	for i := range f.events {
		if f.events[i].ID == ev.ID {
			f.events[i] = ev
			return nil
		}
	}
	return fmt.Errorf("fake: event %s not found", ev.ID)
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	for i := range f.events {
		if f.events[i].ID == eventID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fake: event %s not found", eventID)
}

func (f *fakeCalendar) ListEvents(_ context.Context, from time.Time, _ string, pageToken string) ([]Event, string, error) {
	if f.failWith != nil {
		return nil, "", f.failWith
	}
	var upcoming []Event
	for _, ev := range f.events {
		if !ev.Start.Before(from) {
			upcoming = append(upcoming, ev)
		}
	}
	size := f.pageSize
	if size <= 0 {
		size = 10
	}
	start := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &start)
	}
	if start >= len(upcoming) {
		return nil, "", nil
	}
	end := start + size
	next := ""
	if end < len(upcoming) {
		next = fmt.Sprintf("page-%d", end)
	} else {
		end = len(upcoming)
	}
	return upcoming[start:end], next, nil
}

func testClock(t *testing.T) func() time.Time {
	t.Helper()
	cat := catalog.Default()
	return func() time.Time { return time.Date(2026, 3, 9, 8, 0, 0, 0, cat.Location) }
}

func newExecutor(t *testing.T, cal *fakeCalendar) *Executor {
	t.Helper()
	cat := catalog.Default()
	calc := schedule.NewCalculator(cat, cal).WithClock(testClock(t))
	finder := schedule.NewFinder(cat, cal)
	return NewExecutor(cal, calc, finder, nil).WithClock(testClock(t))
}

func slotAt(hour, min int) (time.Time, time.Time) {
	loc := catalog.Default().Location
	start := time.Date(2026, 3, 10, hour, min, 0, 0, loc)
	return start, start.Add(45 * time.Minute)
}

func TestCommitCreatesWhenFree(t *testing.T) {
	cal := &fakeCalendar{}
	exec := newExecutor(t, cal)
	start, end := slotAt(10, 0)

	outcome, err := exec.Commit(context.Background(), Booking{
		Customer: "Mario Rossi",
		Phone:    "3331234567",
		Services: []string{"Taglio capelli"},
		Start:    start,
		End:      end,
	})
	require.NoError(t, err)

	assert.True(t, outcome.Created)
	assert.Equal(t, "evt-1", outcome.EventID)
	require.Len(t, cal.events, 1)
	assert.Equal(t, "Mario Rossi - 3331234567 - Taglio capelli", cal.events[0].Summary)
	assert.Equal(t, "Prenotazione Taglio capelli per Mario Rossi, tel. 3331234567", cal.events[0].Description)
}

func TestCommitBusySlotReturnsAlternatives(t *testing.T) {
	loc := catalog.Default().Location
	cal := &fakeCalendar{events: []Event{{
		ID:    "evt-existing",
		Start: time.Date(2026, 3, 10, 11, 0, 0, 0, loc),
		End:   time.Date(2026, 3, 10, 11, 45, 0, 0, loc),
	}}}
	exec := newExecutor(t, cal)
	start, end := slotAt(11, 0)

	outcome, err := exec.Commit(context.Background(), Booking{
		Customer: "Mario Rossi",
		Phone:    "3331234567",
		Services: []string{"Taglio capelli"},
		Start:    start,
		End:      end,
	})
	require.NoError(t, err)

	assert.False(t, outcome.Created)
	require.Len(t, cal.events, 1, "busy commit must not create an event")
	require.NotNil(t, outcome.Alternatives.Previous)
	require.NotNil(t, outcome.Alternatives.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 10, 15, 0, 0, loc), outcome.Alternatives.Previous.Start)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 45, 0, 0, loc), outcome.Alternatives.Next.Start)
}

func TestCommitPropagatesCalendarFailure(t *testing.T) {
	cal := &fakeCalendar{failWith: schedule.ErrCalendarUnavailable}
	exec := newExecutor(t, cal)
	start, end := slotAt(10, 0)

	_, err := exec.Commit(context.Background(), Booking{Start: start, End: end})
	assert.True(t, errors.Is(err, schedule.ErrCalendarUnavailable))
}

func TestUpdateReplaysWholeRecord(t *testing.T) {
	loc := catalog.Default().Location
	cal := &fakeCalendar{events: []Event{{
		ID:          "evt-1",
		Summary:     "Mario Rossi - 3331234567 - Taglio capelli",
		Description: "Prenotazione Taglio capelli per Mario Rossi, tel. 3331234567",
		Start:       time.Date(2026, 3, 10, 10, 0, 0, 0, loc),
		End:         time.Date(2026, 3, 10, 10, 45, 0, 0, loc),
	}}}
	exec := newExecutor(t, cal)

	newStart := time.Date(2026, 3, 12, 15, 0, 0, 0, loc)
	err := exec.Update(context.Background(), "evt-1", Booking{
		Customer: "Mario Rossi",
		Phone:    "3331234567",
		Services: []string{"Taglio capelli", "Rasatura barba"},
		Start:    newStart,
		End:      newStart.Add(60 * time.Minute),
	})
	require.NoError(t, err)

	assert.Equal(t, newStart, cal.events[0].Start)
	assert.Equal(t, "Mario Rossi - 3331234567 - Taglio capelli, Rasatura barba", cal.events[0].Summary)
}

func TestUpdateUnknownEventFails(t *testing.T) {
	exec := newExecutor(t, &fakeCalendar{})
	start, end := slotAt(10, 0)

	err := exec.Update(context.Background(), "evt-missing", Booking{Start: start, End: end})
	assert.Error(t, err)
}

func TestCancelDeletesEvent(t *testing.T) {
	loc := catalog.Default().Location
	cal := &fakeCalendar{events: []Event{{ID: "evt-1", Start: time.Date(2026, 3, 10, 10, 0, 0, 0, loc), End: time.Date(2026, 3, 10, 10, 45, 0, 0, loc)}}}
	exec := newExecutor(t, cal)

	require.NoError(t, exec.Cancel(context.Background(), "evt-1"))
	assert.Empty(t, cal.events)
}

func TestFindByPhoneFirstChronologicalMatchAcrossPages(t *testing.T) {
	loc := catalog.Default().Location
	cal := &fakeCalendar{pageSize: 2}
	for i := 0; i < 5; i++ {
		cal.events = append(cal.events, Event{
			ID:      fmt.Sprintf("evt-%d", i),
			Summary: fmt.Sprintf("Cliente %d - 333000%d - Taglio capelli", i, i),
			Start:   time.Date(2026, 3, 10+i, 10, 0, 0, 0, loc),
			End:     time.Date(2026, 3, 10+i, 10, 45, 0, 0, loc),
		})
	}
	cal.events[3].Summary = "Mario Rossi - 3331234567 - Taglio capelli"
	exec := newExecutor(t, cal)

	ev, err := exec.FindByPhone(context.Background(), "#3331234567")
	require.NoError(t, err)
	assert.Equal(t, "evt-3", ev.ID)
}

func TestFindByPhoneNoMatch(t *testing.T) {
	cal := &fakeCalendar{}
	exec := newExecutor(t, cal)

	_, err := exec.FindByPhone(context.Background(), "3339999999")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = exec.FindByPhone(context.Background(), "  #  ")
	assert.Error(t, err)
}

func TestCustomerFromSummary(t *testing.T) {
	assert.Equal(t, "Mario Rossi", CustomerFromSummary("Mario Rossi - 3331234567 - Taglio capelli"))
	assert.Equal(t, "", CustomerFromSummary(""))
}
