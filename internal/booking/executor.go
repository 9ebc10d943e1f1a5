package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/figarolabs/figaro-booking/internal/schedule"
	"github.com/figarolabs/figaro-booking/pkg/logging"
)

// ErrNotFound is returned when the phone-number lookup matches no event.
var ErrNotFound = errors.New("booking: no booking found")

// CommitOutcome reports the result of a commit attempt. A busy slot is an
// outcome carrying substitutes, not an error.
type CommitOutcome struct {
	Created      bool
	EventID      string
	Alternatives schedule.Alternatives
}

// Executor performs the calendar writes for the booking flow.
type Executor struct {
	cal    CalendarAPI
	calc   *schedule.Calculator
	finder *schedule.Finder
	logger *logging.Logger
	now    func() time.Time
}

// NewExecutor creates a booking executor.
func NewExecutor(cal CalendarAPI, calc *schedule.Calculator, finder *schedule.Finder, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{cal: cal, calc: calc, finder: finder, logger: logger, now: time.Now}
}

// WithClock overrides the clock used as the lower bound of the phone lookup.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	if now != nil {
		e.now = now
	}
	return e
}

// Commit rechecks the slot and creates the event. The recheck closes the
// gap between the slot listing the user picked from and this write; it is
// the only guard, so two conversations committing within the same instant
// can still double-book.
func (e *Executor) Commit(ctx context.Context, b Booking) (*CommitOutcome, error) {
	free, err := e.calc.IsFree(ctx, b.Start, b.End)
	if err != nil {
		return nil, fmt.Errorf("booking: commit recheck: %w", err)
	}
	if !free {
		total := b.End.Sub(b.Start)
		alts, err := e.finder.FindNearby(ctx, b.Start, total)
		if err != nil {
			return nil, fmt.Errorf("booking: find substitutes: %w", err)
		}
		e.logger.Info("slot busy at commit time",
			"start", b.Start,
			"has_previous", alts.Previous != nil,
			"has_next", alts.Next != nil,
		)
		return &CommitOutcome{Created: false, Alternatives: alts}, nil
	}

	id, err := e.cal.CreateEvent(ctx, Event{
		Summary:     b.Summary(),
		Description: b.Description(),
		Start:       b.Start,
		End:         b.End,
	})
	if err != nil {
		return nil, fmt.Errorf("booking: create event: %w", err)
	}
	e.logger.Info("booking created", "event_id", id, "start", b.Start)
	return &CommitOutcome{Created: true, EventID: id}, nil
}

// Update fetches the existing event and replays the whole record with the
// new time window and descriptive fields. Partial updates are not
// supported.
func (e *Executor) Update(ctx context.Context, eventID string, b Booking) error {
	ev, err := e.cal.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("booking: load event %s: %w", eventID, err)
	}

	ev.Start = b.Start
	ev.End = b.End
	ev.Summary = b.Summary()
	ev.Description = b.Description()

	if err := e.cal.UpdateEvent(ctx, *ev); err != nil {
		return fmt.Errorf("booking: update event %s: %w", eventID, err)
	}
	e.logger.Info("booking updated", "event_id", eventID, "start", b.Start)
	return nil
}

// Cancel deletes the event. The flow resets the conversation afterwards.
func (e *Executor) Cancel(ctx context.Context, eventID string) error {
	if err := e.cal.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("booking: cancel event %s: %w", eventID, err)
	}
	e.logger.Info("booking cancelled", "event_id", eventID)
	return nil
}

// FindByPhone pages through upcoming events and returns the first whose
// summary contains the phone number. First match in chronological order,
// not best match: two bookings sharing a numeric substring are ambiguous.
func (e *Executor) FindByPhone(ctx context.Context, phoneNumber string) (*Event, error) {
	phone := strings.TrimPrefix(strings.TrimSpace(phoneNumber), "#")
	if phone == "" {
		return nil, ErrNotFound
	}

	pageToken := ""
	for {
		events, next, err := e.cal.ListEvents(ctx, e.now(), phone, pageToken)
		if err != nil {
			return nil, fmt.Errorf("booking: search by phone: %w", err)
		}
		for i := range events {
			if strings.Contains(events[i].Summary, phone) {
				return &events[i], nil
			}
		}
		if next == "" {
			return nil, ErrNotFound
		}
		pageToken = next
	}
}
