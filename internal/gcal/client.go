// Package gcal backs the scheduling core with the Google Calendar API: the
// freebusy query feeding the availability calculator and the event
// commands issued by the booking executor.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/figarolabs/figaro-booking/internal/booking"
	"github.com/figarolabs/figaro-booking/internal/schedule"
	"github.com/figarolabs/figaro-booking/pkg/logging"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 250 * time.Millisecond
	listPageSize       = 10
)

// Client wraps the calendar API for one shared calendar. Implements
// schedule.BusySource and booking.CalendarAPI.
type Client struct {
	svc        *calendar.Service
	calendarID string
	timezone   string
	loc        *time.Location
	logger     *logging.Logger

	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

// NewClient creates a calendar client for the given calendar id.
func NewClient(svc *calendar.Service, calendarID string, loc *time.Location, logger *logging.Logger) *Client {
	if svc == nil {
		panic("gcal: calendar service cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		svc:         svc,
		calendarID:  calendarID,
		timezone:    loc.String(),
		loc:         loc,
		logger:      logger,
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// WithTimeout overrides the per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithRetry overrides the read-retry policy.
func (c *Client) WithRetry(maxAttempts int, baseDelay time.Duration) *Client {
	if maxAttempts > 0 {
		c.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		c.baseDelay = baseDelay
	}
	return c
}

// withRetry runs fn with a per-attempt timeout and exponential backoff on
// transient failures. Used for reads only.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		c.logger.Warn("calendar call failed, retrying", "op", op, "attempt", attempt+1, "error", err)
	}
	return lastErr
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests
	}
	// Deadline and transport errors are worth another attempt.
	return true
}

// BusyIntervals queries freebusy for the window.
func (c *Client) BusyIntervals(ctx context.Context, window schedule.Interval) ([]schedule.Interval, error) {
	var resp *calendar.FreeBusyResponse
	err := c.withRetry(ctx, "freebusy", func(ctx context.Context) error {
		r, err := c.svc.Freebusy.Query(&calendar.FreeBusyRequest{
			TimeMin:  window.Start.Format(time.RFC3339),
			TimeMax:  window.End.Format(time.RFC3339),
			TimeZone: c.timezone,
			Items:    []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gcal: freebusy query: %w: %w", schedule.ErrCalendarUnavailable, err)
	}

	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, nil
	}
	busy := make([]schedule.Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("gcal: parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("gcal: parse busy end %q: %w", period.End, err)
		}
		busy = append(busy, schedule.Interval{Start: start.In(c.loc), End: end.In(c.loc)})
	}
	return busy, nil
}

// CreateEvent inserts a new event and returns its id. Writes get a single
// attempt: an ambiguous retried create could book the slot twice.
func (c *Client) CreateEvent(ctx context.Context, ev booking.Event) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.svc.Events.Insert(c.calendarID, c.toAPIEvent(ev)).Context(callCtx).Do()
	if err != nil {
		return "", fmt.Errorf("gcal: insert event: %w: %w", schedule.ErrCalendarUnavailable, err)
	}
	return created.Id, nil
}

// GetEvent fetches one event by id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*booking.Event, error) {
	var raw *calendar.Event
	err := c.withRetry(ctx, "events.get", func(ctx context.Context) error {
		r, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		if err != nil {
			return err
		}
		raw = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gcal: get event %s: %w: %w", eventID, schedule.ErrCalendarUnavailable, err)
	}
	ev, err := c.fromAPIEvent(raw)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// UpdateEvent replays the whole event record.
func (c *Client) UpdateEvent(ctx context.Context, ev booking.Event) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.svc.Events.Update(c.calendarID, ev.ID, c.toAPIEvent(ev)).Context(callCtx).Do(); err != nil {
		return fmt.Errorf("gcal: update event %s: %w: %w", ev.ID, schedule.ErrCalendarUnavailable, err)
	}
	return nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(callCtx).Do(); err != nil {
		return fmt.Errorf("gcal: delete event %s: %w: %w", eventID, schedule.ErrCalendarUnavailable, err)
	}
	return nil
}

// ListEvents pages through upcoming events matching the free-text search,
// ordered by start time.
func (c *Client) ListEvents(ctx context.Context, from time.Time, searchText, pageToken string) ([]booking.Event, string, error) {
	var resp *calendar.Events
	err := c.withRetry(ctx, "events.list", func(ctx context.Context) error {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(from.Format(time.RFC3339)).
			Q(searchText).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		r, err := call.Do()
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("gcal: list events: %w: %w", schedule.ErrCalendarUnavailable, err)
	}

	events := make([]booking.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := c.fromAPIEvent(item)
		if err != nil {
			return nil, "", err
		}
		events = append(events, *ev)
	}
	return events, resp.NextPageToken, nil
}

func (c *Client) toAPIEvent(ev booking.Event) *calendar.Event {
	return &calendar.Event{
		Id:          ev.ID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
	}
}

func (c *Client) fromAPIEvent(raw *calendar.Event) (*booking.Event, error) {
	start, err := c.parseEventTime(raw.Start)
	if err != nil {
		return nil, fmt.Errorf("gcal: event %s start: %w", raw.Id, err)
	}
	end, err := c.parseEventTime(raw.End)
	if err != nil {
		return nil, fmt.Errorf("gcal: event %s end: %w", raw.Id, err)
	}
	return &booking.Event{
		ID:          raw.Id,
		Summary:     raw.Summary,
		Description: raw.Description,
		Start:       start,
		End:         end,
	}, nil
}

// parseEventTime handles both timed events and all-day events, which only
// carry a date.
func (c *Client) parseEventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(c.loc), nil
	}
	if edt.Date != "" {
		return time.ParseInLocation("2006-01-02", edt.Date, c.loc)
	}
	return time.Time{}, errors.New("missing event time")
}
