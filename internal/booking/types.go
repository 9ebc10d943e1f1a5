// Package booking executes the commit-time calendar commands: create with
// a final availability recheck, whole-record update, cancel, and the
// phone-number lookup used by the modify flow.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Event is the calendar event record the executor reads and writes.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// CalendarAPI is the command/query surface of the external calendar. The
// Google-backed implementation lives in internal/gcal; tests use fakes.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	UpdateEvent(ctx context.Context, ev Event) error
	DeleteEvent(ctx context.Context, eventID string) error
	// ListEvents pages through events starting at from, filtered by the
	// calendar's free-text search. Returns the next page token, empty when
	// exhausted.
	ListEvents(ctx context.Context, from time.Time, searchText, pageToken string) ([]Event, string, error)
}

// Booking is a confirmed or in-progress appointment.
type Booking struct {
	Customer string
	Phone    string
	Services []string
	Start    time.Time
	End      time.Time
	EventID  string
}

// Summary renders the event summary line. The phone lookup depends on this
// format: the phone number must appear verbatim in the summary.
func (b Booking) Summary() string {
	return fmt.Sprintf("%s - %s - %s", b.Customer, b.Phone, strings.Join(b.Services, ", "))
}

// Description renders the event description.
func (b Booking) Description() string {
	return fmt.Sprintf("Prenotazione %s per %s, tel. %s", strings.Join(b.Services, ", "), b.Customer, b.Phone)
}

// CustomerFromSummary extracts the customer name back out of a summary line.
func CustomerFromSummary(summary string) string {
	parts := strings.Split(summary, " - ")
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace(parts[0])
}
