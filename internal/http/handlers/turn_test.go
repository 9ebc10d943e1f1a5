package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figarolabs/figaro-booking/internal/booking"
	"github.com/figarolabs/figaro-booking/internal/catalog"
	"github.com/figarolabs/figaro-booking/internal/flow"
	"github.com/figarolabs/figaro-booking/internal/schedule"
	"github.com/figarolabs/figaro-booking/internal/session"
)

type stubCalendar struct{}

func (stubCalendar) BusyIntervals(context.Context, schedule.Interval) ([]schedule.Interval, error) {
	return nil, nil
}
func (stubCalendar) CreateEvent(context.Context, booking.Event) (string, error) {
	return "evt-1", nil
}
func (stubCalendar) GetEvent(context.Context, string) (*booking.Event, error) {
	return nil, booking.ErrNotFound
}
func (stubCalendar) UpdateEvent(context.Context, booking.Event) error  { return nil }
func (stubCalendar) DeleteEvent(context.Context, string) error        { return nil }
func (stubCalendar) ListEvents(context.Context, time.Time, string, string) ([]booking.Event, string, error) {
	return nil, "", nil
}

func newTestHandler(t *testing.T) *TurnHandler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, nil)

	cat := catalog.Default()
	cal := stubCalendar{}
	calc := schedule.NewCalculator(cat, cal)
	finder := schedule.NewFinder(cat, cal)
	exec := booking.NewExecutor(cal, calc, finder, nil)
	engine := flow.NewEngine(store, cat, calc, exec, nil)
	return NewTurnHandler(engine, nil)
}

func TestHandleTurnRepliesWithMenu(t *testing.T) {
	h := newTestHandler(t)

	body := `{"sessionId":"conv-1","stepId":"welcome"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/turn", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleTurn(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var reply flow.TurnReply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))
	assert.NotEmpty(t, reply.ReplyText)
	require.NotNil(t, reply.Payload)
	assert.Len(t, reply.Payload.Buttons, 2)
}

func TestHandleTurnRejectsInvalidBody(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/turn", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.HandleTurn(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleTurnRequiresSessionID(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/turn", strings.NewReader(`{"stepId":"welcome"}`))
	rr := httptest.NewRecorder()
	h.HandleTurn(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.HealthCheck(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}
