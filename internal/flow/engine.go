package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/figarolabs/figaro-booking/internal/audit"
	"github.com/figarolabs/figaro-booking/internal/booking"
	"github.com/figarolabs/figaro-booking/internal/catalog"
	"github.com/figarolabs/figaro-booking/internal/observability/metrics"
	"github.com/figarolabs/figaro-booking/internal/schedule"
	"github.com/figarolabs/figaro-booking/internal/session"
	"github.com/figarolabs/figaro-booking/pkg/logging"
)

// BookingExecutor is the slice of the booking executor the flow consumes.
type BookingExecutor interface {
	Commit(ctx context.Context, b booking.Booking) (*booking.CommitOutcome, error)
	Update(ctx context.Context, eventID string, b booking.Booking) error
	Cancel(ctx context.Context, eventID string) error
	FindByPhone(ctx context.Context, phoneNumber string) (*booking.Event, error)
}

// FallbackRecorder receives the turns no handler understood.
type FallbackRecorder interface {
	RecordFallback(ctx context.Context, stepID, rawText string) error
}

// TurnAuditor persists one record per handled turn.
type TurnAuditor interface {
	RecordTurn(ctx context.Context, rec audit.TurnRecord) error
}

// Engine dispatches conversation turns against the transition table.
type Engine struct {
	store    *session.Store
	cat      *catalog.Catalog
	calc     *schedule.Calculator
	exec     BookingExecutor
	recorder FallbackRecorder
	auditor  TurnAuditor
	metrics  *metrics.TurnMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewEngine wires the flow engine. Store, catalog, calculator and executor
// are required; recorder, auditor and metrics may be nil.
func NewEngine(store *session.Store, cat *catalog.Catalog, calc *schedule.Calculator, exec BookingExecutor, logger *logging.Logger) *Engine {
	if store == nil {
		panic("flow: session store cannot be nil")
	}
	if cat == nil {
		panic("flow: catalog cannot be nil")
	}
	if calc == nil {
		panic("flow: calculator cannot be nil")
	}
	if exec == nil {
		panic("flow: booking executor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:  store,
		cat:    cat,
		calc:   calc,
		exec:   exec,
		logger: logger,
		tracer: otel.Tracer("figaro.internal.flow"),
		now:    time.Now,
	}
}

// WithFallbackRecorder attaches the sheet recorder.
func (e *Engine) WithFallbackRecorder(r FallbackRecorder) *Engine {
	e.recorder = r
	return e
}

// WithAuditor attaches the turn auditor.
func (e *Engine) WithAuditor(a TurnAuditor) *Engine {
	e.auditor = a
	return e
}

// WithMetrics attaches the Prometheus collectors.
func (e *Engine) WithMetrics(m *metrics.TurnMetrics) *Engine {
	e.metrics = m
	return e
}

// WithClock overrides the clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// turn carries the per-request working set through a handler.
type turn struct {
	req     TurnRequest
	step    string
	arg     string
	set     session.ContextSet
	state   State
	outcome string
}

// input returns the handler argument: the callback argument when the turn
// came from a button, the raw text otherwise.
func (t *turn) input() string {
	if t.arg != "" {
		return t.arg
	}
	return strings.TrimSpace(t.req.RawText)
}

func (t *turn) entity(key string) string {
	if t.req.Entities == nil {
		return ""
	}
	if s, ok := t.req.Entities[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// flowCtx returns the ongoing flow context, whichever flavor is active.
func (t *turn) flowCtx() *session.Context {
	return t.set.FindAny(session.CtxOngoingAppointment, session.CtxOngoingModify)
}

func (t *turn) inModifyFlow() bool {
	return t.set.Find(session.CtxOngoingModify) != nil
}

// awaiting contexts outlive one stray turn, then expire.
const awaitingLifespan = 2

// setState drops every awaiting context except the target and arms the
// target. StateNone clears them all.
func (t *turn) setState(s State) {
	for st := StateAwaitingPhone; st <= StateAwaitingModifyChoice; st++ {
		if st != s {
			t.set = t.set.Delete(st.ContextName())
		}
	}
	if s != StateNone {
		t.set = t.set.Set(session.Context{Name: s.ContextName(), Lifespan: awaitingLifespan})
	}
}

// reset drops the whole conversation.
func (t *turn) reset() {
	t.set = nil
}

type handlerFunc func(e *Engine, ctx context.Context, t *turn) (*TurnReply, error)

type transition struct {
	states  []State
	handler handlerFunc
}

func (tr transition) allows(s State) bool {
	if len(tr.states) == 0 {
		return true
	}
	for _, allowed := range tr.states {
		if allowed == s {
			return true
		}
	}
	return false
}

var transitions = map[string]transition{
	StepWelcome:       {handler: (*Engine).handleWelcome},
	StepReset:         {handler: (*Engine).handleReset},
	StepFallback:      {handler: (*Engine).handleFallback},
	StepBookingNew:    {handler: (*Engine).handleBookingNew},
	StepBookingModify: {handler: (*Engine).handleBookingModify},
	StepPhoneAdd:      {states: []State{StateAwaitingPhone}, handler: (*Engine).handlePhoneAdd},
	StepServiceAdd:    {states: []State{StateAwaitingServices}, handler: (*Engine).handleServiceAdd},
	StepServiceDone:   {states: []State{StateAwaitingServices}, handler: (*Engine).handleServiceDone},
	StepDateAdd:       {states: []State{StateAwaitingDate}, handler: (*Engine).handleDateAdd},
	StepBandAdd:       {states: []State{StateAwaitingBand}, handler: (*Engine).handleBandAdd},
	StepTimeSelect:    {states: []State{StateAwaitingTime}, handler: (*Engine).handleTimeSelect},
	StepBookingNumber: {states: []State{StateAwaitingBookingNumber}, handler: (*Engine).handleBookingNumber},
	StepModifyChoice:  {states: []State{StateAwaitingModifyChoice}, handler: (*Engine).handleModifyChoice},
	StepBackServices:  {states: []State{StateAwaitingDate, StateAwaitingBand}, handler: (*Engine).handleBackServices},
	StepBackDate:      {states: []State{StateAwaitingBand, StateAwaitingTime}, handler: (*Engine).handleBackDate},
	StepBackBand:      {states: []State{StateAwaitingTime}, handler: (*Engine).handleBackBand},
}

// Handle processes one conversation turn end to end: load contexts, merge
// the request's own contexts, expire by one tick, dispatch, persist.
func (e *Engine) Handle(ctx context.Context, req TurnRequest) (*TurnReply, error) {
	ctx, span := e.tracer.Start(ctx, "flow.Handle")
	defer span.End()
	started := e.now()

	set, err := e.store.Load(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("flow: load session %s: %w", req.SessionID, err)
	}
	for _, c := range req.Contexts {
		set = set.Set(c)
	}

	state := CurrentState(set)
	step, arg := normalizeStep(req.StepID, req.RawText, state)
	set = set.Tick()

	t := &turn{req: req, step: step, arg: arg, set: set, state: state}

	tr, ok := transitions[step]
	if !ok {
		tr = transitions[StepFallback]
	}

	var reply *TurnReply
	if !tr.allows(state) {
		e.logger.Info("step arrived without its state",
			"session_id", req.SessionID, "step", step, "state", state.String())
		reply = e.sessionExpiredReply(t)
		t.outcome = "missing_context"
	} else {
		reply, err = tr.handler(e, ctx, t)
	}
	if err != nil {
		if errors.Is(err, schedule.ErrCalendarUnavailable) {
			e.logger.Error("calendar unavailable", "session_id", req.SessionID, "step", step, "error", err)
			e.metrics.ObserveCalendarError(step)
			reply = textReply(msgCalendarUnavailable)
			t.outcome = "calendar_unavailable"
			// Re-arm the state the turn started in so the user can retry.
			if state != StateNone {
				t.setState(state)
			}
		} else {
			span.RecordError(err)
			return nil, err
		}
	}
	if t.outcome == "" {
		t.outcome = "ok"
	}

	// A flow that is still alive gets its full lifespan back, so multi-turn
	// conversations do not decay mid-flow.
	if fc := t.flowCtx(); fc != nil {
		t.set = t.set.Refresh(fc.Name)
	}

	if err := e.store.Save(ctx, req.SessionID, t.set); err != nil {
		return nil, fmt.Errorf("flow: save session %s: %w", req.SessionID, err)
	}
	reply.UpdatedContexts = []session.Context(t.set)

	e.metrics.ObserveTurn(step, t.outcome)
	e.metrics.ObserveTurnLatency(step, e.now().Sub(started).Seconds())
	if e.auditor != nil {
		rec := audit.TurnRecord{
			ConversationID: req.SessionID,
			StepID:         step,
			State:          state.String(),
			Outcome:        t.outcome,
			ReplyKind:      reply.Kind(),
			At:             e.now(),
		}
		if err := e.auditor.RecordTurn(ctx, rec); err != nil {
			e.logger.Warn("audit write failed", "session_id", req.SessionID, "error", err)
		}
	}
	return reply, nil
}
