package flow

import (
	"strings"

	"github.com/figarolabs/figaro-booking/internal/session"
)

// State is where the conversation currently is. Exactly one awaiting
// context is kept alive at a time; the state is derived from it.
type State int

const (
	StateNone State = iota
	StateAwaitingPhone
	StateAwaitingServices
	StateAwaitingDate
	StateAwaitingBand
	StateAwaitingTime
	StateAwaitingBookingNumber
	StateAwaitingModifyChoice
)

var stateContexts = map[State]string{
	StateAwaitingPhone:         "awaiting_phone",
	StateAwaitingServices:      "awaiting_services",
	StateAwaitingDate:          "awaiting_date",
	StateAwaitingBand:          "awaiting_time_band",
	StateAwaitingTime:          "awaiting_time",
	StateAwaitingBookingNumber: "awaiting_booking_number",
	StateAwaitingModifyChoice:  "awaiting_modify_choice",
}

// ContextName returns the session context backing this state, empty for
// StateNone.
func (s State) ContextName() string {
	return stateContexts[s]
}

func (s State) String() string {
	if name := stateContexts[s]; name != "" {
		return name
	}
	return "none"
}

// CurrentState derives the state from the persisted contexts. If several
// awaiting contexts survive, the first in declaration order wins; handlers
// always clear the old one when moving on, so that only happens after a
// partial write.
func CurrentState(set session.ContextSet) State {
	for s := StateAwaitingPhone; s <= StateAwaitingModifyChoice; s++ {
		if set.Find(s.ContextName()) != nil {
			return s
		}
	}
	return StateNone
}

// Step ids. Button callback data is "<step>" or "<step>:<argument>".
const (
	StepWelcome       = "welcome"
	StepBookingNew    = "booking.new"
	StepBookingModify = "booking.modify"
	StepPhoneAdd      = "phone.add"
	StepServiceAdd    = "service.add"
	StepServiceDone   = "service.done"
	StepDateAdd       = "date.add"
	StepBandAdd       = "band.add"
	StepTimeSelect    = "time.select"
	StepBookingNumber = "booking.number"
	StepModifyChoice  = "modify.choice"
	StepBackServices  = "back.services"
	StepBackDate      = "back.date"
	StepBackBand      = "back.band"
	StepReset         = "reset"
	StepFallback      = "fallback"
)

// stepAliases maps the Italian button labels legacy clients still send as
// free text onto step ids.
var stepAliases = map[string]string{
	"nuovo appuntamento":       StepBookingNew,
	"prenota appuntamento":     StepBookingNew,
	"modifica prenotazione":    StepBookingModify,
	"nuova ricerca":            StepBookingModify,
	"modifica appuntamento":    StepModifyChoice + ":update",
	"cancella appuntamento":    StepModifyChoice + ":cancel",
	"torna ai servizi":         StepBackServices,
	"torna alla data":          StepBackDate,
	"torna alla fascia":        StepBackBand,
	"torna al menù principale": StepWelcome,
	"torna al menu principale": StepWelcome,
	"ho finito":                StepServiceDone,
	"ricomincia":               StepReset,
	"ciao":                     StepWelcome,
}

// freeTextSteps maps states whose expected input is typed, not tapped, to
// the step that consumes it. A raw-text turn in any other state falls
// through to the fallback handler.
var freeTextSteps = map[State]string{
	StateAwaitingPhone:         StepPhoneAdd,
	StateAwaitingServices:      StepServiceAdd,
	StateAwaitingDate:          StepDateAdd,
	StateAwaitingBookingNumber: StepBookingNumber,
}

// normalizeStep resolves the step id and its argument from the request.
// Explicit step ids win, then label aliases, then the free-text step of
// the current state. Unresolvable turns land on the fallback step.
func normalizeStep(stepID, rawText string, state State) (string, string) {
	s := strings.TrimSpace(stepID)
	if s == "" {
		s = stepAliases[strings.ToLower(strings.TrimSpace(rawText))]
	}
	if s == "" && strings.TrimSpace(rawText) != "" {
		s = freeTextSteps[state]
	}
	if s == "" {
		return StepFallback, ""
	}
	if step, arg, ok := strings.Cut(s, ":"); ok {
		return step, arg
	}
	return s, ""
}
