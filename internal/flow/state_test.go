package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/figarolabs/figaro-booking/internal/session"
)

func TestNormalizeStep(t *testing.T) {
	tests := []struct {
		name     string
		stepID   string
		rawText  string
		state    State
		wantStep string
		wantArg  string
	}{
		{"explicit step", "booking.new", "", StateNone, StepBookingNew, ""},
		{"step with argument", "service.add:Taglio capelli", "", StateAwaitingServices, StepServiceAdd, "Taglio capelli"},
		{"label alias", "", "Nuovo Appuntamento", StateNone, StepBookingNew, ""},
		{"label alias with accent", "", "Torna al menù principale", StateAwaitingTime, StepWelcome, ""},
		{"free text in phone state", "", "Mario 3331234567", StateAwaitingPhone, StepPhoneAdd, ""},
		{"free text in date state", "", "2026-03-10", StateAwaitingDate, StepDateAdd, ""},
		{"free text without state", "", "buongiorno a tutti", StateNone, StepFallback, ""},
		{"empty turn", "", "", StateNone, StepFallback, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, arg := normalizeStep(tt.stepID, tt.rawText, tt.state)
			assert.Equal(t, tt.wantStep, step)
			assert.Equal(t, tt.wantArg, arg)
		})
	}
}

func TestCurrentState(t *testing.T) {
	assert.Equal(t, StateNone, CurrentState(nil))

	set := session.ContextSet{
		{Name: session.CtxOngoingAppointment, Lifespan: 5},
		{Name: "awaiting_time_band", Lifespan: 2},
	}
	assert.Equal(t, StateAwaitingBand, CurrentState(set))
}

func TestSplitNameAndPhone(t *testing.T) {
	name, phone := splitNameAndPhone("Mario Rossi 333 1234567")
	assert.Equal(t, "Mario Rossi", name)
	assert.Equal(t, "3331234567", phone)

	name, phone = splitNameAndPhone("solo un nome")
	assert.Equal(t, "solo un nome", name)
	assert.Empty(t, phone)

	_, phone = splitNameAndPhone("+39 333 1234567")
	assert.Equal(t, "393331234567", phone)
}

func TestFormatDateIT(t *testing.T) {
	d := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "martedì 10 marzo", formatDateIT(d))
}
