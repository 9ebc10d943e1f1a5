// Package flow drives the multi-step booking conversation. Every turn is
// re-entrant: the engine loads the persisted contexts, dispatches the step
// against the current state, and saves the surviving contexts back.
package flow

import "github.com/figarolabs/figaro-booking/internal/session"

// TurnRequest is one inbound conversation turn.
type TurnRequest struct {
	SessionID string            `json:"sessionId"`
	StepID    string            `json:"stepId"`
	RawText   string            `json:"rawText,omitempty"`
	Entities  map[string]any    `json:"entities,omitempty"`
	Contexts  []session.Context `json:"contexts,omitempty"`
}

// Button is one tappable choice. Disabled buttons stay visible so the user
// sees which time bands exist but are full.
type Button struct {
	Label        string `json:"label"`
	CallbackData string `json:"callbackData,omitempty"`
	Disabled     bool   `json:"disabled,omitempty"`
	Hover        string `json:"hover,omitempty"`
}

// DatePicker asks the client UI to render a calendar widget.
type DatePicker struct {
	ShowDays    int   `json:"showDays"`
	ClosingDays []int `json:"closingDays"`
}

// Payload is the rich part of a reply. The "dataPicker" key is the wire
// name existing clients already parse, typo included.
type Payload struct {
	Text       string      `json:"text,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
	DatePicker *DatePicker `json:"dataPicker,omitempty"`
}

// TurnReply is the engine's answer to one turn.
type TurnReply struct {
	ReplyText       string            `json:"replyText"`
	Payload         *Payload          `json:"payload,omitempty"`
	UpdatedContexts []session.Context `json:"contexts"`
}

// Kind classifies the reply for audit records.
func (r *TurnReply) Kind() string {
	switch {
	case r == nil || r.Payload == nil:
		return "text"
	case r.Payload.DatePicker != nil:
		return "date_picker"
	case len(r.Payload.Buttons) > 0:
		return "buttons"
	default:
		return "text"
	}
}
