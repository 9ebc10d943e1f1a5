package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/figarolabs/figaro-booking/internal/booking"
	"github.com/figarolabs/figaro-booking/internal/catalog"
	"github.com/figarolabs/figaro-booking/internal/session"
)

// User-facing copy. The bot speaks Italian; identifiers and logs stay in
// English.
const (
	msgWelcome             = "Ciao! Sono l'assistente del negozio. Cosa posso fare per te?"
	msgAskPhone            = "Perfetto! Per iniziare scrivimi il tuo nome e il tuo numero di telefono."
	msgNeedPhone           = "Mi serve un numero di telefono valido, ad esempio 333 1234567."
	msgAskServices         = "Quali servizi vuoi prenotare?"
	msgAskMoreServices     = "Aggiunto! Vuoi aggiungere altri servizi?"
	msgUnknownService      = "Non conosco questo servizio. Scegli dal menù qui sotto."
	msgNeedService         = "Scegli almeno un servizio prima di continuare."
	msgAskDate             = "Per quale giorno vuoi prenotare?"
	msgBadDate             = "Non ho capito la data. Scegline una dal calendario."
	msgClosedDay           = "Siamo chiusi in questo giorno. Scegline un altro."
	msgOutOfHorizon        = "Puoi prenotare al massimo con %d giorni di anticipo."
	msgNoAvailability      = "Nessuna disponibilità per questa data. Prova un altro giorno."
	msgAskBand             = "In quale fascia oraria preferisci venire?"
	msgBandFullHover       = "nessuna disponibilità in questa fascia oraria"
	msgAskTime             = "A che ora?"
	msgSlotTaken           = "Questo orario è stato appena prenotato. Posso proporti questi:"
	msgSlotTakenNoAlt      = "Questo orario è stato appena prenotato e non ci sono orari vicini liberi. Prova un'altra fascia o un altro giorno."
	msgBookingConfirmed    = "Prenotazione confermata: %s alle %s per %s. A presto, %s!"
	msgBookingUpdated      = "La tua prenotazione è stata aggiornata: %s alle %s, %s."
	msgAskBookingPhone     = "Scrivimi il numero di telefono usato per la prenotazione."
	msgBookingFound        = "Ho trovato la prenotazione di %s per %s alle %s. Cosa vuoi fare?"
	msgBookingNotFound     = "Non ho trovato prenotazioni con questo numero di telefono."
	msgBookingCancelled    = "La tua prenotazione è stata cancellata. A presto!"
	msgChooseFromButtons   = "Scegli una delle opzioni qui sotto."
	msgSessionExpired      = "La sessione è scaduta, ricominciamo!"
	msgCalendarUnavailable = "Il calendario non è raggiungibile in questo momento. Riprova tra qualche minuto."
	msgFallback            = "Scusa, non ho capito. Puoi ripetere con altre parole?"
)

const (
	labelNewBooking    = "Nuovo Appuntamento"
	labelModifyBooking = "Modifica Prenotazione"
	labelUpdateChoice  = "Modifica Appuntamento"
	labelCancelChoice  = "Cancella Appuntamento"
	labelNewSearch     = "Nuova Ricerca"
	labelMainMenu      = "Torna al menù principale"
	labelBackServices  = "Torna ai servizi"
	labelBackDate      = "Torna alla data"
	labelBackBand      = "Torna alla fascia"
	labelServicesDone  = "Ho finito"
)

const dateLayout = "2006-01-02"

func textReply(text string) *TurnReply {
	return &TurnReply{ReplyText: text}
}

func buttonsReply(text string, buttons []Button) *TurnReply {
	return &TurnReply{ReplyText: text, Payload: &Payload{Text: text, Buttons: buttons}}
}

func welcomeButtons() []Button {
	return []Button{
		{Label: labelNewBooking, CallbackData: StepBookingNew},
		{Label: labelModifyBooking, CallbackData: StepBookingModify},
	}
}

func (e *Engine) sessionExpiredReply(t *turn) *TurnReply {
	t.reset()
	return buttonsReply(msgSessionExpired, welcomeButtons())
}

func (e *Engine) datePickerReply(prompt string) *TurnReply {
	return &TurnReply{
		ReplyText: prompt,
		Payload: &Payload{
			Text: prompt,
			DatePicker: &DatePicker{
				ShowDays:    e.cat.HorizonDays,
				ClosingDays: e.cat.ClosedWeekdays(),
			},
		},
	}
}

// serviceMenu lists every catalog service; once something is selected a
// done button appears.
func (e *Engine) serviceMenu(t *turn, prompt string) *TurnReply {
	services := e.selectedServices(t)
	buttons := make([]Button, 0, len(e.cat.Services())+1)
	for _, svc := range e.cat.Services() {
		buttons = append(buttons, Button{
			Label:        fmt.Sprintf("%s (%d min)", svc.Name, int(svc.Duration.Minutes())),
			CallbackData: StepServiceAdd + ":" + svc.Name,
		})
	}
	if len(services) > 0 {
		buttons = append(buttons, Button{Label: labelServicesDone, CallbackData: StepServiceDone})
	}
	return buttonsReply(prompt, buttons)
}

func (e *Engine) selectedServices(t *turn) []string {
	fc := t.flowCtx()
	if fc == nil {
		return nil
	}
	return fc.StringSliceParam(session.ParamServices)
}

// mergeFlow merges params into the active flow context, which also
// refreshes its lifespan. Exactly one flow stays alive.
func (e *Engine) mergeFlow(t *turn, params map[string]any) {
	name := session.CtxOngoingAppointment
	if t.inModifyFlow() {
		name = session.CtxOngoingModify
	}
	t.set = t.set.MergeParams(name, params)
	t.set = t.set.EnsureSingleFlow(name)
}

func (e *Engine) totalDuration(t *turn) (time.Duration, error) {
	return e.cat.TotalDuration(e.selectedServices(t))
}

func (e *Engine) flowDate(t *turn) (time.Time, bool) {
	fc := t.flowCtx()
	if fc == nil {
		return time.Time{}, false
	}
	raw := fc.StringParam(session.ParamDate)
	if raw == "" {
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(dateLayout, raw, e.cat.Location)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// bandButtons renders one button per time band. Full bands stay visible
// but disabled, with the reason in the hover text.
func (e *Engine) bandButtons(ctx context.Context, date time.Time, total time.Duration) ([]Button, bool, error) {
	buttons := make([]Button, 0, len(e.cat.Bands())+1)
	anyFree := false
	for _, band := range e.cat.Bands() {
		slots, err := e.calc.AvailableSlots(ctx, date, band, total)
		if err != nil {
			return nil, false, err
		}
		b := Button{Label: band.Name, CallbackData: StepBandAdd + ":" + band.Name}
		if len(slots) == 0 {
			b.Disabled = true
			b.Hover = msgBandFullHover
		} else {
			anyFree = true
		}
		buttons = append(buttons, b)
	}
	return buttons, anyFree, nil
}

func (e *Engine) handleWelcome(_ context.Context, t *turn) (*TurnReply, error) {
	t.reset()
	return buttonsReply(msgWelcome, welcomeButtons()), nil
}

func (e *Engine) handleReset(_ context.Context, t *turn) (*TurnReply, error) {
	t.reset()
	return buttonsReply(msgWelcome, welcomeButtons()), nil
}

func (e *Engine) handleFallback(ctx context.Context, t *turn) (*TurnReply, error) {
	t.outcome = "fallback"
	e.metrics.ObserveFallback()
	if e.recorder != nil {
		if err := e.recorder.RecordFallback(ctx, t.req.StepID, t.req.RawText); err != nil {
			e.logger.Warn("fallback row not recorded", "session_id", t.req.SessionID, "error", err)
		}
	}
	return textReply(msgFallback), nil
}

func (e *Engine) handleBookingNew(_ context.Context, t *turn) (*TurnReply, error) {
	t.reset()
	t.set = t.set.MergeParams(session.CtxOngoingAppointment, nil)
	t.setState(StateAwaitingPhone)
	return textReply(msgAskPhone), nil
}

func (e *Engine) handleBookingModify(_ context.Context, t *turn) (*TurnReply, error) {
	t.reset()
	t.set = t.set.MergeParams(session.CtxOngoingModify, nil)
	t.setState(StateAwaitingBookingNumber)
	return textReply(msgAskBookingPhone), nil
}

func (e *Engine) handlePhoneAdd(_ context.Context, t *turn) (*TurnReply, error) {
	customer := t.entity(session.ParamCustomer)
	phone := digitsOnly(t.entity(session.ParamPhoneNumber))
	if phone == "" {
		var parsedName string
		parsedName, phone = splitNameAndPhone(t.req.RawText)
		if customer == "" {
			customer = parsedName
		}
	}
	if phone == "" {
		t.outcome = "invalid"
		t.setState(StateAwaitingPhone)
		return textReply(msgNeedPhone), nil
	}

	e.mergeFlow(t, map[string]any{
		session.ParamCustomer:    customer,
		session.ParamPhoneNumber: phone,
	})
	t.setState(StateAwaitingServices)
	return e.serviceMenu(t, msgAskServices), nil
}

func (e *Engine) handleServiceAdd(_ context.Context, t *turn) (*TurnReply, error) {
	name := t.input()
	if !e.cat.HasService(name) {
		t.outcome = "unknown_service"
		t.setState(StateAwaitingServices)
		return e.serviceMenu(t, msgUnknownService), nil
	}

	services := e.selectedServices(t)
	for _, s := range services {
		if s == name {
			t.setState(StateAwaitingServices)
			return e.serviceMenu(t, msgAskMoreServices), nil
		}
	}
	services = append(services, name)
	e.mergeFlow(t, map[string]any{session.ParamServices: services})
	t.setState(StateAwaitingServices)
	return e.serviceMenu(t, msgAskMoreServices), nil
}

func (e *Engine) handleServiceDone(_ context.Context, t *turn) (*TurnReply, error) {
	if len(e.selectedServices(t)) == 0 {
		t.outcome = "invalid"
		t.setState(StateAwaitingServices)
		return e.serviceMenu(t, msgNeedService), nil
	}
	t.setState(StateAwaitingDate)
	return e.datePickerReply(msgAskDate), nil
}

func (e *Engine) handleDateAdd(ctx context.Context, t *turn) (*TurnReply, error) {
	raw := t.entity(session.ParamDate)
	if raw == "" {
		raw = t.input()
	}
	date, err := time.ParseInLocation(dateLayout, raw, e.cat.Location)
	if err != nil {
		t.outcome = "invalid"
		t.setState(StateAwaitingDate)
		return e.datePickerReply(msgBadDate), nil
	}

	now := e.now().In(e.cat.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.cat.Location)
	switch {
	case date.Before(today):
		t.outcome = "invalid"
		t.setState(StateAwaitingDate)
		return e.datePickerReply(msgBadDate), nil
	case date.After(today.AddDate(0, 0, e.cat.HorizonDays)):
		t.outcome = "out_of_horizon"
		t.setState(StateAwaitingDate)
		return e.datePickerReply(fmt.Sprintf(msgOutOfHorizon, e.cat.HorizonDays)), nil
	case e.cat.IsClosed(date):
		t.outcome = "closed_day"
		t.setState(StateAwaitingDate)
		return e.datePickerReply(msgClosedDay), nil
	}

	total, err := e.totalDuration(t)
	if err != nil {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}
	buttons, anyFree, err := e.bandButtons(ctx, date, total)
	if err != nil {
		return nil, err
	}
	if !anyFree {
		t.outcome = "no_availability"
		t.setState(StateAwaitingDate)
		return e.datePickerReply(msgNoAvailability), nil
	}

	e.mergeFlow(t, map[string]any{session.ParamDate: date.Format(dateLayout)})
	t.setState(StateAwaitingBand)
	buttons = append(buttons, Button{Label: labelBackServices, CallbackData: StepBackServices})
	return buttonsReply(msgAskBand, buttons), nil
}

func (e *Engine) handleBandAdd(ctx context.Context, t *turn) (*TurnReply, error) {
	date, ok := e.flowDate(t)
	if !ok {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}
	total, err := e.totalDuration(t)
	if err != nil {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}

	band, found := e.cat.Band(t.input())
	if !found {
		t.outcome = "invalid"
		buttons, _, err := e.bandButtons(ctx, date, total)
		if err != nil {
			return nil, err
		}
		t.setState(StateAwaitingBand)
		return buttonsReply(msgChooseFromButtons, buttons), nil
	}

	slots, err := e.calc.AvailableSlots(ctx, date, band, total)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		t.outcome = "no_availability"
		buttons, _, err := e.bandButtons(ctx, date, total)
		if err != nil {
			return nil, err
		}
		t.setState(StateAwaitingBand)
		return buttonsReply(msgNoAvailability, buttons), nil
	}

	e.mergeFlow(t, map[string]any{session.ParamTimeBand: band.Name})
	t.setState(StateAwaitingTime)

	buttons := make([]Button, 0, len(slots)+2)
	for _, slot := range slots {
		hhmm := slot.Start.Format("15:04")
		buttons = append(buttons, Button{Label: hhmm, CallbackData: StepTimeSelect + ":" + hhmm})
	}
	buttons = append(buttons,
		Button{Label: labelBackDate, CallbackData: StepBackDate},
		Button{Label: labelBackServices, CallbackData: StepBackServices},
	)
	return buttonsReply(msgAskTime, buttons), nil
}

func (e *Engine) handleTimeSelect(ctx context.Context, t *turn) (*TurnReply, error) {
	fc := t.flowCtx()
	date, ok := e.flowDate(t)
	if fc == nil || !ok {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}
	clock, err := catalog.ParseClock(t.input())
	if err != nil {
		t.outcome = "invalid"
		t.setState(StateAwaitingTime)
		return textReply(msgChooseFromButtons), nil
	}
	total, err := e.totalDuration(t)
	if err != nil {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}

	start := clock.On(date, e.cat.Location)
	services := e.selectedServices(t)
	b := booking.Booking{
		Customer: fc.StringParam(session.ParamCustomer),
		Phone:    fc.StringParam(session.ParamPhoneNumber),
		Services: services,
		Start:    start,
		End:      start.Add(total),
	}

	when := formatDateIT(start)
	at := start.Format("15:04")

	if t.inModifyFlow() {
		eventID := fc.StringParam(session.ParamEventID)
		if eventID == "" {
			t.outcome = "missing_context"
			return e.sessionExpiredReply(t), nil
		}
		if err := e.exec.Update(ctx, eventID, b); err != nil {
			e.metrics.ObserveBooking("update", "error")
			return nil, err
		}
		e.metrics.ObserveBooking("update", "ok")
		t.outcome = "updated"
		t.reset()
		return textReply(fmt.Sprintf(msgBookingUpdated, when, at, strings.Join(services, ", "))), nil
	}

	outcome, err := e.exec.Commit(ctx, b)
	if err != nil {
		e.metrics.ObserveBooking("commit", "error")
		return nil, err
	}
	if !outcome.Created {
		e.metrics.ObserveBooking("commit", "busy")
		t.outcome = "busy"
		t.setState(StateAwaitingTime)

		var buttons []Button
		if prev := outcome.Alternatives.Previous; prev != nil {
			hhmm := prev.Start.Format("15:04")
			buttons = append(buttons, Button{Label: hhmm, CallbackData: StepTimeSelect + ":" + hhmm})
		}
		if next := outcome.Alternatives.Next; next != nil {
			hhmm := next.Start.Format("15:04")
			buttons = append(buttons, Button{Label: hhmm, CallbackData: StepTimeSelect + ":" + hhmm})
		}
		if len(buttons) == 0 {
			buttons = append(buttons, Button{Label: labelBackBand, CallbackData: StepBackBand})
			return buttonsReply(msgSlotTakenNoAlt, buttons), nil
		}
		buttons = append(buttons, Button{Label: labelBackBand, CallbackData: StepBackBand})
		return buttonsReply(msgSlotTaken, buttons), nil
	}

	e.metrics.ObserveBooking("commit", "created")
	t.outcome = "booked"
	t.reset()
	return textReply(fmt.Sprintf(msgBookingConfirmed, when, at, strings.Join(services, ", "), b.Customer)), nil
}

func (e *Engine) handleBookingNumber(ctx context.Context, t *turn) (*TurnReply, error) {
	phone := digitsOnly(t.entity(session.ParamPhoneNumber))
	if phone == "" {
		phone = digitsOnly(t.input())
	}
	if phone == "" {
		t.outcome = "invalid"
		t.setState(StateAwaitingBookingNumber)
		return textReply(msgNeedPhone), nil
	}

	ev, err := e.exec.FindByPhone(ctx, phone)
	if errors.Is(err, booking.ErrNotFound) {
		t.outcome = "not_found"
		t.setState(StateAwaitingBookingNumber)
		return buttonsReply(msgBookingNotFound, []Button{
			{Label: labelNewSearch, CallbackData: StepBookingModify},
			{Label: labelMainMenu, CallbackData: StepWelcome},
		}), nil
	}
	if err != nil {
		return nil, err
	}

	customer := booking.CustomerFromSummary(ev.Summary)
	e.mergeFlow(t, map[string]any{
		session.ParamEventID:     ev.ID,
		session.ParamPhoneNumber: phone,
		session.ParamCustomer:    customer,
	})
	t.setState(StateAwaitingModifyChoice)

	text := fmt.Sprintf(msgBookingFound, customer, formatDateIT(ev.Start), ev.Start.Format("15:04"))
	return buttonsReply(text, []Button{
		{Label: labelUpdateChoice, CallbackData: StepModifyChoice + ":update"},
		{Label: labelCancelChoice, CallbackData: StepModifyChoice + ":cancel"},
		{Label: labelNewSearch, CallbackData: StepBookingModify},
	}), nil
}

func (e *Engine) handleModifyChoice(ctx context.Context, t *turn) (*TurnReply, error) {
	fc := t.flowCtx()
	if fc == nil {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}

	switch t.input() {
	case "update":
		t.setState(StateAwaitingServices)
		return e.serviceMenu(t, msgAskServices), nil
	case "cancel":
		eventID := fc.StringParam(session.ParamEventID)
		if eventID == "" {
			t.outcome = "missing_context"
			return e.sessionExpiredReply(t), nil
		}
		if err := e.exec.Cancel(ctx, eventID); err != nil {
			e.metrics.ObserveBooking("cancel", "error")
			return nil, err
		}
		e.metrics.ObserveBooking("cancel", "ok")
		t.outcome = "cancelled"
		t.reset()
		return textReply(msgBookingCancelled), nil
	default:
		t.outcome = "invalid"
		t.setState(StateAwaitingModifyChoice)
		return buttonsReply(msgChooseFromButtons, []Button{
			{Label: labelUpdateChoice, CallbackData: StepModifyChoice + ":update"},
			{Label: labelCancelChoice, CallbackData: StepModifyChoice + ":cancel"},
		}), nil
	}
}

func (e *Engine) handleBackServices(_ context.Context, t *turn) (*TurnReply, error) {
	t.setState(StateAwaitingServices)
	return e.serviceMenu(t, msgAskServices), nil
}

func (e *Engine) handleBackDate(_ context.Context, t *turn) (*TurnReply, error) {
	t.setState(StateAwaitingDate)
	return e.datePickerReply(msgAskDate), nil
}

func (e *Engine) handleBackBand(ctx context.Context, t *turn) (*TurnReply, error) {
	date, ok := e.flowDate(t)
	if !ok {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}
	total, err := e.totalDuration(t)
	if err != nil {
		t.outcome = "missing_context"
		return e.sessionExpiredReply(t), nil
	}
	buttons, _, err := e.bandButtons(ctx, date, total)
	if err != nil {
		return nil, err
	}
	t.setState(StateAwaitingBand)
	buttons = append(buttons, Button{Label: labelBackServices, CallbackData: StepBackServices})
	return buttonsReply(msgAskBand, buttons), nil
}

var weekdaysIT = [...]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"}

var monthsIT = [...]string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

func formatDateIT(t time.Time) string {
	return fmt.Sprintf("%s %d %s", weekdaysIT[t.Weekday()], t.Day(), monthsIT[t.Month()-1])
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitNameAndPhone pulls a phone number out of free text like
// "Mario Rossi 333 1234567". Everything without digits is the name.
func splitNameAndPhone(raw string) (string, string) {
	phone := digitsOnly(raw)
	if len(phone) < 6 {
		phone = ""
	}
	var nameParts []string
	for _, f := range strings.Fields(raw) {
		if digitsOnly(f) == "" && f != "+" {
			nameParts = append(nameParts, f)
		}
	}
	return strings.Join(nameParts, " "), phone
}
