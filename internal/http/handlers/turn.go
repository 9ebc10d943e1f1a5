// Package handlers holds the HTTP handlers of the booking API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/figarolabs/figaro-booking/internal/flow"
	"github.com/figarolabs/figaro-booking/pkg/logging"
)

// TurnHandler exposes the conversation engine over the webhook endpoint.
type TurnHandler struct {
	engine *flow.Engine
	logger *logging.Logger
}

// NewTurnHandler creates the webhook handler.
func NewTurnHandler(engine *flow.Engine, logger *logging.Logger) *TurnHandler {
	if engine == nil {
		panic("handlers: flow engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TurnHandler{engine: engine, logger: logger}
}

// HandleTurn processes one conversation turn.
func (h *TurnHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req flow.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId is required"})
		return
	}

	reply, err := h.engine.Handle(r.Context(), req)
	if err != nil {
		h.logger.Error("turn failed", "session_id", req.SessionID, "step_id", req.StepID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// HealthCheck reports liveness.
func (h *TurnHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
