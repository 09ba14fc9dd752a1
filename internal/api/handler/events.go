package handler

import (
	"net/http"

	"github.com/mcoot/makeitmeme/internal/api/middleware"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/realtime"
	"github.com/mcoot/makeitmeme/internal/services/session"
)

// EventsHandler streams session events to members over SSE or websockets
type EventsHandler struct {
	controller *session.Controller
	manager    *realtime.Manager
	ws         *realtime.WSServer
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(controller *session.Controller, manager *realtime.Manager, ws *realtime.WSServer) *EventsHandler {
	return &EventsHandler{
		controller: controller,
		manager:    manager,
		ws:         ws,
	}
}

// SSE handles GET /api/v1/sessions/{code}/events
func (h *EventsHandler) SSE(w http.ResponseWriter, r *http.Request) {
	code, playerID, ok := h.member(w, r)
	if !ok {
		return
	}
	realtime.ServeSSE(w, r, h.manager, code, playerID)
}

// WebSocket handles GET /api/v1/sessions/{code}/ws
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	code, playerID, ok := h.member(w, r)
	if !ok {
		return
	}
	h.ws.Serve(w, r, code, playerID)
}

// member checks that the caller belongs to the session before subscribing
func (h *EventsHandler) member(w http.ResponseWriter, r *http.Request) (model.SessionCode, model.PlayerID, bool) {
	playerID := middleware.MustGetPlayerID(r.Context())
	code := sessionCode(r)

	snap, err := h.controller.GetSnapshot(r.Context(), code, playerID)
	if err != nil {
		WriteError(w, err)
		return "", "", false
	}
	if !snap.IsMember {
		WriteError(w, model.ErrNotInSession)
		return "", "", false
	}
	return code, playerID, true
}
