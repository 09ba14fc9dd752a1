package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mcoot/makeitmeme/internal/api/middleware"
	"github.com/mcoot/makeitmeme/internal/api/response"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/session"
)

const qrSize = 256

// SessionHandler handles session lifecycle endpoints
type SessionHandler struct {
	controller *session.Controller
	publicURL  string
}

// NewSessionHandler creates a new session handler. publicURL is the base of
// the join links encoded in QR codes.
func NewSessionHandler(controller *session.Controller, publicURL string) *SessionHandler {
	return &SessionHandler{
		controller: controller,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
	}
}

// sessionCode reads the {code} path variable. Codes are case-insensitive.
func sessionCode(r *http.Request) model.SessionCode {
	return model.SessionCode(strings.ToUpper(strings.TrimSpace(mux.Vars(r)["code"])))
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	s, err := h.controller.CreateSession(r.Context(), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.SessionFromModel(s))
}

// Get handles GET /api/v1/sessions/{code}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	snap, err := h.controller.GetSnapshot(r.Context(), sessionCode(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SnapshotFromSession(snap))
}

// Status handles GET /api/v1/sessions/{code}/status. Polling this endpoint
// applies any transition that has come due.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	snap, err := h.controller.CheckStatus(r.Context(), sessionCode(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SnapshotFromSession(snap))
}

// Join handles POST /api/v1/sessions/{code}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	s, err := h.controller.JoinSession(r.Context(), sessionCode(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(s))
}

// Leave handles POST /api/v1/sessions/{code}/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	if err := h.controller.LeaveSession(r.Context(), sessionCode(r), playerID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Start handles POST /api/v1/sessions/{code}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	s, err := h.controller.StartSession(r.Context(), sessionCode(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(s))
}

// Advance handles POST /api/v1/sessions/{code}/advance
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	s, err := h.controller.AdvanceRound(r.Context(), sessionCode(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(s))
}

// Archive handles POST /api/v1/sessions/{code}/archive
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	if err := h.controller.ArchiveSession(r.Context(), sessionCode(r), playerID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// QR handles GET /api/v1/sessions/{code}/qr. It renders the join link as a
// PNG and does not require the session to exist.
func (h *SessionHandler) QR(w http.ResponseWriter, r *http.Request) {
	code := sessionCode(r)
	if !code.Valid() {
		WriteError(w, model.ErrInvalidCode)
		return
	}

	png, err := qrcode.Encode(h.JoinURL(code), qrcode.Medium, qrSize)
	if err != nil {
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// JoinURL returns the link players follow to join the session
func (h *SessionHandler) JoinURL(code model.SessionCode) string {
	return h.publicURL + "/join/" + string(code)
}
