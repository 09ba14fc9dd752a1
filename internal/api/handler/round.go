package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/makeitmeme/internal/api/middleware"
	"github.com/mcoot/makeitmeme/internal/api/request"
	"github.com/mcoot/makeitmeme/internal/api/response"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/session"
)

// RoundHandler handles submission, voting and results endpoints
type RoundHandler struct {
	controller *session.Controller
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(controller *session.Controller) *RoundHandler {
	return &RoundHandler{
		controller: controller,
	}
}

// Submissions handles GET /api/v1/sessions/{code}/submissions
func (h *RoundHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	subs, err := h.controller.PlayerSubmissions(r.Context(), sessionCode(r), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SubmissionsFromModel(subs))
}

// Submit handles PUT /api/v1/sessions/{code}/submissions/{id}
func (h *RoundHandler) Submit(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())
	submissionID := model.SubmissionID(mux.Vars(r)["id"])

	var req request.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if len(req.Texts) == 0 {
		WriteError(w, NewInvalidRequestError("texts is required"))
		return
	}

	sub, err := h.controller.SubmitEntry(r.Context(), sessionCode(r), playerID, submissionID, req.Texts)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SubmissionFromModel(sub))
}

// Entries handles GET /api/v1/sessions/{code}/rounds/{round}/entries
func (h *RoundHandler) Entries(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil {
		WriteError(w, NewInvalidRequestError("round must be a number"))
		return
	}

	entries, err := h.controller.RoundEntries(r.Context(), sessionCode(r), playerID, round)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.EntriesFromSession(entries))
}

// Vote handles POST /api/v1/sessions/{code}/votes
func (h *RoundHandler) Vote(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	var req request.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.SubmissionID == "" {
		WriteError(w, NewInvalidRequestError("submission_id is required"))
		return
	}
	if req.Category == "" {
		WriteError(w, NewInvalidRequestError("category is required"))
		return
	}

	vote, total, err := h.controller.CastVote(r.Context(), sessionCode(r), playerID, model.SubmissionID(req.SubmissionID), req.Category)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.VoteFromModel(vote, total))
}

// Podium handles GET /api/v1/sessions/{code}/podium
func (h *RoundHandler) Podium(w http.ResponseWriter, r *http.Request) {
	podium, err := h.controller.GetPodium(r.Context(), sessionCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PodiumFromSession(podium))
}
