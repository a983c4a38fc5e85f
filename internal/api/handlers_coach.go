package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/strideapp/stride/internal/api/respond"
	"github.com/strideapp/stride/internal/coach"
)

const defaultHistoryLimit = 20

func (h *handler) checkIn(w http.ResponseWriter, r *http.Request) {
	h.coachEndpoint(w, r, coach.KindCheckIn, nil)
}

func (h *handler) motivation(w http.ResponseWriter, r *http.Request) {
	h.coachEndpoint(w, r, coach.KindMotivation, nil)
}

type analyzeRequest struct {
	TaskID *string `json:"taskId"`
}

func (h *handler) analyzeProgress(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.WriteBadRequest(w, "invalid JSON body")
			return
		}
	}
	h.coachEndpoint(w, r, coach.KindAnalysis, req.TaskID)
}

func (h *handler) coachEndpoint(w http.ResponseWriter, r *http.Request, kind coach.MessageKind, taskID *string) {
	it, err := h.deps.Coach.Coach(r.Context(), userID(r), kind, taskID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, it)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := h.deps.Store.Interactions().ListByUser(r.Context(), userID(r), limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Insights.Snapshot(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, snap)
}

func (h *handler) streak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.deps.Insights.Streak(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]int{"currentStreak": streak})
}
