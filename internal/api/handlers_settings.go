package api

import (
	"encoding/json"
	"net/http"

	"github.com/strideapp/stride/internal/api/respond"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/services"
)

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	TimeZone *string `json:"timeZone"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Users.GetUser(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, user)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	user, err := h.deps.Users.UpdateProfile(r.Context(), userID(r), services.UpdateProfileParams{
		DisplayName: req.Name,
		Email:       req.Email,
		TimeZone:    req.TimeZone,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, user)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := h.deps.Users.ChangePassword(r.Context(), userID(r), req.CurrentPassword, req.NewPassword); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Users.GetSettings(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, settings)
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	merged, err := h.deps.Users.UpdateSettings(r.Context(), userID(r), patch)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, merged)
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Users.DeleteAccount(r.Context(), userID(r)); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
