package api

import (
	"encoding/json"
	"net/http"

	"github.com/strideapp/stride/internal/api/respond"
	"github.com/strideapp/stride/internal/model"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	user, token, err := h.deps.Users.Register(r.Context(), req.Email, req.Password, req.Name, req.TimeZone)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	user, token, err := h.deps.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Users.GetUser(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, user)
}
