// Package api wires the HTTP surface: auth, task/step CRUD, settings, and
// the coaching endpoints, all behind bearer-token middleware.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/api/ratelimit"
	"github.com/strideapp/stride/internal/api/recovery"
	"github.com/strideapp/stride/internal/auth"
	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/services"
	"github.com/strideapp/stride/internal/store"
)

// Deps carries everything the HTTP layer needs. Gatherer and CoachLimiter
// are optional; nil disables /metrics and coach rate limiting respectively.
type Deps struct {
	Users        *services.UserService
	Tasks        *services.TaskService
	Coach        *coach.Service
	Insights     *insight.Service
	Store        store.Store
	Tokens       *auth.TokenManager
	Gatherer     prometheus.Gatherer
	CoachLimiter *ratelimit.Limiter
	Log          zerolog.Logger
}

type handler struct {
	deps Deps
}

// NewRouter builds the full route table.
func NewRouter(d Deps) *mux.Router {
	h := &handler{deps: d}

	router := mux.NewRouter()
	router.Use(recovery.Middleware(d.Log))

	router.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/api/health/db", h.healthDB).Methods(http.MethodGet)
	if d.Gatherer != nil {
		router.Handle("/metrics", metrics.Handler(d.Gatherer)).Methods(http.MethodGet)
	}

	router.HandleFunc("/api/auth/register", h.register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.login).Methods(http.MethodPost)

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(authMiddleware(d.Tokens))

	authed.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)

	authed.HandleFunc("/tasks", h.listTasks).Methods(http.MethodGet)
	authed.HandleFunc("/tasks", h.createTask).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{taskId}", h.getTask).Methods(http.MethodGet)
	authed.HandleFunc("/tasks/{taskId}", h.updateTask).Methods(http.MethodPut)
	authed.HandleFunc("/tasks/{taskId}", h.deleteTask).Methods(http.MethodDelete)
	authed.HandleFunc("/tasks/{taskId}/activate", h.activateTask).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{taskId}/deadline", h.updateDeadline).Methods(http.MethodPatch)
	authed.HandleFunc("/tasks/{taskId}/logs", h.listActivity).Methods(http.MethodGet)

	authed.HandleFunc("/tasks/{taskId}/steps", h.listSteps).Methods(http.MethodGet)
	authed.HandleFunc("/tasks/{taskId}/steps", h.createStep).Methods(http.MethodPost)
	authed.HandleFunc("/steps/{stepId}", h.updateStep).Methods(http.MethodPut)
	authed.HandleFunc("/steps/{stepId}", h.deleteStep).Methods(http.MethodDelete)
	authed.HandleFunc("/steps/{stepId}/complete", h.toggleStep).Methods(http.MethodPatch)

	authed.HandleFunc("/settings/profile", h.getProfile).Methods(http.MethodGet)
	authed.HandleFunc("/settings/profile", h.updateProfile).Methods(http.MethodPut)
	authed.HandleFunc("/settings/change-password", h.changePassword).Methods(http.MethodPost)
	authed.HandleFunc("/settings/notifications", h.getSettings).Methods(http.MethodGet)
	authed.HandleFunc("/settings/notifications", h.updateSettings).Methods(http.MethodPut)
	authed.HandleFunc("/settings/account", h.deleteAccount).Methods(http.MethodDelete)

	// Generation-backed endpoints get their own rate budget.
	ai := authed.PathPrefix("/ai").Subrouter()
	if d.CoachLimiter != nil {
		ai.Use(d.CoachLimiter.Middleware)
	}
	ai.HandleFunc("/check-in", h.checkIn).Methods(http.MethodPost)
	ai.HandleFunc("/motivation", h.motivation).Methods(http.MethodPost)
	ai.HandleFunc("/analyze-progress", h.analyzeProgress).Methods(http.MethodPost)
	ai.HandleFunc("/history", h.history).Methods(http.MethodGet)
	ai.HandleFunc("/snapshot", h.snapshot).Methods(http.MethodGet)
	ai.HandleFunc("/streak", h.streak).Methods(http.MethodGet)

	return router
}
