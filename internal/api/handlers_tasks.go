package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/strideapp/stride/internal/api/respond"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/services"
)

const defaultLogLimit = 50

type createTaskRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    model.TaskPriority `json:"priority"`
}

type updateTaskRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Priority    *model.TaskPriority `json:"priority"`
}

type deadlineRequest struct {
	Deadline time.Time `json:"deadline"`
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	var status *model.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.TaskStatus(raw)
		status = &s
	}
	tasks, err := h.deps.Tasks.ListTasks(r.Context(), userID(r), status)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, tasks)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	task, err := h.deps.Tasks.CreateTask(r.Context(), userID(r), services.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, task)
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.deps.Tasks.GetTask(r.Context(), userID(r), mux.Vars(r)["taskId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	task, err := h.deps.Tasks.UpdateTask(r.Context(), userID(r), mux.Vars(r)["taskId"], services.UpdateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Tasks.DeleteTask(r.Context(), userID(r), mux.Vars(r)["taskId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

func (h *handler) activateTask(w http.ResponseWriter, r *http.Request) {
	var req deadlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Deadline.IsZero() {
		respond.WriteBadRequest(w, "deadline is required")
		return
	}
	task, err := h.deps.Tasks.ActivateTask(r.Context(), userID(r), mux.Vars(r)["taskId"], req.Deadline)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

func (h *handler) updateDeadline(w http.ResponseWriter, r *http.Request) {
	var req deadlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Deadline.IsZero() {
		respond.WriteBadRequest(w, "deadline is required")
		return
	}
	task, err := h.deps.Tasks.UpdateDeadline(r.Context(), userID(r), mux.Vars(r)["taskId"], req.Deadline)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

func (h *handler) listActivity(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	logs, err := h.deps.Tasks.ListActivity(r.Context(), userID(r), mux.Vars(r)["taskId"], limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, logs)
}

type createStepRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       *int   `json:"order"`
}

type updateStepRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

func (h *handler) listSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.deps.Tasks.ListSteps(r.Context(), userID(r), mux.Vars(r)["taskId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, steps)
}

func (h *handler) createStep(w http.ResponseWriter, r *http.Request) {
	var req createStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	step, err := h.deps.Tasks.CreateStep(r.Context(), userID(r), mux.Vars(r)["taskId"], services.CreateStepParams{
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, step)
}

func (h *handler) updateStep(w http.ResponseWriter, r *http.Request) {
	var req updateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	step, err := h.deps.Tasks.UpdateStep(r.Context(), userID(r), mux.Vars(r)["stepId"], services.UpdateStepParams{
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, step)
}

func (h *handler) deleteStep(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Tasks.DeleteStep(r.Context(), userID(r), mux.Vars(r)["stepId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"message": "step deleted"})
}

func (h *handler) toggleStep(w http.ResponseWriter, r *http.Request) {
	step, err := h.deps.Tasks.ToggleStep(r.Context(), userID(r), mux.Vars(r)["stepId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, step)
}
