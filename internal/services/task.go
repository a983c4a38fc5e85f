// Package services holds the application services behind the HTTP layer:
// task/step lifecycle with activity logging, and user account management.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// TaskService manages the task/step lifecycle. Every mutation appends an
// activity log entry; the step-completion path drives the automatic task
// completion and its celebration.
type TaskService struct {
	store store.Store
	coach *coach.Service
	log   zerolog.Logger
	nowFn func() time.Time
}

// NewTaskService constructs a TaskService. coach may be nil to disable
// completion celebrations (CLI contexts).
func NewTaskService(s store.Store, c *coach.Service, log zerolog.Logger) *TaskService {
	return &TaskService{store: s, coach: c, log: log, nowFn: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *TaskService) WithNow(now func() time.Time) *TaskService {
	s.nowFn = now
	return s
}

// CreateTaskParams are the caller-supplied fields for a new task. New tasks
// always start in the backlog; priority defaults to MEDIUM.
type CreateTaskParams struct {
	Title       string
	Description string
	Priority    model.TaskPriority
}

// UpdateTaskParams patch a task; nil fields are left unchanged.
type UpdateTaskParams struct {
	Title       *string
	Description *string
	Priority    *model.TaskPriority
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, p CreateTaskParams) (*model.Task, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if p.Priority == "" {
		p.Priority = model.TaskPriorityMedium
	}
	if !p.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", model.ErrValidation, p.Priority)
	}

	task, err := s.store.Tasks().Create(ctx, &model.Task{
		UserID:      userID,
		Title:       p.Title,
		Description: p.Description,
		Status:      model.TaskStatusBacklog,
		Priority:    p.Priority,
	})
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, task.TaskID, nil, model.ActionCreated, "Task created: "+task.Title)
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.taskForUser(ctx, userID, taskID)
}

// ListTasks returns the user's tasks, optionally filtered by status.
func (s *TaskService) ListTasks(ctx context.Context, userID string, status *model.TaskStatus) ([]*model.Task, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", model.ErrValidation, *status)
	}
	return s.store.Tasks().ListByUser(ctx, userID, status)
}

func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, p UpdateTaskParams) (*model.Task, error) {
	task, err := s.taskForUser(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: completed tasks are read-only", model.ErrValidation)
	}
	if p.Title != nil {
		if *p.Title == "" {
			return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, fmt.Errorf("%w: invalid priority %q", model.ErrValidation, *p.Priority)
		}
		task.Priority = *p.Priority
	}

	updated, err := s.store.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, task.TaskID, nil, model.ActionUpdated, "Task updated: "+updated.Title)
	return updated, nil
}

// ActivateTask moves a backlog task to ACTIVE with a deadline.
func (s *TaskService) ActivateTask(ctx context.Context, userID, taskID string, deadline time.Time) (*model.Task, error) {
	task, err := s.taskForUser(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusBacklog {
		return nil, fmt.Errorf("%w: only backlog tasks can be activated", model.ErrValidation)
	}
	task.Status = model.TaskStatusActive
	task.Deadline = &deadline

	updated, err := s.store.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, task.TaskID, nil, model.ActionUpdated, "Task moved to active with deadline")
	return updated, nil
}

// UpdateDeadline changes an active task's deadline.
func (s *TaskService) UpdateDeadline(ctx context.Context, userID, taskID string, deadline time.Time) (*model.Task, error) {
	task, err := s.taskForUser(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusActive {
		return nil, fmt.Errorf("%w: only active tasks carry a deadline", model.ErrValidation)
	}
	task.Deadline = &deadline

	updated, err := s.store.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, task.TaskID, nil, model.ActionUpdated, "Deadline updated")
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	task, err := s.taskForUser(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusCompleted {
		return fmt.Errorf("%w: completed tasks cannot be deleted", model.ErrValidation)
	}
	return s.store.Tasks().Delete(ctx, taskID)
}

// ListActivity returns the task's newest activity entries.
func (s *TaskService) ListActivity(ctx context.Context, userID, taskID string, limit int) ([]*model.ActivityLog, error) {
	if _, err := s.taskForUser(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.store.ActivityLogs().ListByTask(ctx, taskID, limit)
}

// CreateStepParams are the caller-supplied fields for a new step. A nil
// Order places the step after the task's current last step.
type CreateStepParams struct {
	Title       string
	Description string
	Order       *int
}

// UpdateStepParams patch a step; nil fields are left unchanged.
type UpdateStepParams struct {
	Title       *string
	Description *string
	Order       *int
}

func (s *TaskService) ListSteps(ctx context.Context, userID, taskID string) ([]*model.Step, error) {
	if _, err := s.taskForUser(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.store.Steps().ListByTask(ctx, taskID)
}

func (s *TaskService) CreateStep(ctx context.Context, userID, taskID string, p CreateStepParams) (*model.Step, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if _, err := s.taskForUser(ctx, userID, taskID); err != nil {
		return nil, err
	}

	order := 0
	if p.Order != nil {
		order = *p.Order
	} else {
		max, err := s.store.Steps().MaxOrder(ctx, taskID)
		if err != nil {
			return nil, err
		}
		order = max + 1
	}

	step, err := s.store.Steps().Create(ctx, &model.Step{
		TaskID:      taskID,
		Title:       p.Title,
		Description: p.Description,
		Order:       order,
	})
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, taskID, &step.StepID, model.ActionCreated, "Step created: "+step.Title)
	return step, nil
}

func (s *TaskService) UpdateStep(ctx context.Context, userID, stepID string, p UpdateStepParams) (*model.Step, error) {
	step, _, err := s.stepForUser(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		if *p.Title == "" {
			return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		step.Title = *p.Title
	}
	if p.Description != nil {
		step.Description = *p.Description
	}
	if p.Order != nil {
		step.Order = *p.Order
	}

	updated, err := s.store.Steps().Update(ctx, step)
	if err != nil {
		return nil, err
	}
	s.appendLog(ctx, step.TaskID, &step.StepID, model.ActionUpdated, "Step updated: "+updated.Title)
	return updated, nil
}

// ToggleStep flips the step's completed flag. Completing the last remaining
// step completes the task (one-way) and fires the celebration synchronously.
func (s *TaskService) ToggleStep(ctx context.Context, userID, stepID string) (*model.Step, error) {
	step, task, err := s.stepForUser(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}

	completed := !step.Completed
	var at *time.Time
	if completed {
		now := s.nowFn().UTC()
		at = &now
	}
	updated, err := s.store.Steps().SetCompleted(ctx, stepID, completed, at)
	if err != nil {
		return nil, err
	}

	if completed {
		s.appendLog(ctx, step.TaskID, &step.StepID, model.ActionCompleted, "Step completed: "+updated.Title)
		if err := s.onStepCompleted(ctx, task); err != nil {
			return nil, err
		}
	} else {
		s.appendLog(ctx, step.TaskID, &step.StepID, model.ActionUpdated, "Step marked as incomplete: "+updated.Title)
	}
	return updated, nil
}

func (s *TaskService) DeleteStep(ctx context.Context, userID, stepID string) error {
	step, _, err := s.stepForUser(ctx, userID, stepID)
	if err != nil {
		return err
	}
	if err := s.store.Steps().Delete(ctx, stepID); err != nil {
		return err
	}
	s.appendLog(ctx, step.TaskID, nil, model.ActionUpdated, "Step deleted: "+step.Title)
	return nil
}

// onStepCompleted completes the task when every step is done (and there is
// at least one). The transition is one-way: re-opening a step later never
// reverts it. The celebration is best-effort and never fails the toggle.
func (s *TaskService) onStepCompleted(ctx context.Context, task *model.Task) error {
	if task.Status == model.TaskStatusCompleted {
		return nil
	}
	steps, err := s.store.Steps().ListByTask(ctx, task.TaskID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	for _, st := range steps {
		if !st.Completed {
			return nil
		}
	}

	now := s.nowFn().UTC()
	if err := s.store.Tasks().MarkCompleted(ctx, task.TaskID, now); err != nil {
		return err
	}
	s.appendLog(ctx, task.TaskID, nil, model.ActionCompleted, "Task completed - all steps finished!")
	s.log.Info().Str("task_id", task.TaskID).Str("user_id", task.UserID).Msg("task auto-completed")

	if s.coach != nil {
		completed := *task
		completed.Status = model.TaskStatusCompleted
		completed.CompletedAt = &now
		if err := s.coach.CelebrateCompletion(ctx, &completed); err != nil {
			s.log.Error().Err(err).Str("task_id", task.TaskID).Msg("completion celebration failed")
		}
	}
	return nil
}

// taskForUser loads the task and enforces ownership. A task owned by someone
// else reads as not found.
func (s *TaskService) taskForUser(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, model.ErrNotFound
	}
	return task, nil
}

// stepForUser loads the step and its task, enforcing ownership through the
// task.
func (s *TaskService) stepForUser(ctx context.Context, userID, stepID string) (*model.Step, *model.Task, error) {
	step, err := s.store.Steps().GetByID(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.taskForUser(ctx, userID, step.TaskID)
	if err != nil {
		return nil, nil, err
	}
	return step, task, nil
}

// appendLog writes one activity entry; the log is advisory and a write
// failure must not fail the mutation that produced it.
func (s *TaskService) appendLog(ctx context.Context, taskID string, stepID *string, action model.ActionType, details string) {
	_, err := s.store.ActivityLogs().Append(ctx, &model.ActivityLog{
		TaskID:    taskID,
		StepID:    stepID,
		Action:    action,
		Details:   details,
		Timestamp: s.nowFn().UTC(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("task_id", taskID).Msg("activity log append failed")
	}
}
