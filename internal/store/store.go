package store

import (
	"context"
	"time"

	"github.com/strideapp/stride/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Tasks() Tasks
	Steps() Steps
	ActivityLogs() ActivityLogs
	Interactions() Interactions
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update persists display name, email, time zone, and password hash.
	Update(ctx context.Context, u *model.User) (*model.User, error)
	UpdateSettings(ctx context.Context, userID string, s model.NotificationSettings) error
	List(ctx context.Context) ([]*model.User, error)
	// Delete removes the user and cascades to all owned entities.
	Delete(ctx context.Context, userID string) error
}

type Tasks interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)
	GetByID(ctx context.Context, taskID string) (*model.Task, error)
	// ListByUser returns the user's tasks, optionally filtered by status,
	// newest first.
	ListByUser(ctx context.Context, userID string, status *model.TaskStatus) ([]*model.Task, error)
	// ListActive returns every ACTIVE task system-wide, for the trigger scan.
	ListActive(ctx context.Context) ([]*model.Task, error)
	CountByStatus(ctx context.Context, userID string, status model.TaskStatus) (int, error)
	// CountCompletedSince counts the user's tasks completed at or after since.
	CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error)
	Update(ctx context.Context, t *model.Task) (*model.Task, error)
	// MarkCompleted transitions the task to COMPLETED and stamps completedAt.
	// The transition is one-way: an already-completed task is left untouched.
	MarkCompleted(ctx context.Context, taskID string, at time.Time) error
	Delete(ctx context.Context, taskID string) error
}

type Steps interface {
	Create(ctx context.Context, s *model.Step) (*model.Step, error)
	GetByID(ctx context.Context, stepID string) (*model.Step, error)
	// ListByTask returns the task's steps ordered by their order column.
	ListByTask(ctx context.Context, taskID string) ([]*model.Step, error)
	// MaxOrder returns the highest order value among the task's steps,
	// or -1 when the task has none.
	MaxOrder(ctx context.Context, taskID string) (int, error)
	Update(ctx context.Context, s *model.Step) (*model.Step, error)
	// SetCompleted flips the completed flag with completedAt in lockstep
	// (at is nil exactly when completed is false).
	SetCompleted(ctx context.Context, stepID string, completed bool, at *time.Time) (*model.Step, error)
	Delete(ctx context.Context, stepID string) error
}

type ActivityLogs interface {
	// Append writes one immutable log entry. Existing entries are never
	// mutated or deleted.
	Append(ctx context.Context, l *model.ActivityLog) (*model.ActivityLog, error)
	// ListByTask returns up to limit entries for the task, newest first.
	ListByTask(ctx context.Context, taskID string, limit int) ([]*model.ActivityLog, error)
	// LatestByTask returns the task's most recent entry, or model.ErrNotFound.
	LatestByTask(ctx context.Context, taskID string) (*model.ActivityLog, error)
	// ListCompletionsByUser returns up to limit COMPLETED entries across all
	// of the user's tasks, newest first. Used for streak computation.
	ListCompletionsByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)
}

type Interactions interface {
	Create(ctx context.Context, i *model.AIInteraction) (*model.AIInteraction, error)
	// ListByUser returns up to limit interactions, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.AIInteraction, error)
}
