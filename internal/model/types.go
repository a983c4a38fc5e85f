package model

import "time"

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskStatusBacklog   TaskStatus = "BACKLOG"
	TaskStatusActive    TaskStatus = "ACTIVE"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusActive, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority orders tasks by importance.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// ActionType classifies an activity log entry.
type ActionType string

const (
	ActionCreated   ActionType = "CREATED"
	ActionUpdated   ActionType = "UPDATED"
	ActionCompleted ActionType = "COMPLETED"
	ActionCommented ActionType = "COMMENTED"
)

// InteractionType classifies a recorded coaching message.
type InteractionType string

const (
	InteractionCheckIn    InteractionType = "CHECK_IN"
	InteractionAnalysis   InteractionType = "ANALYSIS"
	InteractionMotivation InteractionType = "MOTIVATION"
)

// User represents an account in the system.
type User struct {
	UserID       string               `json:"userId"`
	Email        string               `json:"email"`
	DisplayName  string               `json:"displayName"`
	PasswordHash string               `json:"-"`
	TimeZone     string               `json:"timeZone"`
	Settings     NotificationSettings `json:"notificationSettings"`
	CreationTime time.Time            `json:"creationTime"`
	UpdateTime   time.Time            `json:"updateTime"`
}

// Task is owned by exactly one user. Deadline is only meaningful while the
// task is ACTIVE; CompletedAt is set exactly once at the COMPLETED transition
// and never cleared.
type Task struct {
	TaskID       string       `json:"taskId"`
	UserID       string       `json:"userId"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	Deadline     *time.Time   `json:"deadline,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	CreationTime time.Time    `json:"creationTime"`
	UpdateTime   time.Time    `json:"updateTime"`
}

// Step belongs to one task. Order is unique per task but not required to be
// contiguous. Completed and CompletedAt move in lockstep.
type Step struct {
	StepID       string     `json:"stepId"`
	TaskID       string     `json:"taskId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Order        int        `json:"order"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreationTime time.Time  `json:"creationTime"`
	UpdateTime   time.Time  `json:"updateTime"`
}

// ActivityLog is an append-only record of a change against a task (and
// optionally one of its steps). It is the sole source of truth for streak and
// inactivity computation and is never mutated or deleted.
type ActivityLog struct {
	LogID     string     `json:"logId"`
	TaskID    string     `json:"taskId"`
	StepID    *string    `json:"stepId,omitempty"`
	Action    ActionType `json:"actionType"`
	Details   string     `json:"details"`
	Timestamp time.Time  `json:"timestamp"`
}

// AIInteraction is an immutable record of one generated coaching message.
// Prompt holds the short label describing why the message was generated,
// Response the generated text.
type AIInteraction struct {
	InteractionID string          `json:"interactionId"`
	UserID        string          `json:"userId"`
	TaskID        *string         `json:"taskId,omitempty"`
	Type          InteractionType `json:"interactionType"`
	Prompt        string          `json:"message"`
	Response      string          `json:"aiResponse"`
	Timestamp     time.Time       `json:"timestamp"`
}
