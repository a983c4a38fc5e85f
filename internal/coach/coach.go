// Package coach runs the coaching message pipeline: snapshot the user,
// generate a message (falling back to a static one when generation fails),
// record the interaction, and optionally dispatch a push notification.
package coach

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/genai"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/push"
	"github.com/strideapp/stride/internal/store"
)

// checkInBodyLimit bounds the push body for check-in style messages.
const checkInBodyLimit = 100

// Service orchestrates message generation, recording, and dispatch.
type Service struct {
	store      store.Store
	insights   *insight.Service
	gen        genai.Generator
	dispatcher *notify.Dispatcher
	metrics    *metrics.Collector
	log        zerolog.Logger
	nowFn      func() time.Time
}

// New constructs a coaching Service. metrics may be nil.
func New(s store.Store, ins *insight.Service, gen genai.Generator, d *notify.Dispatcher, m *metrics.Collector, log zerolog.Logger) *Service {
	return &Service{
		store:      s,
		insights:   ins,
		gen:        gen,
		dispatcher: d,
		metrics:    m,
		log:        log,
		nowFn:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.nowFn = now
	return s
}

// Compose generates the message text for one kind. Generation failures are
// logged and replaced by the kind's fallback text; Compose never fails.
func (s *Service) Compose(ctx context.Context, userName string, kind MessageKind, snap *insight.Snapshot, task *TaskContext) string {
	system, user := buildPrompt(kind, userName, snap, task)
	text, err := s.gen.Generate(ctx, system, user)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("message generation failed, serving fallback")
		s.metrics.RecordGenerationFallback()
		return fallbackMessage(kind, userName)
	}
	return text
}

// Record persists one interaction. label is the short human-readable reason
// stored alongside the generated response.
func (s *Service) Record(ctx context.Context, userID string, taskID *string, kind MessageKind, label, response string) (*model.AIInteraction, error) {
	it, err := s.store.Interactions().Create(ctx, &model.AIInteraction{
		UserID:    userID,
		TaskID:    taskID,
		Type:      kind.InteractionType(),
		Prompt:    label,
		Response:  response,
		Timestamp: s.nowFn().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("record interaction: %w", err)
	}
	return it, nil
}

// Coach runs snapshot → generate → record for one user and returns the
// persisted interaction without pushing. Used by the HTTP coaching endpoints.
func (s *Service) Coach(ctx context.Context, userID string, kind MessageKind, taskID *string) (*model.AIInteraction, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	snap, err := s.insights.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	var taskCtx *TaskContext
	if taskID != nil {
		taskCtx, err = s.taskContext(ctx, *taskID)
		if err != nil {
			return nil, err
		}
	}

	text := s.Compose(ctx, user.DisplayName, kind, snap, taskCtx)
	return s.Record(ctx, userID, taskID, kind, recordLabel(kind, taskCtx), text)
}

// SendCoachingMessage runs the full pipeline for one user: snapshot,
// generate, record, dispatch. The returned push.Result reports dispatch
// outcome; a failed push never fails the pipeline.
func (s *Service) SendCoachingMessage(ctx context.Context, userID string, kind MessageKind, taskID *string) (*model.AIInteraction, push.Result, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, push.Result{}, fmt.Errorf("load user: %w", err)
	}

	snap, err := s.insights.Snapshot(ctx, userID)
	if err != nil {
		return nil, push.Result{}, err
	}

	var taskCtx *TaskContext
	if taskID != nil {
		taskCtx, err = s.taskContext(ctx, *taskID)
		if err != nil {
			return nil, push.Result{}, err
		}
	}

	text := s.Compose(ctx, user.DisplayName, kind, snap, taskCtx)
	it, err := s.Record(ctx, userID, taskID, kind, recordLabel(kind, taskCtx), text)
	if err != nil {
		return nil, push.Result{}, err
	}

	title, body, payload := pushContent(kind, text, snap, taskCtx)
	payload["interaction_id"] = it.InteractionID
	if taskID != nil {
		payload["task_id"] = *taskID
	}
	res := s.dispatcher.Notify(ctx, userID, title, body, payload)
	s.recordPushOutcome(res)
	return it, res, nil
}

// CelebrateCompletion sends the completion celebration for a just-completed
// task, honoring the user's celebration preference. Called synchronously
// from the step-completion path.
func (s *Service) CelebrateCompletion(ctx context.Context, task *model.Task) error {
	user, err := s.store.Users().GetByID(ctx, task.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.Settings.CompletionCelebrationsEnabled() {
		s.log.Debug().Str("user_id", user.UserID).Str("task_id", task.TaskID).Msg("completion celebration disabled")
		return nil
	}
	_, _, err = s.SendCoachingMessage(ctx, task.UserID, KindCompletion, &task.TaskID)
	return err
}

// taskContext loads the task and its step counts for task-scoped prompts.
func (s *Service) taskContext(ctx context.Context, taskID string) (*TaskContext, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	steps, err := s.store.Steps().ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	tc := &TaskContext{
		Title:       task.Title,
		Description: task.Description,
		TotalSteps:  len(steps),
		Priority:    task.Priority,
	}
	for _, st := range steps {
		if st.Completed {
			tc.CompletedSteps++
		}
	}
	if task.Deadline != nil {
		d := insight.DaysUntil(s.nowFn(), *task.Deadline)
		tc.DaysRemaining = &d
	}
	return tc, nil
}

func (s *Service) recordPushOutcome(res push.Result) {
	switch {
	case res.Success:
		s.metrics.RecordPushOutcome(metrics.PushSent)
	case res.Error == "no device token" || res.Error == "notifications disabled":
		s.metrics.RecordPushOutcome(metrics.PushSkipped)
	default:
		s.metrics.RecordPushOutcome(metrics.PushFailed)
	}
}

// recordLabel is the short reason stored with the interaction.
func recordLabel(kind MessageKind, task *TaskContext) string {
	title := ""
	if task != nil {
		title = task.Title
	}
	switch kind {
	case KindCheckIn:
		return "Daily check-in"
	case KindWeeklyReview:
		return "Weekly review"
	case KindDeadline:
		return "Deadline reminder: " + title
	case KindInactivity:
		return "Inactivity alert: " + title
	case KindCompletion:
		return "Completion celebration: " + title
	case KindAnalysis:
		if title != "" {
			return "Progress analysis: " + title
		}
		return "Progress analysis"
	default:
		return "Motivation boost"
	}
}

// pushContent frames the push notification per kind.
func pushContent(kind MessageKind, text string, snap *insight.Snapshot, task *TaskContext) (string, string, map[string]string) {
	title := "Your Coach 💬"
	body := truncate(text, checkInBodyLimit)
	label := "coach"
	switch kind {
	case KindCheckIn:
		title, label = "Daily Check-in 🌟", "daily_checkin"
	case KindWeeklyReview:
		title, label = "Weekly Review 📊", "weekly_review"
		if snap != nil {
			body = fmt.Sprintf("This week: %d tasks completed!", snap.CompletedThisWeek)
		}
	case KindDeadline:
		title, label = "Deadline Approaching ⏰", "deadline_reminder"
	case KindInactivity:
		title, label = "Don't Lose Momentum 👋", "inactivity_alert"
	case KindCompletion:
		title, label = "🎉 Congratulations!", "completion_celebration"
		if task != nil {
			body = fmt.Sprintf("%q completed!", task.Title)
		}
	case KindMotivation:
		title, label = "Motivation Boost 🔥", "motivation"
	case KindAnalysis:
		title, label = "Progress Analysis 📈", "analysis"
	}
	return title, body, map[string]string{"type": label}
}

// truncate shortens s to at most limit runes, appending an ellipsis marker
// when anything was cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
