// Package insight aggregates a user's task, step, and activity history into
// the behavioral snapshot consumed by the coaching pipeline, and derives the
// consecutive-day engagement streak.
package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// streakLogLimit bounds how many COMPLETED log entries the streak walk reads.
const streakLogLimit = 100

// TaskSummary annotates one active task with progress and recency data.
type TaskSummary struct {
	TaskID         string             `json:"id"`
	Title          string             `json:"title"`
	Priority       model.TaskPriority `json:"priority"`
	Deadline       *time.Time         `json:"deadline,omitempty"`
	TotalSteps     int                `json:"total_steps"`
	CompletedSteps int                `json:"completed_steps"`
	// DaysRemaining is ceil((deadline - now) / 1 day), nil without a deadline.
	DaysRemaining *int      `json:"days_remaining,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
}

// Snapshot is the immutable point-in-time view of a user's progress.
type Snapshot struct {
	ActiveTasks       []TaskSummary `json:"active_tasks"`
	BacklogCount      int           `json:"backlog_count"`
	CompletedThisWeek int           `json:"completed_this_week"`
	// WeeklyCompletionRate is completedThisWeek/(completedThisWeek+active), 0
	// when the denominator is 0. A known approximation: not comparable across
	// users with different active-task counts.
	WeeklyCompletionRate float64   `json:"weekly_completion_rate"`
	CurrentStreak        int       `json:"current_streak"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Service computes snapshots and streaks. Reads only; storage errors are
// propagated to the caller.
type Service struct {
	store store.Store
	log   zerolog.Logger
	nowFn func() time.Time
}

// New constructs an insight Service.
func New(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log, nowFn: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.nowFn = now
	return s
}

// Snapshot builds the behavioral summary for the user.
func (s *Service) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	now := s.nowFn()
	weekAgo := now.Add(-7 * 24 * time.Hour)

	active := model.TaskStatusActive
	activeTasks, err := s.store.Tasks().ListByUser(ctx, userID, &active)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}

	summaries := make([]TaskSummary, 0, len(activeTasks))
	for _, t := range activeTasks {
		sum := TaskSummary{
			TaskID:       t.TaskID,
			Title:        t.Title,
			Priority:     t.Priority,
			Deadline:     t.Deadline,
			LastActivity: t.UpdateTime,
		}
		if t.Deadline != nil {
			d := DaysUntil(now, *t.Deadline)
			sum.DaysRemaining = &d
		}

		steps, err := s.store.Steps().ListByTask(ctx, t.TaskID)
		if err != nil {
			return nil, fmt.Errorf("list steps for task %s: %w", t.TaskID, err)
		}
		sum.TotalSteps = len(steps)
		for _, st := range steps {
			if st.Completed {
				sum.CompletedSteps++
			}
		}

		latest, err := s.store.ActivityLogs().LatestByTask(ctx, t.TaskID)
		switch {
		case err == nil:
			sum.LastActivity = latest.Timestamp
		case err == model.ErrNotFound:
			// fall back to the task's last-updated time
		default:
			return nil, fmt.Errorf("latest activity for task %s: %w", t.TaskID, err)
		}

		summaries = append(summaries, sum)
	}

	backlog, err := s.store.Tasks().CountByStatus(ctx, userID, model.TaskStatusBacklog)
	if err != nil {
		return nil, fmt.Errorf("count backlog: %w", err)
	}
	completedThisWeek, err := s.store.Tasks().CountCompletedSince(ctx, userID, weekAgo)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}

	rate := 0.0
	if denom := completedThisWeek + len(summaries); denom > 0 {
		rate = float64(completedThisWeek) / float64(denom)
	}

	streak, err := s.Streak(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ActiveTasks:          summaries,
		BacklogCount:         backlog,
		CompletedThisWeek:    completedThisWeek,
		WeeklyCompletionRate: rate,
		CurrentStreak:        streak,
		GeneratedAt:          now,
	}, nil
}

// Streak returns the number of consecutive calendar days, ending today, with
// at least one COMPLETED activity log across any of the user's tasks. A day
// without activity today yields 0 regardless of prior history.
func (s *Service) Streak(ctx context.Context, userID string) (int, error) {
	logs, err := s.store.ActivityLogs().ListCompletionsByUser(ctx, userID, streakLogLimit)
	if err != nil {
		return 0, fmt.Errorf("list completion logs: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	loc := s.userLocation(ctx, userID)
	now := s.nowFn().In(loc)

	days := make([]time.Time, 0, len(logs))
	seen := make(map[time.Time]struct{}, len(logs))
	for _, l := range logs {
		day := midnight(l.Timestamp.In(loc))
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	return streakFrom(midnight(now), days), nil
}

// streakFrom walks distinct activity days (newest first) counting consecutive
// days back from today. A gap between the expected day and the next recorded
// day ends the streak.
func streakFrom(today time.Time, days []time.Time) int {
	streak := 0
	for _, day := range days {
		diff := daysBetween(day, today)
		if diff == streak {
			streak++
		} else if diff > streak {
			break
		}
	}
	return streak
}

// DaysUntil is the whole-day countdown to deadline: ceil((deadline-now)/24h).
func DaysUntil(now, deadline time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b (both midnights). Rounding
// absorbs DST transitions where a "day" is 23 or 25 hours.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func (s *Service) userLocation(ctx context.Context, userID string) *time.Location {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil || user.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(user.TimeZone)
	if err != nil {
		s.log.Debug().Str("user_id", userID).Str("tz", user.TimeZone).Msg("unparseable time zone, using server local")
		return time.Local
	}
	return loc
}
