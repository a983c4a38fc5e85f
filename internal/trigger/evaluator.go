// Package trigger scans active tasks for engagement conditions (an
// approaching deadline, a stale task) and hands each hit to the coaching
// pipeline. The scan keeps no ledger of prior firings: a condition that
// still holds on the next scan fires again.
package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// Trigger kind labels, used for metrics and logs.
const (
	kindDeadline   = "deadline"
	kindInactivity = "inactivity"
)

// ScanReport summarizes one trigger scan.
type ScanReport struct {
	TasksScanned  int
	DeadlineFired int
	StaleFired    int
	Errors        int
}

// Evaluator runs the hourly trigger scan over every active task.
type Evaluator struct {
	store           store.Store
	coach           *coach.Service
	metrics         *metrics.Collector
	log             zerolog.Logger
	warnDays        []int
	inactivityAfter time.Duration
	nowFn           func() time.Time
}

// New constructs an Evaluator. warnDays are the exact whole-day countdown
// values that fire a deadline reminder; inactivityAfter is the minimum quiet
// interval before a stale-task nudge. metrics may be nil.
func New(s store.Store, c *coach.Service, m *metrics.Collector, log zerolog.Logger, warnDays []int, inactivityAfter time.Duration) *Evaluator {
	return &Evaluator{
		store:           s,
		coach:           c,
		metrics:         m,
		log:             log,
		warnDays:        warnDays,
		inactivityAfter: inactivityAfter,
		nowFn:           time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (e *Evaluator) WithNow(now func() time.Time) *Evaluator {
	e.nowFn = now
	return e
}

// RunScan evaluates every active task once. Per-task failures are logged and
// skipped so one broken task never stalls the rest of the scan. The error is
// non-nil only when the task listing itself fails.
func (e *Evaluator) RunScan(ctx context.Context) (ScanReport, error) {
	start := time.Now()
	defer func() { e.metrics.RecordScanDuration(time.Since(start)) }()

	var report ScanReport

	tasks, err := e.store.Tasks().ListActive(ctx)
	if err != nil {
		return report, err
	}
	report.TasksScanned = len(tasks)

	// Users repeat across tasks within one scan; fetch each once.
	users := make(map[string]*model.User)

	for _, task := range tasks {
		user, ok := users[task.UserID]
		if !ok {
			user, err = e.store.Users().GetByID(ctx, task.UserID)
			if err != nil {
				e.log.Error().Err(err).Str("task_id", task.TaskID).Str("user_id", task.UserID).Msg("trigger scan: user lookup failed")
				report.Errors++
				continue
			}
			users[task.UserID] = user
		}

		if !user.Settings.ProgressAlertsEnabled() {
			continue
		}

		// A task can fire both: a deadline reminder and a stale nudge are
		// independent conditions.
		e.evaluateDeadline(ctx, user, task, &report)
		e.evaluateInactivity(ctx, user, task, &report)
	}

	e.log.Info().
		Int("tasks", report.TasksScanned).
		Int("deadline_fired", report.DeadlineFired).
		Int("stale_fired", report.StaleFired).
		Int("errors", report.Errors).
		Msg("trigger scan complete")
	return report, nil
}

// evaluateDeadline fires when the task's whole-day countdown equals one of
// the configured warn values exactly. An "== threshold" test, not "<=": a
// task created inside the warn window never receives the earlier alert.
func (e *Evaluator) evaluateDeadline(ctx context.Context, user *model.User, task *model.Task, report *ScanReport) {
	if task.Deadline == nil {
		return
	}
	days := insight.DaysUntil(e.nowFn(), *task.Deadline)
	if !containsDay(e.warnDays, days) {
		return
	}

	_, _, err := e.coach.SendCoachingMessage(ctx, user.UserID, coach.KindDeadline, &task.TaskID)
	if err != nil {
		e.log.Error().Err(err).Str("task_id", task.TaskID).Msg("trigger scan: deadline reminder failed")
		report.Errors++
		return
	}
	e.metrics.RecordTriggerFired(kindDeadline)
	report.DeadlineFired++
	e.log.Info().Str("task_id", task.TaskID).Str("user_id", user.UserID).Int("days_remaining", days).Msg("deadline reminder sent")
}

// evaluateInactivity fires when the task's newest activity entry is older
// than the quiet interval. Tasks with no activity at all never fire.
func (e *Evaluator) evaluateInactivity(ctx context.Context, user *model.User, task *model.Task, report *ScanReport) {
	if !user.Settings.InactivityAlertsEnabled() {
		return
	}

	latest, err := e.store.ActivityLogs().LatestByTask(ctx, task.TaskID)
	if errors.Is(err, model.ErrNotFound) {
		return
	}
	if err != nil {
		e.log.Error().Err(err).Str("task_id", task.TaskID).Msg("trigger scan: latest activity lookup failed")
		report.Errors++
		return
	}
	if e.nowFn().Sub(latest.Timestamp) < e.inactivityAfter {
		return
	}

	_, _, err = e.coach.SendCoachingMessage(ctx, user.UserID, coach.KindInactivity, &task.TaskID)
	if err != nil {
		e.log.Error().Err(err).Str("task_id", task.TaskID).Msg("trigger scan: inactivity nudge failed")
		report.Errors++
		return
	}
	e.metrics.RecordTriggerFired(kindInactivity)
	report.StaleFired++
	e.log.Info().Str("task_id", task.TaskID).Str("user_id", user.UserID).Msg("inactivity nudge sent")
}

func containsDay(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}
