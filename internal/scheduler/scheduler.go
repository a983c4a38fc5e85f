// Package scheduler drives the three engine cadences: the daily check-in at
// a fixed hour, the weekly review at a fixed weekday and hour, and the
// periodic trigger scan. Each cadence runs in its own goroutine until the
// context is cancelled; a process shutdown mid-run abandons the remaining
// items for that run and they are picked up at the next scheduled time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/store"
	"github.com/strideapp/stride/internal/trigger"
)

// Scheduler owns the timing of the engine's periodic work.
type Scheduler struct {
	store         store.Store
	coach         *coach.Service
	evaluator     *trigger.Evaluator
	log           zerolog.Logger
	checkInHour   int
	reviewWeekday time.Weekday
	reviewHour    int
	scanInterval  time.Duration
	nowFn         func() time.Time
}

// New constructs a Scheduler. Hours are in the server's local time, matching
// the cron-style fixed cadences (daily at checkInHour:00, weekly at
// reviewWeekday reviewHour:00, scan every scanInterval).
func New(s store.Store, c *coach.Service, ev *trigger.Evaluator, log zerolog.Logger, checkInHour int, reviewWeekday time.Weekday, reviewHour int, scanInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         s,
		coach:         c,
		evaluator:     ev,
		log:           log,
		checkInHour:   checkInHour,
		reviewWeekday: reviewWeekday,
		reviewHour:    reviewHour,
		scanInterval:  scanInterval,
		nowFn:         time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Scheduler) WithNow(now func() time.Time) *Scheduler {
	s.nowFn = now
	return s
}

// Run starts all three cadences and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().
		Int("check_in_hour", s.checkInHour).
		Str("review_weekday", s.reviewWeekday.String()).
		Int("review_hour", s.reviewHour).
		Dur("scan_interval", s.scanInterval).
		Msg("scheduler started")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.runDaily(ctx) }()
	go func() { defer wg.Done(); s.runWeekly(ctx) }()
	go func() { defer wg.Done(); s.runScans(ctx) }()
	wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runDaily(ctx context.Context) {
	for {
		next := nextDaily(s.nowFn(), s.checkInHour)
		if !s.sleepUntil(ctx, next) {
			return
		}
		if err := s.RunDailyCheckIn(ctx); err != nil {
			s.log.Error().Err(err).Msg("daily check-in run failed")
		}
	}
}

func (s *Scheduler) runWeekly(ctx context.Context) {
	for {
		next := nextWeekly(s.nowFn(), s.reviewWeekday, s.reviewHour)
		if !s.sleepUntil(ctx, next) {
			return
		}
		if err := s.RunWeeklyReview(ctx); err != nil {
			s.log.Error().Err(err).Msg("weekly review run failed")
		}
	}
}

func (s *Scheduler) runScans(ctx context.Context) {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.evaluator.RunScan(ctx); err != nil {
				s.log.Error().Err(err).Msg("trigger scan failed")
			}
		}
	}
}

// sleepUntil blocks until t or cancellation. Reports false on cancellation.
func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) bool {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RunDailyCheckIn sends the daily check-in to every user who opted in.
// Per-user failures are logged and skipped.
func (s *Scheduler) RunDailyCheckIn(ctx context.Context) error {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for _, u := range users {
		if !u.Settings.DailyCheckInEnabled() {
			continue
		}
		if _, _, err := s.coach.SendCoachingMessage(ctx, u.UserID, coach.KindCheckIn, nil); err != nil {
			s.log.Error().Err(err).Str("user_id", u.UserID).Msg("daily check-in failed for user")
			continue
		}
		sent++
	}
	s.log.Info().Int("users", len(users)).Int("sent", sent).Msg("daily check-in run complete")
	return nil
}

// RunWeeklyReview sends the weekly review to every user who opted in.
// Per-user failures are logged and skipped.
func (s *Scheduler) RunWeeklyReview(ctx context.Context) error {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for _, u := range users {
		if !u.Settings.WeeklyReviewEnabled() {
			continue
		}
		if _, _, err := s.coach.SendCoachingMessage(ctx, u.UserID, coach.KindWeeklyReview, nil); err != nil {
			s.log.Error().Err(err).Str("user_id", u.UserID).Msg("weekly review failed for user")
			continue
		}
		sent++
	}
	s.log.Info().Int("users", len(users)).Int("sent", sent).Msg("weekly review run complete")
	return nil
}

// nextDaily returns the next instant at hour:00 strictly after from, in
// from's location.
func nextDaily(from time.Time, hour int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, 0, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly returns the next instant on weekday at hour:00 strictly after
// from, in from's location.
func nextWeekly(from time.Time, weekday time.Weekday, hour int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, 0, 0, 0, from.Location())
	daysAhead := (int(weekday) - int(from.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
