// Package storetest provides a compliance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	userID := "u-" + uuid.New().String()
	email := userID + "@example.test"

	// Users
	enabled := true
	u := &model.User{
		UserID:       userID,
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "x",
		TimeZone:     "UTC",
		Settings:     model.NotificationSettings{DailyCheckIn: &enabled},
	}
	if _, err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := s.Users().GetByID(ctx, userID)
	if err != nil || got.UserID != userID {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}
	if !got.Settings.DailyCheckInEnabled() {
		t.Fatalf("settings did not round-trip: %+v", got.Settings)
	}
	if byEmail, err := s.Users().GetByEmail(ctx, email); err != nil || byEmail.UserID != userID {
		t.Fatalf("GetByEmail: got=%v err=%v", byEmail, err)
	}

	// Settings update preserves the document shape.
	tok := "device-token-1"
	merged := got.Settings.Merge(model.NotificationSettings{DeviceToken: &tok})
	if err := s.Users().UpdateSettings(ctx, userID, merged); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, _ = s.Users().GetByID(ctx, userID)
	if tk, ok := got.Settings.Token(); !ok || tk != tok {
		t.Fatalf("token not persisted: %+v", got.Settings)
	}
	if !got.Settings.DailyCheckInEnabled() {
		t.Fatalf("dailyCheckIn lost during settings update")
	}

	// Tasks
	deadline := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	tk, err := s.Tasks().Create(ctx, &model.Task{
		UserID:   userID,
		Title:    "learn go",
		Status:   model.TaskStatusActive,
		Priority: model.TaskPriorityHigh,
		Deadline: &deadline,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if tk.TaskID == "" {
		t.Fatalf("CreateTask: empty task id")
	}
	gotTask, err := s.Tasks().GetByID(ctx, tk.TaskID)
	if err != nil || gotTask.Title != "learn go" {
		t.Fatalf("GetTask: got=%v err=%v", gotTask, err)
	}
	if gotTask.Deadline == nil || !gotTask.Deadline.Equal(deadline) {
		t.Fatalf("deadline did not round-trip: %v", gotTask.Deadline)
	}

	active := model.TaskStatusActive
	if lst, err := s.Tasks().ListByUser(ctx, userID, &active); err != nil || len(lst) != 1 {
		t.Fatalf("ListByUser: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Tasks().ListActive(ctx); err != nil || len(lst) != 1 {
		t.Fatalf("ListActive: n=%d err=%v", len(lst), err)
	}
	if n, err := s.Tasks().CountByStatus(ctx, userID, model.TaskStatusBacklog); err != nil || n != 0 {
		t.Fatalf("CountByStatus: n=%d err=%v", n, err)
	}

	// MarkCompleted is one-way and stamps completedAt exactly once.
	first := time.Now().UTC().Truncate(time.Second)
	if err := s.Tasks().MarkCompleted(ctx, tk.TaskID, first); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := s.Tasks().MarkCompleted(ctx, tk.TaskID, first.Add(time.Hour)); err != nil {
		t.Fatalf("MarkCompleted (repeat): %v", err)
	}
	gotTask, _ = s.Tasks().GetByID(ctx, tk.TaskID)
	if gotTask.Status != model.TaskStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", gotTask.Status)
	}
	if gotTask.CompletedAt == nil || !gotTask.CompletedAt.Equal(first) {
		t.Fatalf("completedAt rewritten on repeat transition: %v", gotTask.CompletedAt)
	}
	if n, err := s.Tasks().CountCompletedSince(ctx, userID, first.Add(-time.Minute)); err != nil || n != 1 {
		t.Fatalf("CountCompletedSince: n=%d err=%v", n, err)
	}

	// Steps
	st, err := s.Steps().Create(ctx, &model.Step{TaskID: tk.TaskID, Title: "read spec", Order: 0})
	if err != nil {
		t.Fatalf("CreateStep: %v", err)
	}
	if _, err := s.Steps().Create(ctx, &model.Step{TaskID: tk.TaskID, Title: "write code", Order: 3}); err != nil {
		t.Fatalf("CreateStep: %v", err)
	}
	if max, err := s.Steps().MaxOrder(ctx, tk.TaskID); err != nil || max != 3 {
		t.Fatalf("MaxOrder: max=%d err=%v", max, err)
	}
	steps, err := s.Steps().ListByTask(ctx, tk.TaskID)
	if err != nil || len(steps) != 2 || steps[0].Order > steps[1].Order {
		t.Fatalf("ListByTask: %v err=%v", steps, err)
	}

	doneAt := time.Now().UTC().Truncate(time.Second)
	upd, err := s.Steps().SetCompleted(ctx, st.StepID, true, &doneAt)
	if err != nil || !upd.Completed || upd.CompletedAt == nil {
		t.Fatalf("SetCompleted: %+v err=%v", upd, err)
	}
	upd, err = s.Steps().SetCompleted(ctx, st.StepID, false, nil)
	if err != nil || upd.Completed || upd.CompletedAt != nil {
		t.Fatalf("SetCompleted(false): %+v err=%v", upd, err)
	}

	// ActivityLogs
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		_, err := s.ActivityLogs().Append(ctx, &model.ActivityLog{
			TaskID:    tk.TaskID,
			Action:    model.ActionCompleted,
			Details:   "step done",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	logs, err := s.ActivityLogs().ListByTask(ctx, tk.TaskID, 10)
	if err != nil || len(logs) != 3 {
		t.Fatalf("ListByTask logs: n=%d err=%v", len(logs), err)
	}
	if !logs[0].Timestamp.After(logs[1].Timestamp) {
		t.Fatalf("logs not newest-first: %v then %v", logs[0].Timestamp, logs[1].Timestamp)
	}
	latest, err := s.ActivityLogs().LatestByTask(ctx, tk.TaskID)
	if err != nil || !latest.Timestamp.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("LatestByTask: %+v err=%v", latest, err)
	}
	if comps, err := s.ActivityLogs().ListCompletionsByUser(ctx, userID, 100); err != nil || len(comps) != 3 {
		t.Fatalf("ListCompletionsByUser: n=%d err=%v", len(comps), err)
	}

	// Interactions
	it, err := s.Interactions().Create(ctx, &model.AIInteraction{
		UserID:   userID,
		TaskID:   &tk.TaskID,
		Type:     model.InteractionMotivation,
		Prompt:   "Deadline reminder: learn go",
		Response: "keep going",
	})
	if err != nil || it.InteractionID == "" {
		t.Fatalf("CreateInteraction: %+v err=%v", it, err)
	}
	if hist, err := s.Interactions().ListByUser(ctx, userID, 20); err != nil || len(hist) != 1 {
		t.Fatalf("ListByUser interactions: n=%d err=%v", len(hist), err)
	}

	// Missing rows map to model.ErrNotFound.
	if _, err := s.Users().GetByID(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ActivityLogs().LatestByTask(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for latest log, got %v", err)
	}

	// Cascade delete removes everything owned by the user.
	if err := s.Users().Delete(ctx, userID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.Tasks().GetByID(ctx, tk.TaskID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("task survived cascade: %v", err)
	}
}
