package insight

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store/storetest"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newService(mem *storetest.Mem) *Service {
	return New(mem, zerolog.Nop()).WithNow(func() time.Time { return fixedNow })
}

func seedUser(mem *storetest.Mem) *model.User {
	return mem.AddUser(&model.User{UserID: "u1", Email: "a@b.c", TimeZone: "UTC"})
}

// addCompletion records a COMPLETED activity entry for the task at ts.
func addCompletion(mem *storetest.Mem, taskID string, ts time.Time) {
	mem.AddLog(&model.ActivityLog{
		TaskID:    taskID,
		Action:    model.ActionCompleted,
		Timestamp: ts,
	})
}

func TestStreakConsecutiveDays(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)
	task := mem.AddTask(&model.Task{UserID: u.UserID, Title: "t", Status: model.TaskStatusActive})

	// Three consecutive days ending today, with a duplicate entry on day -1.
	addCompletion(mem, task.TaskID, fixedNow.Add(-1*time.Hour))
	addCompletion(mem, task.TaskID, fixedNow.Add(-24*time.Hour))
	addCompletion(mem, task.TaskID, fixedNow.Add(-26*time.Hour))
	addCompletion(mem, task.TaskID, fixedNow.Add(-48*time.Hour))

	got, err := newService(mem).Streak(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if got != 3 {
		t.Fatalf("streak = %d, want 3", got)
	}
}

func TestStreakZeroWithoutActivityToday(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)
	task := mem.AddTask(&model.Task{UserID: u.UserID, Title: "t", Status: model.TaskStatusActive})

	addCompletion(mem, task.TaskID, fixedNow.Add(-24*time.Hour))
	addCompletion(mem, task.TaskID, fixedNow.Add(-48*time.Hour))

	got, err := newService(mem).Streak(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if got != 0 {
		t.Fatalf("streak = %d, want 0 when today has no activity", got)
	}
}

func TestStreakBreaksAtGap(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)
	task := mem.AddTask(&model.Task{UserID: u.UserID, Title: "t", Status: model.TaskStatusActive})

	// Today, yesterday, then a gap before day -3.
	addCompletion(mem, task.TaskID, fixedNow.Add(-1*time.Hour))
	addCompletion(mem, task.TaskID, fixedNow.Add(-24*time.Hour))
	addCompletion(mem, task.TaskID, fixedNow.Add(-72*time.Hour))

	got, err := newService(mem).Streak(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if got != 2 {
		t.Fatalf("streak = %d, want 2", got)
	}
}

func TestStreakNoLogs(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)

	got, err := newService(mem).Streak(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if got != 0 {
		t.Fatalf("streak = %d, want 0", got)
	}
}

func TestStreakCountsMidnightInUserTimeZone(t *testing.T) {
	mem := storetest.NewMem()
	u := mem.AddUser(&model.User{UserID: "u1", Email: "a@b.c", TimeZone: "America/New_York"})
	task := mem.AddTask(&model.Task{UserID: u.UserID, Title: "t", Status: model.TaskStatusActive})

	// 2025-06-15 02:00 UTC is still 2025-06-14 in New York (UTC-4), so with
	// "now" at 12:00 UTC (08:00 local on the 15th) this log is yesterday's
	// and alone does not sustain a streak.
	addCompletion(mem, task.TaskID, time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC))

	got, err := newService(mem).Streak(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if got != 0 {
		t.Fatalf("streak = %d, want 0 for activity before local midnight", got)
	}
}

func TestSnapshotAggregates(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)
	ctx := context.Background()

	deadline := fixedNow.Add(71 * time.Hour)
	updated := fixedNow.Add(-30 * time.Hour)
	active := mem.AddTask(&model.Task{
		UserID:     u.UserID,
		Title:      "write report",
		Status:     model.TaskStatusActive,
		Priority:   model.TaskPriorityHigh,
		Deadline:   &deadline,
		UpdateTime: updated,
	})
	mem.AddTask(&model.Task{UserID: u.UserID, Title: "someday", Status: model.TaskStatusBacklog})
	doneAt := fixedNow.Add(-2 * 24 * time.Hour)
	mem.AddTask(&model.Task{
		UserID:      u.UserID,
		Title:       "shipped",
		Status:      model.TaskStatusCompleted,
		CompletedAt: &doneAt,
	})

	mem.AddStep(&model.Step{TaskID: active.TaskID, Title: "a", Order: 0, Completed: true})
	mem.AddStep(&model.Step{TaskID: active.TaskID, Title: "b", Order: 1, Completed: true})
	mem.AddStep(&model.Step{TaskID: active.TaskID, Title: "c", Order: 2})

	lastTouch := fixedNow.Add(-3 * time.Hour)
	mem.AddLog(&model.ActivityLog{TaskID: active.TaskID, Action: model.ActionUpdated, Timestamp: lastTouch})
	addCompletion(mem, active.TaskID, fixedNow.Add(-5*time.Hour))

	snap, err := newService(mem).Snapshot(ctx, u.UserID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if len(snap.ActiveTasks) != 1 {
		t.Fatalf("active tasks = %d, want 1", len(snap.ActiveTasks))
	}
	sum := snap.ActiveTasks[0]
	if sum.TotalSteps != 3 || sum.CompletedSteps != 2 {
		t.Errorf("steps = %d/%d, want 2/3", sum.CompletedSteps, sum.TotalSteps)
	}
	if sum.DaysRemaining == nil || *sum.DaysRemaining != 3 {
		t.Errorf("days remaining = %v, want 3", sum.DaysRemaining)
	}
	if !sum.LastActivity.Equal(lastTouch) {
		t.Errorf("last activity = %v, want latest log %v", sum.LastActivity, lastTouch)
	}
	if snap.BacklogCount != 1 {
		t.Errorf("backlog = %d, want 1", snap.BacklogCount)
	}
	if snap.CompletedThisWeek != 1 {
		t.Errorf("completed this week = %d, want 1", snap.CompletedThisWeek)
	}
	if snap.WeeklyCompletionRate != 0.5 {
		t.Errorf("weekly rate = %v, want 0.5", snap.WeeklyCompletionRate)
	}
	if snap.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", snap.CurrentStreak)
	}
	if !snap.GeneratedAt.Equal(fixedNow) {
		t.Errorf("generated at = %v, want %v", snap.GeneratedAt, fixedNow)
	}
}

func TestSnapshotLastActivityFallsBackToUpdateTime(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)

	updated := fixedNow.Add(-9 * time.Hour)
	mem.AddTask(&model.Task{
		UserID:     u.UserID,
		Title:      "untouched",
		Status:     model.TaskStatusActive,
		UpdateTime: updated,
	})

	snap, err := newService(mem).Snapshot(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.ActiveTasks[0].LastActivity.Equal(updated) {
		t.Errorf("last activity = %v, want task update time %v", snap.ActiveTasks[0].LastActivity, updated)
	}
}

func TestSnapshotRateZeroWhenIdle(t *testing.T) {
	mem := storetest.NewMem()
	u := seedUser(mem)

	snap, err := newService(mem).Snapshot(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.WeeklyCompletionRate != 0 {
		t.Errorf("weekly rate = %v, want 0 with no tasks", snap.WeeklyCompletionRate)
	}
}

func TestDaysUntil(t *testing.T) {
	cases := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{"partial day rounds up", fixedNow.Add(71 * time.Hour), 3},
		{"exact days", fixedNow.Add(72 * time.Hour), 3},
		{"later today", fixedNow.Add(6 * time.Hour), 1},
		{"now", fixedNow, 0},
		{"overdue", fixedNow.Add(-30 * time.Hour), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysUntil(fixedNow, tc.deadline); got != tc.want {
				t.Errorf("DaysUntil = %d, want %d", got, tc.want)
			}
		})
	}
}
