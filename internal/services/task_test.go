package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/push"
	"github.com/strideapp/stride/internal/store/storetest"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "celebration text", nil
}

type fakeSender struct {
	calls  int
	titles []string
}

func (f *fakeSender) Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) push.Result {
	f.calls++
	f.titles = append(f.titles, title)
	return push.Result{Success: true}
}

func strPtr(s string) *string { return &s }

type taskHarness struct {
	mem     *storetest.Mem
	sender  *fakeSender
	service *TaskService
	user    *model.User
}

func newTaskHarness(t *testing.T) *taskHarness {
	t.Helper()
	mem := storetest.NewMem()
	user := mem.AddUser(&model.User{
		UserID:      "u1",
		Email:       "maya@example.com",
		DisplayName: "Maya",
		TimeZone:    "UTC",
		Settings:    model.NotificationSettings{DeviceToken: strPtr("tok")},
	})
	sender := &fakeSender{}
	ins := insight.New(mem, zerolog.Nop()).WithNow(func() time.Time { return fixedNow })
	disp := notify.NewDispatcher(mem.Users(), sender, zerolog.Nop())
	c := coach.New(mem, ins, fakeGenerator{}, disp, nil, zerolog.Nop()).WithNow(func() time.Time { return fixedNow })
	svc := NewTaskService(mem, c, zerolog.Nop()).WithNow(func() time.Time { return fixedNow })
	return &taskHarness{mem: mem, sender: sender, service: svc, user: user}
}

func TestCreateTaskDefaults(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()

	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "read a book"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != model.TaskStatusBacklog {
		t.Errorf("status = %s, want BACKLOG", task.Status)
	}
	if task.Priority != model.TaskPriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", task.Priority)
	}

	logs, err := h.mem.ActivityLogs().ListByTask(ctx, task.TaskID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Action != model.ActionCreated {
		t.Errorf("logs = %+v, want one CREATED entry", logs)
	}

	if _, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("empty title err = %v, want validation error", err)
	}
}

func TestOwnershipReadsAsNotFound(t *testing.T) {
	h := newTaskHarness(t)
	h.mem.AddUser(&model.User{UserID: "u2", Email: "other@example.com"})
	ctx := context.Background()

	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "private"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.service.GetTask(ctx, "u2", task.TaskID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("cross-user get err = %v, want not found", err)
	}
	if err := h.service.DeleteTask(ctx, "u2", task.TaskID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("cross-user delete err = %v, want not found", err)
	}
}

func TestActivateTaskRequiresBacklog(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	deadline := fixedNow.Add(5 * 24 * time.Hour)

	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "train"})
	if err != nil {
		t.Fatal(err)
	}
	active, err := h.service.ActivateTask(ctx, "u1", task.TaskID, deadline)
	if err != nil {
		t.Fatalf("ActivateTask: %v", err)
	}
	if active.Status != model.TaskStatusActive || active.Deadline == nil || !active.Deadline.Equal(deadline) {
		t.Errorf("task = %+v, want ACTIVE with deadline", active)
	}
	if _, err := h.service.ActivateTask(ctx, "u1", task.TaskID, deadline); !errors.Is(err, model.ErrValidation) {
		t.Errorf("double activation err = %v, want validation error", err)
	}
}

func TestStepAutoOrder(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "project"})
	if err != nil {
		t.Fatal(err)
	}

	first, err := h.service.CreateStep(ctx, "u1", task.TaskID, CreateStepParams{Title: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Order != 0 {
		t.Errorf("first order = %d, want 0", first.Order)
	}
	second, err := h.service.CreateStep(ctx, "u1", task.TaskID, CreateStepParams{Title: "second"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Order != 1 {
		t.Errorf("second order = %d, want 1", second.Order)
	}

	explicit := 10
	third, err := h.service.CreateStep(ctx, "u1", task.TaskID, CreateStepParams{Title: "third", Order: &explicit})
	if err != nil {
		t.Fatal(err)
	}
	if third.Order != 10 {
		t.Errorf("explicit order = %d, want 10", third.Order)
	}
}

func TestToggleStepCompletesTaskOnce(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "two step plan"})
	if err != nil {
		t.Fatal(err)
	}
	s1, err := h.service.CreateStep(ctx, "u1", task.TaskID, CreateStepParams{Title: "one"})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := h.service.CreateStep(ctx, "u1", task.TaskID, CreateStepParams{Title: "two"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.service.ToggleStep(ctx, "u1", s1.StepID); err != nil {
		t.Fatal(err)
	}
	got, _ := h.mem.TaskByID(task.TaskID)
	if got.Status == model.TaskStatusCompleted {
		t.Fatal("task completed with one of two steps done")
	}

	if _, err := h.service.ToggleStep(ctx, "u1", s2.StepID); err != nil {
		t.Fatal(err)
	}
	got, _ = h.mem.TaskByID(task.TaskID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatal("task not completed with all steps done")
	}
	if got.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}
	completedAt := *got.CompletedAt

	// Celebration fired once, synchronously.
	if h.mem.InteractionCount() != 1 {
		t.Errorf("interactions = %d, want 1 celebration", h.mem.InteractionCount())
	}
	if h.sender.calls != 1 || h.sender.titles[0] != "🎉 Congratulations!" {
		t.Errorf("push calls = %d titles = %v", h.sender.calls, h.sender.titles)
	}

	// Re-opening a step does not revert completion, and re-completing it
	// does not fire a second celebration or move completedAt.
	if _, err := h.service.ToggleStep(ctx, "u1", s2.StepID); err != nil {
		t.Fatal(err)
	}
	got, _ = h.mem.TaskByID(task.TaskID)
	if got.Status != model.TaskStatusCompleted {
		t.Error("re-opening a step reverted task completion")
	}
	if _, err := h.service.ToggleStep(ctx, "u1", s2.StepID); err != nil {
		t.Fatal(err)
	}
	got, _ = h.mem.TaskByID(task.TaskID)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completedAt) {
		t.Errorf("completedAt moved: %v, want %v", got.CompletedAt, completedAt)
	}
	if h.mem.InteractionCount() != 1 {
		t.Errorf("interactions = %d, want still 1", h.mem.InteractionCount())
	}
}

func TestToggleStepNoStepsNoCompletion(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "empty"})
	if err != nil {
		t.Fatal(err)
	}
	// A task with zero steps can only complete through steps; nothing to
	// toggle means nothing to complete.
	got, _ := h.mem.TaskByID(task.TaskID)
	if got.Status == model.TaskStatusCompleted {
		t.Fatal("stepless task completed")
	}
}

func TestCompletedTaskIsReadOnly(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	task, err := h.service.CreateTask(ctx, "u1", CreateTaskParams{Title: "done deal"})
	if err != nil {
		t.Fatal(err)
	}
	step, err := h.service.CreateStep(ctx, "u1", task.TaskID, CreateStepParams{Title: "only"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.service.ToggleStep(ctx, "u1", step.StepID); err != nil {
		t.Fatal(err)
	}

	title := "renamed"
	if _, err := h.service.UpdateTask(ctx, "u1", task.TaskID, UpdateTaskParams{Title: &title}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("update err = %v, want validation error", err)
	}
	if err := h.service.DeleteTask(ctx, "u1", task.TaskID); !errors.Is(err, model.ErrValidation) {
		t.Errorf("delete err = %v, want validation error", err)
	}
}
