package coach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/genai"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/push"
	"github.com/strideapp/stride/internal/store/storetest"
)

var fixedNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	text   string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.system = systemPrompt
	f.user = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeSender struct {
	calls int
	title string
	body  string
	data  map[string]string
}

func (f *fakeSender) Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) push.Result {
	f.calls++
	f.title = title
	f.body = body
	f.data = payload
	return push.Result{Success: true}
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

type harness struct {
	mem     *storetest.Mem
	gen     *fakeGenerator
	sender  *fakeSender
	service *Service
	user    *model.User
}

func newHarness(t *testing.T, gen *fakeGenerator) *harness {
	t.Helper()
	mem := storetest.NewMem()
	user := mem.AddUser(&model.User{
		UserID:      "u1",
		Email:       "maya@example.com",
		DisplayName: "Maya",
		TimeZone:    "UTC",
		Settings:    model.NotificationSettings{DeviceToken: strPtr("tok-1")},
	})
	ins := insight.New(mem, zerolog.Nop()).WithNow(func() time.Time { return fixedNow })
	sender := &fakeSender{}
	disp := notify.NewDispatcher(mem.Users(), sender, zerolog.Nop())
	svc := New(mem, ins, gen, disp, nil, zerolog.Nop()).WithNow(func() time.Time { return fixedNow })
	return &harness{mem: mem, gen: gen, sender: sender, service: svc, user: user}
}

func TestComposeUsesGeneratedText(t *testing.T) {
	h := newHarness(t, &fakeGenerator{text: "You are doing great, Maya!"})
	snap := &insight.Snapshot{CurrentStreak: 4}

	got := h.service.Compose(context.Background(), "Maya", KindCheckIn, snap, nil)
	if got != "You are doing great, Maya!" {
		t.Fatalf("Compose = %q", got)
	}
	if !strings.Contains(h.gen.user, "Daily check-in for Maya") {
		t.Errorf("user prompt missing check-in frame: %q", h.gen.user)
	}
	if !strings.Contains(h.gen.user, "Current streak: 4 days") {
		t.Errorf("user prompt missing streak: %q", h.gen.user)
	}
}

func TestComposeFallsBackOnGenerationError(t *testing.T) {
	genErr := &genai.GenerationError{Op: "chat", Status: 429, Err: errors.New("rate limited")}
	h := newHarness(t, &fakeGenerator{err: genErr})

	got := h.service.Compose(context.Background(), "Maya", KindCheckIn, &insight.Snapshot{}, nil)
	if got == "" {
		t.Fatal("fallback must not be empty")
	}
	if !strings.Contains(got, "Maya") {
		t.Errorf("fallback must address the user by name: %q", got)
	}
}

func TestFallbackNeverEmptyForAnyKind(t *testing.T) {
	kinds := []MessageKind{
		KindCheckIn, KindMotivation, KindAnalysis, KindDeadline,
		KindInactivity, KindCompletion, KindWeeklyReview, MessageKind("UNKNOWN"),
	}
	for _, k := range kinds {
		msg := fallbackMessage(k, "Maya")
		if msg == "" {
			t.Errorf("fallbackMessage(%s) is empty", k)
		}
		if !strings.Contains(msg, "Maya") {
			t.Errorf("fallbackMessage(%s) = %q, want user name included", k, msg)
		}
	}
}

func TestSendCoachingMessageRecordsAndDispatches(t *testing.T) {
	h := newHarness(t, &fakeGenerator{text: "Keep pushing, Maya! Your streak is alive."})
	ctx := context.Background()

	it, res, err := h.service.SendCoachingMessage(ctx, h.user.UserID, KindCheckIn, nil)
	if err != nil {
		t.Fatalf("SendCoachingMessage: %v", err)
	}
	if !res.Success {
		t.Fatalf("push result = %+v, want success", res)
	}
	if it.Type != model.InteractionCheckIn {
		t.Errorf("interaction type = %s, want CHECK_IN", it.Type)
	}
	if it.Prompt != "Daily check-in" {
		t.Errorf("record label = %q", it.Prompt)
	}
	if h.mem.InteractionCount() != 1 {
		t.Fatalf("interactions recorded = %d, want 1", h.mem.InteractionCount())
	}
	if h.sender.title != "Daily Check-in 🌟" {
		t.Errorf("push title = %q", h.sender.title)
	}
	if h.sender.data["type"] != "daily_checkin" {
		t.Errorf("push payload type = %q", h.sender.data["type"])
	}
	if h.sender.data["interaction_id"] != it.InteractionID {
		t.Errorf("push payload interaction_id = %q, want %q", h.sender.data["interaction_id"], it.InteractionID)
	}
}

func TestSendCoachingMessageFallbackStillRecorded(t *testing.T) {
	h := newHarness(t, &fakeGenerator{err: errors.New("upstream down")})

	it, _, err := h.service.SendCoachingMessage(context.Background(), h.user.UserID, KindMotivation, nil)
	if err != nil {
		t.Fatalf("generation failure must not surface: %v", err)
	}
	if !strings.Contains(it.Response, "Maya") {
		t.Errorf("recorded fallback = %q, want name included", it.Response)
	}
}

func TestCheckInBodyTruncated(t *testing.T) {
	long := strings.Repeat("a", 150)
	h := newHarness(t, &fakeGenerator{text: long})

	_, _, err := h.service.SendCoachingMessage(context.Background(), h.user.UserID, KindCheckIn, nil)
	if err != nil {
		t.Fatalf("SendCoachingMessage: %v", err)
	}
	want := strings.Repeat("a", 100) + "..."
	if h.sender.body != want {
		t.Errorf("push body = %q (len %d), want 100 chars + ellipsis", h.sender.body, len(h.sender.body))
	}
}

func TestWeeklyReviewBodyUsesCompletionCount(t *testing.T) {
	h := newHarness(t, &fakeGenerator{text: "Solid week."})
	doneAt := fixedNow.Add(-24 * time.Hour)
	h.mem.AddTask(&model.Task{
		UserID:      h.user.UserID,
		Title:       "done",
		Status:      model.TaskStatusCompleted,
		CompletedAt: &doneAt,
	})

	it, _, err := h.service.SendCoachingMessage(context.Background(), h.user.UserID, KindWeeklyReview, nil)
	if err != nil {
		t.Fatalf("SendCoachingMessage: %v", err)
	}
	if it.Type != model.InteractionAnalysis {
		t.Errorf("interaction type = %s, want ANALYSIS", it.Type)
	}
	if h.sender.body != "This week: 1 tasks completed!" {
		t.Errorf("push body = %q", h.sender.body)
	}
}

func TestCoachTaskScopedAnalysis(t *testing.T) {
	h := newHarness(t, &fakeGenerator{text: "analysis text"})
	deadline := fixedNow.Add(5 * 24 * time.Hour)
	task := h.mem.AddTask(&model.Task{
		UserID:   h.user.UserID,
		Title:    "launch prep",
		Status:   model.TaskStatusActive,
		Priority: model.TaskPriorityHigh,
		Deadline: &deadline,
	})
	h.mem.AddStep(&model.Step{TaskID: task.TaskID, Title: "a", Order: 0, Completed: true})
	h.mem.AddStep(&model.Step{TaskID: task.TaskID, Title: "b", Order: 1})

	it, err := h.service.Coach(context.Background(), h.user.UserID, KindAnalysis, &task.TaskID)
	if err != nil {
		t.Fatalf("Coach: %v", err)
	}
	if it.TaskID == nil || *it.TaskID != task.TaskID {
		t.Errorf("interaction task id = %v, want %s", it.TaskID, task.TaskID)
	}
	if !strings.Contains(h.gen.user, `"launch prep"`) {
		t.Errorf("prompt not task-scoped: %q", h.gen.user)
	}
	if !strings.Contains(h.gen.user, "1/2 steps completed") {
		t.Errorf("prompt missing step progress: %q", h.gen.user)
	}
	if !strings.Contains(h.gen.user, "Days remaining: 5") {
		t.Errorf("prompt missing deadline countdown: %q", h.gen.user)
	}
	if h.sender.calls != 0 {
		t.Errorf("Coach must not push, sender called %d times", h.sender.calls)
	}
}

func TestCelebrateCompletionHonorsPreference(t *testing.T) {
	h := newHarness(t, &fakeGenerator{text: "You did it!"})
	task := h.mem.AddTask(&model.Task{UserID: h.user.UserID, Title: "ship v1", Status: model.TaskStatusCompleted})

	if err := h.service.CelebrateCompletion(context.Background(), task); err != nil {
		t.Fatalf("CelebrateCompletion: %v", err)
	}
	if h.mem.InteractionCount() != 1 {
		t.Fatalf("interactions = %d, want 1", h.mem.InteractionCount())
	}
	it := h.mem.InteractionAt(0)
	if it.Type != model.InteractionMotivation {
		t.Errorf("interaction type = %s, want MOTIVATION", it.Type)
	}
	if h.sender.title != "🎉 Congratulations!" {
		t.Errorf("push title = %q", h.sender.title)
	}
	if h.sender.body != `"ship v1" completed!` {
		t.Errorf("push body = %q", h.sender.body)
	}

	// Disable celebrations: no message, no push.
	off := h.user.Settings
	off.CompletionCelebrations = boolPtr(false)
	if err := h.mem.Users().UpdateSettings(context.Background(), h.user.UserID, off); err != nil {
		t.Fatal(err)
	}
	if err := h.service.CelebrateCompletion(context.Background(), task); err != nil {
		t.Fatalf("CelebrateCompletion (disabled): %v", err)
	}
	if h.mem.InteractionCount() != 1 {
		t.Errorf("interactions = %d, want still 1 when celebrations disabled", h.mem.InteractionCount())
	}
}
