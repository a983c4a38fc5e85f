package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/auth"
	"github.com/strideapp/stride/internal/coach"
	"github.com/strideapp/stride/internal/insight"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/push"
	"github.com/strideapp/stride/internal/services"
	"github.com/strideapp/stride/internal/store/storetest"
)

type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "coaching text", nil
}

type fakeSender struct{}

func (fakeSender) Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) push.Result {
	return push.Result{Success: true}
}

func newTestRouter(t *testing.T) (http.Handler, *storetest.Mem) {
	t.Helper()
	mem := storetest.NewMem()
	log := zerolog.Nop()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	ins := insight.New(mem, log)
	disp := notify.NewDispatcher(mem.Users(), fakeSender{}, log)
	c := coach.New(mem, ins, fakeGenerator{}, disp, nil, log)

	router := NewRouter(Deps{
		Users:    services.NewUserService(mem, tokens, log),
		Tasks:    services.NewTaskService(mem, c, log),
		Coach:    c,
		Insights: ins,
		Store:    mem,
		Tokens:   tokens,
		Log:      log,
	})
	return router, mem
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "maya@example.com",
		"password": "hunter22",
		"name":     "Maya",
		"timeZone": "UTC",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("no token in register response")
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/tasks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no-token status = %d, want 401", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/tasks", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad-token status = %d, want 401", rec.Code)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "maya@example.com",
		"password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "maya@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "maya@example.com",
		"password": "hunter22",
		"name":     "Maya Again",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", token, map[string]string{
		"title":       "write novel",
		"description": "50k words",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var task model.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatal(err)
	}
	if task.Status != model.TaskStatusBacklog {
		t.Errorf("status = %s, want BACKLOG", task.Status)
	}

	deadline := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)
	rec = doJSON(t, router, http.MethodPost, "/api/tasks/"+task.TaskID+"/activate", token, map[string]interface{}{
		"deadline": deadline,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("activate status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/tasks/"+task.TaskID+"/steps", token, map[string]string{
		"title": "outline",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create step status = %d body = %s", rec.Code, rec.Body.String())
	}
	var step model.Step
	if err := json.Unmarshal(rec.Body.Bytes(), &step); err != nil {
		t.Fatal(err)
	}

	// Completing the only step completes the task.
	rec = doJSON(t, router, http.MethodPatch, "/api/steps/"+step.StepID+"/complete", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/api/tasks/"+task.TaskID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}
	var done model.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != model.TaskStatusCompleted || done.CompletedAt == nil {
		t.Errorf("task = %+v, want COMPLETED with completedAt", done)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/"+task.TaskID+"/logs", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}
	var logs []model.ActivityLog
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) == 0 {
		t.Error("no activity logs recorded")
	}
}

func TestUnknownTaskIs404(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/tasks/no-such-task", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSettingsMergeOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/settings/notifications", token, map[string]interface{}{
		"dailyCheckIn": true,
		"deviceToken":  "tok-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPut, "/api/settings/notifications", token, map[string]interface{}{
		"inactivityAlerts": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}
	var settings model.NotificationSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatal(err)
	}
	if settings.DailyCheckIn == nil || !*settings.DailyCheckIn {
		t.Error("merge cleared dailyCheckIn")
	}
	if settings.DeviceToken == nil || *settings.DeviceToken != "tok-1" {
		t.Error("merge cleared deviceToken")
	}
}

func TestCheckInEndpointRecordsInteraction(t *testing.T) {
	router, mem := newTestRouter(t)
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/ai/check-in", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in status = %d body = %s", rec.Code, rec.Body.String())
	}
	var it model.AIInteraction
	if err := json.Unmarshal(rec.Body.Bytes(), &it); err != nil {
		t.Fatal(err)
	}
	if it.Type != model.InteractionCheckIn || it.Response == "" {
		t.Errorf("interaction = %+v", it)
	}
	if mem.InteractionCount() != 1 {
		t.Errorf("persisted interactions = %d, want 1", mem.InteractionCount())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/ai/history", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Body.String())
	}
	var items []model.AIInteraction
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("history items = %d, want 1", len(items))
	}
}

func TestSnapshotAndStreakEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/ai/snapshot", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/api/ai/streak", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("streak status = %d body = %s", rec.Code, rec.Body.String())
	}
	var streak map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &streak); err != nil {
		t.Fatal(err)
	}
	if streak["currentStreak"] != 0 {
		t.Errorf("streak = %d, want 0 for a fresh account", streak["currentStreak"])
	}
}
