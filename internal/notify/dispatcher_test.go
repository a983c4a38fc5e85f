package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/push"
)

type fakeLookup struct {
	user *model.User
	err  error
}

func (f *fakeLookup) GetByID(ctx context.Context, userID string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeSender struct {
	calls  int
	token  string
	result push.Result
}

func (f *fakeSender) Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) push.Result {
	f.calls++
	f.token = deviceToken
	return f.result
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestNotifySkipsWithoutDeviceToken(t *testing.T) {
	sender := &fakeSender{result: push.Result{Success: true}}
	d := NewDispatcher(&fakeLookup{user: &model.User{UserID: "u1"}}, sender, zerolog.Nop())

	res := d.Notify(context.Background(), "u1", "title", "body", nil)
	if res.Success {
		t.Fatalf("expected skipped result, got success")
	}
	if res.Error != "no device token" {
		t.Fatalf("unexpected reason: %q", res.Error)
	}
	if sender.calls != 0 {
		t.Fatalf("sender should not be called")
	}
}

func TestNotifySkipsWhenDisabled(t *testing.T) {
	user := &model.User{
		UserID: "u1",
		Settings: model.NotificationSettings{
			DeviceToken:     strPtr("tok"),
			AINotifications: boolPtr(false),
		},
	}
	sender := &fakeSender{result: push.Result{Success: true}}
	d := NewDispatcher(&fakeLookup{user: user}, sender, zerolog.Nop())

	res := d.Notify(context.Background(), "u1", "title", "body", nil)
	if res.Success || sender.calls != 0 {
		t.Fatalf("expected skip with valid token but disabled prefs, got %+v calls=%d", res, sender.calls)
	}
}

func TestNotifyForwardsTransportOutcome(t *testing.T) {
	user := &model.User{
		UserID:   "u1",
		Settings: model.NotificationSettings{DeviceToken: strPtr("tok-9")},
	}
	sender := &fakeSender{result: push.Result{Success: true}}
	d := NewDispatcher(&fakeLookup{user: user}, sender, zerolog.Nop())

	res := d.Notify(context.Background(), "u1", "title", "body", map[string]string{"type": "daily_checkin"})
	if !res.Success {
		t.Fatalf("expected success: %+v", res)
	}
	if sender.token != "tok-9" {
		t.Fatalf("wrong token forwarded: %q", sender.token)
	}
}

func TestNotifyLookupFailureIsSoft(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(&fakeLookup{err: model.ErrNotFound}, sender, zerolog.Nop())

	res := d.Notify(context.Background(), "missing", "title", "body", nil)
	if res.Success || sender.calls != 0 {
		t.Fatalf("expected soft failure, got %+v", res)
	}
}
