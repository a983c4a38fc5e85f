package model

import "testing"

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestMergeLeavesUnsetFieldsUntouched(t *testing.T) {
	current := NotificationSettings{
		DailyCheckIn:    boolPtr(true),
		ProgressAlerts:  boolPtr(false),
		DeviceToken:     strPtr("tok-1"),
		AINotifications: boolPtr(true),
	}

	merged := current.Merge(NotificationSettings{WeeklyReview: boolPtr(true)})

	if merged.WeeklyReview == nil || !*merged.WeeklyReview {
		t.Fatalf("patched field not applied: %+v", merged)
	}
	if merged.DailyCheckIn == nil || !*merged.DailyCheckIn {
		t.Fatalf("unrelated dailyCheckIn was cleared: %+v", merged)
	}
	if merged.ProgressAlerts == nil || *merged.ProgressAlerts {
		t.Fatalf("unrelated progressAlerts was cleared: %+v", merged)
	}
	if tok, ok := merged.Token(); !ok || tok != "tok-1" {
		t.Fatalf("device token lost in merge: %q %v", tok, ok)
	}
}

func TestMergeOverwritesSetFields(t *testing.T) {
	current := NotificationSettings{InactivityAlerts: boolPtr(true), DeviceToken: strPtr("old")}
	merged := current.Merge(NotificationSettings{
		InactivityAlerts: boolPtr(false),
		DeviceToken:      strPtr("new"),
	})

	if merged.InactivityAlertsEnabled() {
		t.Fatalf("expected inactivity alerts disabled after merge")
	}
	if tok, _ := merged.Token(); tok != "new" {
		t.Fatalf("expected new token, got %q", tok)
	}
}

func TestEnablementDefaults(t *testing.T) {
	var s NotificationSettings

	// Scheduled digests are opt-in.
	if s.DailyCheckInEnabled() || s.WeeklyReviewEnabled() {
		t.Fatalf("digests should be disabled by default")
	}
	// Alerts and push are opt-out.
	if !s.ProgressAlertsEnabled() || !s.InactivityAlertsEnabled() ||
		!s.CompletionCelebrationsEnabled() || !s.PushEnabled() {
		t.Fatalf("alerts should be enabled by default")
	}
	if _, ok := s.Token(); ok {
		t.Fatalf("no token expected")
	}

	off := false
	s.ProgressAlerts = &off
	if s.ProgressAlertsEnabled() {
		t.Fatalf("explicit false should disable progress alerts")
	}
}

func TestTokenEmptyStringCountsAsMissing(t *testing.T) {
	s := NotificationSettings{DeviceToken: strPtr("")}
	if _, ok := s.Token(); ok {
		t.Fatalf("empty token should count as unregistered")
	}
}
