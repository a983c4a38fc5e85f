package model

// NotificationSettings is the fixed-shape preference record embedded in User.
// Every field is optional: a nil pointer means "not set", which lets Merge
// implement read-modify-write semantics where updating one preference leaves
// the others untouched.
//
// Enablement defaults differ by field. The scheduled digests (dailyCheckIn,
// weeklyReview) are opt-in and only fire when explicitly set to true. The
// alert and celebration flags, and the aiNotifications master switch, are
// opt-out: they count as enabled unless explicitly set to false.
type NotificationSettings struct {
	DailyCheckIn           *bool   `json:"dailyCheckIn,omitempty"`
	WeeklyReview           *bool   `json:"weeklyReview,omitempty"`
	ProgressAlerts         *bool   `json:"progressAlerts,omitempty"`
	InactivityAlerts       *bool   `json:"inactivityAlerts,omitempty"`
	CompletionCelebrations *bool   `json:"completionCelebrations,omitempty"`
	AINotifications        *bool   `json:"aiNotifications,omitempty"`
	DeviceToken            *string `json:"deviceToken,omitempty"`
}

// Merge overlays patch onto s field by field and returns the result. Fields
// left nil in patch keep their current value.
func (s NotificationSettings) Merge(patch NotificationSettings) NotificationSettings {
	out := s
	if patch.DailyCheckIn != nil {
		out.DailyCheckIn = patch.DailyCheckIn
	}
	if patch.WeeklyReview != nil {
		out.WeeklyReview = patch.WeeklyReview
	}
	if patch.ProgressAlerts != nil {
		out.ProgressAlerts = patch.ProgressAlerts
	}
	if patch.InactivityAlerts != nil {
		out.InactivityAlerts = patch.InactivityAlerts
	}
	if patch.CompletionCelebrations != nil {
		out.CompletionCelebrations = patch.CompletionCelebrations
	}
	if patch.AINotifications != nil {
		out.AINotifications = patch.AINotifications
	}
	if patch.DeviceToken != nil {
		out.DeviceToken = patch.DeviceToken
	}
	return out
}

// DailyCheckInEnabled reports whether the user opted in to the daily digest.
func (s NotificationSettings) DailyCheckInEnabled() bool {
	return s.DailyCheckIn != nil && *s.DailyCheckIn
}

// WeeklyReviewEnabled reports whether the user opted in to the weekly review.
func (s NotificationSettings) WeeklyReviewEnabled() bool {
	return s.WeeklyReview != nil && *s.WeeklyReview
}

// ProgressAlertsEnabled reports whether deadline/progress alerts may fire.
func (s NotificationSettings) ProgressAlertsEnabled() bool {
	return s.ProgressAlerts == nil || *s.ProgressAlerts
}

// InactivityAlertsEnabled reports whether inactivity alerts may fire.
func (s NotificationSettings) InactivityAlertsEnabled() bool {
	return s.InactivityAlerts == nil || *s.InactivityAlerts
}

// CompletionCelebrationsEnabled reports whether the completion celebration may fire.
func (s NotificationSettings) CompletionCelebrationsEnabled() bool {
	return s.CompletionCelebrations == nil || *s.CompletionCelebrations
}

// PushEnabled reports whether push delivery is allowed at all.
func (s NotificationSettings) PushEnabled() bool {
	return s.AINotifications == nil || *s.AINotifications
}

// Token returns the registered device token, if any.
func (s NotificationSettings) Token() (string, bool) {
	if s.DeviceToken == nil || *s.DeviceToken == "" {
		return "", false
	}
	return *s.DeviceToken, true
}
