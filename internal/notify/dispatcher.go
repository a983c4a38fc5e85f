// Package notify delivers push notifications respecting per-user preferences.
// The Dispatcher depends on a narrow read-only user lookup rather than the
// full store, keeping the dependency direction clean.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/push"
)

// UserLookup is the read-only capability the dispatcher needs from storage.
// store.Users satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, userID string) (*model.User, error)
}

// Dispatcher resolves a user's device token and preferences and forwards the
// notification to the push transport. Missing token or disabled notifications
// degrade to a skipped result; Notify never returns an error.
type Dispatcher struct {
	users  UserLookup
	sender push.Sender
	log    zerolog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(users UserLookup, sender push.Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{users: users, sender: sender, log: log}
}

// Notify sends one push notification to the user. The payload is attached to
// the platform message so the client can correlate it with the generating
// interaction.
func (d *Dispatcher) Notify(ctx context.Context, userID, title, body string, payload map[string]string) push.Result {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("user lookup failed, notification skipped")
		return push.Result{Success: false, Error: "user lookup failed"}
	}

	token, ok := user.Settings.Token()
	if !ok {
		d.log.Info().Str("user_id", userID).Str("title", title).Msg("no device token registered, notification skipped")
		return push.Result{Success: false, Error: "no device token"}
	}
	if !user.Settings.PushEnabled() {
		d.log.Info().Str("user_id", userID).Str("title", title).Msg("notifications disabled by user, skipped")
		return push.Result{Success: false, Error: "notifications disabled"}
	}

	res := d.sender.Send(ctx, token, title, body, payload)
	if !res.Success {
		d.log.Warn().Str("user_id", userID).Str("title", title).Str("reason", res.Error).Msg("push not delivered")
	}
	return res
}
