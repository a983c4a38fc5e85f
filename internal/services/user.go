package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/strideapp/stride/internal/auth"
	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// ErrInvalidCredentials is returned on login with an unknown email or wrong
// password. Deliberately indistinguishable between the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService handles accounts, credentials, and notification preferences.
type UserService struct {
	store  store.Store
	tokens *auth.TokenManager
	log    zerolog.Logger
}

func NewUserService(s store.Store, tokens *auth.TokenManager, log zerolog.Logger) *UserService {
	return &UserService{store: s, tokens: tokens, log: log}
}

// Register creates an account and returns the user with a signed access
// token.
func (s *UserService) Register(ctx context.Context, email, password, displayName, timeZone string) (*model.User, string, error) {
	if err := auth.ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if displayName == "" {
		return nil, "", fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	if timeZone != "" {
		if _, err := time.LoadLocation(timeZone); err != nil {
			return nil, "", fmt.Errorf("%w: unknown time zone %q", model.ErrValidation, timeZone)
		}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.store.Users().Create(ctx, &model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		TimeZone:     timeZone,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.UserID, user.Email)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Str("user_id", user.UserID).Msg("user registered")
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.UserID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}

// UpdateProfileParams patch a profile; nil fields are left unchanged.
type UpdateProfileParams struct {
	DisplayName *string
	Email       *string
	TimeZone    *string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, p UpdateProfileParams) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.DisplayName != nil {
		if *p.DisplayName == "" {
			return nil, fmt.Errorf("%w: name is required", model.ErrValidation)
		}
		user.DisplayName = *p.DisplayName
	}
	if p.Email != nil && *p.Email != user.Email {
		if err := auth.ValidateEmail(*p.Email); err != nil {
			return nil, err
		}
		if existing, err := s.store.Users().GetByEmail(ctx, *p.Email); err == nil && existing.UserID != userID {
			return nil, model.ErrConflict
		} else if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		user.Email = *p.Email
	}
	if p.TimeZone != nil {
		if *p.TimeZone != "" {
			if _, err := time.LoadLocation(*p.TimeZone); err != nil {
				return nil, fmt.Errorf("%w: unknown time zone %q", model.ErrValidation, *p.TimeZone)
			}
		}
		user.TimeZone = *p.TimeZone
	}
	return s.store.Users().Update(ctx, user)
}

// ChangePassword verifies the current password before storing the new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	_, err = s.store.Users().Update(ctx, user)
	return err
}

// GetSettings returns the user's notification settings.
func (s *UserService) GetSettings(ctx context.Context, userID string) (model.NotificationSettings, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return model.NotificationSettings{}, err
	}
	return user.Settings, nil
}

// UpdateSettings overlays the patch on the stored settings field by field:
// updating one preference never clears the others.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, patch model.NotificationSettings) (model.NotificationSettings, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return model.NotificationSettings{}, err
	}
	merged := user.Settings.Merge(patch)
	if err := s.store.Users().UpdateSettings(ctx, userID, merged); err != nil {
		return model.NotificationSettings{}, err
	}
	return merged, nil
}

// DeleteAccount removes the user and cascades to all owned entities.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	return s.store.Users().Delete(ctx, userID)
}
