package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/strideapp/stride/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Issue("u-123", "maya@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "u-123" || claims.Email != "maya@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Issue("u-123", "maya@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tm.Validate(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Issue("u-123", "maya@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewTokenManager("secret-b", time.Hour).Validate(token); err == nil {
		t.Fatal("token signed with another secret validated")
	}
}

func TestExtractBearer(t *testing.T) {
	if _, err := ExtractBearer("Basic abc"); err == nil {
		t.Error("non-bearer header accepted")
	}
	got, err := ExtractBearer("Bearer token-value")
	if err != nil {
		t.Fatalf("ExtractBearer: %v", err)
	}
	if got != "token-value" {
		t.Errorf("token = %q", got)
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("abc"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := CheckPassword(hash, "hunter22"); err != nil {
		t.Errorf("CheckPassword: %v", err)
	}
	if err := CheckPassword(hash, "wrong-pass"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("maya@example.com"); err != nil {
		t.Errorf("valid email rejected: %v", err)
	}
	for _, bad := range []string{"", "not-an-email", "a@b", "@example.com"} {
		if err := ValidateEmail(bad); err == nil {
			t.Errorf("ValidateEmail(%q) accepted", bad)
		}
	}
}
