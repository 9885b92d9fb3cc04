package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func hashPIN(t *testing.T, pin string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	return string(h)
}

func TestLoginWithCorrectPINIssuesValidToken(t *testing.T) {
	svc := NewService(hashPIN(t, "1234"), "test-secret")

	token, user, err := svc.Login("1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Role != "ADMIN" {
		t.Errorf("Role = %s, want ADMIN", user.Role)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "admin" {
		t.Errorf("claims.UserID = %s, want admin", claims.UserID)
	}
}

func TestLoginWithWrongPINFails(t *testing.T) {
	svc := NewService(hashPIN(t, "1234"), "test-secret")

	if _, _, err := svc.Login("0000"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svcA := NewService(hashPIN(t, "1234"), "secret-a")
	svcB := NewService(hashPIN(t, "1234"), "secret-b")

	token, _, err := svcA.Login("1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svcB.ValidateToken(token); err == nil {
		t.Errorf("expected validation to fail against a different secret")
	}
}
