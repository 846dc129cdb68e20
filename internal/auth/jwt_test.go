package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/phovang-pos/api/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()

	token, err := auth.GenerateToken(secret, userID, "Nhan vien", "STAFF")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.FullName != "Nhan vien" {
		t.Errorf("full name: got %q", claims.FullName)
	}
	if claims.Role != "STAFF" {
		t.Errorf("role: got %q, want STAFF", claims.Role)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), "Nhan vien", "STAFF")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := auth.ValidateToken("secret-b", token); err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	if _, err := auth.ValidateToken("secret", "not-a-jwt"); err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestRefreshTokenCarriesSubject(t *testing.T) {
	userID := uuid.New()
	token, err := auth.GenerateRefreshToken("secret", userID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	// Refresh tokens carry only the subject, no role claim.
	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject: got %q, want %q", claims.Subject, userID)
	}
	if claims.Role != "" {
		t.Errorf("refresh token should not carry a role, got %q", claims.Role)
	}
}
