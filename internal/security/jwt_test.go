package security_test

import (
	"testing"
	"time"

	"github.com/Rrens/agent-platform/internal/security"
)

const testSecret = "test-secret-key-with-32-chars!!"

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := security.NewJWTManager(testSecret, "agent-platform", 15*time.Minute)

	token, err := manager.GenerateAccessToken("alice", "Alice")
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}

	if token == "" {
		t.Error("access token is empty")
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("failed to validate access token: %v", err)
	}

	if claims.UserID() != "alice" {
		t.Errorf("user ID mismatch: got %v, want %v", claims.UserID(), "alice")
	}

	if claims.Name != "Alice" {
		t.Errorf("name mismatch: got %v, want %v", claims.Name, "Alice")
	}

	if manager.AccessTokenTTL() != 15*time.Minute {
		t.Errorf("ttl mismatch: got %v", manager.AccessTokenTTL())
	}
}

func TestJWTManager_RequiresUserID(t *testing.T) {
	manager := security.NewJWTManager(testSecret, "agent-platform", time.Minute)

	if _, err := manager.GenerateAccessToken("", ""); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := security.NewJWTManager(testSecret, "agent-platform", 15*time.Minute)

	_, err := manager.ValidateAccessToken("invalid-token")
	if err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	manager1 := security.NewJWTManager(testSecret, "agent-platform", 15*time.Minute)
	manager2 := security.NewJWTManager("different-secret-key-32-chars!!", "agent-platform", 15*time.Minute)

	token, _ := manager1.GenerateAccessToken("alice", "")

	_, err := manager2.ValidateAccessToken(token)
	if err == nil {
		t.Error("expected error when validating with wrong secret")
	}
}

func TestJWTManager_WrongIssuer(t *testing.T) {
	issuer := security.NewJWTManager(testSecret, "someone-else", 15*time.Minute)
	manager := security.NewJWTManager(testSecret, "agent-platform", 15*time.Minute)

	token, _ := issuer.GenerateAccessToken("alice", "")

	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for foreign issuer")
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := security.NewJWTManager(testSecret, "agent-platform", -time.Minute)

	token, err := manager.GenerateAccessToken("alice", "")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := manager.ValidateAccessToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}
