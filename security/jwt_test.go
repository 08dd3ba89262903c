package security

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager(t *testing.T) {
	manager := CreateJWTManager("test-secret", "openfinance", "tpp-api")

	t.Run("Round trip preserves the claims", func(t *testing.T) {
		token, err := manager.GenerateToken("tpp-1", "premium", []string{"payments"}, time.Hour)
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}

		claims, err := manager.ValidateToken(token)
		if err != nil {
			t.Fatalf("validation failed: %v", err)
		}
		if claims.ParticipantID != "tpp-1" {
			t.Errorf("expected participant tpp-1, got %s", claims.ParticipantID)
		}
		if claims.Tier != "premium" {
			t.Errorf("expected tier premium, got %s", claims.Tier)
		}
	})

	t.Run("Expired token", func(t *testing.T) {
		token, err := manager.GenerateToken("tpp-1", "standard", nil, -time.Minute)
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}

		if _, err := manager.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("expected expired error, got %v", err)
		}
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := CreateJWTManager("other-secret", "openfinance", "tpp-api")
		token, err := other.GenerateToken("tpp-1", "standard", nil, time.Hour)
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}

		if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected invalid token, got %v", err)
		}
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		other := CreateJWTManager("test-secret", "someone-else", "tpp-api")
		token, err := other.GenerateToken("tpp-1", "standard", nil, time.Hour)
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}

		if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected invalid token, got %v", err)
		}
	})

	t.Run("Garbage token", func(t *testing.T) {
		if _, err := manager.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected invalid token, got %v", err)
		}
	})
}
