package jwt

import (
	"testing"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/golang-jwt/jwt/v4"
)

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: 3, Name: "Asha"}

	token, err := NewToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 3 || claims.Name != "Asha" || claims.Subject != "3" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Errorf("expected expiry in the future, got %v", claims.ExpiresAt)
	}
}

func TestParseTokenRejects(t *testing.T) {
	user := &models.User{ID: 3, Name: "Asha"}

	token, err := NewToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if _, err := ParseToken(token, "other"); err == nil {
		t.Error("expected an error for a wrong secret")
	}

	expired, err := NewToken(user, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if _, err := ParseToken(expired, "secret"); err == nil {
		t.Error("expected an error for an expired token")
	}

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name": "Asha",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := ParseToken(noUser, "secret"); err == nil {
		t.Error("expected an error for a token without uid")
	}
}
