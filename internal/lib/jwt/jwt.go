package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/golang-jwt/jwt/v4"
)

// Claims scope a session to one user's ledger. The subject carries the user id.
type Claims struct {
	UserID int64  `json:"uid"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if c.UserID <= 0 {
		return errors.New("token carries no user id")
	}
	return nil
}

// NewToken issues a session token for user that expires after ttl.
func NewToken(user *models.User, jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func ParseToken(tokenString string, secret string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return &claims, nil
}
