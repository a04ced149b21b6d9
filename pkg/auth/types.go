package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed or badly signed tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the exp claim has passed
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the JWT payload. The user ID travels in the subject claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// AuthContext holds authenticated caller information
type AuthContext struct {
	UserID    string
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// IsAuthenticated reports whether the context carries a caller identity
func (ac *AuthContext) IsAuthenticated() bool {
	return ac != nil && ac.UserID != ""
}
