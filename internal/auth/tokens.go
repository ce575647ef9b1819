// Package auth issues and validates player session tokens. A token pins a
// stable player identity across reconnects, so the same human landing on a
// fresh WebSocket keeps their name and score. It identifies, it does not
// authorize.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type PlayerClaims struct {
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// IssuePlayerToken signs a session-scoped token for a player.
func (s *TokenService) IssuePlayerToken(sessionID, playerID string) (string, error) {
	claims := &PlayerClaims{
		PlayerID:  playerID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidatePlayerToken parses a token and returns its claims. Any parse or
// signature failure comes back as ErrInvalidToken; callers treat that as
// "join as a new player", not as a fault.
func (s *TokenService) ValidatePlayerToken(tokenString string) (*PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
