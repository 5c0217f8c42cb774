package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pagemark/pagemark/backend-go/internal/typeid"
)

// Token lifetime. The webview requests a fresh token on startup, so a
// token only needs to outlive one application run.
const tokenTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid session token")

// TokenIssuer signs and validates the short-lived tokens that gate the
// websocket endpoint. The shell process holds the secret; anything else
// talking to the local port without a token is rejected.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue creates a token for a fresh session ID and returns both.
func (i *TokenIssuer) Issue() (sessionID, token string, err error) {
	sessionID = typeid.NewSessionID()

	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return sessionID, token, nil
}

// Validate parses a token and returns the session ID it was issued for.
func (i *TokenIssuer) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sessionID, ok := claims["sub"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}
