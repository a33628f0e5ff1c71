package security

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenMissing   = errors.New("authorization token required")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrTokenMalformed = errors.New("invalid token")
)

// Identity is what a verified token says about its bearer.
// Own tokens fill UserID, Role and TokenID; federated tokens fill
// ExternalID, Email, EmailVerified and Name.
type Identity struct {
	UserID        string
	Role          string
	TokenID       string
	ExpiresAt     time.Time
	ExternalID    string
	Email         string
	EmailVerified bool
	Name          string
}

type Verifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

// boolClaim accepts JSON booleans and the "true" strings some providers send.
func boolClaim(claims map[string]interface{}, name string) bool {
	switch v := claims[name].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func stringClaim(claims map[string]interface{}, name string) string {
	v, _ := claims[name].(string)
	return v
}
