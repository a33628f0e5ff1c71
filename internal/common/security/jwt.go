package security

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer signs and verifies the service's own HS256 tokens.
type TokenIssuer struct {
	auth    *jwtauth.JWTAuth
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewTokenIssuer(key []byte, ttl time.Duration, revoked RevocationStore) *TokenIssuer {
	return &TokenIssuer{
		auth:    jwtauth.New("HS256", key, nil),
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

func (t *TokenIssuer) GenerateToken(userID, role string) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"jti":     uuid.NewString(),
		"exp":     now.Add(t.ttl).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := t.auth.Encode(claims)
	return tokenString, err
}

// Verify checks signature, expiry and revocation.
func (t *TokenIssuer) Verify(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrTokenMissing
	}
	token, err := jwtauth.VerifyToken(t.auth, raw)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	claims, err := token.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	id := &Identity{
		UserID:    stringClaim(claims, "user_id"),
		Role:      stringClaim(claims, "role"),
		TokenID:   token.JwtID(),
		ExpiresAt: token.Expiration(),
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("%w: user_id claim is missing", ErrTokenMalformed)
	}

	if t.revoked != nil && id.TokenID != "" {
		revoked, err := t.revoked.IsRevoked(ctx, id.TokenID)
		if err != nil {
			// Fail open while Redis is unavailable.
			log.Printf("WARN: revocation check failed for token %s: %v", id.TokenID, err)
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return id, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (t *TokenIssuer) Revoke(ctx context.Context, id *Identity) error {
	if t.revoked == nil || id == nil || id.TokenID == "" {
		return nil
	}
	ttl := id.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.revoked.Revoke(ctx, id.TokenID, ttl)
}
