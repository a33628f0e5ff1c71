package security

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// FederatedVerifier accepts RS256 id tokens from an external identity
// provider (the "Sign in with Google" flow).
type FederatedVerifier struct {
	auth     *jwtauth.JWTAuth
	issuer   string
	audience string
}

// NewFederatedVerifier parses a PEM encoded RSA public key. An empty key
// returns nil, which callers treat as social login being disabled.
func NewFederatedVerifier(publicKeyPEM, issuer, audience string) (*FederatedVerifier, error) {
	if publicKeyPEM == "" {
		return nil, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing federated public key: %w", err)
	}
	return &FederatedVerifier{
		auth:     jwtauth.New("RS256", nil, key),
		issuer:   issuer,
		audience: audience,
	}, nil
}

func (v *FederatedVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrTokenMissing
	}
	token, err := jwtauth.VerifyToken(v.auth, raw)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if v.issuer != "" && token.Issuer() != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenMalformed, token.Issuer())
	}
	if v.audience != "" && !slices.Contains(token.Audience(), v.audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrTokenMalformed)
	}

	claims, err := token.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	id := &Identity{
		ExternalID:    token.Subject(),
		Email:         stringClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Name:          stringClaim(claims, "name"),
		ExpiresAt:     token.Expiration(),
	}
	if id.ExternalID == "" || id.Email == "" {
		return nil, fmt.Errorf("%w: sub and email claims are required", ErrTokenMalformed)
	}
	if !id.EmailVerified {
		return nil, fmt.Errorf("%w: email is not verified by the provider", ErrTokenMalformed)
	}
	return id, nil
}
