package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sproutlog/sproutlog/internal/models"
)

// Verifier validates bearer tokens against a JWKS endpoint
type Verifier struct {
	jwks     *JWKSManager
	jwksURL  string
	issuer   string
	audience string
}

// NewVerifier creates a token verifier. Issuer and audience checks are
// skipped when the corresponding value is empty.
func NewVerifier(jwks *JWKSManager, jwksURL, issuer, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		jwksURL:  jwksURL,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify parses and validates a raw bearer token and extracts the
// caller's identity claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*models.AuthUser, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(rawToken), opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	return userFromToken(token)
}

// userFromToken maps token claims onto an AuthUser. The numeric user_id
// claim is required; subject and email are carried when present.
func userFromToken(token jwt.Token) (*models.AuthUser, error) {
	user := &models.AuthUser{
		Subject: token.Subject(),
	}

	rawID, ok := token.Get("user_id")
	if !ok {
		return nil, fmt.Errorf("token missing user_id claim")
	}
	switch id := rawID.(type) {
	case float64:
		user.ID = int64(id)
	case int64:
		user.ID = id
	default:
		return nil, fmt.Errorf("unexpected user_id claim type %T", rawID)
	}
	if user.ID <= 0 {
		return nil, fmt.Errorf("invalid user_id claim: %d", user.ID)
	}

	if rawEmail, ok := token.Get("email"); ok {
		if email, ok := rawEmail.(string); ok {
			user.Email = email
		}
	}

	return user, nil
}
