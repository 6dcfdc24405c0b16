// Package auth verifies bearer tokens issued by the external identity service.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrMissingSupplierID = errors.New("missing supplier_id in claims")
	ErrMissingSubject    = errors.New("missing subject in claims")
	ErrTokenRevoked      = errors.New("token has been revoked")
	ErrSecretRequired    = errors.New("jwt secret is required")
)

// Claims carries the reviewer identity and the supplier the token is scoped to
type Claims struct {
	jwt.RegisteredClaims
	SupplierID string   `json:"supplier_id"`
	Username   string   `json:"username,omitempty"`
	Roles      []string `json:"roles,omitempty"`
}

// Verifier validates HS256 tokens and, when a revocation list is set, rejects revoked ones
type Verifier struct {
	secret  []byte
	issuer  string
	revoked RevocationList
	leeway  time.Duration
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithRevocationList enables revocation checks by token ID
func WithRevocationList(list RevocationList) VerifierOption {
	return func(v *Verifier) {
		v.revoked = list
	}
}

// WithLeeway tolerates clock skew on exp and nbf
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// NewVerifier creates a verifier from configuration
func NewVerifier(cfg config.JWTConfig, opts ...VerifierOption) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}
	v := &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify parses and validates a token string
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.SupplierID == "" {
		return nil, ErrMissingSupplierID
	}
	if _, err := uuid.Parse(claims.SupplierID); err != nil {
		return nil, ErrInvalidClaims
	}

	if v.revoked != nil && claims.ID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// IssueInput describes a token to sign
type IssueInput struct {
	Subject    string
	SupplierID uuid.UUID
	Username   string
	Roles      []string
	TTL        time.Duration
}

// Issue signs a token with the verifier's secret. Production tokens come from
// the identity service; this serves local tooling and tests.
func (v *Verifier) Issue(input IssueInput) (string, error) {
	now := time.Now()
	ttl := input.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    v.issuer,
			Subject:   input.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SupplierID: input.SupplierID.String(),
		Username:   input.Username,
		Roles:      input.Roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// SupplierUUID parses the supplier scope
func (c *Claims) SupplierUUID() (uuid.UUID, error) {
	return uuid.Parse(c.SupplierID)
}

// Actor is the name recorded on lifecycle transitions
func (c *Claims) Actor() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// HasRole checks if the claims contain a role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RemainingTTL returns the time until the token expires
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(c.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}
