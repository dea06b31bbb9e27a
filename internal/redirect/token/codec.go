// Package token mints and verifies the short-lived signed tokens passed
// between redirect stages.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/nonce"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrEmptyKey is returned by Mint when no signing key is supplied.
var ErrEmptyKey = errors.New("signing key is empty")

var signingMethod = jwt.SigningMethodHS256

// Codec signs stage tokens with HMAC-SHA256 and records consumed token ids
// in a nonce store.
type Codec struct {
	nonces   nonce.Store
	nonceTTL time.Duration
	now      func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for minting and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithNonceTTL sets how long consumed ids are retained. Values below
// nonce.MinTTL are raised by the store.
func WithNonceTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		c.nonceTTL = ttl
	}
}

// NewCodec creates a codec backed by the given nonce store.
func NewCodec(nonces nonce.Store, opts ...Option) *Codec {
	c := &Codec{
		nonces:   nonces,
		nonceTTL: nonce.MinTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mint fills the validity window and a fresh jti into claims and signs them.
// issued_at equals not_before, truncated to the second. Expiry is the first
// whole second after now + ttl, so the token verifies for the full ttl with
// the end instant included.
func (c *Codec) Mint(claims *Claims, key []byte, ttl time.Duration) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}

	now := c.now()
	issuedAt := now.Truncate(time.Second)
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.NotBefore = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiryFor(now, ttl))

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks, in order, the signature, the validity window, the audience
// and finally that the jti has not been consumed before. The jti is consumed
// only when every earlier check passed, so malformed or stale tokens never
// reach the nonce store.
func (c *Codec) Verify(ctx context.Context, raw string, key []byte, expectedAudience string) (*Claims, domain.Reason) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.NotBefore == nil {
		return nil, domain.ReasonExpiredToken
	}

	if claims.PrimaryAudience() != expectedAudience {
		return nil, domain.ReasonInvalidAudience
	}

	if claims.ID == "" {
		return nil, domain.ReasonInvalidSignature
	}

	if !c.nonces.Consume(ctx, claims.ID, c.nonceTTL) {
		return nil, domain.ReasonReplayAttack
	}

	return claims, domain.ReasonValid
}

// expiryFor returns the first whole second strictly after now + ttl. The
// jwt validator rejects a token at its exp instant.
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).Truncate(time.Second).Add(time.Second)
}

func classify(err error) domain.Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return domain.ReasonExpiredToken
	default:
		return domain.ReasonInvalidSignature
	}
}
