package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a stage token. Registered claims carry the
// issuer, audience, subject (click id), jti and the validity window.
type Claims struct {
	LinkID         string            `json:"link_id"`
	Referrer       string            `json:"referrer,omitempty"`
	Stage          string            `json:"stage"`
	IPHash         string            `json:"ip_hash,omitempty"`
	UAHash         string            `json:"ua_hash,omitempty"`
	OriginalParams map[string]string `json:"original_params,omitempty"`
	ValidatedAt    int64             `json:"validated_at,omitempty"`
	SecurityScore  int               `json:"security_score,omitempty"`
	jwt.RegisteredClaims
}

// ClickID returns the click id carried in the subject claim.
func (c *Claims) ClickID() string {
	return c.Subject
}

// PrimaryAudience returns the single audience the token was minted for.
func (c *Claims) PrimaryAudience() string {
	if len(c.RegisteredClaims.Audience) == 0 {
		return ""
	}
	return c.RegisteredClaims.Audience[0]
}
