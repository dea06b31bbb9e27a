package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Token issuers and audiences. A token minted by one stage names the stage
// expected to consume it.
const (
	IssuerGenesis    = "genesis-link-generator"
	IssuerValidation = "validation-hub"
	IssuerRouting    = "routing-gateway"

	AudienceValidation = IssuerValidation
	AudienceRouting    = IssuerRouting
)

// Payload stage tags.
const (
	PayloadStageGenesis = "genesis"
	PayloadStageTransit = "transit"
)

// Query parameter names carrying stage tokens between hops.
const (
	TokenParam        = "token"
	TransitTokenParam = "transit_token"
)

// Tracking parameters added to the final destination URL.
const (
	ParamQuantumClickID   = "quantum_click_id"
	ParamQuantumTimestamp = "quantum_timestamp"
	ParamQuantumVerified  = "quantum_verified"
)

// ClickContext is the request context captured once at Genesis.
type ClickContext struct {
	LinkID         string            `json:"link_id"`
	ClientIP       string            `json:"client_ip"`
	UserAgent      string            `json:"user_agent"`
	Referrer       string            `json:"referrer"`
	OriginalParams map[string]string `json:"original_params"`
	ClickID        string            `json:"click_id"`
}

// HashContext returns the hex encoded HMAC-SHA256 of a context value under
// key. Tokens carry these digests instead of the raw IP and user agent, and
// without the key a digest cannot be matched against enumerated addresses.
func HashContext(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
