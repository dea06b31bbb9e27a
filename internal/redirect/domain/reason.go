package domain

// Reason is the outcome of a token verification or a context check.
type Reason string

const (
	ReasonValid            Reason = "valid"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonExpiredToken     Reason = "expired_token"
	ReasonInvalidAudience  Reason = "invalid_audience"
	ReasonReplayAttack     Reason = "replay_attack"
	ReasonIPMismatch       Reason = "ip_mismatch"
	ReasonUAMismatch       Reason = "ua_mismatch"
)

// SecurityViolations lists every reason that counts as a security violation.
func SecurityViolations() []Reason {
	return []Reason{
		ReasonInvalidSignature,
		ReasonExpiredToken,
		ReasonIPMismatch,
		ReasonUAMismatch,
		ReasonReplayAttack,
		ReasonInvalidAudience,
	}
}

// IsViolation reports whether r is one of the security violation reasons.
func (r Reason) IsViolation() bool {
	for _, v := range SecurityViolations() {
		if r == v {
			return true
		}
	}
	return false
}

func (r Reason) String() string {
	return string(r)
}
