package problemdetails

import "fmt"

// BaseURI prefixes every problem type.
const BaseURI = "https://brainlinktracker.dev/problems/"

const (
	TypeInvalidRequest    = "invalid-request"
	TypeMissingToken      = "missing-token"
	TypeSecurityViolation = "security-violation"
	TypeLinkNotFound      = "link-not-found"
	TypeRateLimitExceeded = "rate-limit-exceeded"
	TypeStageFailed       = "stage-failed"
	TypeInternalError     = "internal-error"
)

// ProblemDetail is an RFC 7807 problem document. Stage, SecurityViolation
// and ClickID are extension members set for redirect pipeline failures.
type ProblemDetail struct {
	Type              string `json:"type"`
	Title             string `json:"title"`
	Status            int    `json:"status"`
	Detail            string `json:"detail"`
	Instance          string `json:"instance,omitempty"`
	Stage             string `json:"stage,omitempty"`
	SecurityViolation string `json:"security_violation,omitempty"`
	ClickID           string `json:"click_id,omitempty"`
}

func New(status int, problemType, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("%s%s", BaseURI, problemType),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WithStage sets the pipeline extension members.
func (p *ProblemDetail) WithStage(stage, violation, clickID string) *ProblemDetail {
	p.Stage = stage
	p.SecurityViolation = violation
	p.ClickID = clickID
	return p
}

// WithInstance sets the URI reference of the failing request.
func (p *ProblemDetail) WithInstance(instance string) *ProblemDetail {
	p.Instance = instance
	return p
}
