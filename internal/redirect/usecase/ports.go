package usecase

import (
	"context"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/enrichment"
	"brain-link-tracker/internal/redirect/token"
)

// LinkRepository resolves link configurations.
type LinkRepository interface {
	FindByLinkID(ctx context.Context, linkID string) (*domain.LinkConfiguration, error)
	Save(ctx context.Context, link *domain.LinkConfiguration) error
}

// TokenCodec mints and verifies stage tokens.
type TokenCodec interface {
	Mint(claims *token.Claims, key []byte, ttl time.Duration) (string, error)
	Verify(ctx context.Context, raw string, key []byte, expectedAudience string) (*token.Claims, domain.Reason)
}

// MetricsRecorder receives stage outcomes.
type MetricsRecorder interface {
	RecordClick()
	RecordAttempt()
	RecordSuccess()
	RecordBlocked(reason domain.Reason)
}

// Enricher derives anti-fraud telemetry from the click context.
type Enricher interface {
	Enrich(ip, userAgent, referrer string) enrichment.Telemetry
}
