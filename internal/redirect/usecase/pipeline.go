// Package usecase implements the three-stage redirect pipeline: Genesis
// mints a context-bound token, Validation checks it and mints a transit
// token, Routing resolves the destination and builds the final URL.
package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/events"

	"go.uber.org/zap"
)

const (
	DefaultGenesisTTL    = 15 * time.Second
	DefaultValidationTTL = 10 * time.Second
	// DefaultRoutingTTL is reserved for a routing output token.
	DefaultRoutingTTL = 5 * time.Second

	transitSecurityScore = 100
	clickIDAlphabet      = "0123456789abcdef"
	clickIDSuffixLength  = 8
	contextKeyLabel      = "context-binding"
)

// Config holds per-stage keys, token lifetimes and hop endpoints.
type Config struct {
	GenesisKey    []byte
	ValidationKey []byte
	// ContextKey keys the IP and user agent digests. It defaults to a value
	// derived from GenesisKey.
	ContextKey []byte

	GenesisTTL    time.Duration
	ValidationTTL time.Duration

	// Endpoints the client is redirected to between stages. They may be
	// absolute URLs or paths.
	ValidationEndpoint string
	RoutingEndpoint    string
}

func (c Config) withDefaults() Config {
	if len(c.ContextKey) == 0 {
		c.ContextKey = []byte(domain.HashContext(c.GenesisKey, contextKeyLabel))
	}
	if c.GenesisTTL <= 0 {
		c.GenesisTTL = DefaultGenesisTTL
	}
	if c.ValidationTTL <= 0 {
		c.ValidationTTL = DefaultValidationTTL
	}
	if c.ValidationEndpoint == "" {
		c.ValidationEndpoint = "/validate"
	}
	if c.RoutingEndpoint == "" {
		c.RoutingEndpoint = "/route"
	}
	return c
}

// GenesisRequest is the click as received by the tracked link.
type GenesisRequest struct {
	LinkID         string
	ClientIP       string
	UserAgent      string
	Referrer       string
	OriginalParams map[string]string
}

// ValidationRequest carries the Genesis token and the context of the
// current hop.
type ValidationRequest struct {
	Token     string
	ClientIP  string
	UserAgent string
}

// RoutingRequest carries the transit token and optional attribution tags
// supplied by the platform.
type RoutingRequest struct {
	TransitToken   string
	TrackingParams map[string]string
}

// Pipeline runs the redirect stages. It is safe for concurrent use.
type Pipeline struct {
	codec     TokenCodec
	links     LinkRepository
	metrics   MetricsRecorder
	publisher events.Publisher
	enricher  Enricher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline. publisher and enricher may be nil.
func NewPipeline(
	codec TokenCodec,
	links LinkRepository,
	metrics MetricsRecorder,
	publisher events.Publisher,
	enricher Enricher,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Pipeline{
		codec:     codec,
		links:     links,
		metrics:   metrics,
		publisher: publisher,
		enricher:  enricher,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

func (p *Pipeline) hashContext(value string) string {
	return domain.HashContext(p.cfg.ContextKey, value)
}

// SetClock overrides the time source used for click ids and timestamps.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// stageFailure builds a failed result. Blocked attempts are always counted;
// violations additionally feed the reason histogram.
func (p *Pipeline) stageFailure(ctx context.Context, start time.Time, stage, clickID, linkID, message string, reason domain.Reason) *domain.Result {
	p.metrics.RecordBlocked(reason)

	res := &domain.Result{
		Success:          false,
		ClickID:          clickID,
		ProcessingTimeMS: elapsedMS(start),
		Stage:            stage,
		Error:            message,
	}
	if reason.IsViolation() {
		res.SecurityViolation = reason
	}

	p.logger.Warn("redirect stage rejected",
		zap.String("stage", stage),
		zap.String("click_id", clickID),
		zap.String("link_id", linkID),
		zap.String("reason", reason.String()),
		zap.String("error", message),
	)
	p.publish(ctx, events.NewPipelineEvent(events.ClickBlocked, clickID, linkID, stage, reasonOrError(reason, message)))

	return res
}

// recoverStage converts a panic inside a stage into a failed result.
func (p *Pipeline) recoverStage(ctx context.Context, res **domain.Result, start time.Time, name, stage string, countAttempt bool) {
	r := recover()
	if r == nil {
		return
	}
	p.logger.Error("redirect stage panicked",
		zap.String("stage", stage),
		zap.Any("panic", r),
	)
	if countAttempt {
		p.metrics.RecordAttempt()
	}
	*res = p.stageFailure(ctx, start, stage, "", "", unexpectedError(name, fmt.Errorf("%v", r)), "")
}

func (p *Pipeline) publish(ctx context.Context, e events.PipelineEvent) {
	if err := p.publisher.Publish(ctx, e); err != nil {
		p.logger.Warn("failed to publish pipeline event",
			zap.String("event_name", e.Name),
			zap.String("click_id", e.ClickID),
			zap.Error(err),
		)
	}
}

func unexpectedError(stage string, err error) string {
	return fmt.Sprintf("%s stage failed: %v", stage, err)
}

func reasonOrError(reason domain.Reason, message string) string {
	if reason != "" {
		return reason.String()
	}
	return message
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// withQuery appends key=value to endpoint, keeping any query it already has.
func withQuery(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func copyParams(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
