package usecase

import (
	"context"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/events"
	"brain-link-tracker/internal/redirect/token"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Validate verifies the Genesis token against the current request context
// and mints the transit token for Routing.
func (p *Pipeline) Validate(ctx context.Context, req ValidationRequest) (res *domain.Result) {
	start := time.Now()
	defer p.recoverStage(ctx, &res, start, "Validation", domain.StageValidationFailed, true)

	claims, reason := p.codec.Verify(ctx, req.Token, p.cfg.GenesisKey, domain.AudienceValidation)
	if reason != domain.ReasonValid {
		// Unverified tokens can be forged or replayed without bound; each
		// presentation is an attempt of its own.
		p.metrics.RecordAttempt()
		return p.stageFailure(ctx, start, domain.StageValidationFailed, "", "",
			"Token validation failed: "+reason.String(), reason)
	}

	// From here the token is consumed, so any failure is the single outcome
	// of a click already counted at Genesis.
	clickID := claims.ClickID()
	if mismatch := p.contextMismatch(claims, req); mismatch != domain.ReasonValid {
		return p.stageFailure(ctx, start, domain.StageValidationFailed, clickID, claims.LinkID,
			"Security context mismatch: "+mismatch.String(), mismatch)
	}

	validatedAt := p.now()
	transit := &token.Claims{
		LinkID:         claims.LinkID,
		Referrer:       claims.Referrer,
		Stage:          domain.PayloadStageTransit,
		IPHash:         p.hashContext(req.ClientIP),
		UAHash:         p.hashContext(req.UserAgent),
		OriginalParams: copyParams(claims.OriginalParams),
		ValidatedAt:    validatedAt.Unix(),
		SecurityScore:  transitSecurityScore,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   domain.IssuerValidation,
			Subject:  clickID,
			Audience: jwt.ClaimStrings{domain.AudienceRouting},
		},
	}

	signed, err := p.codec.Mint(transit, p.cfg.ValidationKey, p.cfg.ValidationTTL)
	if err != nil {
		return p.stageFailure(ctx, start, domain.StageValidationFailed, clickID, claims.LinkID,
			unexpectedError("Validation", err), "")
	}

	redirectURL, err := withQuery(p.cfg.RoutingEndpoint, domain.TransitTokenParam, signed)
	if err != nil {
		return p.stageFailure(ctx, start, domain.StageValidationFailed, clickID, claims.LinkID,
			unexpectedError("Validation", err), "")
	}

	p.logger.Info("validation complete",
		zap.String("click_id", clickID),
		zap.String("link_id", claims.LinkID),
	)
	p.publish(ctx, events.NewPipelineEvent(events.ClickValidated, clickID, claims.LinkID, domain.StageValidationComplete, ""))

	return &domain.Result{
		Success:          true,
		RedirectURL:      redirectURL,
		ClickID:          clickID,
		ProcessingTimeMS: elapsedMS(start),
		Stage:            domain.StageValidationComplete,
		LogData: map[string]any{
			"link_id":        claims.LinkID,
			"click_id":       clickID,
			"validated_at":   validatedAt.Unix(),
			"security_score": transitSecurityScore,
		},
	}
}

// contextMismatch compares the hashed Genesis context with the current
// hop. An IP mismatch is reported before a user agent mismatch.
func (p *Pipeline) contextMismatch(claims *token.Claims, req ValidationRequest) domain.Reason {
	if claims.IPHash != p.hashContext(req.ClientIP) {
		return domain.ReasonIPMismatch
	}
	if claims.UAHash != p.hashContext(req.UserAgent) {
		return domain.ReasonUAMismatch
	}
	return domain.ReasonValid
}
