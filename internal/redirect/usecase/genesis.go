package usecase

import (
	"context"
	"fmt"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/events"
	"brain-link-tracker/internal/redirect/token"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// Genesis mints the context-bound token for a new click and returns the
// validation redirect.
func (p *Pipeline) Genesis(ctx context.Context, req GenesisRequest) (res *domain.Result) {
	start := time.Now()
	p.metrics.RecordClick()
	defer p.recoverStage(ctx, &res, start, "Genesis", domain.StageGenesisFailed, false)

	// Any non-empty id is accepted; an unknown id fails at Routing.
	if req.LinkID == "" {
		return p.stageFailure(ctx, start, domain.StageGenesisFailed, "", req.LinkID,
			unexpectedError("Genesis", domain.ErrInvalidLinkID), "")
	}

	clickID, err := p.newClickID(req.LinkID)
	if err != nil {
		return p.stageFailure(ctx, start, domain.StageGenesisFailed, "", req.LinkID,
			unexpectedError("Genesis", err), "")
	}

	claims := &token.Claims{
		LinkID:         req.LinkID,
		Referrer:       req.Referrer,
		Stage:          domain.PayloadStageGenesis,
		IPHash:         p.hashContext(req.ClientIP),
		UAHash:         p.hashContext(req.UserAgent),
		OriginalParams: copyParams(req.OriginalParams),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   domain.IssuerGenesis,
			Subject:  clickID,
			Audience: jwt.ClaimStrings{domain.AudienceValidation},
		},
	}

	signed, err := p.codec.Mint(claims, p.cfg.GenesisKey, p.cfg.GenesisTTL)
	if err != nil {
		return p.stageFailure(ctx, start, domain.StageGenesisFailed, clickID, req.LinkID,
			unexpectedError("Genesis", err), "")
	}

	redirectURL, err := withQuery(p.cfg.ValidationEndpoint, domain.TokenParam, signed)
	if err != nil {
		return p.stageFailure(ctx, start, domain.StageGenesisFailed, clickID, req.LinkID,
			unexpectedError("Genesis", err), "")
	}

	logData := map[string]any{
		"link_id":         req.LinkID,
		"click_id":        clickID,
		"referrer":        req.Referrer,
		"original_params": len(req.OriginalParams),
		"token_ttl_s":     p.cfg.GenesisTTL.Seconds(),
	}
	if p.enricher != nil {
		logData["telemetry"] = p.enricher.Enrich(req.ClientIP, req.UserAgent, req.Referrer).Map()
	}

	p.logger.Info("genesis complete",
		zap.String("click_id", clickID),
		zap.String("link_id", req.LinkID),
	)
	p.publish(ctx, events.NewPipelineEvent(events.ClickGenesis, clickID, req.LinkID, domain.StageGenesisComplete, ""))

	return &domain.Result{
		Success:          true,
		RedirectURL:      redirectURL,
		ClickID:          clickID,
		ProcessingTimeMS: elapsedMS(start),
		Stage:            domain.StageGenesisComplete,
		LogData:          logData,
	}
}

// newClickID returns {link_id}_{epoch_millis}_{8 lowercase hex}.
func (p *Pipeline) newClickID(linkID string) (string, error) {
	suffix, err := gonanoid.Generate(clickIDAlphabet, clickIDSuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate click id: %w", err)
	}
	return fmt.Sprintf("%s_%d_%s", linkID, p.now().UnixMilli(), suffix), nil
}
