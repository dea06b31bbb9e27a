package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/events"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MsgLinkConfigurationNotFound is reported when the routed link has no
// configuration.
const MsgLinkConfigurationNotFound = "Link configuration not found"

// Route verifies the transit token, resolves the link destination and
// builds the final URL.
func (p *Pipeline) Route(ctx context.Context, req RoutingRequest) (res *domain.Result) {
	start := time.Now()
	defer p.recoverStage(ctx, &res, start, "Routing", domain.StageRoutingFailed, true)

	claims, reason := p.codec.Verify(ctx, req.TransitToken, p.cfg.ValidationKey, domain.AudienceRouting)
	if reason != domain.ReasonValid {
		// Each unverified presentation is an attempt of its own.
		p.metrics.RecordAttempt()
		return p.stageFailure(ctx, start, domain.StageRoutingFailed, "", "",
			"Token validation failed: "+reason.String(), reason)
	}
	clickID := claims.ClickID()

	link, err := p.links.FindByLinkID(ctx, claims.LinkID)
	if err != nil {
		msg := MsgLinkConfigurationNotFound
		if !errors.Is(err, domain.ErrLinkNotFound) {
			msg = unexpectedError("Routing", err)
		}
		return p.stageFailure(ctx, start, domain.StageRoutingFailed, clickID, claims.LinkID, msg, "")
	}

	quantum := map[string]string{
		domain.ParamQuantumClickID:   clickID,
		domain.ParamQuantumTimestamp: strconv.FormatInt(p.now().Unix(), 10),
		domain.ParamQuantumVerified:  "true",
	}

	finalURL, err := BuildFinalURL(link.DestinationURL,
		link.TrackingParams(),
		req.TrackingParams,
		quantum,
		claims.OriginalParams,
	)
	if err != nil {
		return p.stageFailure(ctx, start, domain.StageRoutingFailed, clickID, claims.LinkID,
			unexpectedError("Routing", err), "")
	}

	p.metrics.RecordSuccess()
	p.logger.Info("routing complete",
		zap.String("click_id", clickID),
		zap.String("link_id", claims.LinkID),
		zap.String("campaign_id", link.CampaignID),
	)
	p.publish(ctx, events.NewPipelineEvent(events.ClickRouted, clickID, claims.LinkID, domain.StageRoutingComplete, ""))

	return &domain.Result{
		Success:          true,
		FinalURL:         finalURL,
		ClickID:          clickID,
		ProcessingTimeMS: elapsedMS(start),
		Stage:            domain.StageRoutingComplete,
		LogData: map[string]any{
			"link_id":         claims.LinkID,
			"click_id":        clickID,
			"campaign_id":     link.CampaignID,
			"original_params": len(claims.OriginalParams),
		},
	}
}

// BuildFinalURL merges parameter layers into the destination's query.
// Later layers override earlier ones, and every layer overrides the
// destination's own parameters. The fragment is dropped and keys are
// encoded in sorted order.
func BuildFinalURL(destination string, layers ...map[string]string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidDestination, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDestination, destination)
	}

	query := u.Query()
	for k, v := range lo.Assign(layers...) {
		query.Set(k, v)
	}

	u.RawQuery = query.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
