package http

import (
	"context"
	"net/http"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/metrics"
	"brain-link-tracker/internal/redirect/usecase"
	"brain-link-tracker/pkg/problemdetails"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Pipeline runs the redirect stages.
type Pipeline interface {
	Genesis(ctx context.Context, req usecase.GenesisRequest) *domain.Result
	Validate(ctx context.Context, req usecase.ValidationRequest) *domain.Result
	Route(ctx context.Context, req usecase.RoutingRequest) *domain.Result
}

// StatsProvider exposes the dashboard snapshots.
type StatsProvider interface {
	Snapshot() metrics.Snapshot
	AnalyzeThreats() metrics.ThreatAnalysis
}

// ReadinessCheck is a named dependency check for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the redirect hops and the read-only dashboards.
type Handler struct {
	pipeline Pipeline
	stats    StatsProvider
	checks   []ReadinessCheck
	logger   *zap.Logger
}

func NewHandler(pipeline Pipeline, stats StatsProvider, logger *zap.Logger, checks ...ReadinessCheck) *Handler {
	return &Handler{
		pipeline: pipeline,
		stats:    stats,
		checks:   checks,
		logger:   logger,
	}
}

// Click handles GET /c/{linkID}. Every query parameter is carried to the
// destination as an original parameter.
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	res := h.pipeline.Genesis(r.Context(), usecase.GenesisRequest{
		LinkID:         chi.URLParam(r, "linkID"),
		ClientIP:       clientIP(r),
		UserAgent:      r.UserAgent(),
		Referrer:       r.Referer(),
		OriginalParams: firstValues(r, ""),
	})
	h.writeResult(w, r, res, res.RedirectURL)
}

// Validate handles GET /validate?token=.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get(domain.TokenParam)
	if tok == "" {
		writeMissingToken(w, r, domain.TokenParam)
		return
	}

	res := h.pipeline.Validate(r.Context(), usecase.ValidationRequest{
		Token:     tok,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	h.writeResult(w, r, res, res.RedirectURL)
}

// Route handles GET /route?transit_token=. Any other query parameter is
// passed on as a tracking parameter.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get(domain.TransitTokenParam)
	if tok == "" {
		writeMissingToken(w, r, domain.TransitTokenParam)
		return
	}

	res := h.pipeline.Route(r.Context(), usecase.RoutingRequest{
		TransitToken:   tok,
		TrackingParams: firstValues(r, domain.TransitTokenParam),
	})
	h.writeResult(w, r, res, res.FinalURL)
}

// Metrics handles GET /api/v1/metrics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

// Threats handles GET /api/v1/threats
func (h *Handler) Threats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.AnalyzeThreats())
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res *domain.Result, location string) {
	if res.Success {
		http.Redirect(w, r, location, http.StatusFound)
		return
	}
	writeProblem(w, problemForResult(res).WithInstance(r.URL.Path))
}

func problemForResult(res *domain.Result) *problemdetails.ProblemDetail {
	var p *problemdetails.ProblemDetail
	switch {
	case res.SecurityViolation != "":
		p = problemdetails.New(http.StatusForbidden, problemdetails.TypeSecurityViolation,
			"Security Violation", res.Error)
	case res.Error == usecase.MsgLinkConfigurationNotFound:
		p = problemdetails.New(http.StatusNotFound, problemdetails.TypeLinkNotFound,
			"Link Not Found", res.Error)
	default:
		p = problemdetails.New(http.StatusInternalServerError, problemdetails.TypeStageFailed,
			"Redirect Failed", res.Error)
	}
	return p.WithStage(res.Stage, res.SecurityViolation.String(), res.ClickID)
}

func writeMissingToken(w http.ResponseWriter, r *http.Request, param string) {
	writeProblem(w, problemdetails.New(
		http.StatusBadRequest,
		problemdetails.TypeMissingToken,
		"Missing Token",
		param+" query parameter is required",
	).WithInstance(r.URL.Path))
}

// firstValues flattens the query to its first value per key, skipping
// exclude.
func firstValues(r *http.Request, exclude string) map[string]string {
	query := map[string][]string(r.URL.Query())
	delete(query, exclude)
	return lo.MapValues(query, func(values []string, _ string) string {
		return values[0]
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string            `json:"status"`
	Reason string            `json:"reason,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz handles GET /healthz (liveness)
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz handles GET /readyz (readiness)
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
			checks[c.Name] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unavailable",
				Reason: c.Name + " unavailable: " + err.Error(),
				Checks: checks,
			})
			return
		}
		checks[c.Name] = "ok"
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", Checks: checks})
}
