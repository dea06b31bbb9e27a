// Package metrics aggregates pipeline counters and classifies the threat level.
package metrics

import (
	"sort"
	"sync/atomic"

	"brain-link-tracker/internal/redirect/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
)

// System health labels.
const (
	HealthExcellent      = "excellent"
	HealthGood           = "good"
	HealthNeedsAttention = "needs_attention"
)

// Threat levels.
const (
	ThreatHigh    = "high"
	ThreatMedium  = "medium"
	ThreatLow     = "low"
	ThreatMinimal = "minimal"
)

const topThreatCount = 3

var recommendations = map[domain.Reason]string{
	domain.ReasonReplayAttack:     "Reduce token TTL and enforce stricter nonce checks",
	domain.ReasonIPMismatch:       "Investigate possible token hijacking; review IP binding for proxy-heavy traffic",
	domain.ReasonUAMismatch:       "Investigate user agent spoofing; tighten client fingerprint binding",
	domain.ReasonInvalidSignature: "Audit for token forgery attempts and rotate signing keys",
	domain.ReasonExpiredToken:     "Review end-to-end redirect latency or extend stage token TTLs",
	domain.ReasonInvalidAudience:  "Audit stage endpoint wiring; tokens are presented to the wrong stage",
}

// Metrics holds process-wide pipeline counters. All methods are safe for
// concurrent use.
type Metrics struct {
	clicks     atomic.Int64
	total      atomic.Int64
	successful atomic.Int64
	blocked    atomic.Int64
	violations map[domain.Reason]*atomic.Int64

	clicksCounter     prometheus.Counter
	attemptsCounter   prometheus.Counter
	successCounter    prometheus.Counter
	blockedCounter    prometheus.Counter
	violationsCounter *prometheus.CounterVec
}

// New creates zeroed metrics. Counters are also exported to reg; a nil reg
// keeps them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		violations: make(map[domain.Reason]*atomic.Int64),
		clicksCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "quantum_redirect_clicks_total",
			Help: "Clicks received by the genesis stage.",
		}),
		attemptsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "quantum_redirect_attempts_total",
			Help: "Redirect attempts entering the pipeline.",
		}),
		successCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "quantum_redirect_success_total",
			Help: "Redirects released to their destination.",
		}),
		blockedCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "quantum_redirect_blocked_total",
			Help: "Redirect attempts rejected by any stage.",
		}),
		violationsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quantum_redirect_violations_total",
			Help: "Security violations by reason.",
		}, []string{"reason"}),
	}
	for _, r := range domain.SecurityViolations() {
		m.violations[r] = new(atomic.Int64)
		m.violationsCounter.WithLabelValues(r.String())
	}
	return m
}

// RecordClick counts a click entering the pipeline at Genesis. A click is
// also an attempt.
func (m *Metrics) RecordClick() {
	m.clicks.Add(1)
	m.clicksCounter.Inc()
	m.RecordAttempt()
}

// RecordAttempt counts a redirect attempt. Hop requests whose token cannot
// be tied to a counted click are attempts without being clicks.
func (m *Metrics) RecordAttempt() {
	m.total.Add(1)
	m.attemptsCounter.Inc()
}

// RecordSuccess counts a redirect released to its destination.
func (m *Metrics) RecordSuccess() {
	m.successful.Add(1)
	m.successCounter.Inc()
}

// RecordBlocked counts a rejected attempt. The violation histogram is only
// updated for security reasons.
func (m *Metrics) RecordBlocked(reason domain.Reason) {
	m.blocked.Add(1)
	m.blockedCounter.Inc()

	if counter, ok := m.violations[reason]; ok {
		counter.Add(1)
		m.violationsCounter.WithLabelValues(reason.String()).Inc()
	}
}

// Snapshot is a read-only view of the counters.
type Snapshot struct {
	Clicks              int64            `json:"clicks"`
	TotalRedirects      int64            `json:"total_redirects"`
	SuccessfulRedirects int64            `json:"successful_redirects"`
	BlockedAttempts     int64            `json:"blocked_attempts"`
	SuccessRate         float64          `json:"success_rate"`
	BlockRate           float64          `json:"block_rate"`
	ClickSuccessRate    float64          `json:"click_success_rate"`
	SystemHealth        string           `json:"system_health"`
	SecurityViolations  map[string]int64 `json:"security_violations"`
}

// Snapshot derives rates and system health from the current counters.
func (m *Metrics) Snapshot() Snapshot {
	clicks := m.clicks.Load()
	total := m.total.Load()
	successful := m.successful.Load()
	blocked := m.blocked.Load()

	s := Snapshot{
		Clicks:              clicks,
		TotalRedirects:      total,
		SuccessfulRedirects: successful,
		BlockedAttempts:     blocked,
		SecurityViolations:  make(map[string]int64, len(m.violations)),
	}
	for r, c := range m.violations {
		s.SecurityViolations[r.String()] = c.Load()
	}

	if clicks > 0 {
		s.ClickSuccessRate = float64(successful) / float64(clicks) * 100
	}

	if total == 0 {
		s.SystemHealth = HealthExcellent
		return s
	}

	s.SuccessRate = float64(successful) / float64(total) * 100
	s.BlockRate = float64(blocked) / float64(total) * 100
	s.SystemHealth = healthFor(s.SuccessRate)
	return s
}

func healthFor(successRate float64) string {
	switch {
	case successRate > 95:
		return HealthExcellent
	case successRate > 85:
		return HealthGood
	default:
		return HealthNeedsAttention
	}
}

// ThreatCount is one ranked entry of the violation histogram.
type ThreatCount struct {
	Reason domain.Reason `json:"reason"`
	Count  int64         `json:"count"`
}

// ThreatAnalysis summarizes the violation histogram.
type ThreatAnalysis struct {
	TotalViolations int64         `json:"total_violations"`
	TopThreats      []ThreatCount `json:"top_threats"`
	Recommendations []string      `json:"recommendations"`
	ThreatLevel     string        `json:"threat_level"`
}

// AnalyzeThreats ranks the three most frequent violation reasons and
// classifies the overall threat level.
func (m *Metrics) AnalyzeThreats() ThreatAnalysis {
	counts := lo.MapToSlice(m.violations, func(r domain.Reason, c *atomic.Int64) ThreatCount {
		return ThreatCount{Reason: r, Count: c.Load()}
	})

	total := lo.SumBy(counts, func(tc ThreatCount) int64 { return tc.Count })

	ranked := lo.Filter(counts, func(tc ThreatCount, _ int) bool { return tc.Count > 0 })
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	if len(ranked) > topThreatCount {
		ranked = ranked[:topThreatCount]
	}

	return ThreatAnalysis{
		TotalViolations: total,
		TopThreats:      ranked,
		Recommendations: lo.Map(ranked, func(tc ThreatCount, _ int) string {
			return recommendations[tc.Reason]
		}),
		ThreatLevel: threatLevelFor(total),
	}
}

func threatLevelFor(totalViolations int64) string {
	switch {
	case totalViolations > 100:
		return ThreatHigh
	case totalViolations > 50:
		return ThreatMedium
	case totalViolations > 5:
		return ThreatLow
	default:
		return ThreatMinimal
	}
}
