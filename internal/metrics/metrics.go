package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for orchestration activity.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	likesTotal      prometheus.Counter
	matchesTotal    prometheus.Counter
	sessionsTotal   *prometheus.CounterVec
	bansTotal       prometheus.Counter
	sessionDuration prometheus.Histogram
	qualityScore    prometheus.Histogram
	accountsByState *prometheus.GaugeVec
}

func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swipekit",
		Subsystem: "wire",
		Name:      "requests_total",
		Help:      "Total remote API calls issued, labelled by classification.",
	}, []string{"status"})

	likesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "swipekit",
		Subsystem: "session",
		Name:      "likes_total",
		Help:      "Total likes sent across all sessions.",
	})

	matchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "swipekit",
		Subsystem: "session",
		Name:      "matches_total",
		Help:      "Total matches gained across all sessions.",
	})

	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swipekit",
		Subsystem: "session",
		Name:      "sessions_total",
		Help:      "Sessions finalized, labelled by final phase.",
	}, []string{"final_phase"})

	bansTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "swipekit",
		Subsystem: "lifecycle",
		Name:      "bans_total",
		Help:      "Accounts transitioned to banned.",
	})

	sessionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "swipekit",
		Subsystem: "session",
		Name:      "duration_seconds",
		Help:      "Session wall-clock duration distribution.",
		Buckets:   []float64{60, 300, 600, 900, 1200, 1800, 2700, 3600},
	})

	qualityScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "swipekit",
		Subsystem: "session",
		Name:      "quality_score",
		Help:      "Session quality score distribution.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	accountsByState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "swipekit",
		Subsystem: "lifecycle",
		Name:      "accounts",
		Help:      "Managed accounts by lifecycle state.",
	}, []string{"state"})

	for _, c := range []prometheus.Collector{
		requestsTotal, likesTotal, matchesTotal, sessionsTotal,
		bansTotal, sessionDuration, qualityScore, accountsByState,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestsTotal:   requestsTotal,
		likesTotal:      likesTotal,
		matchesTotal:    matchesTotal,
		sessionsTotal:   sessionsTotal,
		bansTotal:       bansTotal,
		sessionDuration: sessionDuration,
		qualityScore:    qualityScore,
		accountsByState: accountsByState,
	}, nil
}

// Handler returns the scrape endpoint handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRequest(status string) {
	c.requestsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) AddLikes(n int) {
	c.likesTotal.Add(float64(n))
}

func (c *Collector) AddMatches(n int) {
	c.matchesTotal.Add(float64(n))
}

func (c *Collector) ObserveSession(finalPhase string, duration time.Duration, quality float64) {
	c.sessionsTotal.WithLabelValues(finalPhase).Inc()
	c.sessionDuration.Observe(duration.Seconds())
	c.qualityScore.Observe(quality)
}

func (c *Collector) IncBans() {
	c.bansTotal.Inc()
}

func (c *Collector) SetAccountState(state string, n int) {
	c.accountsByState.WithLabelValues(state).Set(float64(n))
}
