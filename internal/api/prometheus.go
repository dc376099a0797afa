package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lan-dot-party/relkit/internal/channel"
	"github.com/lan-dot-party/relkit/internal/nightly"
)

var (
	// Nightly trigger metrics
	nightlyTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relkit",
			Name:      "nightly_triggers_total",
			Help:      "Total number of scheduled nightly triggers by outcome",
		},
		[]string{"outcome"},
	)

	lastNightly = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relkit",
			Name:      "last_nightly_timestamp",
			Help:      "Timestamp of the last successful nightly trigger (Unix timestamp)",
		},
	)

	// Release lookups
	releaseLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relkit",
			Name:      "release_lookups_total",
			Help:      "Total number of channel release lookups by source (cache or remote)",
		},
		[]string{"channel", "source"},
	)

	storeInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "relkit",
			Name:      "store_info",
			Help:      "Canonical version currently held by the version store (always 1)",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(
		nightlyTriggers,
		lastNightly,
		releaseLookups,
		storeInfo,
	)
}

// handlePrometheusMetrics exposes Prometheus metrics.
func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordNightly updates metrics after a nightly trigger attempt.
// Exported so it can be called from the scheduler.
func RecordNightly(outcome nightly.Outcome, at time.Time) {
	nightlyTriggers.WithLabelValues(string(outcome)).Inc()
	if outcome == nightly.OutcomeTriggered {
		lastNightly.Set(float64(at.Unix()))
	}
}

func observeReleaseLookup(ch channel.Channel, source string) {
	releaseLookups.WithLabelValues(string(ch), source).Inc()
}

func setStoreVersion(v string) {
	storeInfo.Reset()
	storeInfo.WithLabelValues(v).Set(1)
}

// SeedLastNightly restores the last trigger time from history at startup
// without counting a new trigger.
func SeedLastNightly(at time.Time) {
	lastNightly.Set(float64(at.Unix()))
}
