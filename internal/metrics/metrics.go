// Package metrics is C2: named counters/gauges/histograms exposed on a scrape
// endpoint. Write-side only from the core; explicitly passed as a handle created
// once at startup, never a package-global singleton (§9 "Global metrics").
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink holds every metric object named in SPEC_FULL.md §6.2. All fields are safe
// for concurrent use (§5): prometheus collectors are intrinsically goroutine-safe.
type Sink struct {
	registry *prometheus.Registry

	ActiveEraID                  prometheus.Gauge
	EraUpdateDelayed              prometheus.Gauge
	IsRecoveryModeActive          prometheus.Gauge
	LastEraReported               prometheus.Gauge
	LastFailedEra                 prometheus.Gauge
	OracleBalance                 *prometheus.GaugeVec
	PreviousEraChangeBlockNumber  prometheus.Gauge
	ParaExceptionsCount            prometheus.Counter
	RelayExceptionsCount           prometheus.Counter
	TxRevert                       prometheus.Histogram
	TxSuccess                     prometheus.Histogram
}

// New builds a Sink with every metric prefixed by prefix (PROMETHEUS_METRICS_PREFIX,
// possibly empty).
func New(prefix string) *Sink {
	reg := prometheus.NewRegistry()
	name := func(n string) string {
		if prefix == "" {
			return n
		}
		return prefix + "_" + n
	}

	s := &Sink{
		registry: reg,
		ActiveEraID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("active_era_id"), Help: "current active era",
		}),
		EraUpdateDelayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("era_update_delayed"), Help: "1 when delay-shutdown was armed",
		}),
		IsRecoveryModeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("is_recovery_mode_active"), Help: "1 during recovery",
		}),
		LastEraReported: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("last_era_reported"), Help: "most recent reported era",
		}),
		LastFailedEra: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("last_failed_era"), Help: "most recent era whose submission reverted or would have reverted",
		}),
		OracleBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name("oracle_balance"), Help: "parachain balance in smallest unit",
		}, []string{"address"}),
		PreviousEraChangeBlockNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("previous_era_change_block_number"), Help: "the block used for the last report",
		}),
		ParaExceptionsCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: name("para_exceptions_count"), Help: "parachain-side exceptions observed",
		}),
		RelayExceptionsCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: name("relay_exceptions_count"), Help: "relay-side exceptions observed",
		}),
		TxRevert: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: name("tx_revert"), Help: "observed on revert (value 1)", Buckets: []float64{0, 1},
		}),
		TxSuccess: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: name("tx_success"), Help: "observed on success (value 1)", Buckets: []float64{0, 1},
		}),
	}

	reg.MustRegister(
		s.ActiveEraID, s.EraUpdateDelayed, s.IsRecoveryModeActive, s.LastEraReported,
		s.LastFailedEra, s.OracleBalance, s.PreviousEraChangeBlockNumber,
		s.ParaExceptionsCount, s.RelayExceptionsCount, s.TxRevert, s.TxSuccess,
	)
	return s
}

// Handler returns the HTTP handler to mount at the scrape endpoint.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
