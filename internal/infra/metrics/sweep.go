package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"telegram-tier-entitlements/internal/domain/model"
)

func init() {
	register(
		sweepRemovedTotal,
		sweepSkippedTotal,
		sweepAccountFailures,
		sweepDurationSeconds,
		sweepLastRun,
	)
}

var (
	sweepRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_removed_total",
			Help: "Total expired entitlements revoked and removed by the sweep.",
		},
	)

	sweepSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_skipped_total",
			Help: "Ledger rows discarded without a revocation, by drift reason.",
		},
		[]string{"reason"}, // 'missing_account', 'missing_external', 'already_revoked'
	)

	sweepAccountFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_account_failures_total",
			Help: "Accounts whose sweep failed and was deferred to the next run.",
		},
	)

	sweepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Wall time of one full reconciliation sweep.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	sweepLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep.",
		},
	)
)

// ObserveSweep records one completed sweep run.
func ObserveSweep(stats model.SweepStats, seconds float64) {
	sweepRemovedTotal.Add(float64(stats.Removed))
	sweepSkippedTotal.WithLabelValues("missing_account").Add(float64(stats.SkippedMissingAccount))
	sweepSkippedTotal.WithLabelValues("missing_external").Add(float64(stats.SkippedMissingExternal))
	sweepSkippedTotal.WithLabelValues("already_revoked").Add(float64(stats.SkippedAlreadyRevoked))
	sweepAccountFailures.Add(float64(stats.AccountsFailed))
	sweepDurationSeconds.Observe(seconds)
	sweepLastRun.SetToCurrentTime()
}
