package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ledgersync"

// SyncMetrics records reconciliation outcomes per mode (check, sync, report).
type SyncMetrics struct {
	runs     *prometheus.CounterVec
	missing  *prometheus.GaugeVec
	appended prometheus.Counter
}

// NewSyncMetrics registers the sync collectors on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Completed reconciliation runs.",
	}, []string{"mode"})
	missing := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "missing_records",
		Help:      "Remote payments absent from the ledger at the last run.",
	}, []string{"mode"})
	appended := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "appended_rows_total",
		Help:      "Rows appended to the ledger.",
	})
	reg.MustRegister(runs, missing, appended)
	return &SyncMetrics{runs: runs, missing: missing, appended: appended}
}

// ObserveSync records one run.
func (m *SyncMetrics) ObserveSync(mode string, missing, appended int) {
	if m == nil || m.runs == nil {
		return
	}
	mode = label(mode)
	m.runs.WithLabelValues(mode).Inc()
	m.missing.WithLabelValues(mode).Set(float64(missing))
	if appended > 0 {
		m.appended.Add(float64(appended))
	}
}
