package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Scan outcomes by validation result (accepted, malformed_payload,
	// signature_mismatch, expired).
	ScanOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_scan_outcomes_total",
			Help: "Count of scanned visit payloads by validation outcome.",
		},
		[]string{"outcome"},
	)

	// Sync sweep item results (sent, network_failure, server_rejected).
	SyncResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_sync_results_total",
			Help: "Count of visit records processed by sync sweeps, by result.",
		},
		[]string{"result"},
	)

	// Duration of one full sync sweep.
	SyncSweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loyalty_sync_sweep_duration_seconds",
		Help:    "Duration of sync engine sweeps against the remote ledger",
		Buckets: prometheus.DefBuckets,
	})

	// Benefits granted by rule name.
	BenefitsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_benefits_granted_total",
			Help: "Count of benefits granted by the rule engine, by rule.",
		},
		[]string{"rule"},
	)

	// Redemption attempts by outcome (issued, reissued, confirmed,
	// cancelled, expired, rejected).
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_redemptions_total",
			Help: "Count of redemption protocol operations by outcome.",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(
		ScanOutcomesTotal,
		SyncResultsTotal,
		SyncSweepDuration,
		BenefitsGrantedTotal,
		RedemptionsTotal,
	)
}
