// Package metrics provides Prometheus instrumentation for the decision core.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsTotal counts processed transactions by kind and decision.
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paisawatch",
			Name:      "transactions_total",
			Help:      "Total transactions processed by kind and decision.",
		},
		[]string{"kind", "decision"},
	)

	// RiskScores observes transaction risk scores by resulting level.
	RiskScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paisawatch",
			Name:      "risk_score",
			Help:      "Risk scores of processed transactions.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.85, 1.0},
		},
		[]string{"level"},
	)

	// PatternsDetectedTotal counts behavioral pattern detections by type.
	PatternsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paisawatch",
			Name:      "patterns_detected_total",
			Help:      "Total behavioral patterns detected by type.",
		},
		[]string{"type"},
	)

	// OverridesActive tracks currently open emergency override windows.
	OverridesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "paisawatch",
		Name:      "overrides_active",
		Help:      "Number of currently open emergency override windows.",
	})

	// BaselineRefreshesTotal counts baseline recomputations.
	BaselineRefreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "paisawatch",
		Name:      "baseline_refreshes_total",
		Help:      "Total behavioral baseline recomputations.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "paisawatch", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "paisawatch", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "paisawatch", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "paisawatch", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		TransactionsTotal,
		RiskScores,
		PatternsDetectedTotal,
		OverridesActive,
		BaselineRefreshesTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// TransactionProcessed records one processed transaction.
func TransactionProcessed(kind, decision string) {
	TransactionsTotal.WithLabelValues(kind, decision).Inc()
}

// RiskScoreObserved records one risk assessment.
func RiskScoreObserved(level string, score float64) {
	RiskScores.WithLabelValues(level).Observe(score)
}

// PatternDetected records one behavioral pattern detection.
func PatternDetected(patternType string) {
	PatternsDetectedTotal.WithLabelValues(patternType).Inc()
}

// OverrideToggled adjusts the active-override gauge.
func OverrideToggled(enabled bool) {
	if enabled {
		OverridesActive.Inc()
	} else {
		OverridesActive.Dec()
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when ctx
// is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}
