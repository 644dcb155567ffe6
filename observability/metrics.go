package observability

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	surplusOnce sync.Once
	surplusReg  *SurplusMetrics
)

// SurplusMetrics captures metrics for swap-and-donate settlement.
type SurplusMetrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	feesCollected *prometheus.CounterVec
}

// Surplus returns the singleton metrics registry for the surplus engine.
func Surplus() *SurplusMetrics {
	surplusOnce.Do(func() {
		surplusReg = &SurplusMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "surplus",
				Subsystem: "engine",
				Name:      "requests_total",
				Help:      "Count of surplus engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "surplus",
				Subsystem: "engine",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for surplus engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "surplus",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Count of surplus engine failures segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			feesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "surplus",
				Subsystem: "engine",
				Name:      "protocol_fees_collected_total",
				Help:      "Protocol fees credited to the fee ledger, in token base units.",
			}, []string{"token"}),
		}
		prometheus.MustRegister(
			surplusReg.requests,
			surplusReg.latency,
			surplusReg.errors,
			surplusReg.feesCollected,
		)
	})
	return surplusReg
}

// Observe records the execution metrics for a surplus operation. The error
// reason label uses the innermost wrapped error so parameterised messages do
// not explode label cardinality.
func (m *SurplusMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(op, errorReason(err)).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFeeCollected adds amount to the collected-fees counter for token.
func (m *SurplusMetrics) RecordFeeCollected(token string, amount *uint256.Int) {
	if m == nil || amount == nil || amount.IsZero() {
		return
	}
	label := strings.ToLower(strings.TrimSpace(token))
	if label == "" {
		label = "unknown"
	}
	m.feesCollected.WithLabelValues(label).Add(amount.Float64())
}

func errorReason(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	reason := strings.TrimSpace(err.Error())
	if reason == "" {
		return "unknown"
	}
	return reason
}
