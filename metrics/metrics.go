// Package metrics has the Prometheus collectors of the engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/brunokim/prolog-wam/wam"
)

// Query outcomes.
const (
	Success   = "success"
	Failure   = "failure"
	Exhausted = "exhausted"
	Illegal   = "illegal"
)

// Program edits.
const (
	Assert  = "assert"
	Consult = "consult"
	Load    = "load"
	Reset   = "reset"
)

// Metrics holds the collectors for a solver.
type Metrics struct {
	// queries counts queries by outcome
	queries *prometheus.CounterVec
	// solutions counts solutions by outcome
	solutions *prometheus.CounterVec
	ops       prometheus.Counter
	// backtracks counts backtracks over all solutions
	backtracks    prometheus.Counter
	queryDuration prometheus.Histogram
	// edits counts program edits by operation
	edits       *prometheus.CounterVec
	programSize prometheus.Gauge
}

// New creates the collectors and registers them in reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wam_queries_total",
			Help: "Total queries by outcome",
		}, []string{"outcome"}),
		solutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wam_solutions_total",
			Help: "Total solutions by outcome",
		}, []string{"outcome"}),
		ops: f.NewCounter(prometheus.CounterOpts{
			Name: "wam_ops_total",
			Help: "Total statements executed",
		}),
		backtracks: f.NewCounter(prometheus.CounterOpts{
			Name: "wam_backtracks_total",
			Help: "Total backtracks",
		}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wam_query_duration_seconds",
			Help:    "Query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}),
		edits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wam_program_edits_total",
			Help: "Total program edits by operation",
		}, []string{"operation"}),
		programSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "wam_program_statements",
			Help: "Number of statements in the program",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the collectors registered in the default Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Outcome classifies a solution.
func Outcome(sol wam.Solution) string {
	switch {
	case sol.Succeed:
		return Success
	case sol.Exhausted:
		return Exhausted
	default:
		return Failure
	}
}

// ObserveSolution records the counters of a single solution. A nil receiver
// records nothing.
func (m *Metrics) ObserveSolution(sol wam.Solution) {
	if m == nil {
		return
	}
	m.solutions.WithLabelValues(Outcome(sol)).Inc()
	m.ops.Add(float64(sol.OpCount))
	m.backtracks.Add(float64(sol.BacktrackCount))
}

// ObserveQuery records a finished query.
func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

// ProgramEdit records a change to the program, and its new size.
func (m *Metrics) ProgramEdit(operation string, size int) {
	if m == nil {
		return
	}
	m.edits.WithLabelValues(operation).Inc()
	m.programSize.Set(float64(size))
}
