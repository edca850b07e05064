package compiler

import (
	"fmt"

	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/prometheus/client_golang/prometheus"
)

// unknownLabel replaces label values that did not come from a known
// operation or dialect, keeping series cardinality fixed.
const unknownLabel = "unknown"

// Metrics holds the compiler's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	compiled  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	failed    *prometheus.CounterVec
	cacheHits prometheus.Counter
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		compiled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlgate_statements_compiled_total",
				Help: "Total number of statements compiled",
			},
			[]string{"dialect", "operation"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlgate_statements_rejected_total",
				Help: "Total number of documents rejected by policy",
			},
			[]string{"reason"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlgate_statements_failed_total",
				Help: "Total number of documents that could not be compiled",
			},
			[]string{"dialect", "operation"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_cache_hits_total",
			Help: "Total number of statements served from the compile cache",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlgate_compile_duration_seconds",
				Help:    "Time spent compiling a document",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"operation"},
		),
	}
	for _, c := range []prometheus.Collector{m.compiled, m.rejected, m.failed, m.cacheHits, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering compiler metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(e CompileEvent) {
	if m == nil {
		return
	}
	d, op := dialectLabel(e.Dialect), operationLabel(e.Operation)
	switch e.Type {
	case EventCompiled:
		m.compiled.WithLabelValues(d, op).Inc()
		if e.Cached {
			m.cacheHits.Inc()
		}
	case EventRejected:
		m.rejected.WithLabelValues(e.Reason).Inc()
	case EventFailed:
		m.failed.WithLabelValues(d, op).Inc()
	}
	m.duration.WithLabelValues(op).Observe(e.Duration.Seconds())
}

func dialectLabel(name string) string {
	kind, err := dialect.ParseKind(name)
	if err != nil {
		return unknownLabel
	}
	return string(kind)
}

func operationLabel(op Operation) string {
	switch op {
	case OperationSelect, OperationInsert, OperationUpdate, OperationDelete:
		return string(op)
	}
	return unknownLabel
}
