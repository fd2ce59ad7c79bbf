// Package metrics exposes prometheus collectors for the message query engine.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"msgtree/internal/domain"
)

// Recorder records per-operation latency and failures.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	rowsLoaded  *prometheus.HistogramVec
	deletedRows prometheus.Counter
}

// NewRecorder registers the engine collectors with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "msgtree",
			Name:      "operation_duration_seconds",
			Help:      "Latency of message engine operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"operation"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msgtree",
			Name:      "operation_errors_total",
			Help:      "Failed message engine operations by error kind",
		}, []string{"operation", "kind"}),
		rowsLoaded: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "msgtree",
			Name:      "tree_rows_loaded",
			Help:      "Rows bulk-loaded per tree operation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"operation"}),
		deletedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "msgtree",
			Name:      "messages_deleted_total",
			Help:      "Messages flagged as deleted",
		}),
	}
}

// Observe records one finished operation
func (r *Recorder) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		r.errors.WithLabelValues(op, ErrorKind(err)).Inc()
	}
}

// TreeRows records how many rows a tree operation loaded
func (r *Recorder) TreeRows(op string, n int) {
	if r == nil {
		return
	}
	r.rowsLoaded.WithLabelValues(op).Observe(float64(n))
}

// Deleted counts rows flagged by a delete
func (r *Recorder) Deleted(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.deletedRows.Add(float64(n))
}

// ErrorKind maps an error to a low-cardinality label
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidCursor):
		return "invalid_cursor"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrTreeIntegrity):
		return "tree_integrity"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "other"
	}
}
