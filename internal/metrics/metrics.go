package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_reviews_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Review ledger
	ReviewMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_reviews_review_mutations_total",
			Help: "Review create/update/delete attempts by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Aggregation engine
	AggregateRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_reviews_aggregate_recomputes_total",
			Help: "Movie rating aggregate recomputations by outcome",
		},
		[]string{"outcome"},
	)

	AggregateRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "movie_reviews_aggregate_recompute_duration_seconds",
			Help:    "Duration of a single movie aggregate recomputation",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Access control
	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_reviews_access_denials_total",
			Help: "Rejected capability checks by requirement",
		},
		[]string{"requirement"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordReviewMutation counts a ledger operation. kind is the apperr kind
// name for failures, or empty on success.
func RecordReviewMutation(operation, kind string) {
	if kind == "" {
		kind = "success"
	}
	ReviewMutations.WithLabelValues(operation, kind).Inc()
}

// RecordRecompute records one aggregate recomputation.
func RecordRecompute(duration time.Duration, err error) {
	AggregateRecomputes.WithLabelValues(outcome(err)).Inc()
	AggregateRecomputeDuration.Observe(duration.Seconds())
}

// RecordAccessDenied counts a failed capability check.
func RecordAccessDenied(requirement string) {
	AccessDenials.WithLabelValues(requirement).Inc()
}

// Instrument observes request latency labelled by the matched chi route
// pattern, keeping label cardinality bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
