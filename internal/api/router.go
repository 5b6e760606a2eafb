package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/handler"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/auth"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
)

const requestIDHeader = "X-Request-ID"

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

// SetupRouter registers the gateway endpoints last: /{gateway} would
// otherwise shadow the fixed paths.
func SetupRouter(h *handler.Handler, metrics http.Handler, jwtSecret string) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestContext)

	admin := auth.AdminMiddleware(jwtSecret)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics).Methods(http.MethodGet)

	r.Handle("/webhooks/{trx_id}/resend", admin(metricsMiddleware(h.Resend))).Methods(http.MethodPost)
	r.Handle("/reconcile/{gateway}/{trx_id}", admin(metricsMiddleware(h.Reconcile))).Methods(http.MethodPost)

	r.HandleFunc("/{gateway}", metricsMiddleware(h.Notify)).Methods(http.MethodPost)
	r.HandleFunc("/{gateway}/{action}", metricsMiddleware(h.Notify)).Methods(http.MethodPost)
	return r
}

func metricsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		RequestCounter.WithLabelValues(r.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// requestContext tags every request with an id and stores a logger
// carrying it.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		logger := slog.Default().With("request_id", id)
		next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), logger)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
