// Package api serves balance detection over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paymentScope/internal/model"
	"paymentScope/internal/storage"
)

// BalanceDetector computes the balance of a request.
type BalanceDetector interface {
	GetBalance(ctx context.Context, req *model.Request) model.BalanceWithEvents
}

// Options configures the router. Storage and Gatherer are optional.
type Options struct {
	Storage  storage.Storage
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	// Now is the clock used to stamp snapshots.
	Now func() time.Time
}

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(detector BalanceDetector, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	h := &Handlers{
		detector: detector,
		storage:  opts.Storage,
		logger:   logger,
		now:      now,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))
		r.Post("/balance", h.GetBalance)
		r.Get("/reference", h.GetReference)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
