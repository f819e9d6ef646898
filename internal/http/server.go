package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/config"
	"github.com/Clark-Hu/movie-reviews/internal/logging"
	"github.com/Clark-Hu/movie-reviews/internal/metrics"
	"github.com/Clark-Hu/movie-reviews/internal/reviews"
	"github.com/Clark-Hu/movie-reviews/internal/users"
)

// HealthChecker reports database reachability and round-trip latency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// Services bundles the application services behind the HTTP surface.
type Services struct {
	Catalog *catalog.Service
	Reviews *reviews.Ledger
	Users   *users.Service
	Tokens  *auth.TokenManager
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	health  HealthChecker
	svc     Services
	logger  zerolog.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, svc Services, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		cfg:    cfg,
		health: health,
		svc:    svc,
		logger: logger,
		router: r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit(s.cfg.RateLimitRequests))
		r.Use(s.authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimit(s.cfg.AuthRateLimit)).Post("/register", s.handleRegister)
			r.With(s.rateLimit(s.cfg.AuthRateLimit)).Post("/login", s.handleLogin)
			r.Get("/me", s.handleGetMe)
		})

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", s.handleListMovies)
			r.Get("/{id}", s.handleGetMovie)
			r.Get("/{id}/reviews", s.handleListMovieReviews)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/", s.handleCreateMovie)
				r.Put("/{id}", s.handleUpdateMovie)
				r.Delete("/{id}", s.handleDeleteMovie)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/movie/{id}", s.handleListMovieReviews)
			r.Post("/", s.handleCreateReview)
			r.Put("/{id}", s.handleUpdateReview)
			r.Delete("/{id}", s.handleDeleteReview)
		})

		r.Route("/users", func(r chi.Router) {
			r.Route("/me", func(r chi.Router) {
				r.Get("/", s.handleGetMe)
				r.Put("/", s.handleUpdateMe)
				r.Put("/password", s.handleChangePassword)
				r.Put("/profile-picture", s.handleSetProfilePicture)
				r.Get("/reviews", s.handleMyReviews)
				r.Get("/reviews/count", s.handleMyReviewCount)
				r.Get("/watchlist", s.handleWatchlist)
				r.Post("/watchlist/{movieID}", s.handleAddToWatchlist)
				r.Delete("/watchlist/{movieID}", s.handleRemoveFromWatchlist)
			})
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/", s.handleListUsers)
				r.Get("/{id}", s.handleGetUser)
				r.Put("/{id}", s.handleUpdateUser)
				r.Put("/{id}/role", s.handleSetRole)
			})
		})
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status   string          `json:"status"`
	Database *databaseHealth `json:"database,omitempty"`
}

type databaseHealth struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latencyMs"`
	Error     string  `json:"error,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.health.HealthCheck(ctx); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	latency, err := s.health.HealthCheck(ctx)
	db := &databaseHealth{Status: "up", LatencyMs: float64(latency.Microseconds()) / 1000}
	if err != nil {
		s.requestLogger(r).Warn().Err(err).Msg("database health check failed")
		db.Status = "down"
		db.Error = "database unreachable"
		s.respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: db})
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: db})
}

// rateLimit limits requests per client IP over the configured window.
// A non-positive limit disables it.
func (s *Server) rateLimit(requests int) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, s.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
		}),
	)
}
