package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/coinwallet/internal/adapter/http/handler"
	"github.com/iho/coinwallet/internal/adapter/http/middleware"
	"github.com/iho/coinwallet/internal/infrastructure/metrics"
	"github.com/iho/coinwallet/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Logger zerolog.Logger

	HealthHandler      *handler.HealthHandler
	BalanceHandler     *handler.BalanceHandler
	TransactionHandler *handler.TransactionHandler
	TransferHandler    *handler.TransferHandler
	PriceHandler       *handler.PriceHandler
	LedgerHandler      *handler.LedgerHandler
	AuthHandler        *handler.AuthHandler

	// Authenticator backs /auth/me, /auth/signout and, with RequireAuth, every wallet route.
	Authenticator middleware.Authenticator
	RequireAuth   bool

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	var authObserver middleware.AuthObserver
	if cfg.Metrics != nil {
		authObserver = cfg.Metrics
	}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		var requireUser func(http.Handler) http.Handler
		if cfg.Authenticator != nil {
			requireUser = middleware.AuthMiddleware(cfg.Authenticator, authObserver)
		}

		if cfg.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/signup", cfg.AuthHandler.SignUp)
				r.Post("/verify", cfg.AuthHandler.Verify)
				r.Post("/signin", cfg.AuthHandler.SignIn)
				r.Post("/resend", cfg.AuthHandler.Resend)
				r.Get("/verification-code", cfg.AuthHandler.VerificationCode)

				if requireUser != nil {
					r.Group(func(r chi.Router) {
						r.Use(requireUser)
						r.Post("/signout", cfg.AuthHandler.SignOut)
						r.Get("/me", cfg.AuthHandler.Me)
					})
				}
			})
		}

		r.Group(func(r chi.Router) {
			if cfg.RequireAuth && requireUser != nil {
				r.Use(requireUser)
			}

			// Balances
			r.Route("/balances", func(r chi.Router) {
				r.Get("/", cfg.BalanceHandler.List)
				r.Get("/{coin}", cfg.BalanceHandler.Get)
			})

			// Transactions
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", cfg.TransactionHandler.List)
				r.Post("/", cfg.TransactionHandler.Create)
				r.Get("/{id}", cfg.TransactionHandler.Get)
				r.Patch("/{id}", cfg.TransactionHandler.Update)
				r.Delete("/{id}", cfg.TransactionHandler.Delete)
			})

			// Transfers
			r.Post("/transfers", cfg.TransferHandler.Create)

			// Prices
			r.Route("/prices", func(r chi.Router) {
				r.Get("/", cfg.PriceHandler.List)
				r.Post("/refresh", cfg.PriceHandler.Refresh)
				r.Get("/{coin}", cfg.PriceHandler.Get)
				r.Get("/{coin}/sparkline.{format}", cfg.PriceHandler.Sparkline)
			})
			r.Get("/portfolio", cfg.PriceHandler.Portfolio)

			// Ledger
			r.Route("/ledger", func(r chi.Router) {
				r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
				r.Get("/reconciliation", cfg.LedgerHandler.Reconciliation)
			})
		})
	})

	return r
}
