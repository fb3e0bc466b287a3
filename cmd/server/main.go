package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/coinwallet/internal/adapter/http"
	"github.com/iho/coinwallet/internal/adapter/http/handler"
	"github.com/iho/coinwallet/internal/adapter/http/middleware"
	"github.com/iho/coinwallet/internal/adapter/pricefeed"
	"github.com/iho/coinwallet/internal/adapter/pricefeed/coingecko"
	"github.com/iho/coinwallet/internal/adapter/repository/kv"
	redisRepo "github.com/iho/coinwallet/internal/adapter/repository/redis"
	"github.com/iho/coinwallet/internal/infrastructure/auth"
	"github.com/iho/coinwallet/internal/infrastructure/config"
	"github.com/iho/coinwallet/internal/infrastructure/idgen"
	"github.com/iho/coinwallet/internal/infrastructure/logger"
	"github.com/iho/coinwallet/internal/infrastructure/metrics"
	"github.com/iho/coinwallet/internal/infrastructure/reconciler"
	"github.com/iho/coinwallet/internal/infrastructure/redis"
	"github.com/iho/coinwallet/internal/usecase"
)

const limiterIdleTimeout = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error().Err(err).Msg("server exited with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewWithRegistry(reg)

	// Redis is optional unless it is the store backend.
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
		logger.Info().Msg("connected to redis")
		if cfg.StoreBackend != config.StoreRedis {
			defer redisClient.Close()
		}
	}

	store, checkers, err := openStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.Close()
	if redisClient != nil {
		checkers = append(checkers, handler.CheckerFunc{
			Label: "redis",
			Fn:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	// Ledger
	policy, err := usecase.ParseOverdraftPolicy(cfg.LedgerOverdraftPolicy)
	if err != nil {
		return err
	}
	ledger := usecase.NewLedgerEngine(
		kv.NewLedgerRepository(store),
		idgen.NewULIDGenerator(),
		usecase.WithOverdraftPolicy(policy),
		usecase.WithLedgerMetrics(m),
		usecase.WithLedgerLogger(logger),
	)
	if err := ledger.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	logger.Info().
		Str("store", cfg.StoreBackend).
		Str("overdraft_policy", string(policy)).
		Int("transactions", len(ledger.Transactions())).
		Msg("ledger loaded")

	// Prices
	var feed usecase.PriceFeed = coingecko.NewClient(cfg.PriceAPIURL,
		coingecko.WithHTTPClient(&http.Client{Timeout: cfg.PriceHTTPTimeout}),
		coingecko.WithLogger(logger),
	)
	if redisClient != nil && cfg.PriceCacheTTL > 0 {
		feed = pricefeed.NewCachedFeed(feed, redisRepo.NewCache(redisClient), cfg.PriceCacheTTL, logger)
	}

	wallet := usecase.NewWalletUseCase(usecase.WalletConfig{
		Ledger:       ledger,
		Feed:         feed,
		Metrics:      m,
		Logger:       logger,
		PollInterval: cfg.PricePollInterval,
	})
	wallet.Start(ctx)
	defer wallet.Stop()

	// Reconciliation
	reconciliation := usecase.NewReconciliationUseCase(ledger, m)
	worker := reconciler.NewWorker(reconciler.Config{
		Reporter: reconciliation,
		Logger:   logger,
		Interval: cfg.LedgerReconcileInterval,
	})
	go worker.Start(ctx)

	routerCfg := httpAdapter.RouterConfig{
		Logger:             logger,
		HealthHandler:      handler.NewHealthHandler(checkers...),
		BalanceHandler:     handler.NewBalanceHandler(ledger),
		TransactionHandler: handler.NewTransactionHandler(wallet, ledger),
		TransferHandler:    handler.NewTransferHandler(wallet),
		PriceHandler:       handler.NewPriceHandler(wallet),
		LedgerHandler:      handler.NewLedgerHandler(reconciliation),
		RequireAuth:        cfg.AuthEnabled,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	// Auth
	if cfg.JWTSecret != "" {
		authUC := usecase.NewAuthUseCase(usecase.AuthConfig{
			Users:    kv.NewUserRepository(store),
			Codes:    kv.NewVerificationCodeRepository(store),
			Sessions: kv.NewSessionRepository(store, kv.WithSessionMaxAge(cfg.JWTExpiration)),
			Tokens:   auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
			IDs:      idgen.NewUUIDGenerator(),
			CodeTTL:  cfg.VerificationCodeTTL,
		})
		routerCfg.AuthHandler = handler.NewAuthHandler(authUC, m)
		routerCfg.Authenticator = authUC
	} else {
		logger.Warn().Msg("JWT_SECRET not set; auth endpoints disabled")
	}

	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	}

	if cfg.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
		routerCfg.RateLimiter = rl
		go cleanupLimiters(ctx, rl)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(limiterIdleTimeout)
		}
	}
}
