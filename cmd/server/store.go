package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/coinwallet/internal/adapter/http/handler"
	fileRepo "github.com/iho/coinwallet/internal/adapter/repository/file"
	memoryRepo "github.com/iho/coinwallet/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/coinwallet/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/coinwallet/internal/adapter/repository/redis"
	sqliteRepo "github.com/iho/coinwallet/internal/adapter/repository/sqlite"
	"github.com/iho/coinwallet/internal/infrastructure/config"
	"github.com/iho/coinwallet/internal/infrastructure/postgres"
	"github.com/iho/coinwallet/internal/usecase"
)

const sqliteFileName = "coinwallet.db"

// openStore builds the key-value backend named by cfg.StoreBackend along with
// readiness checks for anything it dials. redisClient is required for the redis backend.
func openStore(ctx context.Context, cfg *config.Config, redisClient *goredis.Client, logger zerolog.Logger) (usecase.KeyValueStore, []handler.Checker, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store; ledger state is lost on restart")
		return memoryRepo.NewStore(), nil, nil

	case config.StoreFile:
		store, err := fileRepo.NewStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.StorePath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		store, err := sqliteRepo.Open(filepath.Join(cfg.StorePath, sqliteFileName))
		if err != nil {
			return nil, nil, err
		}
		return store, []handler.Checker{handler.CheckerFunc{Label: "sqlite", Fn: store.Ping}}, nil

	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis store requires REDIS_URL")
		}
		return redisRepo.NewStore(redisClient), nil, nil

	case config.StorePostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("connected to postgres")
		return postgresRepo.NewStore(pool, logger), []handler.Checker{handler.CheckerFunc{Label: "postgres", Fn: pool.Ping}}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
