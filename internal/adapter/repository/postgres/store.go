package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/coinwallet/internal/domain"
)

const (
	selectValueSQL = `SELECT value FROM kv_store WHERE key = $1`
	upsertValueSQL = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteValueSQL = `DELETE FROM kv_store WHERE key = $1`
)

type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements usecase.KeyValueStore on a single PostgreSQL table.
type Store struct {
	pool    pgxPool
	tx      *TxManager
	retrier *Retrier
}

// NewStore creates a Store backed by a connection pool. The kv_store table is
// created by the migrations.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return newStoreWithPool(pool, NewRetrier(logger))
}

func newStoreWithPool(pool pgxPool, retrier *Retrier) *Store {
	return &Store{
		pool:    pool,
		tx:      newTxManager(pool),
		retrier: retrier,
	}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, selectValueSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Put upserts a single key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.retrier.Retry(ctx, func() error {
		if _, err := s.pool.Exec(ctx, upsertValueSQL, key, value); err != nil {
			return fmt.Errorf("failed to put %s: %w", key, err)
		}
		return nil
	})
}

// PutAll upserts every key inside one transaction.
func (s *Store) PutAll(ctx context.Context, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// fixed order keeps concurrent writers from deadlocking on row locks
	sort.Strings(keys)

	return s.retrier.Retry(ctx, func() error {
		return s.tx.WithTx(ctx, func(tx pgx.Tx) error {
			for _, k := range keys {
				if _, err := tx.Exec(ctx, upsertValueSQL, k, values[k]); err != nil {
					return fmt.Errorf("failed to put %s: %w", k, err)
				}
			}
			return nil
		})
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteValueSQL, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
