package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
)

// KeyValueStore is the durable store the wallet persists its state into.
// Get returns domain.ErrKeyNotFound for a key that was never written.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// PutAll writes every key or none of them.
	PutAll(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// LedgerRepository defines data access for the transaction log and cached balances.
type LedgerRepository interface {
	// LoadTransactions returns the log newest first, or an empty log when nothing was saved.
	LoadTransactions(ctx context.Context) ([]*domain.Transaction, error)
	// LoadBalances returns domain.ErrKeyNotFound when balances were never saved.
	LoadBalances(ctx context.Context) (map[string]decimal.Decimal, error)
	// SaveLedger persists the log and balances as one unit.
	SaveLedger(ctx context.Context, txs []*domain.Transaction, balances map[string]decimal.Decimal) error
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// VerificationCodeRepository defines data access for pending email verification codes.
type VerificationCodeRepository interface {
	Save(ctx context.Context, code *domain.VerificationCode) error
	Get(ctx context.Context, email string) (*domain.VerificationCode, error)
	Delete(ctx context.Context, email string) error
}

// SessionRepository defines data access for sign-in sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// PriceFeed fetches market data for a set of coin ids.
type PriceFeed interface {
	FetchMarketData(ctx context.Context, ids []string) (map[string]*domain.MarketData, error)
}

// TokenManager issues and verifies session tokens.
type TokenManager interface {
	Generate(user *domain.User, sessionID string) (string, error)
	Verify(token string) (*domain.TokenClaims, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key so the request can be retried.
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder observes ledger and price activity.
type MetricsRecorder interface {
	TransactionCommitted(operation string, tx *domain.Transaction)
	TransactionRejected(operation string, err error)
	BalanceChanged(coinKey string, balance decimal.Decimal)
	PriceFetched(err error, duration time.Duration)
	Reconciled(result *ReconciliationResult)
}

type nopMetrics struct{}

func (nopMetrics) TransactionCommitted(string, *domain.Transaction) {}
func (nopMetrics) TransactionRejected(string, error)                {}
func (nopMetrics) BalanceChanged(string, decimal.Decimal)           {}
func (nopMetrics) PriceFetched(error, time.Duration)                {}
func (nopMetrics) Reconciled(*ReconciliationResult)                 {}
