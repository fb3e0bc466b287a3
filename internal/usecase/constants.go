package usecase

import "time"

const (
	// DefaultPersistTimeout bounds a single write of ledger state to the store
	DefaultPersistTimeout = 10 * time.Second

	// DefaultPricePollInterval is how often the wallet refreshes market data
	DefaultPricePollInterval = 60 * time.Second

	// DefaultVerificationCodeTTL is how long a sign-up verification code stays valid
	DefaultVerificationCodeTTL = 15 * time.Minute

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
