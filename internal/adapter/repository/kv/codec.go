// Package kv implements the usecase repositories as JSON documents in a
// usecase.KeyValueStore.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// Keys under which each document is stored.
const (
	KeyTransactions      = "transactions"
	KeyBalances          = "balances"
	KeyUsers             = "users"
	KeyVerificationCodes = "verification_codes"
	KeySessions          = "sessions"
)

// readJSON decodes key into out. found is false when the key was never written.
func readJSON(ctx context.Context, store usecase.KeyValueStore, key string, out any) (found bool, err error) {
	data, err := store.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func writeJSON(ctx context.Context, store usecase.KeyValueStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
