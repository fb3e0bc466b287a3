package kv

import (
	"context"
	"sync"
	"time"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

type verificationCodeRecord struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerificationCodeRepository implements usecase.VerificationCodeRepository.
type VerificationCodeRepository struct {
	mu    sync.Mutex
	store usecase.KeyValueStore
}

func NewVerificationCodeRepository(store usecase.KeyValueStore) *VerificationCodeRepository {
	return &VerificationCodeRepository{store: store}
}

func (r *VerificationCodeRepository) load(ctx context.Context) (map[string]verificationCodeRecord, error) {
	codes := make(map[string]verificationCodeRecord)
	if _, err := readJSON(ctx, r.store, KeyVerificationCodes, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// Save replaces any pending code for the same email.
func (r *VerificationCodeRepository) Save(ctx context.Context, code *domain.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes, err := r.load(ctx)
	if err != nil {
		return err
	}
	codes[code.Email] = verificationCodeRecord{Code: code.Code, ExpiresAt: code.ExpiresAt}
	return writeJSON(ctx, r.store, KeyVerificationCodes, codes)
}

// Get returns domain.ErrKeyNotFound when no code is pending for email.
func (r *VerificationCodeRepository) Get(ctx context.Context, email string) (*domain.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := codes[email]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return &domain.VerificationCode{Email: email, Code: rec.Code, ExpiresAt: rec.ExpiresAt}, nil
}

func (r *VerificationCodeRepository) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := codes[email]; !ok {
		return nil
	}
	delete(codes, email)
	return writeJSON(ctx, r.store, KeyVerificationCodes, codes)
}
