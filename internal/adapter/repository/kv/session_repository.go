package kv

import (
	"context"
	"sync"
	"time"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

type sessionRecord struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionRepository implements usecase.SessionRepository.
type SessionRepository struct {
	mu     sync.Mutex
	store  usecase.KeyValueStore
	maxAge time.Duration
}

// SessionOption configures a SessionRepository.
type SessionOption func(*SessionRepository)

// WithSessionMaxAge prunes sessions older than d whenever a new one is created.
// It should match the token lifetime; zero keeps every session.
func WithSessionMaxAge(d time.Duration) SessionOption {
	return func(r *SessionRepository) {
		r.maxAge = d
	}
}

func NewSessionRepository(store usecase.KeyValueStore, opts ...SessionOption) *SessionRepository {
	r := &SessionRepository{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SessionRepository) load(ctx context.Context) (map[string]sessionRecord, error) {
	sessions := make(map[string]sessionRecord)
	if _, err := readJSON(ctx, r.store, KeySessions, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return err
	}
	if r.maxAge > 0 {
		cutoff := session.CreatedAt.Add(-r.maxAge)
		for id, rec := range sessions {
			if rec.CreatedAt.Before(cutoff) {
				delete(sessions, id)
			}
		}
	}
	sessions[session.ID] = sessionRecord{UserID: session.UserID, CreatedAt: session.CreatedAt}
	return writeJSON(ctx, r.store, KeySessions, sessions)
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &domain.Session{ID: id, UserID: rec.UserID, CreatedAt: rec.CreatedAt}, nil
}

// Delete is a no-op for unknown sessions.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := sessions[id]; !ok {
		return nil
	}
	delete(sessions, id)
	return writeJSON(ctx, r.store, KeySessions, sessions)
}
