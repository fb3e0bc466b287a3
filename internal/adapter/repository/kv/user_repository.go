package kv

import (
	"context"
	"sync"
	"time"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

type userRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toUserRecord(u *domain.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Verified:     u.Verified,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Verified:     r.Verified,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// UserRepository implements usecase.UserRepository. All users live in one
// document keyed by email.
type UserRepository struct {
	mu    sync.Mutex
	store usecase.KeyValueStore
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(store usecase.KeyValueStore) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) load(ctx context.Context) (map[string]userRecord, error) {
	users := make(map[string]userRecord)
	if _, err := readJSON(ctx, r.store, KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, exists := users[user.Email]; exists {
		return domain.ErrEmailAlreadyRegistered
	}
	users[user.Email] = toUserRecord(user)
	return writeJSON(ctx, r.store, KeyUsers, users)
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, exists := users[user.Email]; !exists {
		return domain.ErrUserNotFound
	}
	users[user.Email] = toUserRecord(user)
	return writeJSON(ctx, r.store, KeyUsers, users)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range users {
		if rec.ID == id {
			return rec.toDomain(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return rec.toDomain(), nil
}
