package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// MockLedgerRepository is an in-memory LedgerRepository with overridable behaviour.
type MockLedgerRepository struct {
	mu       sync.RWMutex
	txs      []*domain.Transaction
	balances map[string]decimal.Decimal
	saves    int

	LoadTransactionsFunc func(ctx context.Context) ([]*domain.Transaction, error)
	LoadBalancesFunc     func(ctx context.Context) (map[string]decimal.Decimal, error)
	SaveLedgerFunc       func(ctx context.Context, txs []*domain.Transaction, balances map[string]decimal.Decimal) error
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{}
}

func (m *MockLedgerRepository) LoadTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	if m.LoadTransactionsFunc != nil {
		return m.LoadTransactionsFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}

func (m *MockLedgerRepository) LoadBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	if m.LoadBalancesFunc != nil {
		return m.LoadBalancesFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.balances == nil {
		return nil, domain.ErrKeyNotFound
	}
	out := make(map[string]decimal.Decimal, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return out, nil
}

func (m *MockLedgerRepository) SaveLedger(ctx context.Context, txs []*domain.Transaction, balances map[string]decimal.Decimal) error {
	if m.SaveLedgerFunc != nil {
		return m.SaveLedgerFunc(ctx, txs, balances)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		m.txs = append(m.txs, tx.Clone())
	}
	m.balances = make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		m.balances[k] = v
	}
	m.saves++
	return nil
}

// Saves returns how many times SaveLedger persisted state.
func (m *MockLedgerRepository) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	CreateFunc func(ctx context.Context, user *domain.User) error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MockVerificationCodeRepository is a mock implementation of VerificationCodeRepository.
type MockVerificationCodeRepository struct {
	mu    sync.RWMutex
	codes map[string]*domain.VerificationCode
}

func NewMockVerificationCodeRepository() *MockVerificationCodeRepository {
	return &MockVerificationCodeRepository{
		codes: make(map[string]*domain.VerificationCode),
	}
}

func (m *MockVerificationCodeRepository) Save(ctx context.Context, code *domain.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *code
	m.codes[code.Email] = &cp
	return nil
}

func (m *MockVerificationCodeRepository) Get(ctx context.Context, email string) (*domain.VerificationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.codes[email]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrKeyNotFound
}

func (m *MockVerificationCodeRepository) Delete(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

// MockSessionRepository is a mock implementation of SessionRepository.
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[string]*domain.Session),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *MockSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%d", m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	m.data[key] = response
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockMetricsRecorder counts observations.
type MockMetricsRecorder struct {
	mu           sync.Mutex
	Committed    map[string]int
	Rejected     map[string]int
	Balances     map[string]decimal.Decimal
	PriceErrors  int
	PriceOK      int
	Unreconciled []string
}

func NewMockMetricsRecorder() *MockMetricsRecorder {
	return &MockMetricsRecorder{
		Committed: make(map[string]int),
		Rejected:  make(map[string]int),
		Balances:  make(map[string]decimal.Decimal),
	}
}

func (m *MockMetricsRecorder) TransactionCommitted(operation string, tx *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Committed[operation]++
}

func (m *MockMetricsRecorder) TransactionRejected(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected[operation]++
}

func (m *MockMetricsRecorder) BalanceChanged(coinKey string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[coinKey] = balance
}

func (m *MockMetricsRecorder) PriceFetched(err error, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.PriceErrors++
		return
	}
	m.PriceOK++
}

func (m *MockMetricsRecorder) Reconciled(result *usecase.ReconciliationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !result.IsReconciled {
		m.Unreconciled = append(m.Unreconciled, result.CoinKey)
	}
}

// PriceErrorCount returns how many failed fetches were observed.
func (m *MockMetricsRecorder) PriceErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PriceErrors
}

// StubPriceFeed returns canned market data or an error, and counts calls.
type StubPriceFeed struct {
	mu    sync.Mutex
	calls int

	Data map[string]*domain.MarketData
	Err  error
	// Block, when set, is received from before returning so tests can hold a fetch in flight.
	Block chan struct{}
}

func (s *StubPriceFeed) FetchMarketData(ctx context.Context, ids []string) (map[string]*domain.MarketData, error) {
	s.mu.Lock()
	s.calls++
	data, err, block := s.Data, s.Err, s.Block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.MarketData, len(data))
	for k, v := range data {
		out[k] = v.Clone()
	}
	return out, nil
}

// Set swaps the canned response.
func (s *StubPriceFeed) Set(data map[string]*domain.MarketData, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data, s.Err = data, err
}

// Calls returns how many fetches were made.
func (s *StubPriceFeed) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
