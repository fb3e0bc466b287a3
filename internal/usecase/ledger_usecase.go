package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
)

// ErrInconsistentLedger is returned when cached balances disagree with a replay of the log.
var ErrInconsistentLedger = errors.New("ledger inconsistency detected")

// OverdraftPolicy controls what happens when a mutation would drive a balance below zero.
type OverdraftPolicy string

const (
	// OverdraftReject fails the mutation with domain.ErrInsufficientFunds.
	OverdraftReject OverdraftPolicy = "reject"
	// OverdraftClamp floors every balance write at zero.
	OverdraftClamp OverdraftPolicy = "clamp"
)

// ParseOverdraftPolicy parses a policy name, defaulting to reject when empty.
func ParseOverdraftPolicy(s string) (OverdraftPolicy, error) {
	switch OverdraftPolicy(s) {
	case "", OverdraftReject:
		return OverdraftReject, nil
	case OverdraftClamp:
		return OverdraftClamp, nil
	default:
		return "", fmt.Errorf("unknown overdraft policy %q", s)
	}
}

// CreateTransactionInput represents input for recording a transaction.
type CreateTransactionInput struct {
	CoinKey   string
	Amount    decimal.Decimal
	ToAddress string
	Type      domain.TransactionType
}

// TransactionChanges lists the fields an update may replace. Nil fields are kept.
type TransactionChanges struct {
	CoinKey   *string
	Amount    *decimal.Decimal
	Type      *domain.TransactionType
	ToAddress *string
	Date      *time.Time
}

// ListTransactionsInput filters and paginates the log.
type ListTransactionsInput struct {
	CoinKey string
	Limit   int
	Offset  int
}

// LedgerSnapshot is a consistent copy of the ledger state.
type LedgerSnapshot struct {
	Seed         []*domain.CoinBalance
	Balances     map[string]*domain.CoinBalance
	Transactions []*domain.Transaction
	Policy       OverdraftPolicy
}

// LedgerEngine owns coin balances and the transaction log as one consistency unit.
// Every mutation is validated, applied to copies, persisted, and only then made visible.
type LedgerEngine struct {
	repo    LedgerRepository
	idGen   IDGenerator
	metrics MetricsRecorder
	logger  zerolog.Logger
	policy  OverdraftPolicy
	now     func() time.Time

	mu           sync.RWMutex
	seed         []*domain.CoinBalance
	order        []string
	balances     map[string]*domain.CoinBalance
	transactions []*domain.Transaction // newest first
}

// LedgerOption configures a LedgerEngine.
type LedgerOption func(*LedgerEngine)

// WithOverdraftPolicy sets the overdraft policy. The default is OverdraftReject.
func WithOverdraftPolicy(policy OverdraftPolicy) LedgerOption {
	return func(e *LedgerEngine) {
		e.policy = policy
	}
}

// WithLedgerMetrics attaches a metrics recorder.
func WithLedgerMetrics(m MetricsRecorder) LedgerOption {
	return func(e *LedgerEngine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLedgerLogger sets the logger used for load-time repairs.
func WithLedgerLogger(logger zerolog.Logger) LedgerOption {
	return func(e *LedgerEngine) {
		e.logger = logger
	}
}

// WithLedgerClock overrides the time source used to stamp transactions.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(e *LedgerEngine) {
		e.now = now
	}
}

// WithSeedBalances replaces the default seeded coin set.
func WithSeedBalances(seed []*domain.CoinBalance) LedgerOption {
	return func(e *LedgerEngine) {
		e.seed = cloneSeed(seed)
	}
}

// NewLedgerEngine creates a ledger engine holding the seed balances and an empty log.
// Call Load to restore persisted state.
func NewLedgerEngine(repo LedgerRepository, idGen IDGenerator, opts ...LedgerOption) *LedgerEngine {
	e := &LedgerEngine{
		repo:    repo,
		idGen:   idGen,
		metrics: nopMetrics{},
		logger:  zerolog.Nop(),
		policy:  OverdraftReject,
		now:     func() time.Time { return time.Now().UTC() },
		seed:    domain.SeedBalances(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.order = make([]string, 0, len(e.seed))
	for _, c := range e.seed {
		e.order = append(e.order, c.Key)
	}
	e.balances = domain.ReplayBalances(e.seed, nil, false)
	e.transactions = []*domain.Transaction{}

	return e
}

// Policy returns the configured overdraft policy.
func (e *LedgerEngine) Policy() OverdraftPolicy {
	return e.policy
}

// Load restores the log and balances from the repository. When balances were
// never persisted they are rebuilt by replaying the log over the seed. Under
// OverdraftReject the replay is exact, so stored balances that disagree with it
// are replaced by the replay and written back.
func (e *LedgerEngine) Load(ctx context.Context) error {
	txs, err := e.repo.LoadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	stored, err := e.repo.LoadBalances(ctx)
	var balances map[string]*domain.CoinBalance
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		balances = domain.ReplayBalances(e.seed, txs, e.policy == OverdraftClamp)
	case err != nil:
		return fmt.Errorf("failed to load balances: %w", err)
	default:
		balances = domain.ReplayBalances(e.seed, nil, false)
		for key, amount := range stored {
			if coin, ok := balances[key]; ok {
				coin.Balance = amount
			}
		}
		if e.policy == OverdraftReject {
			balances = e.repairBalances(ctx, txs, balances)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.transactions = txs
	e.balances = balances
	for _, key := range e.order {
		e.metrics.BalanceChanged(key, balances[key].Balance)
	}

	return nil
}

// Create validates and records a new transaction, applying its effect to the coin balance.
func (e *LedgerEngine) Create(ctx context.Context, input CreateTransactionInput) (*domain.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.create(ctx, input)
	if err != nil {
		e.metrics.TransactionRejected("create", err)
		return nil, err
	}

	e.metrics.TransactionCommitted("create", tx)
	return tx.Clone(), nil
}

func (e *LedgerEngine) create(ctx context.Context, input CreateTransactionInput) (*domain.Transaction, error) {
	coin, ok := e.balances[input.CoinKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCoin, input.CoinKey)
	}

	tx := &domain.Transaction{
		CoinKey:   coin.Key,
		Symbol:    coin.Symbol,
		Amount:    input.Amount,
		Type:      input.Type,
		ToAddress: domain.NormalizeAddress(input.ToAddress),
		Date:      e.now(),
		Status:    domain.TransactionStatusCompleted,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	// Sends may never exceed the available balance, whatever the policy.
	if tx.Type == domain.TransactionTypeSend {
		if err := coin.ValidateDebit(tx.Amount); err != nil {
			return nil, fmt.Errorf("%w: %s available, %s requested", err, coin.Balance, tx.Amount)
		}
	}

	tx.ID = e.idGen.Generate()

	next := cloneBalances(e.balances)
	if err := e.adjust(next, tx.CoinKey, tx.Effect()); err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(e.transactions)+1)
	txs = append(txs, tx)
	txs = append(txs, e.transactions...)

	if err := e.commit(ctx, txs, next, tx.CoinKey); err != nil {
		return nil, err
	}

	return tx, nil
}

// Update replaces fields of an existing transaction. The old effect is undone on
// the old coin and the new effect is applied to the (possibly different) new coin.
func (e *LedgerEngine) Update(ctx context.Context, id string, changes TransactionChanges) (*domain.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.update(ctx, id, changes)
	if err != nil {
		e.metrics.TransactionRejected("update", err)
		return nil, err
	}

	e.metrics.TransactionCommitted("update", tx)
	return tx.Clone(), nil
}

func (e *LedgerEngine) update(ctx context.Context, id string, changes TransactionChanges) (*domain.Transaction, error) {
	idx := e.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	old := e.transactions[idx]

	updated := old.Clone()
	if changes.CoinKey != nil {
		updated.CoinKey = *changes.CoinKey
	}
	coin, ok := e.balances[updated.CoinKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCoin, updated.CoinKey)
	}
	updated.Symbol = coin.Symbol

	if changes.Type != nil {
		updated.Type = *changes.Type
	}
	if changes.Amount != nil {
		updated.Amount = *changes.Amount
	}
	if changes.ToAddress != nil {
		updated.ToAddress = domain.NormalizeAddress(*changes.ToAddress)
	}
	updated.Date = e.now()
	if changes.Date != nil {
		updated.Date = changes.Date.UTC()
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	next := cloneBalances(e.balances)
	if err := e.adjust(next, old.CoinKey, old.Effect().Neg()); err != nil {
		return nil, err
	}
	if err := e.adjust(next, updated.CoinKey, updated.Effect()); err != nil {
		return nil, err
	}
	if err := settle(next, old.CoinKey, updated.CoinKey); err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, len(e.transactions))
	copy(txs, e.transactions)
	txs[idx] = updated

	if err := e.commit(ctx, txs, next, old.CoinKey, updated.CoinKey); err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a transaction and reverses its effect exactly once.
func (e *LedgerEngine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.delete(ctx, id)
	if err != nil {
		e.metrics.TransactionRejected("delete", err)
		return err
	}

	e.metrics.TransactionCommitted("delete", tx)
	return nil
}

func (e *LedgerEngine) delete(ctx context.Context, id string) (*domain.Transaction, error) {
	idx := e.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	tx := e.transactions[idx]

	next := cloneBalances(e.balances)
	if err := e.adjust(next, tx.CoinKey, tx.Effect().Neg()); err != nil {
		return nil, err
	}
	if err := settle(next, tx.CoinKey); err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(e.transactions)-1)
	txs = append(txs, e.transactions[:idx]...)
	txs = append(txs, e.transactions[idx+1:]...)

	if err := e.commit(ctx, txs, next, tx.CoinKey); err != nil {
		return nil, err
	}

	return tx, nil
}

// Get returns a copy of the transaction with the given id.
func (e *LedgerEngine) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := e.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}

	return e.transactions[idx].Clone(), nil
}

// List returns transactions newest first, optionally filtered by coin.
func (e *LedgerEngine) List(ctx context.Context, input ListTransactionsInput) ([]*domain.Transaction, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if input.CoinKey != "" {
		if _, ok := e.balances[input.CoinKey]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCoin, input.CoinKey)
		}
	}

	out := make([]*domain.Transaction, 0, limit)
	skipped := 0
	for _, tx := range e.transactions {
		if input.CoinKey != "" && tx.CoinKey != input.CoinKey {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, tx.Clone())
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

// Transactions returns a copy of the whole log, newest first.
func (e *LedgerEngine) Transactions() []*domain.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return cloneTransactions(e.transactions)
}

// Balances returns copies of every coin balance in display order.
func (e *LedgerEngine) Balances(ctx context.Context) []*domain.CoinBalance {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.CoinBalance, 0, len(e.order))
	for _, key := range e.order {
		out = append(out, e.balances[key].Clone())
	}
	return out
}

// Balance returns a copy of a single coin balance.
func (e *LedgerEngine) Balance(ctx context.Context, coinKey string) (*domain.CoinBalance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	coin, ok := e.balances[coinKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCoin, coinKey)
	}
	return coin.Clone(), nil
}

// Snapshot returns a consistent copy of the seed, balances and log.
func (e *LedgerEngine) Snapshot() LedgerSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return LedgerSnapshot{
		Seed:         cloneSeed(e.seed),
		Balances:     cloneBalances(e.balances),
		Transactions: cloneTransactions(e.transactions),
		Policy:       e.policy,
	}
}

// adjust applies delta to a coin balance in place. Under the clamp policy the
// result floors at zero.
func (e *LedgerEngine) adjust(balances map[string]*domain.CoinBalance, coinKey string, delta decimal.Decimal) error {
	coin, ok := balances[coinKey]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCoin, coinKey)
	}

	coin.Balance = coin.Balance.Add(delta)
	if e.policy == OverdraftClamp && coin.Balance.IsNegative() {
		coin.Balance = decimal.Zero
	}
	return nil
}

// settle rejects a state in which any of the touched coins went negative.
func settle(balances map[string]*domain.CoinBalance, coinKeys ...string) error {
	for _, key := range coinKeys {
		coin := balances[key]
		if coin.Balance.IsNegative() {
			return fmt.Errorf("%w: %s balance would become %s", domain.ErrInsufficientFunds, coin.Symbol, coin.Balance)
		}
	}
	return nil
}

// commit persists the next state and swaps it in. On failure the current state is kept.
func (e *LedgerEngine) commit(ctx context.Context, txs []*domain.Transaction, balances map[string]*domain.CoinBalance, touched ...string) error {
	values := make(map[string]decimal.Decimal, len(balances))
	for key, coin := range balances {
		values[key] = coin.Balance
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultPersistTimeout)
	defer cancel()

	if err := e.repo.SaveLedger(ctx, txs, values); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	e.transactions = txs
	e.balances = balances
	for _, key := range touched {
		e.metrics.BalanceChanged(key, balances[key].Balance)
	}

	return nil
}

// repairBalances compares loaded balances with a replay of the log. A mismatch
// means an earlier write reached the log but not the balances.
func (e *LedgerEngine) repairBalances(ctx context.Context, txs []*domain.Transaction, loaded map[string]*domain.CoinBalance) map[string]*domain.CoinBalance {
	replayed := domain.ReplayBalances(e.seed, txs, false)

	drifted := false
	for _, key := range e.order {
		if loaded[key].Balance.Equal(replayed[key].Balance) {
			continue
		}
		drifted = true
		e.logger.Warn().
			Str("coin", key).
			Str("stored", loaded[key].Balance.String()).
			Str("replayed", replayed[key].Balance.String()).
			Msg("stored balance disagrees with transaction log, using replay")
	}
	if !drifted {
		return loaded
	}

	for _, key := range e.order {
		if replayed[key].Balance.IsNegative() {
			e.logger.Error().Str("coin", key).Msg("replay is negative, keeping stored balances")
			return loaded
		}
	}

	values := make(map[string]decimal.Decimal, len(replayed))
	for key, coin := range replayed {
		values[key] = coin.Balance
	}
	if err := e.repo.SaveLedger(ctx, txs, values); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist repaired balances")
	}
	return replayed
}

func (e *LedgerEngine) indexOf(id string) int {
	for i, tx := range e.transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func cloneBalances(in map[string]*domain.CoinBalance) map[string]*domain.CoinBalance {
	out := make(map[string]*domain.CoinBalance, len(in))
	for key, coin := range in {
		out[key] = coin.Clone()
	}
	return out
}

func cloneSeed(in []*domain.CoinBalance) []*domain.CoinBalance {
	out := make([]*domain.CoinBalance, 0, len(in))
	for _, coin := range in {
		out = append(out, coin.Clone())
	}
	return out
}

func cloneTransactions(in []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(in))
	for _, tx := range in {
		out = append(out, tx.Clone())
	}
	return out
}
