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

// Result is the outcome of a wallet command that returns no value.
type Result struct {
	Success bool
	Error   string
	Err     error
}

// CreateResult is the outcome of CreateTransaction.
type CreateResult struct {
	Success     bool
	Transaction *domain.Transaction
	Error       string
	Err         error
}

// TransferResult is the outcome of MockTransfer.
type TransferResult struct {
	Success bool
	TxID    string
	Error   string
	Err     error
}

// CoinHolding is a coin balance together with its current market value, when known.
type CoinHolding struct {
	Balance  *domain.CoinBalance
	Market   *domain.MarketData
	USDValue *decimal.Decimal
}

// Portfolio is the valued view of all balances.
type Portfolio struct {
	Holdings []CoinHolding
	TotalUSD decimal.Decimal
	// Complete is false when at least one coin had no price.
	Complete bool
}

// WalletConfig configures a WalletUseCase.
type WalletConfig struct {
	Ledger       *LedgerEngine
	Feed         PriceFeed
	Metrics      MetricsRecorder
	Logger       zerolog.Logger
	PollInterval time.Duration
	CoinIDs      []string
}

// WalletUseCase composes the ledger engine with market price polling and exposes
// a result-shaped command surface that never fails for ordinary misuse.
type WalletUseCase struct {
	ledger   *LedgerEngine
	feed     PriceFeed
	metrics  MetricsRecorder
	logger   zerolog.Logger
	interval time.Duration
	coinIDs  []string
	now      func() time.Time

	mu         sync.RWMutex
	prices     map[string]*domain.MarketData
	loading    bool
	generation uint64
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewWalletUseCase creates a new wallet facade. Polling does not begin until Start.
func NewWalletUseCase(cfg WalletConfig) *WalletUseCase {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPricePollInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if len(cfg.CoinIDs) == 0 {
		cfg.CoinIDs = domain.SeedCoinKeys()
	}

	return &WalletUseCase{
		ledger:   cfg.Ledger,
		feed:     cfg.Feed,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		interval: cfg.PollInterval,
		coinIDs:  cfg.CoinIDs,
		now:      time.Now,
		prices:   make(map[string]*domain.MarketData),
	}
}

// Balances returns copies of every coin balance.
func (w *WalletUseCase) Balances(ctx context.Context) []*domain.CoinBalance {
	return w.ledger.Balances(ctx)
}

// Transactions returns a copy of the log, newest first.
func (w *WalletUseCase) Transactions() []*domain.Transaction {
	return w.ledger.Transactions()
}

// CreateTransaction records a send or receive.
func (w *WalletUseCase) CreateTransaction(ctx context.Context, coinKey string, amount decimal.Decimal, toAddress string, txType domain.TransactionType) CreateResult {
	tx, err := w.ledger.Create(ctx, CreateTransactionInput{
		CoinKey:   coinKey,
		Amount:    amount,
		ToAddress: toAddress,
		Type:      txType,
	})
	if err != nil {
		return CreateResult{Error: err.Error(), Err: err}
	}
	return CreateResult{Success: true, Transaction: tx}
}

// UpdateTransaction applies changes to an existing transaction.
func (w *WalletUseCase) UpdateTransaction(ctx context.Context, id string, changes TransactionChanges) Result {
	if _, err := w.ledger.Update(ctx, id, changes); err != nil {
		return Result{Error: err.Error(), Err: err}
	}
	return Result{Success: true}
}

// DeleteTransaction removes a transaction and reverses its effect.
func (w *WalletUseCase) DeleteTransaction(ctx context.Context, id string) Result {
	if err := w.ledger.Delete(ctx, id); err != nil {
		return Result{Error: err.Error(), Err: err}
	}
	return Result{Success: true}
}

// GetTransaction looks up a transaction by id.
func (w *WalletUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, bool) {
	tx, err := w.ledger.Get(ctx, id)
	if err != nil {
		return nil, false
	}
	return tx, true
}

// MockTransfer records a send. Failed transfers still carry a placeholder id.
func (w *WalletUseCase) MockTransfer(ctx context.Context, coinKey string, amount decimal.Decimal, toAddress string) TransferResult {
	res := w.CreateTransaction(ctx, coinKey, amount, toAddress, domain.TransactionTypeSend)
	if !res.Success {
		return TransferResult{
			TxID:  fmt.Sprintf("MOCK-%d", w.now().UnixMilli()),
			Error: res.Error,
			Err:   res.Err,
		}
	}
	return TransferResult{Success: true, TxID: res.Transaction.ID}
}

// Start fetches prices immediately and then on every poll interval until Stop
// is called or ctx is cancelled. Calling Start while already polling is a no-op.
func (w *WalletUseCase) Start(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.generation++
	gen := w.generation
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Strs("coins", w.coinIDs).
		Msg("price polling started")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.refresh(ctx, gen)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.refresh(ctx, gen)
			}
		}
	}()
}

// Stop cancels polling and waits for the poll loop to exit. Results of a fetch
// that completes after Stop are discarded.
func (w *WalletUseCase) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.generation++
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()

	w.logger.Info().Msg("price polling stopped")
}

// RefreshPrices performs a single fetch outside the poll loop.
func (w *WalletUseCase) RefreshPrices(ctx context.Context) error {
	w.mu.RLock()
	gen := w.generation
	w.mu.RUnlock()

	return w.refresh(ctx, gen)
}

func (w *WalletUseCase) refresh(ctx context.Context, gen uint64) error {
	w.setLoading(true)
	defer w.setLoading(false)

	start := time.Now()
	data, err := w.feed.FetchMarketData(ctx, w.coinIDs)
	w.metrics.PriceFetched(err, time.Since(start))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn().Err(err).Msg("failed to fetch prices, keeping previous values")
		}
		return fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		w.logger.Debug().Msg("discarding prices fetched after polling stopped")
		return nil
	}
	for id, md := range data {
		w.prices[id] = md.Clone()
	}

	return nil
}

func (w *WalletUseCase) setLoading(v bool) {
	w.mu.Lock()
	w.loading = v
	w.mu.Unlock()
}

// LoadingPrices reports whether a fetch is in flight.
func (w *WalletUseCase) LoadingPrices() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loading
}

// Prices returns copies of the latest market data keyed by coin id.
func (w *WalletUseCase) Prices() map[string]*domain.MarketData {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]*domain.MarketData, len(w.prices))
	for id, md := range w.prices {
		out[id] = md.Clone()
	}
	return out
}

// Price returns the latest market data for one coin.
func (w *WalletUseCase) Price(coinID string) (*domain.MarketData, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	md, ok := w.prices[coinID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, coinID)
	}
	return md.Clone(), nil
}

// Portfolio values every balance at the latest known price.
func (w *WalletUseCase) Portfolio(ctx context.Context) Portfolio {
	balances := w.ledger.Balances(ctx)
	prices := w.Prices()

	p := Portfolio{
		Holdings: make([]CoinHolding, 0, len(balances)),
		TotalUSD: decimal.Zero,
		Complete: true,
	}
	for _, b := range balances {
		h := CoinHolding{Balance: b}
		if md, ok := prices[b.Key]; ok {
			value := md.ValueOf(b.Balance)
			h.Market = md
			h.USDValue = &value
			p.TotalUSD = p.TotalUSD.Add(value)
		} else {
			p.Complete = false
		}
		p.Holdings = append(p.Holdings, h)
	}

	return p
}
