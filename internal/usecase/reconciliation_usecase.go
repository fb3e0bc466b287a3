package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
)

// LedgerSnapshotter provides consistent copies of ledger state.
type LedgerSnapshotter interface {
	Snapshot() LedgerSnapshot
}

// ReconciliationUseCase compares cached balances against a replay of the transaction log
type ReconciliationUseCase struct {
	ledger  LedgerSnapshotter
	metrics MetricsRecorder
	now     func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(ledger LedgerSnapshotter, metrics MetricsRecorder) *ReconciliationUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ReconciliationUseCase{
		ledger:  ledger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	CoinKey           string
	Symbol            string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	TransactionCount  int
	IsReconciled      bool
	// Advisory is set under OverdraftClamp, where a floored replay cannot
	// reproduce undo/redo history. Difference stays on the result but is not
	// counted as a discrepancy.
	Advisory          bool
	LastChecked       time.Time
}

// ReconcileCoin replays the log for one coin and compares it to the cached balance
func (uc *ReconciliationUseCase) ReconcileCoin(ctx context.Context, coinKey string) (*ReconciliationResult, error) {
	snap := uc.ledger.Snapshot()
	if _, ok := snap.Balances[coinKey]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCoin, coinKey)
	}

	replayed := domain.ReplayBalances(snap.Seed, snap.Transactions, snap.Policy == OverdraftClamp)
	result := uc.compare(snap, replayed, coinKey)
	uc.metrics.Reconciled(result)

	return result, nil
}

// ReconcileAll reconciles every coin in display order
func (uc *ReconciliationUseCase) ReconcileAll(ctx context.Context) ([]*ReconciliationResult, error) {
	snap := uc.ledger.Snapshot()
	replayed := domain.ReplayBalances(snap.Seed, snap.Transactions, snap.Policy == OverdraftClamp)

	results := make([]*ReconciliationResult, 0, len(snap.Seed))
	for _, coin := range snap.Seed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := uc.compare(snap, replayed, coin.Key)
		uc.metrics.Reconciled(result)
		results = append(results, result)
	}

	return results, nil
}

// CheckLedgerConsistency returns ErrInconsistentLedger when any coin's cached
// balance differs from the replayed one
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	results, err := uc.ReconcileAll(ctx)
	if err != nil {
		return err
	}

	var diffs []string
	for _, r := range results {
		if !r.IsReconciled {
			diffs = append(diffs, fmt.Sprintf("%s recorded=%s calculated=%s", r.Symbol, r.RecordedBalance, r.CalculatedBalance))
		}
	}

	if len(diffs) > 0 {
		return fmt.Errorf("%w: %s", ErrInconsistentLedger, strings.Join(diffs, "; "))
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalCoins        int
	ReconciledCoins   int
	TotalTransactions int
	Discrepancies     []*ReconciliationResult
	LedgerConsistent  bool
	CheckedAt         time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalCoins:    len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     uc.now(),
	}

	for _, result := range results {
		report.TotalTransactions += result.TransactionCount
		if result.IsReconciled {
			report.ReconciledCoins++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}
	report.LedgerConsistent = len(report.Discrepancies) == 0

	return report, nil
}

func (uc *ReconciliationUseCase) compare(snap LedgerSnapshot, replayed map[string]*domain.CoinBalance, coinKey string) *ReconciliationResult {
	recorded := snap.Balances[coinKey]
	calculated := decimal.Zero
	if c, ok := replayed[coinKey]; ok {
		calculated = c.Balance
	}

	count := 0
	for _, tx := range snap.Transactions {
		if tx.CoinKey == coinKey {
			count++
		}
	}

	diff := recorded.Balance.Sub(calculated)
	advisory := snap.Policy == OverdraftClamp
	return &ReconciliationResult{
		CoinKey:           coinKey,
		Symbol:            recorded.Symbol,
		RecordedBalance:   recorded.Balance,
		CalculatedBalance: calculated,
		Difference:        diff,
		TransactionCount:  count,
		IsReconciled:      diff.IsZero() || advisory,
		Advisory:          advisory,
		LastChecked:       uc.now(),
	}
}
