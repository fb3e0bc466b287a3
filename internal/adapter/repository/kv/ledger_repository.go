package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

type transactionRecord struct {
	ID        string          `json:"id"`
	CoinKey   string          `json:"coinKey"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	ToAddress string          `json:"toAddress,omitempty"`
	Date      time.Time       `json:"date"`
	Status    string          `json:"status"`
}

func toTransactionRecord(tx *domain.Transaction) transactionRecord {
	return transactionRecord{
		ID:        tx.ID,
		CoinKey:   tx.CoinKey,
		Symbol:    tx.Symbol,
		Amount:    tx.Amount,
		Type:      string(tx.Type),
		ToAddress: tx.ToAddress,
		Date:      tx.Date.UTC(),
		Status:    string(tx.Status),
	}
}

func (r transactionRecord) toDomain() *domain.Transaction {
	status := domain.TransactionStatus(r.Status)
	if status == "" {
		status = domain.TransactionStatusCompleted
	}
	return &domain.Transaction{
		ID:        r.ID,
		CoinKey:   r.CoinKey,
		Symbol:    r.Symbol,
		Amount:    r.Amount,
		Type:      domain.TransactionType(r.Type),
		ToAddress: r.ToAddress,
		Date:      r.Date,
		Status:    status,
	}
}

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store usecase.KeyValueStore
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store usecase.KeyValueStore) *LedgerRepository {
	return &LedgerRepository{store: store}
}

func (r *LedgerRepository) LoadTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	var records []transactionRecord
	if _, err := readJSON(ctx, r.store, KeyTransactions, &records); err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(records))
	for _, rec := range records {
		txs = append(txs, rec.toDomain())
	}
	return txs, nil
}

func (r *LedgerRepository) LoadBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal)
	found, err := readJSON(ctx, r.store, KeyBalances, &balances)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrKeyNotFound
	}
	return balances, nil
}

// SaveLedger writes both documents through a single PutAll.
func (r *LedgerRepository) SaveLedger(ctx context.Context, txs []*domain.Transaction, balances map[string]decimal.Decimal) error {
	records := make([]transactionRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, toTransactionRecord(tx))
	}

	txData, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", KeyTransactions, err)
	}
	balData, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", KeyBalances, err)
	}

	return r.store.PutAll(ctx, map[string][]byte{
		KeyTransactions: txData,
		KeyBalances:     balData,
	})
}
