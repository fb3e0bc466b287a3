package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/coinwallet/internal/adapter/repository/kv"
	"github.com/iho/coinwallet/internal/adapter/repository/memory"
	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase/mocks"
)

func TestLedgerRepositoryEmptyStore(t *testing.T) {
	repo := kv.NewLedgerRepository(memory.NewStore())
	ctx := context.Background()

	txs, err := repo.LoadTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = repo.LoadBalances(ctx)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestLedgerRepositoryRoundTrip(t *testing.T) {
	store := memory.NewStore()
	repo := kv.NewLedgerRepository(store)
	ctx := context.Background()

	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	txs := []*domain.Transaction{
		{
			ID:        "01HQ0000000000000000000002",
			CoinKey:   "bitcoin",
			Symbol:    "BTC",
			Amount:    decimal.RequireFromString("0.005"),
			Type:      domain.TransactionTypeSend,
			ToAddress: "bc1qxyz",
			Date:      date.Add(time.Hour),
			Status:    domain.TransactionStatusCompleted,
		},
		{
			ID:      "01HQ0000000000000000000001",
			CoinKey: "tether",
			Symbol:  "USDT",
			Amount:  decimal.RequireFromString("100"),
			Type:    domain.TransactionTypeReceive,
			Date:    date,
			Status:  domain.TransactionStatusCompleted,
		},
	}
	balances := map[string]decimal.Decimal{
		"bitcoin":  decimal.RequireFromString("0.02"),
		"ethereum": decimal.RequireFromString("0.5"),
		"tether":   decimal.RequireFromString("1600"),
	}

	require.NoError(t, repo.SaveLedger(ctx, txs, balances))

	raw, err := store.Get(ctx, kv.KeyBalances)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bitcoin":"0.02","ethereum":"0.5","tether":"1600"}`, string(raw))

	loaded, err := repo.LoadTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, txs[0].ID, loaded[0].ID, "order must be preserved")
	assert.True(t, loaded[0].Amount.Equal(txs[0].Amount))
	assert.Equal(t, domain.TransactionTypeSend, loaded[0].Type)
	assert.Equal(t, "bc1qxyz", loaded[0].ToAddress)
	assert.True(t, loaded[0].Date.Equal(txs[0].Date))
	assert.Equal(t, domain.TransactionStatusCompleted, loaded[1].Status)

	loadedBalances, err := repo.LoadBalances(ctx)
	require.NoError(t, err)
	require.Len(t, loadedBalances, 3)
	assert.True(t, loadedBalances["tether"].Equal(decimal.RequireFromString("1600")))
}

func TestLedgerRepositorySaveUsesSinglePutAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockKeyValueStore(ctrl)
	repo := kv.NewLedgerRepository(store)

	storeErr := errors.New("disk full")
	store.EXPECT().
		PutAll(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, values map[string][]byte) error {
			assert.Contains(t, values, kv.KeyTransactions)
			assert.Contains(t, values, kv.KeyBalances)
			return storeErr
		})

	err := repo.SaveLedger(context.Background(), nil, map[string]decimal.Decimal{"bitcoin": decimal.Zero})
	assert.ErrorIs(t, err, storeErr)
}

func TestLedgerRepositoryCorruptDocument(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, kv.KeyTransactions, []byte(`{not json`)))

	_, err := kv.NewLedgerRepository(store).LoadTransactions(ctx)
	assert.Error(t, err)
}
