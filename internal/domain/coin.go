package domain

import (
	"github.com/shopspring/decimal"
)

// CoinBalance is the cached balance of a single coin held by the wallet.
type CoinBalance struct {
	Key     string
	Symbol  string
	Balance decimal.Decimal
}

// ValidateDebit checks if the coin can be debited by amount.
func (c *CoinBalance) ValidateDebit(amount decimal.Decimal) error {
	if c.ApplyDebit(amount).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (c *CoinBalance) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return c.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (c *CoinBalance) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return c.Balance.Add(amount)
}

// Clone returns an independent copy.
func (c *CoinBalance) Clone() *CoinBalance {
	cp := *c
	return &cp
}

var seedCoins = []CoinBalance{
	{Key: "bitcoin", Symbol: "BTC", Balance: decimal.RequireFromString("0.025")},
	{Key: "ethereum", Symbol: "ETH", Balance: decimal.RequireFromString("0.5")},
	{Key: "tether", Symbol: "USDT", Balance: decimal.RequireFromString("1500")},
}

// SeedBalances returns a fresh copy of the wallet's initial coin set in display order.
func SeedBalances() []*CoinBalance {
	out := make([]*CoinBalance, 0, len(seedCoins))
	for i := range seedCoins {
		out = append(out, seedCoins[i].Clone())
	}
	return out
}

// SeedCoinKeys returns the keys of the seeded coins, which also serve as price feed ids.
func SeedCoinKeys() []string {
	keys := make([]string, 0, len(seedCoins))
	for _, c := range seedCoins {
		keys = append(keys, c.Key)
	}
	return keys
}

// ReplayBalances recomputes balances by applying the log, oldest first, on top of seed.
// txs is ordered newest first. With floorAtZero every intermediate write is clamped at zero.
// Transactions referencing coins outside seed are ignored.
func ReplayBalances(seed []*CoinBalance, txs []*Transaction, floorAtZero bool) map[string]*CoinBalance {
	balances := make(map[string]*CoinBalance, len(seed))
	for _, c := range seed {
		balances[c.Key] = c.Clone()
	}

	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		coin, ok := balances[tx.CoinKey]
		if !ok {
			continue
		}
		coin.Balance = coin.Balance.Add(tx.Effect())
		if floorAtZero && coin.Balance.IsNegative() {
			coin.Balance = decimal.Zero
		}
	}

	return balances
}
