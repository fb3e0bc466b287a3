package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is a price snapshot for one coin as reported by the price feed.
type MarketData struct {
	ID                      string
	Symbol                  string
	Name                    string
	CurrentPrice            decimal.Decimal
	PriceChangePercentage7d decimal.Decimal
	Sparkline               []decimal.Decimal
	LastUpdated             time.Time
}

// Clone returns an independent copy, including the sparkline slice.
func (m *MarketData) Clone() *MarketData {
	cp := *m
	if m.Sparkline != nil {
		cp.Sparkline = make([]decimal.Decimal, len(m.Sparkline))
		copy(cp.Sparkline, m.Sparkline)
	}
	return &cp
}

// SparklineChange returns the absolute and percentage change between the first and last sparkline points.
func (m *MarketData) SparklineChange() (decimal.Decimal, decimal.Decimal) {
	if len(m.Sparkline) == 0 {
		return decimal.Zero, decimal.Zero
	}
	first := m.Sparkline[0]
	change := m.Sparkline[len(m.Sparkline)-1].Sub(first)
	if first.IsZero() {
		return change, decimal.Zero
	}
	return change, change.Div(first).Mul(decimal.NewFromInt(100))
}

// ValueOf returns the USD value of amount at the current price.
func (m *MarketData) ValueOf(amount decimal.Decimal) decimal.Decimal {
	return m.CurrentPrice.Mul(amount)
}
