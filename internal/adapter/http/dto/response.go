package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BalanceResponse represents a coin balance in API responses.
type BalanceResponse struct {
	Coin    string          `json:"coin"`
	Symbol  string          `json:"symbol"`
	Balance decimal.Decimal `json:"balance"`
}

func BalanceFromDomain(b *domain.CoinBalance) *BalanceResponse {
	return &BalanceResponse{
		Coin:    b.Key,
		Symbol:  b.Symbol,
		Balance: b.Balance,
	}
}

func BalancesFromDomain(bs []*domain.CoinBalance) []*BalanceResponse {
	out := make([]*BalanceResponse, len(bs))
	for i, b := range bs {
		out[i] = BalanceFromDomain(b)
	}
	return out
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID        string          `json:"id"`
	Coin      string          `json:"coin"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	ToAddress string          `json:"to_address,omitempty"`
	Date      time.Time       `json:"date"`
	Status    string          `json:"status"`
}

func TransactionFromDomain(tx *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:        tx.ID,
		Coin:      tx.CoinKey,
		Symbol:    tx.Symbol,
		Amount:    tx.Amount,
		Type:      string(tx.Type),
		ToAddress: tx.ToAddress,
		Date:      tx.Date,
		Status:    string(tx.Status),
	}
}

// TransactionListResponse is one page of the log, newest first.
type TransactionListResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

func TransactionListFromDomain(txs []*domain.Transaction, limit, offset int) *TransactionListResponse {
	out := make([]*TransactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = TransactionFromDomain(tx)
	}
	return &TransactionListResponse{Transactions: out, Limit: limit, Offset: offset}
}

// TransferResponse mirrors usecase.TransferResult. TxID is set even on failure.
type TransferResponse struct {
	Success bool   `json:"success"`
	TxID    string `json:"tx_id"`
	Error   string `json:"error,omitempty"`
}

// MarketResponse represents market data for one coin.
type MarketResponse struct {
	ID                 string            `json:"id"`
	Symbol             string            `json:"symbol"`
	Name               string            `json:"name"`
	CurrentPrice       decimal.Decimal   `json:"current_price"`
	PriceChange7d      decimal.Decimal   `json:"price_change_percentage_7d"`
	Sparkline          []decimal.Decimal `json:"sparkline"`
	SparklineChange    decimal.Decimal   `json:"sparkline_change"`
	SparklineChangePct decimal.Decimal   `json:"sparkline_change_percentage"`
	LastUpdated        time.Time         `json:"last_updated"`
}

func MarketFromDomain(md *domain.MarketData) *MarketResponse {
	abs, pct := md.SparklineChange()
	return &MarketResponse{
		ID:                 md.ID,
		Symbol:             md.Symbol,
		Name:               md.Name,
		CurrentPrice:       md.CurrentPrice,
		PriceChange7d:      md.PriceChangePercentage7d,
		Sparkline:          md.Sparkline,
		SparklineChange:    abs,
		SparklineChangePct: pct,
		LastUpdated:        md.LastUpdated,
	}
}

// PricesResponse lists every known price. Loading is true while a fetch is in flight.
type PricesResponse struct {
	Loading bool              `json:"loading"`
	Prices  []*MarketResponse `json:"prices"`
}

// HoldingResponse is a balance with its USD value when a price is known.
type HoldingResponse struct {
	Coin     string           `json:"coin"`
	Symbol   string           `json:"symbol"`
	Balance  decimal.Decimal  `json:"balance"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	USDValue *decimal.Decimal `json:"usd_value,omitempty"`
}

type PortfolioResponse struct {
	Holdings []*HoldingResponse `json:"holdings"`
	TotalUSD decimal.Decimal    `json:"total_usd"`
	Complete bool               `json:"complete"`
}

func PortfolioFromUseCase(p usecase.Portfolio) *PortfolioResponse {
	out := &PortfolioResponse{
		Holdings: make([]*HoldingResponse, len(p.Holdings)),
		TotalUSD: p.TotalUSD,
		Complete: p.Complete,
	}
	for i, h := range p.Holdings {
		hr := &HoldingResponse{
			Coin:     h.Balance.Key,
			Symbol:   h.Balance.Symbol,
			Balance:  h.Balance.Balance,
			USDValue: h.USDValue,
		}
		if h.Market != nil {
			price := h.Market.CurrentPrice
			hr.Price = &price
		}
		out.Holdings[i] = hr
	}
	return out
}

// UserResponse never exposes the password hash.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

func UserFromDomain(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

type SignUpResponse struct {
	Email   string `json:"email"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ReconciliationResponse is the per-coin outcome of a reconciliation check.
type ReconciliationResponse struct {
	Coin              string          `json:"coin"`
	Symbol            string          `json:"symbol"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	TransactionCount  int             `json:"transaction_count"`
	IsReconciled      bool            `json:"is_reconciled"`
	Advisory          bool            `json:"advisory,omitempty"`
	LastChecked       time.Time       `json:"last_checked"`
}

func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		Coin:              r.CoinKey,
		Symbol:            r.Symbol,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		TransactionCount:  r.TransactionCount,
		IsReconciled:      r.IsReconciled,
		Advisory:          r.Advisory,
		LastChecked:       r.LastChecked,
	}
}

type ReconciliationReportResponse struct {
	TotalCoins        int                       `json:"total_coins"`
	ReconciledCoins   int                       `json:"reconciled_coins"`
	TotalTransactions int                       `json:"total_transactions"`
	Discrepancies     []*ReconciliationResponse `json:"discrepancies"`
	LedgerConsistent  bool                      `json:"ledger_consistent"`
	CheckedAt         time.Time                 `json:"checked_at"`
}

func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	out := &ReconciliationReportResponse{
		TotalCoins:        r.TotalCoins,
		ReconciledCoins:   r.ReconciledCoins,
		TotalTransactions: r.TotalTransactions,
		Discrepancies:     make([]*ReconciliationResponse, len(r.Discrepancies)),
		LedgerConsistent:  r.LedgerConsistent,
		CheckedAt:         r.CheckedAt,
	}
	for i, d := range r.Discrepancies {
		out.Discrepancies[i] = ReconciliationFromUseCase(d)
	}
	return out
}
