package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// CreateTransactionRequest represents a request to record a transaction.
type CreateTransactionRequest struct {
	Coin      string          `json:"coin"`
	Amount    decimal.Decimal `json:"amount"`
	ToAddress string          `json:"to_address"`
	Type      string          `json:"type"`
}

// UpdateTransactionRequest carries the fields to replace. Omitted fields are kept.
type UpdateTransactionRequest struct {
	Coin      *string          `json:"coin,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Type      *string          `json:"type,omitempty"`
	ToAddress *string          `json:"to_address,omitempty"`
	Date      *time.Time       `json:"date,omitempty"`
}

// ToChanges converts to use case input.
func (r *UpdateTransactionRequest) ToChanges() usecase.TransactionChanges {
	changes := usecase.TransactionChanges{
		CoinKey:   r.Coin,
		Amount:    r.Amount,
		ToAddress: r.ToAddress,
		Date:      r.Date,
	}
	if r.Type != nil {
		t := domain.TransactionType(*r.Type)
		changes.Type = &t
	}
	return changes
}

// TransferRequest represents a mock transfer (a send).
type TransferRequest struct {
	Coin      string          `json:"coin"`
	Amount    decimal.Decimal `json:"amount"`
	ToAddress string          `json:"to_address"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResendCodeRequest struct {
	Email string `json:"email"`
}
