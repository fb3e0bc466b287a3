package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a wallet transaction.
type TransactionType string

const (
	TransactionTypeSend    TransactionType = "send"
	TransactionTypeReceive TransactionType = "receive"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeSend || t == TransactionTypeReceive
}

// TransactionStatus is always completed; mock transactions settle immediately.
type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "completed"

// Transaction is a single entry in the wallet's ledger.
type Transaction struct {
	ID        string
	CoinKey   string
	Symbol    string
	Amount    decimal.Decimal
	Type      TransactionType
	ToAddress string
	Date      time.Time
	Status    TransactionStatus
}

// Validate checks type, amount and recipient, in that order.
func (t *Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidTransactionType
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if t.Type == TransactionTypeSend {
		if err := ValidateAddress(t.ToAddress); err != nil {
			return err
		}
	} else if len(t.ToAddress) > MaxAddressLength {
		return ErrInvalidAddress
	}
	return nil
}

// Effect returns the signed change the transaction applies to its coin's balance.
func (t *Transaction) Effect() decimal.Decimal {
	if t.Type == TransactionTypeSend {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Clone returns an independent copy.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}

// NormalizeAddress trims surrounding whitespace from a recipient address.
func NormalizeAddress(addr string) string {
	return strings.TrimSpace(addr)
}
