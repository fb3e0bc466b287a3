package domain

import "errors"

var (
	// Ledger errors
	ErrInvalidCoin            = errors.New("invalid coin")
	ErrInvalidTransactionType = errors.New("transaction type must be send or receive")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrMissingRecipient       = errors.New("recipient address is required")
	ErrInsufficientFunds      = errors.New("insufficient balance")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrPersistence            = errors.New("failed to persist ledger state")

	// Store errors
	ErrKeyNotFound = errors.New("key not found")

	// Market errors
	ErrPriceUnavailable = errors.New("price data unavailable")
)
