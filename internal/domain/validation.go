package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidName      = errors.New("invalid name")
	ErrAmountTooLarge   = errors.New("amount exceeds maximum allowed")
	ErrAmountTooPrecise = errors.New("amount has too many decimal places")
	ErrInvalidAddress   = errors.New("invalid recipient address")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrPasswordTooWeak  = errors.New("password does not meet requirements")
)

// Validation constants
const (
	MaxNameLength        = 255
	MaxAddressLength     = 256
	MaxAmountDecimals    = 18
	MaxTransactionAmount = "1000000000000" // 1 trillion
	MinPasswordLength    = 8
	MaxPasswordLength    = 128
	DefaultPageSize      = 20
	MaxPageSize          = 100
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateAmount validates a transaction amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if -amount.Exponent() > MaxAmountDecimals {
		return fmt.Errorf("%w: at most %d decimal places", ErrAmountTooPrecise, MaxAmountDecimals)
	}

	maxAmount := decimal.RequireFromString(MaxTransactionAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransactionAmount)
	}

	return nil
}

// ValidateAddress validates a recipient address for a send.
// Callers are expected to pass an already trimmed value.
func ValidateAddress(addr string) error {
	if addr == "" {
		return ErrMissingRecipient
	}

	if len(addr) > MaxAddressLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidAddress, MaxAddressLength)
	}

	for _, r := range addr {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidAddress)
		}
	}

	return nil
}

// ValidateName validates a user's display name
func ValidateName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}

	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)

	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// ValidatePassword validates password strength
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooWeak, MinPasswordLength)
	}

	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrPasswordTooWeak, MaxPasswordLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: must contain uppercase, lowercase, and digit", ErrPasswordTooWeak)
	}

	return nil
}

// ValidatePagination clamps pagination parameters to sane bounds
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
