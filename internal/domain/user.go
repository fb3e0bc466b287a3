package domain

import (
	"errors"
	"time"
)

// User is a wallet account holder. Users share the single wallet ledger.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VerificationCode is a pending six-digit email verification code.
type VerificationCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// IsExpired reports whether the code is no longer valid at now.
func (v *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// Session is an authenticated sign-in. Signing out deletes it.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// TokenClaims is the identity carried by a session token.
type TokenClaims struct {
	UserID    string
	Email     string
	SessionID string
}

// Authentication errors
var (
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInvalidToken             = errors.New("invalid token")
	ErrExpiredToken             = errors.New("token has expired")
	ErrSessionNotFound          = errors.New("session not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrEmailAlreadyRegistered   = errors.New("email already registered")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrEmailNotVerified         = errors.New("please verify your email first")
	ErrVerificationCodeNotFound = errors.New("no verification code found, please sign up again")
	ErrVerificationCodeExpired  = errors.New("verification code expired, please request a new one")
	ErrInvalidVerificationCode  = errors.New("invalid verification code")
	ErrEmailAlreadyVerified     = errors.New("email already verified")
)
