package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iho/coinwallet/internal/domain"
)

// AuthConfig configures an AuthUseCase.
type AuthConfig struct {
	Users    UserRepository
	Codes    VerificationCodeRepository
	Sessions SessionRepository
	Tokens   TokenManager
	IDs      IDGenerator
	CodeTTL  time.Duration
}

// AuthUseCase handles sign-up, email verification and sessions
type AuthUseCase struct {
	users    UserRepository
	codes    VerificationCodeRepository
	sessions SessionRepository
	tokens   TokenManager
	ids      IDGenerator
	codeTTL  time.Duration
	now      func() time.Time
	newCode  func() (string, error)
}

// NewAuthUseCase creates a new auth use case
func NewAuthUseCase(cfg AuthConfig) *AuthUseCase {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultVerificationCodeTTL
	}
	return &AuthUseCase{
		users:    cfg.Users,
		codes:    cfg.Codes,
		sessions: cfg.Sessions,
		tokens:   cfg.Tokens,
		ids:      cfg.IDs,
		codeTTL:  cfg.CodeTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  generateVerificationCode,
	}
}

// SignUpInput represents input for creating an account
type SignUpInput struct {
	Email    string
	Password string
	Name     string
}

// SignUpResult carries the issued verification code. Codes are shown to the
// caller instead of being emailed.
type SignUpResult struct {
	Email   string
	Code    string
	Message string
}

// AuthResult is returned by a successful sign-in or verification
type AuthResult struct {
	User      *domain.User
	Token     string
	SessionID string
}

// SignUp creates an unverified user and issues a verification code
func (uc *AuthUseCase) SignUp(ctx context.Context, input SignUpInput) (*SignUpResult, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(input.Email)

	existing, err := uc.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrEmailAlreadyRegistered
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return nil, err
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	user := &domain.User{
		ID:           uc.ids.Generate(),
		Email:        email,
		Name:         input.Name,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	code, err := uc.issueCode(ctx, email)
	if err != nil {
		return nil, err
	}

	return &SignUpResult{
		Email:   email,
		Code:    code.Code,
		Message: "Verification code sent to your email",
	}, nil
}

// VerifyEmail checks a verification code, marks the user verified and opens a session
func (uc *AuthUseCase) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)

	stored, err := uc.codes.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrVerificationCodeNotFound
		}
		return nil, err
	}

	if stored.IsExpired(uc.now()) {
		return nil, domain.ErrVerificationCodeExpired
	}
	if stored.Code != code {
		return nil, domain.ErrInvalidVerificationCode
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	user.Verified = true
	user.UpdatedAt = uc.now()
	if err := uc.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := uc.codes.Delete(ctx, email); err != nil {
		return nil, err
	}

	return uc.openSession(ctx, user)
}

// SignIn verifies credentials and opens a session
func (uc *AuthUseCase) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := uc.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, domain.ErrEmailNotVerified
	}

	return uc.openSession(ctx, user)
}

// SignOut ends a session
func (uc *AuthUseCase) SignOut(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// ResendVerificationCode issues a fresh code for an existing, unverified user
func (uc *AuthUseCase) ResendVerificationCode(ctx context.Context, email string) (*SignUpResult, error) {
	email = domain.NormalizeEmail(email)

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return nil, domain.ErrEmailAlreadyVerified
	}

	code, err := uc.issueCode(ctx, email)
	if err != nil {
		return nil, err
	}

	return &SignUpResult{
		Email:   email,
		Code:    code.Code,
		Message: "New verification code sent",
	}, nil
}

// GetVerificationCode returns the pending code for email, or "" when none is valid
func (uc *AuthUseCase) GetVerificationCode(ctx context.Context, email string) string {
	stored, err := uc.codes.Get(ctx, domain.NormalizeEmail(email))
	if err != nil || stored.IsExpired(uc.now()) {
		return ""
	}
	return stored.Code
}

// Authenticate resolves a session token to its user and session
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	claims, err := uc.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	session, err := uc.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) || errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrSessionNotFound
		}
		return nil, nil, err
	}
	if session.UserID != claims.UserID {
		return nil, nil, domain.ErrInvalidToken
	}

	user, err := uc.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}

	user.PasswordHash = ""
	return user, session, nil
}

func (uc *AuthUseCase) openSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	session := &domain.Session{
		ID:        uc.ids.Generate(),
		UserID:    user.ID,
		CreatedAt: uc.now(),
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := uc.tokens.Generate(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	user.PasswordHash = ""
	return &AuthResult{User: user, Token: token, SessionID: session.ID}, nil
}

func (uc *AuthUseCase) issueCode(ctx context.Context, email string) (*domain.VerificationCode, error) {
	value, err := uc.newCode()
	if err != nil {
		return nil, err
	}

	code := &domain.VerificationCode{
		Email:     email,
		Code:      value,
		ExpiresAt: uc.now().Add(uc.codeTTL),
	}
	if err := uc.codes.Save(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// generateVerificationCode returns a random six-digit code
func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// hashPassword hashes a password using bcrypt
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword checks if password matches hash
func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
