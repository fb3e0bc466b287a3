package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
	"github.com/iho/coinwallet/internal/usecase/mocks"
)

type authFixture struct {
	uc       *usecase.AuthUseCase
	users    *mocks.MockUserRepository
	codes    *mocks.MockVerificationCodeRepository
	sessions *mocks.MockSessionRepository
	tokens   *mocks.MockTokenManager
}

func newAuthFixture(t *testing.T, ttl time.Duration) *authFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &authFixture{
		users:    mocks.NewMockUserRepository(),
		codes:    mocks.NewMockVerificationCodeRepository(),
		sessions: mocks.NewMockSessionRepository(),
		tokens:   mocks.NewMockTokenManager(ctrl),
	}
	f.uc = usecase.NewAuthUseCase(usecase.AuthConfig{
		Users:    f.users,
		Codes:    f.codes,
		Sessions: f.sessions,
		Tokens:   f.tokens,
		IDs:      mocks.NewMockIDGenerator(),
		CodeTTL:  ttl,
	})
	return f
}

func TestAuthUseCase_SignUpVerifySignIn(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, time.Minute)

	res, err := f.uc.SignUp(ctx, usecase.SignUpInput{Email: " Alice@Example.com", Password: "Secret123", Name: "Alice"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.Email != "alice@example.com" || len(res.Code) != 6 {
		t.Fatalf("unexpected signup result %+v", res)
	}
	if got := f.uc.GetVerificationCode(ctx, "alice@example.com"); got != res.Code {
		t.Fatalf("expected pending code %s, got %q", res.Code, got)
	}

	if _, err := f.uc.SignIn(ctx, "alice@example.com", "Secret123"); !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	wrong := "000000"
	if res.Code == wrong {
		wrong = "111111"
	}
	if _, err := f.uc.VerifyEmail(ctx, "alice@example.com", wrong); !errors.Is(err, domain.ErrInvalidVerificationCode) {
		t.Fatalf("expected ErrInvalidVerificationCode, got %v", err)
	}

	f.tokens.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("token-1", nil)
	verified, err := f.uc.VerifyEmail(ctx, "alice@example.com", res.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.User.Verified || verified.Token != "token-1" || verified.User.PasswordHash != "" {
		t.Fatalf("unexpected verify result %+v", verified.User)
	}
	if f.uc.GetVerificationCode(ctx, "alice@example.com") != "" {
		t.Fatal("code should be consumed by verification")
	}

	if _, err := f.uc.SignIn(ctx, "alice@example.com", "wrong-Pass1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.uc.SignIn(ctx, "nobody@example.com", "Secret123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	f.tokens.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("token-2", nil)
	signedIn, err := f.uc.SignIn(ctx, "ALICE@example.com", "Secret123")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if signedIn.Token != "token-2" || signedIn.SessionID == "" {
		t.Fatalf("unexpected signin result %+v", signedIn)
	}
}

func TestAuthUseCase_SignUpValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, time.Minute)

	tests := []struct {
		name    string
		input   usecase.SignUpInput
		wantErr error
	}{
		{name: "bad email", input: usecase.SignUpInput{Email: "nope", Password: "Secret123", Name: "A"}, wantErr: domain.ErrInvalidEmail},
		{name: "weak password", input: usecase.SignUpInput{Email: "a@b.io", Password: "short", Name: "A"}, wantErr: domain.ErrPasswordTooWeak},
		{name: "missing name", input: usecase.SignUpInput{Email: "a@b.io", Password: "Secret123", Name: " "}, wantErr: domain.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.uc.SignUp(ctx, tt.input); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := f.uc.SignUp(ctx, usecase.SignUpInput{Email: "dup@b.io", Password: "Secret123", Name: "A"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.uc.SignUp(ctx, usecase.SignUpInput{Email: "DUP@b.io", Password: "Secret123", Name: "B"}); !errors.Is(err, domain.ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestAuthUseCase_VerificationCodeLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, time.Nanosecond)

	if _, err := f.uc.VerifyEmail(ctx, "ghost@b.io", "123456"); !errors.Is(err, domain.ErrVerificationCodeNotFound) {
		t.Fatalf("expected ErrVerificationCodeNotFound, got %v", err)
	}

	res, err := f.uc.SignUp(ctx, usecase.SignUpInput{Email: "late@b.io", Password: "Secret123", Name: "Late"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := f.uc.VerifyEmail(ctx, "late@b.io", res.Code); !errors.Is(err, domain.ErrVerificationCodeExpired) {
		t.Fatalf("expected ErrVerificationCodeExpired, got %v", err)
	}
	if f.uc.GetVerificationCode(ctx, "late@b.io") != "" {
		t.Fatal("expired code should not be shown")
	}

	resent, err := f.uc.ResendVerificationCode(ctx, "late@b.io")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(resent.Code) != 6 {
		t.Fatalf("expected six-digit code, got %q", resent.Code)
	}

	if _, err := f.uc.ResendVerificationCode(ctx, "ghost@b.io"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthUseCase_AuthenticateAndSignOut(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, time.Minute)

	res, err := f.uc.SignUp(ctx, usecase.SignUpInput{Email: "bob@b.io", Password: "Secret123", Name: "Bob"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	var issued *domain.TokenClaims
	f.tokens.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(func(user *domain.User, sessionID string) (string, error) {
		issued = &domain.TokenClaims{UserID: user.ID, Email: user.Email, SessionID: sessionID}
		return "bob-token", nil
	})
	auth, err := f.uc.VerifyEmail(ctx, "bob@b.io", res.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	f.tokens.EXPECT().Verify("bob-token").DoAndReturn(func(string) (*domain.TokenClaims, error) {
		return issued, nil
	}).Times(2)
	f.tokens.EXPECT().Verify("garbage").Return(nil, domain.ErrInvalidToken)

	user, session, err := f.uc.Authenticate(ctx, "bob-token")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "bob@b.io" || session.ID != auth.SessionID || user.PasswordHash != "" {
		t.Fatalf("unexpected identity %+v %+v", user, session)
	}

	if _, _, err := f.uc.Authenticate(ctx, "garbage"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	if err := f.uc.SignOut(ctx, auth.SessionID); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, _, err := f.uc.Authenticate(ctx, "bob-token"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after sign-out, got %v", err)
	}
}
