package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/adapter/http/middleware"
	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

type authServiceStub struct {
	signUpFn  func(ctx context.Context, input usecase.SignUpInput) (*usecase.SignUpResult, error)
	verifyFn  func(ctx context.Context, email, code string) (*usecase.AuthResult, error)
	signInFn  func(ctx context.Context, email, password string) (*usecase.AuthResult, error)
	signOutFn func(ctx context.Context, sessionID string) error
	resendFn  func(ctx context.Context, email string) (*usecase.SignUpResult, error)
	codes     map[string]string
}

func (s *authServiceStub) SignUp(ctx context.Context, input usecase.SignUpInput) (*usecase.SignUpResult, error) {
	return s.signUpFn(ctx, input)
}

func (s *authServiceStub) VerifyEmail(ctx context.Context, email, code string) (*usecase.AuthResult, error) {
	return s.verifyFn(ctx, email, code)
}

func (s *authServiceStub) SignIn(ctx context.Context, email, password string) (*usecase.AuthResult, error) {
	return s.signInFn(ctx, email, password)
}

func (s *authServiceStub) SignOut(ctx context.Context, sessionID string) error {
	return s.signOutFn(ctx, sessionID)
}

func (s *authServiceStub) ResendVerificationCode(ctx context.Context, email string) (*usecase.SignUpResult, error) {
	return s.resendFn(ctx, email)
}

func (s *authServiceStub) GetVerificationCode(ctx context.Context, email string) string {
	return s.codes[email]
}

type authObserverStub struct {
	calls int
	fails int
}

func (o *authObserverStub) ObserveAuth(err error) {
	o.calls++
	if err != nil {
		o.fails++
	}
}

func TestAuthHandler_SignUp(t *testing.T) {
	h := NewAuthHandler(&authServiceStub{
		signUpFn: func(ctx context.Context, input usecase.SignUpInput) (*usecase.SignUpResult, error) {
			if input.Email == "taken@example.com" {
				return nil, domain.ErrEmailAlreadyRegistered
			}
			return &usecase.SignUpResult{Email: input.Email, Code: "123456", Message: "Verification code sent"}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString(`{"email":"new@example.com","password":"Passw0rd!","name":"New"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp dto.SignUpResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != "123456" {
		t.Fatalf("expected code in response, got %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString(`{"email":"taken@example.com","password":"Passw0rd!","name":"Dup"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAuthHandler_SignIn(t *testing.T) {
	obs := &authObserverStub{}
	h := NewAuthHandler(&authServiceStub{
		signInFn: func(ctx context.Context, email, password string) (*usecase.AuthResult, error) {
			switch email {
			case "unverified@example.com":
				return nil, domain.ErrEmailNotVerified
			case "user@example.com":
				if password == "Passw0rd!" {
					return &usecase.AuthResult{User: &domain.User{ID: "u1", Email: email, PasswordHash: "hash"}, Token: "jwt", SessionID: "s1"}, nil
				}
			}
			return nil, domain.ErrInvalidCredentials
		},
	}, obs)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"email":"user@example.com","password":"Passw0rd!"}`, http.StatusOK},
		{"wrong password", `{"email":"user@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"unverified", `{"email":"unverified@example.com","password":"Passw0rd!"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.SignIn(rec, httptest.NewRequest(http.MethodPost, "/auth/signin", bytes.NewBufferString(tt.body)))
		if rec.Code != tt.wantStatus {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.wantStatus, rec.Code)
		}
		if tt.wantStatus == http.StatusOK {
			var resp dto.AuthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Token != "jwt" || resp.User == nil || resp.User.ID != "u1" {
				t.Fatalf("unexpected auth response %+v", resp)
			}
		}
	}

	if obs.calls != 3 || obs.fails != 2 {
		t.Fatalf("expected 3 observed attempts with 2 failures, got %d/%d", obs.calls, obs.fails)
	}
}

func TestAuthHandler_VerifyAndResend(t *testing.T) {
	h := NewAuthHandler(&authServiceStub{
		verifyFn: func(ctx context.Context, email, code string) (*usecase.AuthResult, error) {
			if code != "123456" {
				return nil, domain.ErrInvalidVerificationCode
			}
			return &usecase.AuthResult{User: &domain.User{ID: "u1", Email: email, Verified: true}, Token: "jwt"}, nil
		},
		resendFn: func(ctx context.Context, email string) (*usecase.SignUpResult, error) {
			return nil, domain.ErrUserNotFound
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodPost, "/auth/verify", bytes.NewBufferString(`{"email":"a@b.co","code":"000000"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodPost, "/auth/verify", bytes.NewBufferString(`{"email":"a@b.co","code":"123456"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Resend(rec, httptest.NewRequest(http.MethodPost, "/auth/resend", bytes.NewBufferString(`{"email":"ghost@b.co"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuthHandler_VerificationCode(t *testing.T) {
	h := NewAuthHandler(&authServiceStub{codes: map[string]string{"a@b.co": "654321"}}, nil)

	rec := httptest.NewRecorder()
	h.VerificationCode(rec, httptest.NewRequest(http.MethodGet, "/auth/verification-code?email=a@b.co", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.VerificationCode(rec, httptest.NewRequest(http.MethodGet, "/auth/verification-code?email=x@b.co", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.VerificationCode(rec, httptest.NewRequest(http.MethodGet, "/auth/verification-code", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_MeAndSignOut(t *testing.T) {
	var signedOut string
	h := NewAuthHandler(&authServiceStub{
		signOutFn: func(ctx context.Context, sessionID string) error {
			signedOut = sessionID
			return nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rec.Code)
	}

	ctx := context.WithValue(context.Background(), middleware.UserContextKey, &domain.User{ID: "u1", Email: "a@b.co"})
	ctx = context.WithValue(ctx, middleware.SessionContextKey, &domain.Session{ID: "s1", UserID: "u1"})

	rec = httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil).WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.SignOut(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil).WithContext(ctx))
	if rec.Code != http.StatusNoContent || signedOut != "s1" {
		t.Fatalf("expected session s1 signed out, got %d %q", rec.Code, signedOut)
	}
}
