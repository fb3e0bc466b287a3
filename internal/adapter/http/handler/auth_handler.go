package handler

import (
	"context"
	"net/http"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/adapter/http/middleware"
	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// AuthService is the account lifecycle behind the auth endpoints.
type AuthService interface {
	SignUp(ctx context.Context, input usecase.SignUpInput) (*usecase.SignUpResult, error)
	VerifyEmail(ctx context.Context, email, code string) (*usecase.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*usecase.AuthResult, error)
	SignOut(ctx context.Context, sessionID string) error
	ResendVerificationCode(ctx context.Context, email string) (*usecase.SignUpResult, error)
	GetVerificationCode(ctx context.Context, email string) string
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth     AuthService
	observer middleware.AuthObserver
}

// NewAuthHandler creates a new auth handler. observer may be nil.
func NewAuthHandler(auth AuthService, observer middleware.AuthObserver) *AuthHandler {
	return &AuthHandler{auth: auth, observer: observer}
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.auth.SignUp(r.Context(), usecase.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeDomainError(w, "sign up failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SignUpResponse{Email: res.Email, Code: res.Code, Message: res.Message})
}

// Verify handles POST /auth/verify.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.auth.VerifyEmail(r.Context(), req.Email, req.Code)
	h.observe(err)
	if err != nil {
		writeDomainError(w, "verification failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{Token: res.Token, User: dto.UserFromDomain(res.User)})
}

// SignIn handles POST /auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	h.observe(err)
	if err != nil {
		writeDomainError(w, "sign in failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{Token: res.Token, User: dto.UserFromDomain(res.User)})
}

// Resend handles POST /auth/resend.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.auth.ResendVerificationCode(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, "failed to resend code", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SignUpResponse{Email: res.Email, Code: res.Code, Message: res.Message})
}

// VerificationCode handles GET /auth/verification-code?email=.
// Codes are never emailed; this is how a caller retrieves one.
func (h *AuthHandler) VerificationCode(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required", "")
		return
	}

	code := h.auth.GetVerificationCode(r.Context(), email)
	if code == "" {
		writeError(w, http.StatusNotFound, "no active verification code", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "code": code})
}

// SignOut handles POST /auth/signout. Requires the auth middleware.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeDomainError(w, "unauthorized", domain.ErrUnauthorized)
		return
	}

	if err := h.auth.SignOut(r.Context(), session.ID); err != nil {
		writeDomainError(w, "sign out failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeDomainError(w, "unauthorized", domain.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

func (h *AuthHandler) observe(err error) {
	if h.observer != nil {
		h.observer.ObserveAuth(err)
	}
}
