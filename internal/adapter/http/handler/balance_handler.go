package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/domain"
)

// BalanceService exposes coin balances.
type BalanceService interface {
	Balances(ctx context.Context) []*domain.CoinBalance
	Balance(ctx context.Context, coinKey string) (*domain.CoinBalance, error)
}

// BalanceHandler handles balance-related HTTP requests.
type BalanceHandler struct {
	balances BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balances BalanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

// List handles GET /balances.
func (h *BalanceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(h.balances.Balances(r.Context())))
}

// Get handles GET /balances/{coin}.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	balance, err := h.balances.Balance(r.Context(), chi.URLParam(r, "coin"))
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}
