package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// TransactionService is the wallet's transaction command surface.
type TransactionService interface {
	CreateTransaction(ctx context.Context, coinKey string, amount decimal.Decimal, toAddress string, txType domain.TransactionType) usecase.CreateResult
	UpdateTransaction(ctx context.Context, id string, changes usecase.TransactionChanges) usecase.Result
	DeleteTransaction(ctx context.Context, id string) usecase.Result
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, bool)
}

// TransactionLister pages through the transaction log.
type TransactionLister interface {
	List(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
}

// TransactionHandler handles transaction-related HTTP requests.
type TransactionHandler struct {
	wallet TransactionService
	log    TransactionLister
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(wallet TransactionService, log TransactionLister) *TransactionHandler {
	return &TransactionHandler{wallet: wallet, log: log}
}

// Create handles POST /transactions.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res := h.wallet.CreateTransaction(r.Context(), req.Coin, req.Amount, req.ToAddress, domain.TransactionType(req.Type))
	if !res.Success {
		writeDomainError(w, "failed to create transaction", res.Err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(res.Transaction))
}

// Get handles GET /transactions/{id}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.wallet.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found", "")
		return
	}
	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// List handles GET /transactions?coin=&limit=&offset=.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	input := usecase.ListTransactionsInput{
		CoinKey: r.URL.Query().Get("coin"),
		Limit:   parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset:  parseIntQuery(r, "offset", 0),
	}

	txs, err := h.log.List(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	writeJSON(w, http.StatusOK, dto.TransactionListFromDomain(txs, limit, offset))
}

// Update handles PATCH /transactions/{id}.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res := h.wallet.UpdateTransaction(r.Context(), id, req.ToChanges())
	if !res.Success {
		writeDomainError(w, "failed to update transaction", res.Err)
		return
	}

	tx, ok := h.wallet.GetTransaction(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found", "")
		return
	}
	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// Delete handles DELETE /transactions/{id}.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res := h.wallet.DeleteTransaction(r.Context(), chi.URLParam(r, "id"))
	if !res.Success {
		writeDomainError(w, "failed to delete transaction", res.Err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
