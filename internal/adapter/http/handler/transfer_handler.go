package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/usecase"
)

// TransferService sends coins.
type TransferService interface {
	MockTransfer(ctx context.Context, coinKey string, amount decimal.Decimal, toAddress string) usecase.TransferResult
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transfers TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transfers TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Create handles POST /transfers. A failed transfer still reports its placeholder tx id.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res := h.transfers.MockTransfer(r.Context(), req.Coin, req.Amount, req.ToAddress)
	resp := dto.TransferResponse{Success: res.Success, TxID: res.TxID, Error: res.Error}
	if !res.Success {
		writeJSON(w, mapDomainError(res.Err), resp)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
