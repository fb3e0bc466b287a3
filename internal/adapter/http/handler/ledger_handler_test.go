package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/usecase"
)

type reconciliationServiceStub struct {
	checkFn  func(ctx context.Context) error
	reportFn func(ctx context.Context) (*usecase.ReconciliationReport, error)
}

func (s *reconciliationServiceStub) CheckLedgerConsistency(ctx context.Context) error {
	return s.checkFn(ctx)
}

func (s *reconciliationServiceStub) GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error) {
	return s.reportFn(ctx)
}

func TestLedgerHandler_CheckConsistency(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"consistent", nil, http.StatusOK},
		{"inconsistent", fmt.Errorf("%w: bitcoin", usecase.ErrInconsistentLedger), http.StatusConflict},
		{"failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := NewLedgerHandler(&reconciliationServiceStub{
				checkFn: func(ctx context.Context) error { return tt.err },
			})

			rec := httptest.NewRecorder()
			h.CheckConsistency(rec, httptest.NewRequest(http.MethodGet, "/ledger/consistency", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestLedgerHandler_Reconciliation(t *testing.T) {
	checked := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	h := NewLedgerHandler(&reconciliationServiceStub{
		reportFn: func(ctx context.Context) (*usecase.ReconciliationReport, error) {
			return &usecase.ReconciliationReport{
				TotalCoins:        3,
				ReconciledCoins:   2,
				TotalTransactions: 7,
				Discrepancies: []*usecase.ReconciliationResult{{
					CoinKey:           "bitcoin",
					Symbol:            "BTC",
					RecordedBalance:   decimal.RequireFromString("0.02"),
					CalculatedBalance: decimal.RequireFromString("0.025"),
					Difference:        decimal.RequireFromString("-0.005"),
					LastChecked:       checked,
				}},
				CheckedAt: checked,
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Reconciliation(rec, httptest.NewRequest(http.MethodGet, "/ledger/reconciliation", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ReconciliationReportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.LedgerConsistent || len(resp.Discrepancies) != 1 || resp.Discrepancies[0].Coin != "bitcoin" {
		t.Fatalf("unexpected report %+v", resp)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := CheckerFunc{Label: "store", Fn: func(ctx context.Context) error { return nil }}
	down := CheckerFunc{Label: "redis", Fn: func(ctx context.Context) error { return errors.New("connection refused") }}

	rec := httptest.NewRecorder()
	NewHealthHandler(ok).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "ready" || body["store"] != "ok" {
		t.Fatalf("unexpected readiness body %v", body)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(ok, down).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
