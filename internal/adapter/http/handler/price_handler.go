package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/coinwallet/internal/adapter/http/dto"
	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/infrastructure/chart"
	"github.com/iho/coinwallet/internal/usecase"
)

const maxSparklineSize = 1200

// PriceService exposes the polled market data.
type PriceService interface {
	Prices() map[string]*domain.MarketData
	Price(coinID string) (*domain.MarketData, error)
	LoadingPrices() bool
	RefreshPrices(ctx context.Context) error
	Portfolio(ctx context.Context) usecase.Portfolio
}

// PriceHandler handles price and portfolio requests.
type PriceHandler struct {
	prices PriceService
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(prices PriceService) *PriceHandler {
	return &PriceHandler{prices: prices}
}

// List handles GET /prices.
func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.prices.Prices()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resp := dto.PricesResponse{
		Loading: h.prices.LoadingPrices(),
		Prices:  make([]*dto.MarketResponse, 0, len(ids)),
	}
	for _, id := range ids {
		resp.Prices = append(resp.Prices, dto.MarketFromDomain(all[id]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /prices/{coin}.
func (h *PriceHandler) Get(w http.ResponseWriter, r *http.Request) {
	md, err := h.prices.Price(chi.URLParam(r, "coin"))
	if err != nil {
		writeDomainError(w, "price not available", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MarketFromDomain(md))
}

// Refresh handles POST /prices/refresh.
func (h *PriceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.prices.RefreshPrices(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "failed to refresh prices", err.Error())
		return
	}
	h.List(w, r)
}

// Sparkline handles GET /prices/{coin}/sparkline.{format}?width=&height=.
func (h *PriceHandler) Sparkline(w http.ResponseWriter, r *http.Request) {
	format := chart.Format(chi.URLParam(r, "format"))
	if format != chart.FormatSVG && format != chart.FormatPNG {
		writeError(w, http.StatusBadRequest, "unsupported format", "use svg or png")
		return
	}

	md, err := h.prices.Price(chi.URLParam(r, "coin"))
	if err != nil {
		writeDomainError(w, "price not available", err)
		return
	}

	opts := chart.Options{
		Width:  min(parseIntQuery(r, "width", 0), maxSparklineSize),
		Height: min(parseIntQuery(r, "height", 0), maxSparklineSize),
	}

	var buf bytes.Buffer
	if err := chart.RenderSparkline(&buf, md, format, opts); err != nil {
		if errors.Is(err, chart.ErrNotEnoughPoints) {
			writeError(w, http.StatusNotFound, "sparkline not available", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to render sparkline", err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Portfolio handles GET /portfolio.
func (h *PriceHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.PortfolioFromUseCase(h.prices.Portfolio(r.Context())))
}
