// Package coingecko fetches market data from the CoinGecko /coins/markets API.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	userAgent      = "coinwallet/1.0"
	maxBodyBytes   = 4 << 20
)

// StatusError is returned for a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("price api returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type sparkline struct {
	Price []decimal.Decimal `json:"price"`
}

type marketResponse struct {
	ID                      string          `json:"id"`
	Symbol                  string          `json:"symbol"`
	Name                    string          `json:"name"`
	CurrentPrice            decimal.Decimal `json:"current_price"`
	PriceChangePercentage7d decimal.Decimal `json:"price_change_percentage_7d_in_currency"`
	LastUpdated             time.Time       `json:"last_updated"`
	SparklineIn7d           *sparkline      `json:"sparkline_in_7d"`
}

func (r marketResponse) toDomain() *domain.MarketData {
	md := &domain.MarketData{
		ID:                      r.ID,
		Symbol:                  strings.ToUpper(r.Symbol),
		Name:                    r.Name,
		CurrentPrice:            r.CurrentPrice,
		PriceChangePercentage7d: r.PriceChangePercentage7d,
		LastUpdated:             r.LastUpdated,
	}
	if r.SparklineIn7d != nil {
		md.Sparkline = r.SparklineIn7d.Price
	}
	return md
}

// Client implements usecase.PriceFeed.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	logger          zerolog.Logger
	maxRetries      int
	initialInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry sets the retry budget and the first backoff interval.
func WithRetry(maxRetries int, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialInterval = initialInterval
	}
}

// NewClient creates a Client for baseURL, or DefaultBaseURL when empty.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		logger:          zerolog.Nop(),
		maxRetries:      3,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMarketData returns market data keyed by coin id. Ids the API does not
// know are absent from the result.
func (c *Client) FetchMarketData(ctx context.Context, ids []string) (map[string]*domain.MarketData, error) {
	if len(ids) == 0 {
		return map[string]*domain.MarketData{}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	var markets []marketResponse
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		markets, err = c.fetch(ctx, ids)
		if err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("price fetch failed, retrying")
		return err
	}, policy)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.MarketData, len(markets))
	for _, m := range markets {
		out[m.ID] = m.toDomain()
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, ids []string) ([]marketResponse, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(ids, ","))
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "7d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read price response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var markets []marketResponse
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode price response: %w", err))
	}
	return markets, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
