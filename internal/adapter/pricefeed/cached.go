// Package pricefeed holds usecase.PriceFeed decorators.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase"
)

// CachedFeed serves repeated requests for the same coin set from a cache
// for ttl. Cache failures fall through to the wrapped feed.
type CachedFeed struct {
	next   usecase.PriceFeed
	cache  usecase.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedFeed wraps next with cache.
func NewCachedFeed(next usecase.PriceFeed, cache usecase.Cache, ttl time.Duration, logger zerolog.Logger) *CachedFeed {
	return &CachedFeed{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (f *CachedFeed) FetchMarketData(ctx context.Context, ids []string) (map[string]*domain.MarketData, error) {
	key := cacheKey(ids)

	data, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached map[string]*domain.MarketData
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return cached, nil
		}
		f.logger.Warn().Str("key", key).Msg("discarding undecodable cached prices")
	case !errors.Is(err, domain.ErrKeyNotFound):
		f.logger.Warn().Err(err).Str("key", key).Msg("price cache read failed")
	}

	fresh, err := f.next.FetchMarketData(ctx, ids)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(fresh); err == nil {
		if err := f.cache.Set(ctx, key, encoded, f.ttl); err != nil {
			f.logger.Warn().Err(err).Str("key", key).Msg("price cache write failed")
		}
	}
	return fresh, nil
}

// cacheKey is order independent.
func cacheKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return "prices:" + strings.Join(sorted, ",")
}
