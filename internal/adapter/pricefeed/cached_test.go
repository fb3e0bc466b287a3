package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/coinwallet/internal/domain"
	"github.com/iho/coinwallet/internal/usecase/mocks"
)

func bitcoinMarket() map[string]*domain.MarketData {
	return map[string]*domain.MarketData{
		"bitcoin": {
			ID:           "bitcoin",
			Symbol:       "BTC",
			Name:         "Bitcoin",
			CurrentPrice: decimal.RequireFromString("65000"),
			Sparkline:    []decimal.Decimal{decimal.NewFromInt(64000), decimal.NewFromInt(65000)},
		},
	}
}

func TestCachedFeedMissFetchesAndStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	next := mocks.NewMockPriceFeed(ctrl)
	feed := NewCachedFeed(next, cache, 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	cache.EXPECT().Get(ctx, "prices:bitcoin,tether").Return(nil, domain.ErrKeyNotFound)
	next.EXPECT().FetchMarketData(ctx, []string{"tether", "bitcoin"}).Return(bitcoinMarket(), nil)
	cache.EXPECT().Set(ctx, "prices:bitcoin,tether", gomock.Any(), 30*time.Second).Return(nil)

	data, err := feed.FetchMarketData(ctx, []string{"tether", "bitcoin"})
	require.NoError(t, err)
	assert.True(t, data["bitcoin"].CurrentPrice.Equal(decimal.NewFromInt(65000)))
}

func TestCachedFeedHitSkipsUpstream(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	next := mocks.NewMockPriceFeed(ctrl)
	feed := NewCachedFeed(next, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	encoded, err := json.Marshal(bitcoinMarket())
	require.NoError(t, err)
	cache.EXPECT().Get(ctx, "prices:bitcoin").Return(encoded, nil)

	data, err := feed.FetchMarketData(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	require.Contains(t, data, "bitcoin")
	assert.Len(t, data["bitcoin"].Sparkline, 2)
}

func TestCachedFeedCacheErrorsFallThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	next := mocks.NewMockPriceFeed(ctrl)
	feed := NewCachedFeed(next, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	cache.EXPECT().Get(ctx, "prices:bitcoin").Return(nil, errors.New("redis down"))
	next.EXPECT().FetchMarketData(ctx, []string{"bitcoin"}).Return(bitcoinMarket(), nil)
	cache.EXPECT().Set(ctx, "prices:bitcoin", gomock.Any(), time.Minute).Return(errors.New("redis down"))

	data, err := feed.FetchMarketData(ctx, []string{"bitcoin"})
	require.NoError(t, err)
	assert.Contains(t, data, "bitcoin")
}

func TestCachedFeedUpstreamErrorIsNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCache(ctrl)
	next := mocks.NewMockPriceFeed(ctrl)
	feed := NewCachedFeed(next, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()
	upstreamErr := errors.New("rate limited")

	cache.EXPECT().Get(ctx, "prices:bitcoin").Return(nil, domain.ErrKeyNotFound)
	next.EXPECT().FetchMarketData(ctx, []string{"bitcoin"}).Return(nil, upstreamErr)

	_, err := feed.FetchMarketData(ctx, []string{"bitcoin"})
	assert.ErrorIs(t, err, upstreamErr)
}
