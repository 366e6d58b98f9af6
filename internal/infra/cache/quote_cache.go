package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "delivery:quote"

// Redisの前段キャッシュ。Redisが落ちていても見積もりはnextに任せる
type CachedQuoteProvider struct {
	next   usecase.QuoteProvider
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedQuoteProvider(next usecase.QuoteProvider, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedQuoteProvider {
	return &CachedQuoteProvider{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func QuoteKey(req usecase.DeliveryQuoteRequest) string {
	return fmt.Sprintf("%s:%d:%d:%t", keyPrefix, req.CityCode, req.WeightGrams, req.IncludePickupPoints)
}

func (c *CachedQuoteProvider) Quote(ctx context.Context, req usecase.DeliveryQuoteRequest) (usecase.DeliveryQuote, error) {
	key := QuoteKey(req)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var q usecase.DeliveryQuote
		if jsonErr := json.Unmarshal(raw, &q); jsonErr == nil {
			return q, nil
		}
		c.logger.Warn("drop broken quote cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("quote cache get failed", zap.String("key", key), zap.Error(err))
	}

	q, err := c.next.Quote(ctx, req)
	if err != nil {
		return usecase.DeliveryQuote{}, err
	}

	b, err := json.Marshal(q)
	if err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("quote cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return q, nil
}
