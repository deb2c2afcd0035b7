// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/usecase"
)

// PriceStore is the combined write and read side of the price bar repository.
type PriceStore interface {
	usecase.PriceBarRepository
	usecase.PriceReader
}

var _ PriceStore = (*CachingPriceStore)(nil)

// CachingPriceStore decorates a PriceStore with Redis caching of the read
// paths. Every successful upsert invalidates the latest-prices entry and the
// history entries of the upserted symbol.
type CachingPriceStore struct {
	inner     PriceStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	refreshAt string
	now       func() time.Time
}

// NewCachingPriceStore decorates a PriceStore with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "prices".
func NewCachingPriceStore(rdb *redis.Client, ttl time.Duration, inner PriceStore, namespace string) *CachingPriceStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "prices"
	}
	return &CachingPriceStore{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		now:       time.Now,
	}
}

// ExpireAtRefresh caps cache entries so none outlives the next scheduled
// batch at hh:mm UTC.
func (c *CachingPriceStore) ExpireAtRefresh(hhmm string) *CachingPriceStore {
	c.refreshAt = hhmm
	return c
}

// UpsertAndMarkFresh writes through and invalidates related cache entries.
func (c *CachingPriceStore) UpsertAndMarkFresh(ctx context.Context, symbolID uint, bar entity.PriceBar) error {
	if err := c.inner.UpsertAndMarkFresh(ctx, symbolID, bar); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	// Best effort: don't fail the write if cache deletion fails
	_ = c.rdb.Del(ctx, c.latestKey()).Err()
	_ = c.deleteByPattern(ctx, escapeGlob(c.historyKeyPrefix(bar.Symbol))+"*")
	return nil
}

// Latest returns the latest prices, checking cache first then falling back to the database.
func (c *CachingPriceStore) Latest(ctx context.Context) ([]entity.LatestPrice, error) {
	if c.rdb == nil {
		return c.inner.Latest(ctx)
	}
	return cached(ctx, c, c.latestKey(), func() ([]entity.LatestPrice, error) {
		return c.inner.Latest(ctx)
	})
}

// History returns bar history, checking cache first then falling back to the database.
func (c *CachingPriceStore) History(ctx context.Context, symbol string, limit int) ([]entity.PriceBar, error) {
	if c.rdb == nil {
		return c.inner.History(ctx, symbol, limit)
	}
	return cached(ctx, c, c.historyKey(symbol, limit), func() ([]entity.PriceBar, error) {
		return c.inner.History(ctx, symbol, limit)
	})
}

func cached[T any](ctx context.Context, c *CachingPriceStore, key string, load func() ([]T, error)) ([]T, error) {
	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []T
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := load()
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttlFor()).Err()
	}
	return out, nil
}

func (c *CachingPriceStore) ttlFor() time.Duration {
	if c.refreshAt == "" {
		return c.ttl
	}
	d, err := TimeUntilNext(c.refreshAt, time.UTC, c.now())
	if err != nil || d >= c.ttl {
		return c.ttl
	}
	if d < time.Second {
		return time.Second
	}
	return d
}

func (c *CachingPriceStore) latestKey() string {
	return c.namespace + ":latest"
}

func (c *CachingPriceStore) historyKey(symbol string, limit int) string {
	return fmt.Sprintf("%s%d", c.historyKeyPrefix(symbol), limit)
}

// historyKeyPrefix generates a prefix for invalidating a symbol's history entries.
func (c *CachingPriceStore) historyKeyPrefix(symbol string) string {
	return fmt.Sprintf("%s:history:%s:", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPriceStore) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// escapeGlob escapes SCAN MATCH metacharacters so s matches only itself.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '*', '?', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
