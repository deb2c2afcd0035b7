package di

import (
	"stockfeed/internal/feature/live/hub"
	priceadapters "stockfeed/internal/feature/prices/adapters"
	"stockfeed/internal/feature/prices/usecase"
	"stockfeed/internal/platform/cache"
	"stockfeed/internal/platform/config"
	"stockfeed/internal/platform/pubsub"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewPriceStore creates the price bar store.
// If Redis is available, reads are cached until the next scheduled batch.
// Otherwise, it uses the database directly.
func NewPriceStore(rdb *redis.Client, db *gorm.DB, ingest config.IngestConfig) cache.PriceStore {
	repo := priceadapters.NewPriceBarRepository(db)
	if rdb != nil {
		return cache.NewCachingPriceStore(rdb, 0, repo, "prices").ExpireAtRefresh(ingest.Schedule)
	}
	return repo
}

// NewPublisher creates the update event publisher.
// With the redis backend events go through Redis so every server process
// (and the standalone ingest command) reaches every connection. Otherwise
// events go straight to the in-process hub.
func NewPublisher(rdb *redis.Client, h *hub.Hub, live config.LiveConfig) usecase.Publisher {
	if live.Backend == "redis" && rdb != nil {
		return pubsub.NewRedisPublisher(rdb, live.Group)
	}
	return hub.NewGroupPublisher(h, live.Group)
}
