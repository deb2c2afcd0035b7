package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stockfeed/internal/app/di"
	catalogadapters "stockfeed/internal/feature/catalog/adapters"
	"stockfeed/internal/feature/live/hub"
	"stockfeed/internal/feature/prices/usecase"
	"stockfeed/internal/platform/config"
	infradb "stockfeed/internal/platform/db"
	"stockfeed/internal/platform/logger"
	infraredis "stockfeed/internal/platform/redis"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const batchTimeout = 2 * time.Hour

// 使い方:
//
//	ingest            カタログ全銘柄を取り込む
//	ingest AAPL MSFT  指定した銘柄のみ取り込む
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	logg, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	db, err := infradb.Open(cfg.DB, logg)
	if err != nil {
		logg.Fatal("database unavailable", zap.Error(err))
	}

	// Redis があれば更新イベントをサーバープロセスへ中継し、キャッシュも無効化する
	var rdb *redisv9.Client
	if cfg.Redis.Addr != "" {
		if rdb, err = infraredis.NewRedisClient(ctx, cfg.Redis, logg); err != nil {
			logg.Warn("Redis unavailable. Updates will not be broadcast.", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}
	live := cfg.Live
	live.Backend = "redis"

	h := hub.New(logg)
	defer h.Close()
	uc := usecase.NewIngestUsecase(
		di.NewMarket(cfg, logg),
		catalogadapters.NewSymbolRepository(db),
		di.NewPriceStore(rdb, db, cfg.Ingest),
		di.NewPublisher(rdb, h, live),
		logg,
	)

	if symbols := os.Args[1:]; len(symbols) > 0 {
		failed := 0
		for _, s := range symbols {
			bar, _, err := uc.Ingest(ctx, strings.ToUpper(s))
			if err != nil {
				failed++
				logg.Error("ingest failed", zap.String("symbol", s), zap.Error(err))
				continue
			}
			logg.Info("ingested", zap.String("symbol", bar.Symbol), zap.Float64("close", bar.Close))
		}
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	sum, err := usecase.NewRunner(uc, logg).RunBatch(ctx)
	if err != nil {
		logg.Fatal("ingest batch failed", zap.Error(err))
	}
	logg.Info("ingest ok",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
	)
}
