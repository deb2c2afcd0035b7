package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stockfeed/internal/app/di"
	"stockfeed/internal/platform/config"
	infradb "stockfeed/internal/platform/db"
	"stockfeed/internal/platform/logger"
	infraredis "stockfeed/internal/platform/redis"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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

	// db
	db, err := infradb.Open(cfg.DB, logg)
	if err != nil {
		logg.Fatal("database unavailable", zap.Error(err))
	}

	// Redis（任意）
	var rdb *redisv9.Client
	if cfg.Redis.Addr != "" {
		rdb, err = infraredis.NewRedisClient(ctx, cfg.Redis, logg)
		switch {
		case err != nil && cfg.Live.Backend == "redis":
			logg.Fatal("live.backend=redis but Redis is unavailable", zap.Error(err))
		case err != nil:
			logg.Warn("Redis unavailable. Running without cache.")
			rdb = nil
		default:
			defer func() {
				if err := rdb.Close(); err != nil {
					logg.Error("failed to close Redis client", zap.Error(err))
				}
			}()
		}
	}

	app, err := di.NewApp(cfg, di.Deps{DB: db, Redis: rdb, Market: di.NewMarket(cfg, logg)}, logg)
	if err != nil {
		logg.Fatal("failed to build app", zap.Error(err))
	}

	if app.Relay != nil {
		go func() {
			if err := app.Relay.Run(ctx); err != nil {
				logg.Error("relay stopped", zap.Error(err))
			}
		}()
	}
	if app.Scheduler != nil {
		app.Scheduler.Start()
		logg.Info("daily ingestion scheduled", zap.Time("next_run", app.Scheduler.NextRun()))
	}

	srv := &http.Server{
		Addr:              cfg.App.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logg.Info("server listening", zap.String("addr", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	// 先にライブ接続とバッチを止めてからHTTPサーバーを閉じる
	app.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown failed", zap.Error(err))
	}
}
