package di

import (
	"context"
	"fmt"

	"stockfeed/internal/app/router"
	catalogadapters "stockfeed/internal/feature/catalog/adapters"
	cataloghandler "stockfeed/internal/feature/catalog/transport/handler"
	catalogusecase "stockfeed/internal/feature/catalog/usecase"
	liveadapters "stockfeed/internal/feature/live/adapters"
	"stockfeed/internal/feature/live/hub"
	livetransport "stockfeed/internal/feature/live/transport"
	pricehandler "stockfeed/internal/feature/prices/transport/handler"
	"stockfeed/internal/feature/prices/usecase"
	"stockfeed/internal/platform/config"
	"stockfeed/internal/platform/cron"
	platformhandler "stockfeed/internal/platform/http/handler"
	jwtmw "stockfeed/internal/platform/jwt"
	"stockfeed/internal/platform/pubsub"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the externally constructed resources the app is built from.
// Redis may be nil.
type Deps struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Market usecase.MarketFetcher
}

// App holds the wired server components.
type App struct {
	Router    *gin.Engine
	Hub       *hub.Hub
	Ingest    *usecase.IngestUsecase
	Runner    *usecase.Runner
	Relay     *pubsub.Relay   // nil unless live.backend=redis
	Scheduler *cron.Scheduler // nil unless ingest.enabled
}

// NewApp wires repositories, usecases, handlers, and the router.
func NewApp(cfg *config.Config, deps Deps, log *zap.Logger) (*App, error) {
	h := hub.New(log)

	// Repository
	symbolRepo := catalogadapters.NewSymbolRepository(deps.DB)
	priceStore := NewPriceStore(deps.Redis, deps.DB, cfg.Ingest)
	followRepo := liveadapters.NewFollowingRepository(deps.DB)

	// Usecase
	publisher := NewPublisher(deps.Redis, h, cfg.Live)
	ingestUC := usecase.NewIngestUsecase(deps.Market, symbolRepo, priceStore, publisher, log)
	runner := usecase.NewRunner(ingestUC, log)
	symbolUC := catalogusecase.NewSymbolUsecase(symbolRepo, ingestUC, log)
	pricesUC := usecase.NewPricesUsecase(priceStore)

	// Handler
	verifier := jwtmw.NewVerifier(cfg.JWT.Secret)
	handlers := router.Handlers{
		Health:  platformhandler.NewHealthHandler(healthChecks(deps)),
		Symbols: cataloghandler.NewSymbolHandler(symbolUC),
		Prices:  pricehandler.NewPriceHandler(pricesUC),
		Ingest:  pricehandler.NewIngestHandler(ingestUC, runner),
		Gateway: livetransport.NewGateway(h, livetransport.Options{
			Group:      cfg.Live.Group,
			SendBuffer: cfg.Live.SendBuffer,
		}, verifier, followRepo, log),
	}

	app := &App{
		Router: router.NewRouter(handlers, router.Options{CORS: cfg.App.CORS, Verifier: verifier, Log: log}),
		Hub:    h,
		Ingest: ingestUC,
		Runner: runner,
	}

	if cfg.Live.Backend == "redis" && deps.Redis != nil {
		app.Relay = pubsub.NewRelay(deps.Redis, cfg.Live.Group, cfg.Live.Group, h, log)
	}
	if cfg.Ingest.Enabled {
		app.Scheduler = cron.NewScheduler(runner, log)
		if err := app.Scheduler.ScheduleDaily(cfg.Ingest.Schedule); err != nil {
			return nil, fmt.Errorf("ingest.schedule: %w", err)
		}
	}
	return app, nil
}

// Shutdown stops background work and disconnects every live connection.
func (a *App) Shutdown() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	a.Runner.Stop()
	a.Hub.Close()
}

func healthChecks(deps Deps) map[string]platformhandler.CheckFunc {
	checks := map[string]platformhandler.CheckFunc{
		"db": func(ctx context.Context) error {
			sqlDB, err := deps.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
