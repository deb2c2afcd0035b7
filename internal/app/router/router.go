package router

import (
	"time"

	cataloghandler "stockfeed/internal/feature/catalog/transport/handler"
	livetransport "stockfeed/internal/feature/live/transport"
	pricehandler "stockfeed/internal/feature/prices/transport/handler"
	platformhandler "stockfeed/internal/platform/http/handler"
	jwtmw "stockfeed/internal/platform/jwt"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers はルータに登録するハンドラー群です。
type Handlers struct {
	Health  *platformhandler.HealthHandler
	Symbols *cataloghandler.SymbolHandler
	Prices  *pricehandler.PriceHandler
	Ingest  *pricehandler.IngestHandler
	Gateway *livetransport.Gateway
}

// Options はルータ全体の設定です。
type Options struct {
	CORS     bool
	Verifier *jwtmw.Verifier
	Log      *zap.Logger
}

func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(opts.Log, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(opts.Log, true))
	if opts.CORS {
		r.Use(cors.Default())
	}

	// 認証不要
	// 導通確認用
	r.GET("/healthz", h.Health.Live)
	r.HEAD("/healthz", h.Health.Live)
	r.OPTIONS("/healthz", h.Health.Live)
	r.GET("/readyz", h.Health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ライブ配信（トークンは任意。あればフォロー銘柄に絞り込む）
	r.GET("/ws", h.Gateway.Serve)

	r.GET("/symbols", h.Symbols.List)
	r.GET("/prices", h.Prices.Latest)
	r.GET("/prices/:symbol", h.Prices.History)

	// 書き込み・取り込みトリガーは認証必須
	auth := r.Group("/")
	if opts.Verifier.Enabled() {
		auth.Use(jwtmw.AuthRequired(opts.Verifier))
	} else {
		opts.Log.Warn("jwt.secret is not set; write and trigger endpoints are unauthenticated")
	}
	{
		auth.POST("/symbols", h.Symbols.Register)
		auth.DELETE("/symbols/:code", h.Symbols.Delete)
		auth.POST("/ingest", h.Ingest.IngestAll)
		auth.POST("/ingest/:symbol", h.Ingest.IngestOne)
	}

	return r
}
