// Package di provides dependency injection factories for creating application components.
package di

import (
	"stockfeed/internal/platform/config"
	"stockfeed/internal/platform/externalapi/twelvedata"
	infrahttp "stockfeed/internal/platform/http"
	"stockfeed/internal/shared/ratelimiter"

	"go.uber.org/zap"
)

// NewMarket creates a fully configured TwelveDataMarket with HTTP client.
// All calls through the returned market share one rate-limit gate.
func NewMarket(cfg *config.Config, log *zap.Logger) *twelvedata.TwelveDataMarket {
	tcfg := twelvedata.ConfigFrom(cfg.TwelveData, cfg.Ingest)
	if tcfg.APIKey == "" {
		log.Warn("twelvedata.api_key is not set; upstream calls will be rejected")
	}
	gate := ratelimiter.NewGate(cfg.Ingest.MinInterval, nil)
	httpClient := infrahttp.NewHTTPClient(tcfg.Timeout, infrahttp.DefaultUserAgent)
	return twelvedata.NewTwelveDataMarket(tcfg, httpClient, gate, log)
}
