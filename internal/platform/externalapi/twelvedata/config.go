// Package twelvedata provides a client for the Twelve Data stock market API.
package twelvedata

import (
	"time"

	"stockfeed/internal/platform/config"
)

// DefaultInterval is the bar interval requested when none is configured.
const DefaultInterval = "1day"

// Config holds configuration for the Twelve Data API client.
type Config struct {
	APIKey   string        // API key for authentication
	BaseURL  string        // Base URL for the API (e.g., "https://api.twelvedata.com")
	Timeout  time.Duration // HTTP request timeout
	Interval string        // Bar interval passed as the interval query parameter
}

// ConfigFrom builds the client configuration from the application config.
func ConfigFrom(td config.TwelveDataConfig, ingest config.IngestConfig) Config {
	interval := ingest.Interval
	if interval == "" {
		interval = DefaultInterval
	}
	return Config{
		APIKey:   td.APIKey,
		BaseURL:  td.BaseURL,
		Timeout:  td.Timeout,
		Interval: interval,
	}
}
