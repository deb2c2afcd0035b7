package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/usecase"
	"stockfeed/internal/platform/externalapi/twelvedata/dto"
	"stockfeed/internal/shared/ratelimiter"

	"go.uber.org/zap"
)

// errMissingField is wrapped when a required value of values[0] is absent.
var errMissingField = errors.New("missing field")

// TwelveDataMarket はTwelve Data外部APIから最新の日足を取得するMarketFetcher実装です。
// すべての呼び出しは共有のゲートを通過してから送信されます。
type TwelveDataMarket struct {
	cfg    Config
	client *http.Client
	gate   ratelimiter.RateLimiterInterface
	log    *zap.Logger
}

// TwelveDataMarketがMarketFetcherを実装していることをコンパイル時に検証します。
var _ usecase.MarketFetcher = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket は指定された設定、HTTPクライアント、ゲートでTwelveDataMarketを生成します。
func NewTwelveDataMarket(cfg Config, client *http.Client, gate ratelimiter.RateLimiterInterface, log *zap.Logger) *TwelveDataMarket {
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	return &TwelveDataMarket{cfg: cfg, client: client, gate: gate, log: log}
}

// LatestBar fetches the most recent bar of symbol. The bar's Date keeps
// whatever time component the API returned.
//
// Every failure is returned as *usecase.DataSourceError. No retry is attempted.
func (t *TwelveDataMarket) LatestBar(ctx context.Context, symbol string) (entity.PriceBar, error) {
	bar, err := t.latestBar(ctx, symbol)
	if err != nil {
		return entity.PriceBar{}, &usecase.DataSourceError{Symbol: symbol, Err: err}
	}
	return bar, nil
}

func (t *TwelveDataMarket) latestBar(ctx context.Context, symbol string) (entity.PriceBar, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return entity.PriceBar{}, fmt.Errorf("rate gate: %w", err)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", t.cfg.Interval)
	q.Set("outputsize", "1")
	q.Set("apikey", t.cfg.APIKey)
	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(t.cfg.BaseURL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return entity.PriceBar{}, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return entity.PriceBar{}, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			t.log.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return entity.PriceBar{}, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return entity.PriceBar{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status == "error" {
		return entity.PriceBar{}, fmt.Errorf("twelvedata: %s", body.Message)
	}
	if len(body.Values) == 0 {
		return entity.PriceBar{}, fmt.Errorf("values[0]: %w", errMissingField)
	}
	return parseValue(symbol, body.Values[0])
}

// parseValue は1件の値をPriceBarに変換します。
func parseValue(symbol string, v dto.TimeSeriesValue) (entity.PriceBar, error) {
	tm, err := parseDatetime(v.Datetime)
	if err != nil {
		return entity.PriceBar{}, err
	}

	var nums [5]float64
	fields := [5]struct{ name, raw string }{
		{"open", v.Open}, {"high", v.High}, {"low", v.Low}, {"close", v.Close}, {"volume", v.Volume},
	}
	for i, f := range fields {
		if f.raw == "" {
			return entity.PriceBar{}, fmt.Errorf("%s: %w", f.name, errMissingField)
		}
		n, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return entity.PriceBar{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		nums[i] = n
	}

	return entity.PriceBar{
		Symbol: symbol,
		Date:   tm,
		Open:   nums[0],
		High:   nums[1],
		Low:    nums[2],
		Close:  nums[3],
		Volume: nums[4],
	}, nil
}

func parseDatetime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("datetime: %w", errMissingField)
	}
	tm, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		tm, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return tm, nil
}
