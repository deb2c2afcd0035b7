// Package usecase implements ingestion and read paths for daily price bars.
package usecase

import (
	"context"
	"errors"
	"time"

	catalogdomain "stockfeed/internal/feature/catalog/domain"
	catalogentity "stockfeed/internal/feature/catalog/domain/entity"
	"stockfeed/internal/feature/prices/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_ingest_total",
		Help: "Single-symbol ingestions by result.",
	}, []string{"result"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockfeed_ingest_batch_duration_seconds",
		Help:    "Wall time of a full catalog ingestion batch.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// MarketFetcher は外部APIから銘柄の最新日足を取得します。
// 失敗時は *DataSourceError を返します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketFetcher interface {
	LatestBar(ctx context.Context, symbol string) (entity.PriceBar, error)
}

// SymbolCatalog は取り込み対象の銘柄カタログへの読み取りアクセスです。
type SymbolCatalog interface {
	FindByCode(ctx context.Context, code string) (*catalogentity.Symbol, error)
	ListCodes(ctx context.Context) ([]string, error)
}

// PriceBarRepository は価格バーの書き込みレイヤーを抽象化します。
type PriceBarRepository interface {
	// UpsertAndMarkFresh upserts bar and sets the symbol's freshness pointer to
	// bar.Date in one transaction. Either both are applied or neither.
	UpsertAndMarkFresh(ctx context.Context, symbolID uint, bar entity.PriceBar) error
}

// Publisher は更新イベントをライブ接続へ配信します。
type Publisher interface {
	Publish(ctx context.Context, ev entity.UpdateEvent) error
}

// Outcome is the per-symbol result of a batch run.
type Outcome struct {
	Symbol string
	Bar    entity.PriceBar
	Err    error
}

// Summary counts the results of a batch run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// IngestUsecase は外部APIから最新の日足を取得し、永続化して更新を配信します。
type IngestUsecase struct {
	market    MarketFetcher
	symbols   SymbolCatalog
	bars      PriceBarRepository
	publisher Publisher
	log       *zap.Logger
}

// NewIngestUsecase は新しい IngestUsecase を作成します。publisher は nil でもよく、その場合は配信しません。
func NewIngestUsecase(market MarketFetcher, symbols SymbolCatalog, bars PriceBarRepository, publisher Publisher, log *zap.Logger) *IngestUsecase {
	return &IngestUsecase{market: market, symbols: symbols, bars: bars, publisher: publisher, log: log}
}

// Ingest fetches the latest bar for symbol, stores it together with the
// freshness pointer and publishes an UpdateEvent.
//
// Errors are *UnknownSymbolError, *DataSourceError or *PersistenceError.
// Nothing is written or published when an error is returned.
func (iu *IngestUsecase) Ingest(ctx context.Context, symbol string) (entity.PriceBar, entity.UpdateEvent, error) {
	bar, ev, err := iu.ingest(ctx, symbol)
	ingestTotal.WithLabelValues(resultLabel(err)).Inc()
	return bar, ev, err
}

func (iu *IngestUsecase) ingest(ctx context.Context, symbol string) (entity.PriceBar, entity.UpdateEvent, error) {
	s, err := iu.symbols.FindByCode(ctx, symbol)
	if errors.Is(err, catalogdomain.ErrSymbolNotFound) {
		return entity.PriceBar{}, entity.UpdateEvent{}, &UnknownSymbolError{Symbol: symbol, Err: err}
	}
	if err != nil {
		return entity.PriceBar{}, entity.UpdateEvent{}, &PersistenceError{Symbol: symbol, Err: err}
	}

	bar, err := iu.market.LatestBar(ctx, s.Code)
	if err != nil {
		var dse *DataSourceError
		if !errors.As(err, &dse) {
			err = &DataSourceError{Symbol: s.Code, Err: err}
		}
		return entity.PriceBar{}, entity.UpdateEvent{}, err
	}
	bar.Symbol = s.Code
	bar.Date = entity.NormalizeDate(bar.Date)

	if err := iu.bars.UpsertAndMarkFresh(ctx, s.ID, bar); err != nil {
		return entity.PriceBar{}, entity.UpdateEvent{}, &PersistenceError{Symbol: s.Code, Err: err}
	}

	ev := entity.NewUpdateEvent(bar)
	if iu.publisher != nil {
		// 配信失敗は取り込み結果に影響させない
		if err := iu.publisher.Publish(ctx, ev); err != nil {
			iu.log.Warn("publish update failed", zap.String("symbol", s.Code), zap.Error(err))
		}
	}
	return bar, ev, nil
}

// Refresh runs Ingest and discards the bar. It lets the catalog refresh a
// newly registered symbol.
func (iu *IngestUsecase) Refresh(ctx context.Context, code string) error {
	_, _, err := iu.Ingest(ctx, code)
	return err
}

// IngestAll ingests every catalog symbol in catalog order, one at a time.
// A failing symbol is logged and counted and the batch moves on. When
// outcomes is non-nil every per-symbol result is sent to it; the caller must
// drain it. A cancelled ctx stops scheduling further symbols.
//
// The returned error is non-nil only when the catalog itself cannot be read.
func (iu *IngestUsecase) IngestAll(ctx context.Context, outcomes chan<- Outcome) (Summary, error) {
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	codes, err := iu.symbols.ListCodes(ctx)
	if err != nil {
		return Summary{}, &PersistenceError{Symbol: "*", Err: err}
	}

	var sum Summary
	for _, code := range codes {
		if ctx.Err() != nil {
			iu.log.Info("ingestion batch cancelled", zap.Int("remaining", len(codes)-sum.Total))
			break
		}
		sum.Total++

		bar, _, err := iu.Ingest(ctx, code)
		if err != nil {
			// 1つの銘柄でエラーが発生しても処理を止めずにログに出力し、次の銘柄へ
			sum.Failed++
			iu.log.Error("failed to ingest symbol", zap.String("symbol", code), zap.Error(err))
		} else {
			sum.Succeeded++
		}

		if outcomes != nil {
			select {
			case outcomes <- Outcome{Symbol: code, Bar: bar, Err: err}:
			case <-ctx.Done():
			}
		}
	}

	iu.log.Info("ingestion batch finished",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sum, nil
}

func resultLabel(err error) string {
	var (
		dse *DataSourceError
		use *UnknownSymbolError
		pe  *PersistenceError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &dse):
		return "data_source_error"
	case errors.As(err, &use):
		return "unknown_symbol"
	case errors.As(err, &pe):
		return "persistence_error"
	default:
		return "error"
	}
}
