package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	catalogdomain "stockfeed/internal/feature/catalog/domain"
	catalogentity "stockfeed/internal/feature/catalog/domain/entity"
	"stockfeed/internal/feature/prices/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockMarketFetcher はMarketFetcherインターフェースのモック実装です。
type mockMarketFetcher struct {
	LatestBarFunc func(ctx context.Context, symbol string) (entity.PriceBar, error)
	mu            sync.Mutex
	calls         []string
}

func (m *mockMarketFetcher) LatestBar(ctx context.Context, symbol string) (entity.PriceBar, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()
	return m.LatestBarFunc(ctx, symbol)
}

// mockSymbolCatalog はSymbolCatalogインターフェースのモック実装です。
type mockSymbolCatalog struct {
	symbols []catalogentity.Symbol
	findErr error
	listErr error
}

func (m *mockSymbolCatalog) FindByCode(ctx context.Context, code string) (*catalogentity.Symbol, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := range m.symbols {
		if m.symbols[i].Code == code {
			s := m.symbols[i]
			return &s, nil
		}
	}
	return nil, catalogdomain.ErrSymbolNotFound
}

func (m *mockSymbolCatalog) ListCodes(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	codes := make([]string, 0, len(m.symbols))
	for _, s := range m.symbols {
		codes = append(codes, s.Code)
	}
	return codes, nil
}

type storedBar struct {
	SymbolID uint
	Bar      entity.PriceBar
}

// mockPriceBarRepository はPriceBarRepositoryインターフェースのモック実装です。
type mockPriceBarRepository struct {
	err    error
	stored []storedBar
}

func (m *mockPriceBarRepository) UpsertAndMarkFresh(ctx context.Context, symbolID uint, bar entity.PriceBar) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, storedBar{SymbolID: symbolID, Bar: bar})
	return nil
}

// mockPublisher はPublisherインターフェースのモック実装です。
type mockPublisher struct {
	err    error
	events []entity.UpdateEvent
}

func (m *mockPublisher) Publish(ctx context.Context, ev entity.UpdateEvent) error {
	m.events = append(m.events, ev)
	return m.err
}

func catalogOf(codes ...string) *mockSymbolCatalog {
	c := &mockSymbolCatalog{}
	for i, code := range codes {
		c.symbols = append(c.symbols, catalogentity.Symbol{ID: uint(i + 1), Code: code})
	}
	return c
}

func fixedBar(close float64) func(ctx context.Context, symbol string) (entity.PriceBar, error) {
	return func(ctx context.Context, symbol string) (entity.PriceBar, error) {
		return entity.PriceBar{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 100, High: 110, Low: 95, Close: close, Volume: 1e6}, nil
	}
}

func TestIngestUsecase_Ingest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		symbol        string
		fetch         func(ctx context.Context, symbol string) (entity.PriceBar, error)
		repoErr       error
		catalogErr    error
		publishErr    error
		wantErrType   any
		wantStored    int
		wantPublished int
	}{
		{
			name:          "success: stores bar and publishes event",
			symbol:        "AAPL",
			fetch:         fixedBar(105.0),
			wantStored:    1,
			wantPublished: 1,
		},
		{
			name:        "failure: unknown symbol never fetches",
			symbol:      "ZZZZ",
			fetch:       fixedBar(1),
			wantErrType: &UnknownSymbolError{},
		},
		{
			name:   "failure: data source error writes nothing",
			symbol: "AAPL",
			fetch: func(ctx context.Context, symbol string) (entity.PriceBar, error) {
				return entity.PriceBar{}, &DataSourceError{Symbol: symbol, Err: errors.New("timeout")}
			},
			wantErrType: &DataSourceError{},
		},
		{
			name:   "failure: plain fetch error is wrapped as data source error",
			symbol: "AAPL",
			fetch: func(ctx context.Context, symbol string) (entity.PriceBar, error) {
				return entity.PriceBar{}, errors.New("connection refused")
			},
			wantErrType: &DataSourceError{},
		},
		{
			name:        "failure: persistence error publishes nothing",
			symbol:      "AAPL",
			fetch:       fixedBar(105.0),
			repoErr:     errors.New("disk full"),
			wantErrType: &PersistenceError{},
		},
		{
			name:        "failure: catalog read error is a persistence error",
			symbol:      "AAPL",
			fetch:       fixedBar(105.0),
			catalogErr:  errors.New("db down"),
			wantErrType: &PersistenceError{},
		},
		{
			name:          "success: publish failure is not returned",
			symbol:        "AAPL",
			fetch:         fixedBar(105.0),
			publishErr:    errors.New("redis down"),
			wantStored:    1,
			wantPublished: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			market := &mockMarketFetcher{LatestBarFunc: tt.fetch}
			catalog := catalogOf("AAPL", "MSFT")
			catalog.findErr = tt.catalogErr
			repo := &mockPriceBarRepository{err: tt.repoErr}
			pub := &mockPublisher{err: tt.publishErr}
			uc := NewIngestUsecase(market, catalog, repo, pub, zap.NewNop())

			bar, ev, err := uc.Ingest(context.Background(), tt.symbol)

			assert.Len(t, repo.stored, tt.wantStored)
			assert.Len(t, pub.events, tt.wantPublished)

			if tt.wantErrType != nil {
				require.Error(t, err)
				switch tt.wantErrType.(type) {
				case *UnknownSymbolError:
					var target *UnknownSymbolError
					assert.ErrorAs(t, err, &target)
					assert.ErrorIs(t, err, catalogdomain.ErrSymbolNotFound)
					assert.Empty(t, market.calls)
				case *DataSourceError:
					var target *DataSourceError
					assert.ErrorAs(t, err, &target)
					assert.Equal(t, "AAPL", target.Symbol)
				case *PersistenceError:
					var target *PersistenceError
					assert.ErrorAs(t, err, &target)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "AAPL", bar.Symbol)
			assert.Equal(t, entity.UpdateEvent{Symbol: "AAPL", Price: 105.0, Type: "update"}, ev)
			assert.Equal(t, uint(1), repo.stored[0].SymbolID)
			assert.Equal(t, ev, pub.events[0])
		})
	}
}

// TestIngestUsecase_Ingest_NormalizesDate は時刻付きの日時が日付に正規化されることを検証します。
func TestIngestUsecase_Ingest_NormalizesDate(t *testing.T) {
	t.Parallel()

	market := &mockMarketFetcher{LatestBarFunc: func(ctx context.Context, symbol string) (entity.PriceBar, error) {
		return entity.PriceBar{Date: time.Date(2024, 1, 2, 15, 59, 0, 0, time.UTC), Close: 1}, nil
	}}
	repo := &mockPriceBarRepository{}
	uc := NewIngestUsecase(market, catalogOf("AAPL"), repo, nil, zap.NewNop())

	bar, _, err := uc.Ingest(context.Background(), "AAPL")
	require.NoError(t, err)

	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(bar.Date))
	require.Len(t, repo.stored, 1)
	assert.True(t, want.Equal(repo.stored[0].Bar.Date))
}

func TestIngestUsecase_Refresh(t *testing.T) {
	t.Parallel()

	uc := NewIngestUsecase(&mockMarketFetcher{LatestBarFunc: fixedBar(1)}, catalogOf("AAPL"), &mockPriceBarRepository{}, nil, zap.NewNop())

	assert.NoError(t, uc.Refresh(context.Background(), "AAPL"))
	var target *UnknownSymbolError
	assert.ErrorAs(t, uc.Refresh(context.Background(), "NOPE"), &target)
}

// TestIngestUsecase_IngestAll_Resilient は1銘柄の失敗がバッチを止めないことを検証します。
func TestIngestUsecase_IngestAll_Resilient(t *testing.T) {
	t.Parallel()

	market := &mockMarketFetcher{LatestBarFunc: func(ctx context.Context, symbol string) (entity.PriceBar, error) {
		if symbol == "B" {
			return entity.PriceBar{}, &DataSourceError{Symbol: symbol, Err: errors.New("http 500")}
		}
		return fixedBar(10)(ctx, symbol)
	}}
	repo := &mockPriceBarRepository{}
	pub := &mockPublisher{}
	uc := NewIngestUsecase(market, catalogOf("A", "B", "C"), repo, pub, zap.NewNop())

	outcomes := make(chan Outcome, 3)
	sum, err := uc.IngestAll(context.Background(), outcomes)
	close(outcomes)

	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Succeeded: 2, Failed: 1}, sum)
	assert.Equal(t, []string{"A", "B", "C"}, market.calls, "symbols are processed in catalog order")
	assert.Len(t, repo.stored, 2)
	assert.Len(t, pub.events, 2)

	var got []Outcome
	for o := range outcomes {
		got = append(got, o)
	}
	require.Len(t, got, 3)
	assert.NoError(t, got[0].Err)
	var dse *DataSourceError
	assert.ErrorAs(t, got[1].Err, &dse)
	assert.NoError(t, got[2].Err)
}

func TestIngestUsecase_IngestAll_EmptyCatalog(t *testing.T) {
	t.Parallel()

	market := &mockMarketFetcher{LatestBarFunc: fixedBar(1)}
	uc := NewIngestUsecase(market, catalogOf(), &mockPriceBarRepository{}, nil, zap.NewNop())

	sum, err := uc.IngestAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, market.calls)
}

func TestIngestUsecase_IngestAll_CatalogError(t *testing.T) {
	t.Parallel()

	catalog := catalogOf("A")
	catalog.listErr = errors.New("db down")
	uc := NewIngestUsecase(&mockMarketFetcher{LatestBarFunc: fixedBar(1)}, catalog, &mockPriceBarRepository{}, nil, zap.NewNop())

	_, err := uc.IngestAll(context.Background(), nil)
	var pe *PersistenceError
	assert.ErrorAs(t, err, &pe)
}

// TestIngestUsecase_IngestAll_Cancelled はキャンセル後に次の銘柄を処理しないことを検証します。
func TestIngestUsecase_IngestAll_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	market := &mockMarketFetcher{LatestBarFunc: func(c context.Context, symbol string) (entity.PriceBar, error) {
		if symbol == "A" {
			cancel()
		}
		return fixedBar(1)(c, symbol)
	}}
	uc := NewIngestUsecase(market, catalogOf("A", "B", "C"), &mockPriceBarRepository{}, nil, zap.NewNop())

	sum, err := uc.IngestAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, []string{"A"}, market.calls)
}

func TestResultLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "data_source_error", resultLabel(&DataSourceError{}))
	assert.Equal(t, "unknown_symbol", resultLabel(&UnknownSymbolError{}))
	assert.Equal(t, "persistence_error", resultLabel(&PersistenceError{}))
	assert.Equal(t, "error", resultLabel(errors.New("x")))
}
