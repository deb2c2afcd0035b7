package usecase

import (
	"context"
	"strings"

	"stockfeed/internal/feature/prices/domain/entity"
)

const (
	// DefaultHistoryLimit はバー履歴のデフォルト返却件数です。
	DefaultHistoryLimit = 30
	// MaxHistoryLimit はバー履歴の最大返却件数です。
	MaxHistoryLimit = 5000
)

// PriceReader はバーデータの読み取りレイヤーを抽象化します。
type PriceReader interface {
	// Latest returns each symbol with its current bar, ordered by volume
	// descending then symbol code.
	Latest(ctx context.Context) ([]entity.LatestPrice, error)
	// History returns up to limit bars of symbol, newest first.
	History(ctx context.Context, symbol string, limit int) ([]entity.PriceBar, error)
}

// pricesUsecase は価格データ参照のユースケースです。
type pricesUsecase struct {
	reader PriceReader
}

// NewPricesUsecase はpricesUsecaseの新しいインスタンスを生成します。
func NewPricesUsecase(reader PriceReader) *pricesUsecase {
	return &pricesUsecase{reader: reader}
}

// LatestPrices は全銘柄の最新バーを返します。
func (u *pricesUsecase) LatestPrices(ctx context.Context) ([]entity.LatestPrice, error) {
	return u.reader.Latest(ctx)
}

// History は指定銘柄のバー履歴を新しい順に返します。
func (u *pricesUsecase) History(ctx context.Context, symbol string, limit int) ([]entity.PriceBar, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return u.reader.History(ctx, strings.ToUpper(strings.TrimSpace(symbol)), limit)
}
