// Package adapters はpricesフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogdomain "stockfeed/internal/feature/catalog/domain"
	catalogentity "stockfeed/internal/feature/catalog/domain/entity"
	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/usecase"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type priceBarGorm struct {
	db *gorm.DB
}

var (
	_ usecase.PriceBarRepository = (*priceBarGorm)(nil)
	_ usecase.PriceReader        = (*priceBarGorm)(nil)
)

// NewPriceBarRepository は価格バーのGORMリポジトリを生成します。
func NewPriceBarRepository(db *gorm.DB) *priceBarGorm {
	return &priceBarGorm{db: db}
}

// PriceBarModel is the price_bars row. (symbol_id, date) is unique and a
// symbol with bars cannot be deleted.
type PriceBarModel struct {
	ID       uint                 `gorm:"primaryKey"`
	SymbolID uint                 `gorm:"not null;uniqueIndex:price_bar_sym_date,priority:1"`
	Symbol   catalogentity.Symbol `gorm:"foreignKey:SymbolID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Date     time.Time            `gorm:"type:date;not null;uniqueIndex:price_bar_sym_date,priority:2"`

	Open   float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	Volume float64 `gorm:"not null;default:0"`
}

func (PriceBarModel) TableName() string {
	return "price_bars"
}

func toModel(symbolID uint, e entity.PriceBar) PriceBarModel {
	return PriceBarModel{
		SymbolID: symbolID,
		Date:     e.Date,
		Open:     e.Open,
		High:     e.High,
		Low:      e.Low,
		Close:    e.Close,
		Volume:   e.Volume,
	}
}

// UpsertAndMarkFresh は価格バーのupsertと鮮度ポインタの更新を1トランザクションで行います。
func (r *priceBarGorm) UpsertAndMarkFresh(ctx context.Context, symbolID uint, bar entity.PriceBar) error {
	m := toModel(symbolID, bar)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).Create(&m).Error
		if err != nil {
			return fmt.Errorf("upsert bar: %w", err)
		}

		res := tx.Model(&catalogentity.Symbol{}).
			Where("id = ?", symbolID).
			Update("last_refreshed_date", bar.Date)
		if res.Error != nil {
			return fmt.Errorf("mark fresh: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("mark fresh: %w", catalogdomain.ErrSymbolNotFound)
		}
		return nil
	})
}

// latestRow は LEFT JOIN の結果です。未取り込みの銘柄ではバーの列が NULL になります。
type latestRow struct {
	Code     string
	Name     string
	Currency string
	Date     *time.Time
	Open     *float64
	High     *float64
	Low      *float64
	Close    *float64
	Volume   *float64
}

// Latest はカタログの全銘柄を、鮮度ポインタが指すバーとともに出来高の降順、同値はコード昇順で返します。
// 一度も取り込まれていない銘柄は Bar が nil で末尾に並びます。
func (r *priceBarGorm) Latest(ctx context.Context) ([]entity.LatestPrice, error) {
	var rows []latestRow
	err := r.db.WithContext(ctx).
		Table("symbols AS s").
		Select("s.code, s.name, s.currency, b.date, b.open, b.high, b.low, b.close, b.volume").
		Joins("LEFT JOIN price_bars AS b ON b.symbol_id = s.id AND b.date = s.last_refreshed_date").
		// NULLの並び順はDBごとに異なるため明示する
		Order("CASE WHEN b.volume IS NULL THEN 1 ELSE 0 END ASC, b.volume DESC, s.code ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]entity.LatestPrice, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.LatestPrice{
			Symbol:   row.Code,
			Name:     row.Name,
			Currency: row.Currency,
			Bar:      row.bar(),
		})
	}
	return out, nil
}

func (row latestRow) bar() *entity.PriceBar {
	if row.Date == nil {
		return nil
	}
	return &entity.PriceBar{
		Symbol: row.Code,
		Date:   *row.Date,
		Open:   deref(row.Open),
		High:   deref(row.High),
		Low:    deref(row.Low),
		Close:  deref(row.Close),
		Volume: deref(row.Volume),
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// History は銘柄のバーを日付の降順で最大limit件返します。
func (r *priceBarGorm) History(ctx context.Context, symbol string, limit int) ([]entity.PriceBar, error) {
	var s catalogentity.Symbol
	err := r.db.WithContext(ctx).Where("code = ?", symbol).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalogdomain.ErrSymbolNotFound
	}
	if err != nil {
		return nil, err
	}

	var rows []PriceBarModel
	q := r.db.WithContext(ctx).
		Where("symbol_id = ?", s.ID).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]entity.PriceBar, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.PriceBar{
			Symbol: s.Code,
			Date:   m.Date,
			Open:   m.Open,
			High:   m.High,
			Low:    m.Low,
			Close:  m.Close,
			Volume: m.Volume,
		})
	}
	return out, nil
}
