// Package adapters はcatalogフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"

	"stockfeed/internal/feature/catalog/domain"
	"stockfeed/internal/feature/catalog/domain/entity"
	"stockfeed/internal/feature/catalog/usecase"

	"gorm.io/gorm"
)

// priceBarsTable は参照保護のために件数を確認する価格テーブル名です。
const priceBarsTable = "price_bars"

// symbolGorm はSymbolRepositoryインターフェースのGORM実装です。
type symbolGorm struct {
	db *gorm.DB
}

var _ usecase.SymbolRepository = (*symbolGorm)(nil)

// NewSymbolRepository は指定されたDB接続でsymbolGormリポジトリの新しいインスタンスを生成します。
func NewSymbolRepository(db *gorm.DB) *symbolGorm {
	return &symbolGorm{db: db}
}

// List は登録順（id昇順）にすべての銘柄を返します。
func (r *symbolGorm) List(ctx context.Context) ([]entity.Symbol, error) {
	var symbols []entity.Symbol
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&symbols).Error; err != nil {
		return nil, err
	}
	return symbols, nil
}

// ListCodes は登録順に銘柄コードのみを返します。
func (r *symbolGorm) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Order("id ASC").
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// FindByCode はコードに一致する銘柄を返します。存在しない場合は domain.ErrSymbolNotFound を返します。
func (r *symbolGorm) FindByCode(ctx context.Context, code string) (*entity.Symbol, error) {
	var s entity.Symbol
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSymbolNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create は新しい銘柄を登録します。同じコードが既に存在する場合は domain.ErrSymbolAlreadyExists を返します。
func (r *symbolGorm) Create(ctx context.Context, s *entity.Symbol) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&entity.Symbol{}).Where("code = ?", s.Code).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrSymbolAlreadyExists
		}
		// 同時登録はユニーク制約で弾かれる
		if err := tx.Create(s).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrSymbolAlreadyExists
			}
			return err
		}
		return nil
	})
}

// Delete は銘柄を削除します。価格データが残っている銘柄は削除せず domain.ErrSymbolInUse を返します。
func (r *symbolGorm) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s entity.Symbol
		err := tx.Where("code = ?", code).Take(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrSymbolNotFound
		}
		if err != nil {
			return err
		}

		var bars int64
		if tx.Migrator().HasTable(priceBarsTable) {
			if err := tx.Table(priceBarsTable).Where("symbol_id = ?", s.ID).Count(&bars).Error; err != nil {
				return err
			}
		}
		if bars > 0 {
			return domain.ErrSymbolInUse
		}
		return tx.Delete(&s).Error
	})
}
