// Package usecase implements the business logic for the symbol catalog.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"stockfeed/internal/feature/catalog/domain"
	"stockfeed/internal/feature/catalog/domain/entity"

	"go.uber.org/zap"
)

// SymbolRepository abstracts the persistence layer for the symbol catalog.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type SymbolRepository interface {
	List(ctx context.Context) ([]entity.Symbol, error)
	ListCodes(ctx context.Context) ([]string, error)
	FindByCode(ctx context.Context, code string) (*entity.Symbol, error)
	Create(ctx context.Context, s *entity.Symbol) error
	Delete(ctx context.Context, code string) error
}

// Refresher runs an on-demand single-symbol ingestion.
type Refresher interface {
	Refresh(ctx context.Context, code string) error
}

// RegisterResult is the outcome of registering a symbol.
// RefreshErr is set when the follow-up ingestion failed; the symbol stays registered.
type RegisterResult struct {
	Symbol     *entity.Symbol
	RefreshErr error
}

// SymbolUsecase provides business logic for catalog operations.
type SymbolUsecase struct {
	repo      SymbolRepository
	refresher Refresher
	log       *zap.Logger
}

// NewSymbolUsecase creates a new SymbolUsecase. refresher may be nil, in which
// case newly registered symbols wait for the next batch run.
func NewSymbolUsecase(r SymbolRepository, refresher Refresher, log *zap.Logger) *SymbolUsecase {
	return &SymbolUsecase{repo: r, refresher: refresher, log: log}
}

// ListSymbols returns the catalog in insertion order.
func (u *SymbolUsecase) ListSymbols(ctx context.Context) ([]entity.Symbol, error) {
	return u.repo.List(ctx)
}

// Register validates and stores a new symbol, then refreshes its latest bar.
func (u *SymbolUsecase) Register(ctx context.Context, s entity.Symbol) (RegisterResult, error) {
	s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
	if err := validate(s); err != nil {
		return RegisterResult{}, err
	}
	// 鮮度ポインタは取り込み処理のみが更新する
	s.LastRefreshedDate = nil

	if err := u.repo.Create(ctx, &s); err != nil {
		return RegisterResult{}, err
	}
	res := RegisterResult{Symbol: &s}

	if u.refresher == nil {
		return res, nil
	}
	if err := u.refresher.Refresh(ctx, s.Code); err != nil {
		u.log.Warn("initial refresh failed", zap.String("symbol", s.Code), zap.Error(err))
		res.RefreshErr = err
		return res, nil
	}

	// 取り込み後の鮮度ポインタを反映
	if fresh, err := u.repo.FindByCode(ctx, s.Code); err == nil {
		res.Symbol = fresh
	}
	return res, nil
}

// Remove deletes a symbol that has no price bars.
func (u *SymbolUsecase) Remove(ctx context.Context, code string) error {
	return u.repo.Delete(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func validate(s entity.Symbol) error {
	switch {
	case s.Code == "":
		return fmt.Errorf("%w: code is required", domain.ErrInvalidSymbol)
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidSymbol)
	case strings.TrimSpace(s.Exchange) == "":
		return fmt.Errorf("%w: exchange is required", domain.ErrInvalidSymbol)
	case strings.TrimSpace(s.Country) == "":
		return fmt.Errorf("%w: country is required", domain.ErrInvalidSymbol)
	case strings.TrimSpace(s.Currency) == "":
		return fmt.Errorf("%w: currency is required", domain.ErrInvalidSymbol)
	case !s.Type.Valid():
		return fmt.Errorf("%w: unknown instrument type %q", domain.ErrInvalidSymbol, s.Type)
	}
	return nil
}
