// Package handler はcatalogフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"

	"stockfeed/internal/feature/catalog/domain"
	"stockfeed/internal/feature/catalog/domain/entity"
	"stockfeed/internal/feature/catalog/transport/http/dto"
	"stockfeed/internal/feature/catalog/usecase"

	"github.com/gin-gonic/gin"
)

// SymbolUsecase は銘柄カタログに関するユースケースのインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type SymbolUsecase interface {
	ListSymbols(ctx context.Context) ([]entity.Symbol, error)
	Register(ctx context.Context, s entity.Symbol) (usecase.RegisterResult, error)
	Remove(ctx context.Context, code string) error
}

// SymbolHandler は銘柄カタログに関するHTTPリクエストを処理します。
type SymbolHandler struct {
	uc SymbolUsecase
}

// NewSymbolHandler は新しい SymbolHandler を作成します。
func NewSymbolHandler(uc SymbolUsecase) *SymbolHandler {
	return &SymbolHandler{uc: uc}
}

// List は登録順の銘柄一覧を返します。
//
// GET /symbols
func (h *SymbolHandler) List(c *gin.Context) {
	symbols, err := h.uc.ListSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]dto.SymbolItem, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, toItem(s))
	}
	c.JSON(http.StatusOK, out)
}

// Register は銘柄を登録し、直後に単一銘柄の取り込みを実行します。
// 取り込みに失敗しても登録自体は成功として 201 を返し、エラー内容をレスポンスに含めます。
//
// POST /symbols
func (h *SymbolHandler) Register(c *gin.Context) {
	var req dto.RegisterSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.uc.Register(c.Request.Context(), entity.Symbol{
		Code:     req.Code,
		Name:     req.Name,
		Exchange: req.Exchange,
		Country:  req.Country,
		Currency: req.Currency,
		Type:     entity.InstrumentType(req.Type),
	})
	switch {
	case errors.Is(err, domain.ErrInvalidSymbol):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrSymbolAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := dto.RegisterSymbolResponse{Symbol: toItem(*res.Symbol), Refreshed: res.RefreshErr == nil}
	if res.RefreshErr != nil {
		out.RefreshError = res.RefreshErr.Error()
	}
	c.JSON(http.StatusCreated, out)
}

// Delete は価格データを持たない銘柄を削除します。
//
// DELETE /symbols/:code
func (h *SymbolHandler) Delete(c *gin.Context) {
	err := h.uc.Remove(c.Request.Context(), c.Param("code"))
	switch {
	case errors.Is(err, domain.ErrSymbolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSymbolInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}

func toItem(s entity.Symbol) dto.SymbolItem {
	item := dto.SymbolItem{
		Code:     s.Code,
		Name:     s.Name,
		Exchange: s.Exchange,
		Country:  s.Country,
		Currency: s.Currency,
		Type:     string(s.Type),
	}
	if s.LastRefreshedDate != nil {
		d := s.LastRefreshedDate.UTC().Format("2006-01-02")
		item.LastRefreshedDate = &d
	}
	return item
}
