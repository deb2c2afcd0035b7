// Package handler はpricesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	catalogdomain "stockfeed/internal/feature/catalog/domain"
	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/transport/http/dto"

	"github.com/gin-gonic/gin"
)

// PricesUsecase は価格データ参照のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type PricesUsecase interface {
	LatestPrices(ctx context.Context) ([]entity.LatestPrice, error)
	History(ctx context.Context, symbol string, limit int) ([]entity.PriceBar, error)
}

// PriceHandler は価格データのHTTPリクエストを処理します。
type PriceHandler struct {
	uc PricesUsecase
}

// NewPriceHandler は指定されたusecaseでPriceHandlerの新しいインスタンスを生成します。
func NewPriceHandler(uc PricesUsecase) *PriceHandler {
	return &PriceHandler{uc: uc}
}

// Latest は各銘柄の最新バーを出来高の降順で返します。
//
// GET /prices
func (h *PriceHandler) Latest(c *gin.Context) {
	prices, err := h.uc.LatestPrices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.LatestPriceResponse, 0, len(prices))
	for _, p := range prices {
		item := dto.LatestPriceResponse{
			Symbol:   p.Symbol,
			Name:     p.Name,
			Currency: p.Currency,
		}
		if p.Bar != nil {
			b := toBar(*p.Bar)
			item.Bar = &b
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// History は銘柄のバー履歴を新しい順に返します。
//
// エンドポイント例:
// GET /prices/:symbol?limit=30
func (h *PriceHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	bars, err := h.uc.History(c.Request.Context(), c.Param("symbol"), limit)
	switch {
	case errors.Is(err, catalogdomain.ErrSymbolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.BarResponse, 0, len(bars))
	for _, b := range bars {
		out = append(out, toBar(b))
	}
	c.JSON(http.StatusOK, out)
}

func toBar(b entity.PriceBar) dto.BarResponse {
	return dto.BarResponse{
		Symbol: b.Symbol,
		Date:   b.Date.UTC().Format("2006-01-02"),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}
