package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/transport/http/dto"
	"stockfeed/internal/feature/prices/usecase"

	"github.com/gin-gonic/gin"
)

// Ingester runs a single-symbol ingestion.
type Ingester interface {
	Ingest(ctx context.Context, symbol string) (entity.PriceBar, entity.UpdateEvent, error)
}

// BatchStarter starts a background batch run.
type BatchStarter interface {
	Start(ctx context.Context) error
}

// IngestHandler exposes the ingestion trigger surface.
type IngestHandler struct {
	ingester Ingester
	batch    BatchStarter
}

// NewIngestHandler は新しい IngestHandler を作成します。
func NewIngestHandler(ingester Ingester, batch BatchStarter) *IngestHandler {
	return &IngestHandler{ingester: ingester, batch: batch}
}

// IngestOne は単一銘柄を同期的に取り込み、結果のバーを返します。
//
// POST /ingest/:symbol
func (h *IngestHandler) IngestOne(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))

	bar, ev, err := h.ingester.Ingest(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(ingestStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.IngestResponse{
		Bar:   toBar(bar),
		Event: dto.EventBody{Symbol: ev.Symbol, Price: ev.Price, Type: ev.Type},
	})
}

// IngestAll は全銘柄の取り込みをバックグラウンドで開始します。
//
// POST /ingest
func (h *IngestHandler) IngestAll(c *gin.Context) {
	if err := h.batch.Start(c.Request.Context()); err != nil {
		if errors.Is(err, usecase.ErrBatchRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, dto.BatchAcceptedResponse{Status: "accepted"})
}

func ingestStatus(err error) int {
	var (
		unknown *usecase.UnknownSymbolError
		source  *usecase.DataSourceError
	)
	switch {
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &source):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
