package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agency-case-api/internal/models"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/response"
)

type ledgerService interface {
	CaseLedger(ctx context.Context, caseID string) (*models.CaseLedger, error)
	Summary(ctx context.Context, filter models.LedgerFilter) (*models.LedgerSummary, bool, error)
	Export(ctx context.Context, filter models.LedgerFilter) ([]byte, string, error)
	ContentType() string
}

// LedgerHandler exposes derived revenue and expense views.
type LedgerHandler struct {
	ledger ledgerService
}

// NewLedgerHandler builds a new handler.
func NewLedgerHandler(ledger ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// CaseLedger godoc
// @Summary Ledger rows and net profit of one case
// @Tags Ledger
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/ledger [get]
func (h *LedgerHandler) CaseLedger(c *gin.Context) {
	ledger, err := h.ledger.CaseLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// Summary godoc
// @Summary Totals of paid cases per currency
// @Tags Ledger
// @Produce json
// @Param from query string false "Paid at or after (YYYY-MM-DD or RFC 3339)"
// @Param to query string false "Paid before (YYYY-MM-DD or RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /ledger/summary [get]
func (h *LedgerHandler) Summary(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.ledger.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

// Export godoc
// @Summary Download ledger rows of paid cases as CSV
// @Tags Ledger
// @Produce text/csv
// @Param from query string false "Paid at or after (YYYY-MM-DD or RFC 3339)"
// @Param to query string false "Paid before (YYYY-MM-DD or RFC 3339)"
// @Success 200 {file} file
// @Router /ledger/export [get]
func (h *LedgerHandler) Export(c *gin.Context) {
	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, filename, err := h.ledger.Export(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, h.ledger.ContentType(), body)
}

func parseLedgerFilter(c *gin.Context) (models.LedgerFilter, error) {
	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		return models.LedgerFilter{}, err
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		return models.LedgerFilter{}, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return models.LedgerFilter{}, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	return models.LedgerFilter{From: from, To: to}, nil
}
