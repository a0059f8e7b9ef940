package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audit auditService
}

// NewAuditHandler builds a new handler.
func NewAuditHandler(audit auditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param target_table query string false "Target table"
// @Param target_id query string false "Target ID"
// @Param actor_id query string false "Actor ID"
// @Param action query string false "Action"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		TargetTable: c.Query("target_table"),
		TargetID:    c.Query("target_id"),
		ActorID:     c.Query("actor_id"),
		Action:      c.Query("action"),
		Page:        parseQueryInt(c, "page", 1),
		PageSize:    parseQueryInt(c, "limit", 50),
	}
	logs, pagination, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
