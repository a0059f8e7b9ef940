package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/response"
)

type snapshotService interface {
	Attach(ctx context.Context, caseID string, req dto.AttachServicesRequest, actor models.Actor) (*dto.AttachResult, error)
	List(ctx context.Context, caseID string) ([]models.ServiceSnapshot, error)
	MarkPaid(ctx context.Context, caseID, snapshotID string, actor models.Actor) (*models.ServiceSnapshot, error)
}

// SnapshotHandler exposes price-locked service attachments.
type SnapshotHandler struct {
	snapshots snapshotService
}

// NewSnapshotHandler builds a new handler.
func NewSnapshotHandler(snapshots snapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// Attach godoc
// @Summary Attach catalog services to a case
// @Description Already attached services are listed under duplicates and leave amounts unchanged.
// @Tags Services
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.AttachServicesRequest true "Catalog service ids"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/services [post]
func (h *SnapshotHandler) Attach(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AttachServicesRequest
	if !bindJSON(c, &req, false) {
		return
	}
	result, err := h.snapshots.Attach(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{
		"attached":   len(result.Attached),
		"duplicates": len(result.Duplicates),
	})
}

// List godoc
// @Summary List services attached to a case
// @Tags Services
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/services [get]
func (h *SnapshotHandler) List(c *gin.Context) {
	snapshots, err := h.snapshots.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}

// MarkPaid godoc
// @Summary Record payment of an attached service
// @Tags Services
// @Produce json
// @Param id path string true "Case ID"
// @Param snapshotId path string true "Snapshot ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/services/{snapshotId}/pay [post]
func (h *SnapshotHandler) MarkPaid(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	snap, err := h.snapshots.MarkPaid(c.Request.Context(), c.Param("id"), c.Param("snapshotId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}
