package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/response"
)

type payoutService interface {
	Request(ctx context.Context, req dto.CreatePayoutRequest, actor models.Actor) (*dto.PayoutView, error)
	Approve(ctx context.Context, id string, req dto.ApprovePayoutRequest, actor models.Actor) (*dto.PayoutView, error)
	Reject(ctx context.Context, id string, req dto.RejectPayoutRequest, actor models.Actor) (*dto.PayoutView, error)
	MarkPaid(ctx context.Context, id string, req dto.MarkPayoutPaidRequest, actor models.Actor) (*dto.PayoutView, error)
	BulkApprove(ctx context.Context, req dto.BulkApprovePayoutRequest, actor models.Actor) (*models.BulkResult, error)
	BulkReject(ctx context.Context, req dto.BulkRejectPayoutRequest, actor models.Actor) (*models.BulkResult, error)
	Get(ctx context.Context, id string, actor models.Actor) (*dto.PayoutView, error)
	List(ctx context.Context, filter models.PayoutFilter, actor models.Actor) ([]dto.PayoutView, *models.Pagination, error)
	ListRewards(ctx context.Context, actor models.Actor) ([]dto.RewardItem, error)
}

var payoutStatuses = map[string]models.PayoutStatus{
	string(models.PayoutStatusPending):  models.PayoutStatusPending,
	string(models.PayoutStatusApproved): models.PayoutStatusApproved,
	string(models.PayoutStatusRejected): models.PayoutStatusRejected,
	string(models.PayoutStatusPaid):     models.PayoutStatusPaid,
}

// PayoutHandler exposes rewards and the payout request workflow.
type PayoutHandler struct {
	payouts payoutService
}

// NewPayoutHandler builds a new handler.
func NewPayoutHandler(payouts payoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// Rewards godoc
// @Summary List the caller's rewards with eligibility
// @Tags Payouts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rewards [get]
func (h *PayoutHandler) Rewards(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.payouts.ListRewards(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Request payout of pending rewards
// @Tags Payouts
// @Accept json
// @Produce json
// @Param payload body dto.CreatePayoutRequest true "Reward ids"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payouts [post]
func (h *PayoutHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreatePayoutRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.payouts.Request(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// List godoc
// @Summary List payout requests
// @Description Non-admin callers only see their own requests.
// @Tags Payouts
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payouts [get]
func (h *PayoutHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.PayoutFilter{
		RequestorID: c.Query("requestor_id"),
		Page:        parseQueryInt(c, "page", 1),
		PageSize:    parseQueryInt(c, "limit", 20),
	}
	for _, raw := range splitList(c.Query("status")) {
		status, known := payoutStatuses[raw]
		if !known {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown payout status %q", raw)))
			return
		}
		filter.Status = append(filter.Status, status)
	}
	items, pagination, err := h.payouts.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get payout request detail
// @Tags Payouts
// @Produce json
// @Param id path string true "Payout request ID"
// @Success 200 {object} response.Envelope
// @Router /payouts/{id} [get]
func (h *PayoutHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.payouts.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Approve godoc
// @Summary Approve a pending payout request
// @Tags Payouts
// @Accept json
// @Produce json
// @Param id path string true "Payout request ID"
// @Param payload body dto.ApprovePayoutRequest false "Approval notes"
// @Success 200 {object} response.Envelope
// @Router /payouts/{id}/approve [post]
func (h *PayoutHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ApprovePayoutRequest
	if !bindJSON(c, &req, true) {
		return
	}
	view, err := h.payouts.Approve(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Reject godoc
// @Summary Reject a pending payout request
// @Tags Payouts
// @Accept json
// @Produce json
// @Param id path string true "Payout request ID"
// @Param payload body dto.RejectPayoutRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /payouts/{id}/reject [post]
func (h *PayoutHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RejectPayoutRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.payouts.Reject(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MarkPaid godoc
// @Summary Settle an approved payout request
// @Tags Payouts
// @Accept json
// @Produce json
// @Param id path string true "Payout request ID"
// @Param payload body dto.MarkPayoutPaidRequest true "Payment details"
// @Success 200 {object} response.Envelope
// @Router /payouts/{id}/pay [post]
func (h *PayoutHandler) MarkPaid(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkPayoutPaidRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.payouts.MarkPaid(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// BulkApprove godoc
// @Summary Approve several payout requests
// @Tags Payouts
// @Accept json
// @Produce json
// @Param payload body dto.BulkApprovePayoutRequest true "Request ids"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /payouts/bulk/approve [post]
func (h *PayoutHandler) BulkApprove(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkApprovePayoutRequest
	if !bindJSON(c, &req, false) {
		return
	}
	result, err := h.payouts.BulkApprove(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Bulk(c, *result)
}

// BulkReject godoc
// @Summary Reject several payout requests
// @Tags Payouts
// @Accept json
// @Produce json
// @Param payload body dto.BulkRejectPayoutRequest true "Request ids and reason"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /payouts/bulk/reject [post]
func (h *PayoutHandler) BulkReject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkRejectPayoutRequest
	if !bindJSON(c, &req, false) {
		return
	}
	result, err := h.payouts.BulkReject(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Bulk(c, *result)
}
