package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/response"
)

type caseService interface {
	ConvertLead(ctx context.Context, req dto.ConvertLeadRequest, actor models.Actor) (*dto.ConvertLeadResult, error)
	Get(ctx context.Context, id string) (*models.CaseView, error)
	List(ctx context.Context, filter models.CaseFilter) ([]models.CaseView, *models.Pagination, error)
	Transition(ctx context.Context, id string, req dto.TransitionCaseRequest, actor models.Actor) (*models.CaseView, error)
	Advance(ctx context.Context, id string, actor models.Actor) (*models.CaseView, error)
	Assign(ctx context.Context, id string, req dto.AssignCaseRequest, actor models.Actor) (*models.CaseView, error)
	RecordFees(ctx context.Context, id string, req dto.RecordFeesRequest, actor models.Actor) (*models.CaseView, error)
	CorrectMoney(ctx context.Context, id string, req dto.CorrectMoneyRequest, actor models.Actor) (*models.CaseView, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// CaseHandler exposes case lifecycle endpoints.
type CaseHandler struct {
	cases caseService
}

// NewCaseHandler builds a new handler.
func NewCaseHandler(cases caseService) *CaseHandler {
	return &CaseHandler{cases: cases}
}

// Convert godoc
// @Summary Convert a lead into a case
// @Description Idempotent per lead: converting again returns the existing case with 200.
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.ConvertLeadRequest true "Conversion payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /cases/convert [post]
func (h *CaseHandler) Convert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ConvertLeadRequest
	if !bindJSON(c, &req, false) {
		return
	}
	result, err := h.cases.ConvertLead(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result.Case)
		return
	}
	response.JSON(c, http.StatusOK, result.Case, nil)
}

// List godoc
// @Summary List cases
// @Tags Cases
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param lawyer_id query string false "Assigned handler"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	filter := models.CaseFilter{
		AssignedLawyerID: c.Query("lawyer_id"),
		Page:             parseQueryInt(c, "page", 1),
		PageSize:         parseQueryInt(c, "limit", 20),
	}
	for _, raw := range splitList(c.Query("status")) {
		status, ok := workflow.ParseStatus(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw)))
			return
		}
		filter.Status = append(filter.Status, status)
	}
	cases, pagination, err := h.cases.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, pagination)
}

// Get godoc
// @Summary Get case detail with SLA state and next steps
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id} [get]
func (h *CaseHandler) Get(c *gin.Context) {
	view, err := h.cases.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Transition godoc
// @Summary Move a case to another status
// @Description Fast-track edges require ADMIN and a reason.
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.TransitionCaseRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cases/{id}/transition [post]
func (h *CaseHandler) Transition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TransitionCaseRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.cases.Transition(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Advance godoc
// @Summary Move a case along its primary next step
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/advance [post]
func (h *CaseHandler) Advance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.cases.Advance(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Assign godoc
// @Summary Assign a handler to a case
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.AssignCaseRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/assign [post]
func (h *CaseHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignCaseRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.cases.Assign(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// RecordFees godoc
// @Summary Add school commission, translation fee or referral discount
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.RecordFeesRequest true "Amounts in major units"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/fees [post]
func (h *CaseHandler) RecordFees(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RecordFeesRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.cases.RecordFees(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// CorrectMoney godoc
// @Summary Overwrite case amounts
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.CorrectMoneyRequest true "Corrected amounts in major units"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/correct [post]
func (h *CaseHandler) CorrectMoney(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CorrectMoneyRequest
	if !bindJSON(c, &req, false) {
		return
	}
	view, err := h.cases.CorrectMoney(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete a case with its snapshots, appointments and rewards
// @Tags Cases
// @Param id path string true "Case ID"
// @Success 204
// @Router /cases/{id} [delete]
func (h *CaseHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.cases.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
