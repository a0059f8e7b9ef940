package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/response"
)

type policyService interface {
	Current() models.Policy
	Refresh(ctx context.Context) (models.Policy, error)
	Items(ctx context.Context) ([]models.Configuration, error)
	Update(ctx context.Context, key, value string, actor models.Actor) (models.Policy, error)
}

// PolicyHandler exposes the runtime workflow policy.
type PolicyHandler struct {
	policy policyService
}

// NewPolicyHandler builds a new handler.
func NewPolicyHandler(policy policyService) *PolicyHandler {
	return &PolicyHandler{policy: policy}
}

func toConfigurationItem(cfg models.Configuration) dto.ConfigurationItem {
	item := dto.ConfigurationItem{
		Key:     cfg.Key,
		Value:   cfg.Value,
		Type:    string(cfg.Type),
		Version: cfg.Version,
	}
	if cfg.Description != nil {
		item.Description = *cfg.Description
	}
	return item
}

// List godoc
// @Summary List policy keys with their effective values
// @Tags Policy
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /policy [get]
func (h *PolicyHandler) List(c *gin.Context) {
	rows, err := h.policy.Items(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.ConfigurationItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toConfigurationItem(row))
	}
	current := h.policy.Current()
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"version": current.Version})
}

// Get godoc
// @Summary Get one policy key
// @Tags Policy
// @Produce json
// @Param key path string true "Policy key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /policy/{key} [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	rows, err := h.policy.Items(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	key := c.Param("key")
	for _, row := range rows {
		if row.Key == key {
			response.JSON(c, http.StatusOK, toConfigurationItem(row), nil)
			return
		}
	}
	response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "policy key not found"))
}

// Update godoc
// @Summary Change one policy key
// @Tags Policy
// @Accept json
// @Produce json
// @Param key path string true "Policy key"
// @Param payload body dto.UpdateConfigurationRequest true "New value"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /policy/{key} [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateConfigurationRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if req.Value == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "value is required"))
		return
	}
	policy, err := h.policy.Update(c.Request.Context(), c.Param("key"), req.Value, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}

// Refresh godoc
// @Summary Reload policy from storage
// @Tags Policy
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /policy/refresh [post]
func (h *PolicyHandler) Refresh(c *gin.Context) {
	policy, err := h.policy.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policy, nil)
}
