package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/config"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
)

type policyKey struct {
	Type        models.ConfigurationType
	Description string
}

var policyKeys = map[string]policyKey{
	models.ConfigKeySLAWarningAfter: {
		Type:        models.ConfigurationTypeDuration,
		Description: "Time in assigned before a case is flagged as warning",
	},
	models.ConfigKeySLABreachAfter: {
		Type:        models.ConfigurationTypeDuration,
		Description: "Time in assigned before a case is flagged as breach",
	},
	models.ConfigKeyPayoutEligibilityWindow: {
		Type:        models.ConfigurationTypeDuration,
		Description: "Wait after the paid countdown before rewards may be paid out",
	},
	models.ConfigKeyPayoutEligibilityPolicy: {
		Type:        models.ConfigurationTypeString,
		Description: "block rejects early payouts, warn flags them for explicit approval",
	},
}

var policyKeyOrder = []string{
	models.ConfigKeySLAWarningAfter,
	models.ConfigKeySLABreachAfter,
	models.ConfigKeyPayoutEligibilityWindow,
	models.ConfigKeyPayoutEligibilityPolicy,
}

// PolicyProvider hands out the current runtime policy.
type PolicyProvider interface {
	Current() models.Policy
}

// PolicyService serves the versioned runtime policy. Values are read from
// the configurations table on Refresh and kept in memory between refreshes.
type PolicyService struct {
	store    Store
	uow      UnitOfWork
	defaults models.Policy
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current models.Policy
}

// NewPolicyService seeds the policy from static configuration.
func NewPolicyService(store Store, uow UnitOfWork, defaults config.WorkflowConfig, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := models.Policy{
		SLAWarningAfter:         defaults.SLAWarningAfter,
		SLABreachAfter:          defaults.SLABreachAfter,
		PayoutEligibilityWindow: defaults.PayoutEligibilityWindow,
		PayoutEligibilityPolicy: defaults.PayoutEligibilityPolicy,
	}
	if base.PayoutEligibilityPolicy == "" {
		base.PayoutEligibilityPolicy = config.EligibilityPolicyBlock
	}
	return &PolicyService{
		store:    store,
		uow:      uow,
		defaults: base,
		logger:   logger,
		now:      time.Now,
		current:  base,
	}
}

// StaticPolicy is a fixed provider used where no refresh is needed.
type StaticPolicy models.Policy

// Current returns the policy.
func (p StaticPolicy) Current() models.Policy { return models.Policy(p) }

// Current returns a copy of the last loaded policy.
func (s *PolicyService) Current() models.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh reloads the policy from storage.
func (s *PolicyService) Refresh(ctx context.Context) (models.Policy, error) {
	rows, err := s.store.Configurations.ListByKeys(ctx, policyKeyOrder)
	if err != nil {
		return s.Current(), translateStoreError(err, "configuration not found")
	}
	next := s.defaults
	for _, row := range rows {
		if err := applyPolicyValue(&next, row.Key, row.Value); err != nil {
			s.logger.Warn("ignoring invalid policy value", zap.String("key", row.Key), zap.String("value", row.Value), zap.Error(err))
			continue
		}
		next.Version += row.Version
	}
	next.LoadedAt = s.now().UTC()

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

// Items lists every policy key with its effective value.
func (s *PolicyService) Items(ctx context.Context) ([]models.Configuration, error) {
	rows, err := s.store.Configurations.ListByKeys(ctx, policyKeyOrder)
	if err != nil {
		return nil, translateStoreError(err, "configuration not found")
	}
	stored := make(map[string]models.Configuration, len(rows))
	for _, row := range rows {
		stored[row.Key] = row
	}
	items := make([]models.Configuration, 0, len(policyKeyOrder))
	for _, key := range policyKeyOrder {
		if row, ok := stored[key]; ok {
			items = append(items, row)
			continue
		}
		meta := policyKeys[key]
		description := meta.Description
		items = append(items, models.Configuration{
			Key:         key,
			Value:       policyValue(s.defaults, key),
			Type:        meta.Type,
			Description: &description,
		})
	}
	return items, nil
}

// Update validates and stores one key, audits it, then refreshes.
func (s *PolicyService) Update(ctx context.Context, key, value string, actor models.Actor) (models.Policy, error) {
	if !actor.IsAdmin() {
		return s.Current(), appErrors.Clone(appErrors.ErrForbidden, "only admins can change policy")
	}
	meta, ok := policyKeys[key]
	if !ok {
		return s.Current(), validationError(fmt.Sprintf("unknown policy key %q", key))
	}
	value = strings.TrimSpace(value)
	candidate := s.Current()
	if err := applyPolicyValue(&candidate, key, value); err != nil {
		return s.Current(), validationError(err.Error())
	}
	if candidate.SLAWarningAfter >= candidate.SLABreachAfter {
		return s.Current(), validationError("sla warning threshold must be below the breach threshold")
	}

	old := policyValue(s.Current(), key)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		description := meta.Description
		cfg := &models.Configuration{
			Key:         key,
			Value:       value,
			Type:        meta.Type,
			Description: &description,
			UpdatedBy:   &actor.ID,
		}
		version, err := store.Configurations.Upsert(ctx, cfg)
		if err != nil {
			return translateStoreError(err, "configuration not found")
		}
		return writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionConfigUpdate,
			Table:   models.AuditTargetConfigurations,
			ID:      key,
			Details: fmt.Sprintf("%s set to %s (version %d)", key, value, version),
			Old:     map[string]string{key: old},
			New:     map[string]string{key: value},
		})
	})
	if err != nil {
		return s.Current(), err
	}
	return s.Refresh(ctx)
}

func applyPolicyValue(p *models.Policy, key, value string) error {
	switch key {
	case models.ConfigKeySLAWarningAfter, models.ConfigKeySLABreachAfter, models.ConfigKeyPayoutEligibilityWindow:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a duration: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
		switch key {
		case models.ConfigKeySLAWarningAfter:
			p.SLAWarningAfter = d
		case models.ConfigKeySLABreachAfter:
			p.SLABreachAfter = d
		default:
			p.PayoutEligibilityWindow = d
		}
	case models.ConfigKeyPayoutEligibilityPolicy:
		v := strings.ToLower(value)
		if v != config.EligibilityPolicyBlock && v != config.EligibilityPolicyWarn {
			return fmt.Errorf("%s must be %q or %q", key, config.EligibilityPolicyBlock, config.EligibilityPolicyWarn)
		}
		p.PayoutEligibilityPolicy = v
	default:
		return fmt.Errorf("unknown policy key %q", key)
	}
	return nil
}

func policyValue(p models.Policy, key string) string {
	switch key {
	case models.ConfigKeySLAWarningAfter:
		return p.SLAWarningAfter.String()
	case models.ConfigKeySLABreachAfter:
		return p.SLABreachAfter.String()
	case models.ConfigKeyPayoutEligibilityWindow:
		return p.PayoutEligibilityWindow.String()
	case models.ConfigKeyPayoutEligibilityPolicy:
		return p.PayoutEligibilityPolicy
	}
	return ""
}
