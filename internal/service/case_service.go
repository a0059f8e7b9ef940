package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/middleware/requestid"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

// CaseService orchestrates the case lifecycle: conversion, guarded status
// changes, assignment, manual amounts and cascade deletion.
type CaseService struct {
	store     Store
	uow       UnitOfWork
	policy    PolicyProvider
	notifier  Notifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCaseService wires the case service.
func NewCaseService(
	store Store,
	uow UnitOfWork,
	policy PolicyProvider,
	notifier Notifier,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		store:     store,
		uow:       uow,
		policy:    policy,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// ConvertLead creates the case for a lead, or returns the one already created.
func (s *CaseService) ConvertLead(ctx context.Context, req dto.ConvertLeadRequest, actor models.Actor) (*dto.ConvertLeadResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	var (
		result  *models.Case
		created bool
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		lead, err := store.Leads.GetForUpdate(ctx, req.LeadID)
		if err != nil {
			return translateStoreError(err, "lead not found")
		}
		if lead.CaseID != nil {
			existing, err := store.Cases.GetByID(ctx, *lead.CaseID)
			if err != nil {
				return translateStoreError(err, "case not found")
			}
			result = existing
			return nil
		}

		now := s.now().UTC()
		c := &models.Case{
			ID:                 uuid.NewString(),
			LeadID:             lead.ID,
			StudentName:        lead.FullName,
			City:               req.City,
			NeedsAccommodation: req.NeedsAccommodation,
			Status:             models.CaseStatusNew,
			InfluencerID:       lead.InfluencerID,
			Version:            1,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if req.InfluencerID != nil {
			c.InfluencerID = req.InfluencerID
		}
		if err := store.Cases.Create(ctx, c); err != nil {
			return translateStoreError(err, "lead not found")
		}
		if err := store.Leads.LinkCase(ctx, lead.ID, c.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return concurrentModification("lead was converted concurrently")
			}
			return translateStoreError(err, "lead not found")
		}
		if err := writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionCaseCreate,
			Table:   models.AuditTargetCases,
			ID:      c.ID,
			Details: fmt.Sprintf("converted lead %s", lead.ID),
			New:     c,
		}); err != nil {
			return err
		}
		result = c
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ConvertLeadResult{Case: s.view(result), Created: created}, nil
}

// Get returns a case with its derived SLA state and suggested next steps.
func (s *CaseService) Get(ctx context.Context, id string) (*models.CaseView, error) {
	c, err := s.store.Cases.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "case not found")
	}
	return s.view(c), nil
}

// List returns cases matching filter.
func (s *CaseService) List(ctx context.Context, filter models.CaseFilter) ([]models.CaseView, *models.Pagination, error) {
	cases, total, err := s.store.Cases.List(ctx, filter)
	if err != nil {
		return nil, nil, translateStoreError(err, "cases not found")
	}
	views := make([]models.CaseView, 0, len(cases))
	for i := range cases {
		views = append(views, *s.view(&cases[i]))
	}
	return views, pagination(filter.Page, filter.PageSize, total), nil
}

// Transition moves a case to the requested status through the guard.
func (s *CaseService) Transition(ctx context.Context, id string, req dto.TransitionCaseRequest, actor models.Actor) (*models.CaseView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	target, ok := workflow.ParseStatus(req.Target)
	if !ok {
		return nil, validationError(fmt.Sprintf("unknown status %q", req.Target))
	}
	return s.transition(ctx, id, actor, req.ExpectedVersion, func(current models.CaseStatus) (models.CaseStatus, string, error) {
		return target, req.Reason, nil
	})
}

// Advance moves a case along its primary suggested edge.
func (s *CaseService) Advance(ctx context.Context, id string, actor models.Actor) (*models.CaseView, error) {
	return s.transition(ctx, id, actor, nil, func(current models.CaseStatus) (models.CaseStatus, string, error) {
		steps := workflow.NextSteps(current)
		if len(steps) == 0 {
			return "", "", appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s has no next step", current)).
				WithDetails(map[string]interface{}{"current": string(current)})
		}
		return steps[0], "", nil
	})
}

type targetFunc func(current models.CaseStatus) (models.CaseStatus, string, error)

func (s *CaseService) transition(ctx context.Context, id string, actor models.Actor, expectedVersion *int64, pick targetFunc) (*models.CaseView, error) {
	var (
		done   *transition
		target models.CaseStatus
		from   models.CaseStatus
	)
	now := s.now().UTC()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		c, err := store.Cases.GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		if expectedVersion != nil && *expectedVersion != c.Version {
			return appErrors.Clone(appErrors.ErrConcurrentModification, "case was modified since it was read").WithDetails(map[string]interface{}{"expected_version": *expectedVersion, "version": c.Version})
		}
		if err := checkCaseOwner(c, actor); err != nil {
			return err
		}
		from = workflow.ResolveStatus(string(c.Status))
		var reason string
		target, reason, err = pick(from)
		if err != nil {
			return err
		}
		done, err = applyTransition(ctx, store, s.policy.Current(), c, target, reason, actor, now)
		return err
	})
	s.metrics.RecordTransition(string(from), string(target), resultLabel(err))
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, done, actor, now)
	return s.view(done.Case), nil
}

func (s *CaseService) afterTransition(ctx context.Context, done *transition, actor models.Actor, now time.Time) {
	if done == nil {
		return
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, done.event(actor.ID, now))
	}
	s.cache.Invalidate(ctx, ledgerCachePattern)
	if done.Kind == workflow.EdgeFastTrack {
		s.logger.Info("case fast-tracked",
			zap.String("case_id", done.Case.ID),
			zap.String("from", string(done.From)),
			zap.String("to", string(done.To)),
			zap.String("actor_id", actor.ID),
			zap.String("request_id", requestid.FromContext(ctx)))
	}
}

// Assign sets the handler and refreshes assigned_at. An eligible case moves
// to assigned in the same unit of work.
func (s *CaseService) Assign(ctx context.Context, id string, req dto.AssignCaseRequest, actor models.Actor) (*models.CaseView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can assign cases")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	var (
		result *models.Case
		done   *transition
	)
	now := s.now().UTC()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		c, err := store.Cases.GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		if err := store.Cases.Assign(ctx, id, req.LawyerID, now); err != nil {
			return translateStoreError(err, "case not found")
		}
		assigned := *c
		assigned.AssignedLawyerID = &req.LawyerID
		assigned.AssignedAt = &now
		assigned.Version++
		assigned.UpdatedAt = now
		result = &assigned

		details := fmt.Sprintf("assigned to %s", req.LawyerID)
		if workflow.ResolveStatus(string(c.Status)) == models.CaseStatusEligible {
			done, err = moveStatus(ctx, store, s.policy.Current(), &assigned, models.CaseStatusAssigned, "", actor, now)
			if err != nil {
				return err
			}
			result = done.Case
			details = fmt.Sprintf("%s, %s", details, done.Details)
		}
		return writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionCaseAssign,
			Table:   models.AuditTargetCases,
			ID:      id,
			Details: details,
			Old:     map[string]interface{}{"assigned_lawyer_id": c.AssignedLawyerID, "assigned_at": c.AssignedAt, "status": c.Status},
			New:     map[string]interface{}{"assigned_lawyer_id": req.LawyerID, "assigned_at": now, "status": result.Status},
		})
	})
	if err != nil {
		return nil, err
	}
	if done != nil {
		s.metrics.RecordTransition(string(done.From), string(done.To), resultOK)
		s.afterTransition(ctx, done, actor, now)
	}
	return s.view(result), nil
}

// RecordFees adds school commission, translation fee and referral discount.
// Amounts only ever grow here; use CorrectMoney to lower them.
func (s *CaseService) RecordFees(ctx context.Context, id string, req dto.RecordFeesRequest, actor models.Actor) (*models.CaseView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	var result *models.Case
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		c, err := store.Cases.GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		if err := checkCaseOwner(c, actor); err != nil {
			return err
		}
		currency, err := resolveCurrency(c.Currency, req.Currency)
		if err != nil {
			return err
		}
		amounts, err := toMinor(currency, map[string]decimal.Decimal{
			workflow.FieldSchoolCommission: req.SchoolCommission,
			workflow.FieldTranslationFee:   req.TranslationFee,
			workflow.FieldReferralDiscount: req.ReferralDiscount,
		})
		if err != nil {
			return err
		}
		delta := repository.MoneyDelta{
			SchoolCommission: amounts[workflow.FieldSchoolCommission],
			TranslationFee:   amounts[workflow.FieldTranslationFee],
			ReferralDiscount: amounts[workflow.FieldReferralDiscount],
		}
		if delta.IsZero() {
			return validationError("at least one amount must be positive")
		}
		if _, err := delta.ApplyTo(c.Money()); err != nil {
			return validationError(err.Error())
		}
		updated, err := store.Cases.IncrementMoney(ctx, id, delta, currency, s.now().UTC())
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		if err := writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionCaseFees,
			Table:   models.AuditTargetCases,
			ID:      id,
			Details: fmt.Sprintf("fees recorded in %s", currency),
			Old:     c.Money(),
			New:     updated.Money(),
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, ledgerCachePattern)
	return s.view(result), nil
}

// CorrectMoney overwrites all case amounts. It is the only non-additive money
// write and requires an admin and a reason.
func (s *CaseService) CorrectMoney(ctx context.Context, id string, req dto.CorrectMoneyRequest, actor models.Actor) (*models.CaseView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can correct case amounts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	var result *models.Case
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		c, err := store.Cases.GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		if c.Currency == "" {
			return validationError("case has no currency yet")
		}
		amounts, err := toMinor(c.Currency, map[string]decimal.Decimal{
			workflow.FieldServiceFee:           req.ServiceFee,
			workflow.FieldInfluencerCommission: req.InfluencerCommission,
			workflow.FieldLawyerCommission:     req.LawyerCommission,
			workflow.FieldReferralDiscount:     req.ReferralDiscount,
			workflow.FieldSchoolCommission:     req.SchoolCommission,
			workflow.FieldTranslationFee:       req.TranslationFee,
		})
		if err != nil {
			return err
		}
		fields := models.MoneyFields{
			ServiceFee:           amounts[workflow.FieldServiceFee],
			InfluencerCommission: amounts[workflow.FieldInfluencerCommission],
			LawyerCommission:     amounts[workflow.FieldLawyerCommission],
			ReferralDiscount:     amounts[workflow.FieldReferralDiscount],
			SchoolCommission:     amounts[workflow.FieldSchoolCommission],
			TranslationFee:       amounts[workflow.FieldTranslationFee],
		}
		now := s.now().UTC()
		if err := store.Cases.SetMoney(ctx, id, fields, now); err != nil {
			return translateStoreError(err, "case not found")
		}
		updated := *c
		updated.ServiceFee = fields.ServiceFee
		updated.InfluencerCommission = fields.InfluencerCommission
		updated.LawyerCommission = fields.LawyerCommission
		updated.ReferralDiscount = fields.ReferralDiscount
		updated.SchoolCommission = fields.SchoolCommission
		updated.TranslationFee = fields.TranslationFee
		updated.Version++
		updated.UpdatedAt = now
		repriced, err := repriceRewards(ctx, store, s.policy.Current(), &updated, now)
		if err != nil {
			return err
		}
		newValues := map[string]interface{}{"amounts": fields}
		if len(repriced) > 0 {
			newValues["rewards"] = repriced
		}
		if err := writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionCaseCorrection,
			Table:   models.AuditTargetCases,
			ID:      id,
			Details: req.Reason,
			Old:     map[string]interface{}{"amounts": c.Money()},
			New:     newValues,
		}); err != nil {
			return err
		}
		result = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, ledgerCachePattern)
	return s.view(result), nil
}

// Delete removes a case with its snapshots, appointments and rewards in one
// transaction. Cases with rewards inside an open payout request are kept.
func (s *CaseService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete cases")
	}
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		c, err := store.Cases.GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		inFlight, err := store.Rewards.CountInFlight(ctx, id)
		if err != nil {
			return cascadeFailure(err, "count requested rewards")
		}
		open, err := store.Payouts.CountOpenForCase(ctx, id)
		if err != nil {
			return cascadeFailure(err, "count open payouts")
		}
		if inFlight > 0 || open > 0 {
			return appErrors.Clone(appErrors.ErrCascadeFailure, "case has rewards inside an open payout request").
				WithDetails(map[string]interface{}{"requested_rewards": inFlight, "open_payouts": open})
		}

		snapshots, err := store.Snapshots.DeleteByCase(ctx, id)
		if err != nil {
			return cascadeFailure(err, "delete snapshots")
		}
		appointments, err := store.Appointments.DeleteByCase(ctx, id)
		if err != nil {
			return cascadeFailure(err, "delete appointments")
		}
		rewards, err := store.Rewards.DeleteByCase(ctx, id)
		if err != nil {
			return cascadeFailure(err, "delete rewards")
		}
		if err := store.Leads.UnlinkCase(ctx, id); err != nil {
			return cascadeFailure(err, "unlink lead")
		}
		if err := store.Cases.Delete(ctx, id); err != nil {
			return translateStoreError(err, "case not found")
		}
		return writeAudit(ctx, store, auditEntry{
			Actor:  actor,
			Action: models.AuditActionCaseDelete,
			Table:  models.AuditTargetCases,
			ID:     id,
			Details: fmt.Sprintf("removed %d snapshots, %d appointments, %d rewards",
				snapshots, appointments, rewards),
			Old: c,
		})
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, ledgerCachePattern)
	return nil
}

func (s *CaseService) view(c *models.Case) *models.CaseView {
	return caseView(c, s.policy.Current(), s.now().UTC())
}

func caseView(c *models.Case, policy models.Policy, now time.Time) *models.CaseView {
	normalized := *c
	normalized.Status = workflow.ResolveStatus(string(c.Status))
	return &models.CaseView{
		Case:      normalized,
		SLA:       workflow.SLA(&normalized, now, policy),
		NextSteps: workflow.NextSteps(normalized.Status),
	}
}

func cascadeFailure(err error, step string) error {
	return appErrors.Wrap(err, appErrors.ErrCascadeFailure.Code, appErrors.ErrCascadeFailure.Status,
		fmt.Sprintf("%s: %s", appErrors.ErrCascadeFailure.Message, step))
}

// resolveCurrency picks the case currency, adopting requested when the case
// has none yet.
func resolveCurrency(current, requested string) (string, error) {
	requested = money.NormalizeCurrency(requested)
	switch {
	case current == "" && requested == "":
		return "", validationError("currency is required until the case has one")
	case current == "":
		return requested, nil
	case requested != "" && requested != current:
		return "", validationError(fmt.Sprintf("case amounts are in %s, not %s", current, requested))
	}
	return current, nil
}

// toMinor converts major-unit amounts, rejecting negatives and sub-minor precision.
func toMinor(currency string, amounts map[string]decimal.Decimal) (map[string]int64, error) {
	out := make(map[string]int64, len(amounts))
	for field, amount := range amounts {
		m, err := money.FromDecimal(amount, currency)
		if err != nil {
			return nil, validationError(fmt.Sprintf("%s: %v", field, err))
		}
		out[field] = m.Minor()
	}
	return out, nil
}
