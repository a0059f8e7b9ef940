package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	"github.com/noah-isme/agency-case-api/pkg/config"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/middleware/requestid"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

const (
	decisionRequest = "request"
	decisionApprove = "approve"
	decisionReject  = "reject"
	decisionPaid    = "paid"
)

// PayoutService runs the payout request workflow over accrued rewards.
type PayoutService struct {
	store     Store
	uow       UnitOfWork
	policy    PolicyProvider
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPayoutService wires the payout service.
func NewPayoutService(
	store Store,
	uow UnitOfWork,
	policy PolicyProvider,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *PayoutService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayoutService{
		store:     store,
		uow:       uow,
		policy:    policy,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Request bundles pending rewards owned by actor into a new payout request.
// Under the block policy a request that is not yet eligible is rejected;
// under warn it is created with EligibilityWarning set.
func (s *PayoutService) Request(ctx context.Context, req dto.CreatePayoutRequest, actor models.Actor) (*dto.PayoutView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	ids := uniqueStrings(req.RewardIDs)
	var created *models.PayoutRequest
	now := s.now().UTC()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		rewards, err := store.Rewards.ListByIDsForUpdate(ctx, ids)
		if err != nil {
			return translateStoreError(err, "rewards not found")
		}
		if missing := missingRewards(ids, rewards); len(missing) > 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "rewards not found").
				WithDetails(map[string]interface{}{"reward_ids": missing})
		}

		total := money.Zero("")
		caseIDs := make([]string, 0, len(rewards))
		names := make([]string, 0, len(rewards))
		seenCase := make(map[string]bool, len(rewards))
		for _, r := range rewards {
			if r.OwnerID != actor.ID {
				return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("reward %s belongs to another user", r.ID))
			}
			if r.Status != models.RewardStatusPending {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("reward %s is %s", r.ID, r.Status)).
					WithDetails(map[string]interface{}{"reward_id": r.ID, "status": r.Status})
			}
			amount, err := money.New(r.Amount, r.Currency)
			if err != nil {
				return validationError(fmt.Sprintf("reward %s: %v", r.ID, err))
			}
			if total, err = total.Add(amount); err != nil {
				if errors.Is(err, money.ErrOverflow) {
					return validationError(fmt.Sprintf("reward %s: %v", r.ID, err))
				}
				return validationError("rewards in one request must share a currency")
			}
			if !seenCase[r.CaseID] {
				seenCase[r.CaseID] = true
				caseIDs = append(caseIDs, r.CaseID)
				names = append(names, r.StudentName)
			}
		}

		policy := s.policy.Current()
		eligibleAt, eligible, err := linkedEligibility(ctx, store, caseIDs, policy, now)
		if err != nil {
			return err
		}
		if !eligible && policy.PayoutEligibilityPolicy != config.EligibilityPolicyWarn {
			return ineligiblePayout(eligibleAt, policy)
		}

		p := &models.PayoutRequest{
			ID:                 uuid.NewString(),
			RequestorID:        actor.ID,
			RequestorRole:      actor.Role,
			Amount:             total.Minor(),
			Currency:           total.Currency(),
			Status:             models.PayoutStatusPending,
			LinkedRewardIDs:    ids,
			LinkedCaseIDs:      caseIDs,
			LinkedStudentNames: names,
			EligibleAt:         eligibleAt,
			EligibilityWarning: !eligible,
			RequestedAt:        now,
		}
		if err := store.Payouts.Create(ctx, p); err != nil {
			return translateStoreError(err, "payout request not found")
		}
		marked, err := store.Rewards.MarkRequested(ctx, ids, p.ID)
		if err != nil {
			return translateStoreError(err, "rewards not found")
		}
		if marked != int64(len(ids)) {
			return concurrentModification("rewards were requested concurrently")
		}
		if err := writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionPayoutRequest,
			Table:   models.AuditTargetPayoutRequests,
			ID:      p.ID,
			Details: fmt.Sprintf("requested %s %s for %d rewards", money.Format(p.Amount, p.Currency), p.Currency, len(ids)),
			New:     p,
		}); err != nil {
			return err
		}
		created = p
		return nil
	})
	s.metrics.RecordPayoutDecision(decisionRequest, resultLabel(err))
	if err != nil {
		return nil, err
	}
	return s.view(created, now), nil
}

// Approve moves a pending request to approved. Eligibility is re-checked
// against the current policy; under warn an early approval must be
// acknowledged explicitly.
func (s *PayoutService) Approve(ctx context.Context, id string, req dto.ApprovePayoutRequest, actor models.Actor) (*dto.PayoutView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can approve payouts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	now := s.now().UTC()
	result, err := s.decide(ctx, id, models.PayoutStatusApproved, actor, now, func(ctx context.Context, store Store, p *models.PayoutRequest) (repository.PayoutTransitionParams, auditEntry, error) {
		policy := s.policy.Current()
		eligibleAt, eligible, err := linkedEligibility(ctx, store, p.LinkedCaseIDs, policy, now)
		if err != nil {
			return repository.PayoutTransitionParams{}, auditEntry{}, err
		}
		details := "approved"
		if !eligible {
			if policy.PayoutEligibilityPolicy != config.EligibilityPolicyWarn || !req.AcknowledgeIneligible {
				return repository.PayoutTransitionParams{}, auditEntry{}, ineligiblePayout(eligibleAt, policy)
			}
			details = "approved before the eligibility window closed"
		}
		params := repository.PayoutTransitionParams{Notes: optionalString(req.Notes)}
		return params, auditEntry{Action: models.AuditActionPayoutApprove, Details: details}, nil
	})
	s.metrics.RecordPayoutDecision(decisionApprove, resultLabel(err))
	return result, err
}

// Reject moves a pending request to rejected and returns its rewards to
// pending so they can be requested again.
func (s *PayoutService) Reject(ctx context.Context, id string, req dto.RejectPayoutRequest, actor models.Actor) (*dto.PayoutView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can reject payouts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	now := s.now().UTC()
	result, err := s.decide(ctx, id, models.PayoutStatusRejected, actor, now, func(ctx context.Context, store Store, p *models.PayoutRequest) (repository.PayoutTransitionParams, auditEntry, error) {
		released, err := store.Rewards.Release(ctx, p.ID)
		if err != nil {
			return repository.PayoutTransitionParams{}, auditEntry{}, cascadeFailure(err, "release rewards")
		}
		if released != int64(len(p.LinkedRewardIDs)) {
			s.logger.Warn("rejected payout released fewer rewards than linked",
				zap.String("payout_id", p.ID), zap.Int64("released", released), zap.Int("linked", len(p.LinkedRewardIDs)),
				zap.String("request_id", requestid.FromContext(ctx)))
		}
		params := repository.PayoutTransitionParams{Reason: optionalString(req.Reason)}
		return params, auditEntry{
			Action:  models.AuditActionPayoutReject,
			Details: fmt.Sprintf("%s (released %d rewards)", req.Reason, released),
		}, nil
	})
	s.metrics.RecordPayoutDecision(decisionReject, resultLabel(err))
	return result, err
}

// MarkPaid settles an approved request: the request, every linked reward,
// the transaction log row and the audit entry commit together.
func (s *PayoutService) MarkPaid(ctx context.Context, id string, req dto.MarkPayoutPaidRequest, actor models.Actor) (*dto.PayoutView, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can settle payouts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	now := s.now().UTC()
	result, err := s.decide(ctx, id, models.PayoutStatusPaid, actor, now, func(ctx context.Context, store Store, p *models.PayoutRequest) (repository.PayoutTransitionParams, auditEntry, error) {
		paid, err := store.Rewards.MarkPaid(ctx, p.ID, now)
		if err != nil {
			return repository.PayoutTransitionParams{}, auditEntry{}, cascadeFailure(err, "mark rewards paid")
		}
		if paid != int64(len(p.LinkedRewardIDs)) {
			return repository.PayoutTransitionParams{}, auditEntry{}, appErrors.Clone(appErrors.ErrCascadeFailure, "linked rewards could not all be marked paid").
				WithDetails(map[string]interface{}{"linked": len(p.LinkedRewardIDs), "updated": paid})
		}
		txn := &models.PayoutTransaction{
			ID:              uuid.NewString(),
			PayoutRequestID: p.ID,
			Amount:          p.Amount,
			Currency:        p.Currency,
			PaymentMethod:   req.PaymentMethod,
			TransactionRef:  req.TransactionRef,
			Notes:           optionalString(req.Notes),
			CreatedBy:       actor.ID,
			CreatedAt:       now,
		}
		if err := store.Transactions.Append(ctx, txn); err != nil {
			return repository.PayoutTransitionParams{}, auditEntry{}, cascadeFailure(err, "append payout transaction")
		}
		params := repository.PayoutTransitionParams{
			Notes:          optionalString(req.Notes),
			PaymentMethod:  &req.PaymentMethod,
			TransactionRef: &req.TransactionRef,
		}
		return params, auditEntry{
			Action:  models.AuditActionPayoutPaid,
			Details: fmt.Sprintf("paid via %s ref %s", req.PaymentMethod, req.TransactionRef),
		}, nil
	})
	s.metrics.RecordPayoutDecision(decisionPaid, resultLabel(err))
	return result, err
}

type decisionFunc func(ctx context.Context, store Store, p *models.PayoutRequest) (repository.PayoutTransitionParams, auditEntry, error)

// decide locks the request, checks the state table, runs the decision's side
// effects, writes the conditional status update and the audit entry.
func (s *PayoutService) decide(ctx context.Context, id string, target models.PayoutStatus, actor models.Actor, now time.Time, apply decisionFunc) (*dto.PayoutView, error) {
	var (
		result *models.PayoutRequest
		from   models.PayoutStatus
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		p, err := store.Payouts.GetForUpdate(ctx, id)
		if err != nil {
			return translateStoreError(err, "payout request not found")
		}
		from = p.Status
		if !workflow.CanTransitionPayout(p.Status, target) {
			return appErrors.InvalidTransition(string(p.Status), string(target))
		}
		params, entry, err := apply(ctx, store, p)
		if err != nil {
			return err
		}
		params.ID = p.ID
		params.From = p.Status
		params.To = target
		params.ActorID = actor.ID
		params.At = now
		if err := store.Payouts.Transition(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return concurrentModification("payout request was decided concurrently")
			}
			return translateStoreError(err, "payout request not found")
		}
		entry.Actor = actor
		entry.Table = models.AuditTargetPayoutRequests
		entry.ID = p.ID
		entry.Old = map[string]interface{}{"status": p.Status}
		entry.New = map[string]interface{}{"status": target, "at": now}
		if err := writeAudit(ctx, store, entry); err != nil {
			return err
		}
		updated, err := store.Payouts.GetByID(ctx, p.ID)
		if err != nil {
			return translateStoreError(err, "payout request not found")
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, Event{
			Type:       EventPayoutDecided,
			EntityID:   id,
			From:       string(from),
			To:         string(target),
			ActorID:    actor.ID,
			OccurredAt: now,
		})
	}
	return s.view(result, now), nil
}

// BulkApprove approves each request in its own unit of work and reports
// per-id failures.
func (s *PayoutService) BulkApprove(ctx context.Context, req dto.BulkApprovePayoutRequest, actor models.Actor) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	single := dto.ApprovePayoutRequest{Notes: req.Notes, AcknowledgeIneligible: req.AcknowledgeIneligible}
	return s.bulk(req.IDs, func(id string) error {
		_, err := s.Approve(ctx, id, single, actor)
		return err
	}), nil
}

// BulkReject rejects each request in its own unit of work and reports
// per-id failures.
func (s *PayoutService) BulkReject(ctx context.Context, req dto.BulkRejectPayoutRequest, actor models.Actor) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	single := dto.RejectPayoutRequest{Reason: req.Reason}
	return s.bulk(req.IDs, func(id string) error {
		_, err := s.Reject(ctx, id, single, actor)
		return err
	}), nil
}

func (s *PayoutService) bulk(ids []string, apply func(id string) error) *models.BulkResult {
	result := &models.BulkResult{Succeeded: make([]string, 0, len(ids)), Failed: make([]models.BulkFailure, 0)}
	for _, id := range uniqueStrings(ids) {
		if err := apply(id); err != nil {
			appErr := appErrors.FromError(err)
			result.Failed = append(result.Failed, models.BulkFailure{ID: id, Code: appErr.Code, Message: appErr.Message})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// Get returns one request. Non-admins only see their own.
func (s *PayoutService) Get(ctx context.Context, id string, actor models.Actor) (*dto.PayoutView, error) {
	p, err := s.store.Payouts.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "payout request not found")
	}
	if !actor.IsAdmin() && p.RequestorID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payout request belongs to another user")
	}
	return s.view(p, s.now().UTC()), nil
}

// List returns requests matching filter, scoped to the caller unless admin.
func (s *PayoutService) List(ctx context.Context, filter models.PayoutFilter, actor models.Actor) ([]dto.PayoutView, *models.Pagination, error) {
	if !actor.IsAdmin() {
		filter.RequestorID = actor.ID
	}
	items, total, err := s.store.Payouts.List(ctx, filter)
	if err != nil {
		return nil, nil, translateStoreError(err, "payout requests not found")
	}
	now := s.now().UTC()
	views := make([]dto.PayoutView, 0, len(items))
	for i := range items {
		views = append(views, *s.view(&items[i], now))
	}
	return views, pagination(filter.Page, filter.PageSize, total), nil
}

// ListRewards returns the caller's rewards with their eligibility at read time.
func (s *PayoutService) ListRewards(ctx context.Context, actor models.Actor) ([]dto.RewardItem, error) {
	rewards, err := s.store.Rewards.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, translateStoreError(err, "rewards not found")
	}
	now := s.now().UTC()
	items := make([]dto.RewardItem, 0, len(rewards))
	for _, r := range rewards {
		items = append(items, dto.RewardItem{Reward: r, Eligible: workflow.IsEligible(r.EligibleAt, now)})
	}
	return items, nil
}

func (s *PayoutService) view(p *models.PayoutRequest, now time.Time) *dto.PayoutView {
	return &dto.PayoutView{PayoutRequest: *p, Eligible: workflow.IsEligible(p.EligibleAt, now), CheckedAt: now}
}

// linkedEligibility computes the latest eligibility instant across caseIDs
// under policy. eligibleAt is nil when a linked case has no countdown.
func linkedEligibility(ctx context.Context, store Store, caseIDs []string, policy models.Policy, now time.Time) (*time.Time, bool, error) {
	countdowns := make([]*time.Time, 0, len(caseIDs))
	for _, id := range caseIDs {
		c, err := store.Cases.GetByID(ctx, id)
		if err != nil {
			return nil, false, translateStoreError(err, "linked case not found")
		}
		countdowns = append(countdowns, c.PaidCountdownStartedAt)
	}
	latest, ok := workflow.LatestEligibleAt(countdowns, policy)
	if !ok {
		return nil, false, nil
	}
	return &latest, workflow.IsEligible(&latest, now), nil
}

func ineligiblePayout(eligibleAt *time.Time, policy models.Policy) error {
	details := map[string]interface{}{
		"policy": policy.PayoutEligibilityPolicy,
		"window": policy.PayoutEligibilityWindow.String(),
	}
	if eligibleAt != nil {
		details["eligible_at"] = eligibleAt.UTC().Format(time.RFC3339)
	}
	return appErrors.Clone(appErrors.ErrIneligiblePayout, "").WithDetails(details)
}

func missingRewards(ids []string, rewards []models.Reward) []string {
	found := make(map[string]bool, len(rewards))
	for _, r := range rewards {
		found[r.ID] = true
	}
	missing := make([]string, 0)
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
