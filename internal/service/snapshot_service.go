package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

// SnapshotService attaches price-locked catalog services to cases.
type SnapshotService struct {
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

// NewSnapshotService wires the snapshot service.
func NewSnapshotService(
	store Store,
	uow UnitOfWork,
	policy PolicyProvider,
	notifier Notifier,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SnapshotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
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

// Attach snapshots the current catalog terms of each service onto the case,
// adds their contribution to the case amounts and advances the case to
// services_filled when that edge is open. Services already attached are
// reported as duplicates and contribute nothing.
func (s *SnapshotService) Attach(ctx context.Context, caseID string, req dto.AttachServicesRequest, actor models.Actor) (*dto.AttachResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err.Error())
	}
	ids := uniqueStrings(req.ServiceIDs)
	result := &dto.AttachResult{
		Attached:   make([]models.ServiceSnapshot, 0, len(ids)),
		Duplicates: make([]models.BulkFailure, 0),
	}
	var (
		updated *models.Case
		done    *transition
	)
	now := s.now().UTC()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		c, err := store.Cases.GetForUpdate(ctx, caseID)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		if err := checkCaseOwner(c, actor); err != nil {
			return err
		}
		catalog, err := store.Catalog.GetByIDs(ctx, ids)
		if err != nil {
			return translateStoreError(err, "catalog services not found")
		}
		byID := make(map[string]models.CatalogService, len(catalog))
		for _, svc := range catalog {
			byID[svc.ID] = svc
		}
		missing := make([]string, 0)
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "catalog services not found").
				WithDetails(map[string]interface{}{"service_ids": missing})
		}

		currency := c.Currency
		var total workflow.Contribution
		for _, id := range ids {
			svc := byID[id]
			if currency == "" {
				currency = money.NormalizeCurrency(svc.Currency)
			}
			if money.NormalizeCurrency(svc.Currency) != currency {
				return validationError(fmt.Sprintf("service %s is priced in %s, case amounts are in %s", svc.ID, svc.Currency, currency))
			}
			snap := models.NewSnapshotFromCatalog(caseID, svc, actor.ID)
			snap.ID = uuid.NewString()
			snap.Currency = currency
			snap.CreatedAt = now
			contribution, err := workflow.SnapshotContribution(snap)
			if err != nil {
				return validationError(fmt.Sprintf("service %s: %v", svc.ID, err))
			}
			inserted, err := store.Snapshots.Insert(ctx, &snap)
			if err != nil {
				return translateStoreError(err, "case not found")
			}
			if !inserted {
				result.Duplicates = append(result.Duplicates, models.BulkFailure{
					ID:      id,
					Code:    appErrors.ErrDuplicateAttachment.Code,
					Message: appErrors.ErrDuplicateAttachment.Message,
				})
				continue
			}
			if err := total.Add(contribution); err != nil {
				return validationError(fmt.Sprintf("service %s: %v", svc.ID, err))
			}
			result.Attached = append(result.Attached, snap)
		}

		if len(result.Attached) == 0 {
			updated = c
			return nil
		}
		delta := repository.MoneyDelta{
			ServiceFee:           total.ServiceFee,
			LawyerCommission:     total.LawyerCommission,
			InfluencerCommission: total.InfluencerCommission,
		}
		if _, err := delta.ApplyTo(c.Money()); err != nil {
			return validationError(err.Error())
		}
		updated, err = store.Cases.IncrementMoney(ctx, caseID, delta, currency, now)
		if err != nil {
			return translateStoreError(err, "case not found")
		}
		repriced, err := repriceRewards(ctx, store, s.policy.Current(), updated, now)
		if err != nil {
			return err
		}
		attachedIDs := make([]string, 0, len(result.Attached))
		for _, snap := range result.Attached {
			attachedIDs = append(attachedIDs, snap.MasterServiceID)
		}
		details := fmt.Sprintf("attached %d services", len(result.Attached))
		current := workflow.ResolveStatus(string(updated.Status))
		if workflow.Classify(current, models.CaseStatusServicesFilled) == workflow.EdgeStandard {
			done, err = moveStatus(ctx, store, s.policy.Current(), updated, models.CaseStatusServicesFilled, "", actor, now)
			if err != nil {
				return err
			}
			updated = done.Case
			details = fmt.Sprintf("%s, %s", details, done.Details)
		}
		newValues := map[string]interface{}{"service_ids": attachedIDs, "amounts": updated.Money(), "status": updated.Status}
		if len(repriced) > 0 {
			newValues["rewards"] = repriced
		}
		return writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionServiceAttach,
			Table:   models.AuditTargetCases,
			ID:      caseID,
			Details: details,
			Old:     map[string]interface{}{"amounts": c.Money(), "status": c.Status},
			New:     newValues,
		})
	})
	s.metrics.RecordAttachments(resultLabel(err), len(result.Attached))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAttachments("duplicate", len(result.Duplicates))

	if len(result.Attached) > 0 {
		s.cache.Invalidate(ctx, ledgerCachePattern)
	}
	if done != nil {
		s.metrics.RecordTransition(string(done.From), string(done.To), resultOK)
		if s.notifier != nil {
			s.notifier.Emit(ctx, done.event(actor.ID, now))
		}
	}
	result.Case = caseView(updated, s.policy.Current(), now)
	return result, nil
}

// List returns the snapshots of a case in attachment order.
func (s *SnapshotService) List(ctx context.Context, caseID string) ([]models.ServiceSnapshot, error) {
	if _, err := s.store.Cases.GetByID(ctx, caseID); err != nil {
		return nil, translateStoreError(err, "case not found")
	}
	snapshots, err := s.store.Snapshots.ListByCase(ctx, caseID)
	if err != nil {
		return nil, translateStoreError(err, "snapshots not found")
	}
	return snapshots, nil
}

// MarkPaid records payment of one snapshot. Repeating it is a no-op.
func (s *SnapshotService) MarkPaid(ctx context.Context, caseID, snapshotID string, actor models.Actor) (*models.ServiceSnapshot, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can record service payments")
	}
	var result *models.ServiceSnapshot
	err := s.uow.WithinTx(ctx, func(ctx context.Context, store Store) error {
		snap, err := store.Snapshots.GetByID(ctx, caseID, snapshotID)
		if err != nil {
			return translateStoreError(err, "snapshot not found")
		}
		now := s.now().UTC()
		changed, err := store.Snapshots.MarkPaid(ctx, caseID, snapshotID, now)
		if err != nil {
			return translateStoreError(err, "snapshot not found")
		}
		if !changed {
			result = snap
			return nil
		}
		if err := writeAudit(ctx, store, auditEntry{
			Actor:   actor,
			Action:  models.AuditActionServicePaid,
			Table:   models.AuditTargetSnapshots,
			ID:      snapshotID,
			Details: fmt.Sprintf("%s paid for case %s", snap.ServiceName, caseID),
			Old:     map[string]interface{}{"payment_status": snap.PaymentStatus},
			New:     map[string]interface{}{"payment_status": models.PaymentStatusPaid, "paid_at": now},
		}); err != nil {
			return err
		}
		paid := *snap
		paid.PaymentStatus = models.PaymentStatusPaid
		paid.PaidAt = &now
		result = &paid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
