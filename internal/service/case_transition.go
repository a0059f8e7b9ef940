package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
)

const ledgerCachePattern = "ledger:summary:*"

// transition is the committed outcome of one guarded status write.
type transition struct {
	From    models.CaseStatus
	To      models.CaseStatus
	Kind    workflow.EdgeKind
	Case    *models.Case
	Action  string
	Details string
}

func (t *transition) event(actorID string, at time.Time) Event {
	return Event{
		Type:       EventCaseStatusChanged,
		EntityID:   t.Case.ID,
		From:       string(t.From),
		To:         string(t.To),
		ActorID:    actorID,
		OccurredAt: at,
	}
}

// applyTransition moves a locked case to target inside the caller's unit of
// work and audits the move. c must have been read with GetForUpdate in the
// same transaction.
func applyTransition(ctx context.Context, store Store, policy models.Policy, c *models.Case, target models.CaseStatus, reason string, actor models.Actor, now time.Time) (*transition, error) {
	t, err := moveStatus(ctx, store, policy, c, target, reason, actor, now)
	if err != nil {
		return nil, err
	}
	if err := writeAudit(ctx, store, auditEntry{
		Actor:   actor,
		Action:  t.Action,
		Table:   models.AuditTargetCases,
		ID:      c.ID,
		Details: t.Details,
		Old:     map[string]interface{}{"status": c.Status},
		New:     map[string]interface{}{"status": target, "paid_at": t.Case.PaidAt},
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// moveStatus performs the guarded status write without auditing it. Callers
// that fold the move into their own audit entry use it directly.
func moveStatus(ctx context.Context, store Store, policy models.Policy, c *models.Case, target models.CaseStatus, reason string, actor models.Actor, now time.Time) (*transition, error) {
	current := workflow.ResolveStatus(string(c.Status))
	kind := workflow.Classify(current, target)
	action := models.AuditActionCaseStatusChange
	switch kind {
	case workflow.EdgeNone:
		return nil, appErrors.InvalidTransition(string(current), string(target))
	case workflow.EdgeFastTrack:
		if !actor.IsAdmin() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "fast-track transitions require an admin").
				WithDetails(map[string]interface{}{"current": string(current), "target": string(target)})
		}
		if reason == "" {
			return nil, validationError("fast-track transitions require a reason")
		}
		action = models.AuditActionCaseStatusOverride
	}

	params := repository.UpdateCaseStatusParams{ID: c.ID, From: c.Status, To: target, Now: now}
	if target == models.CaseStatusPaid {
		params.PaidAt = &now
		params.CountdownStartedAt = &now
	}
	if target == models.CaseStatusContacted {
		if err := store.Leads.TouchContacted(ctx, c.LeadID, now); err != nil {
			return nil, translateStoreError(err, "lead not found")
		}
	}
	if err := store.Cases.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, concurrentModification("case status changed concurrently")
		}
		return nil, translateStoreError(err, "case not found")
	}

	updated := *c
	updated.Status = target
	updated.Version++
	updated.UpdatedAt = now
	if target == models.CaseStatusPaid {
		if updated.PaidAt == nil {
			updated.PaidAt = &now
		}
		if updated.PaidCountdownStartedAt == nil {
			updated.PaidCountdownStartedAt = &now
		}
		if err := accrueRewards(ctx, store, policy, &updated, now); err != nil {
			return nil, err
		}
	}

	details := fmt.Sprintf("%s -> %s", current, target)
	if reason != "" {
		details = fmt.Sprintf("%s: %s", details, reason)
	}
	return &transition{From: current, To: target, Kind: kind, Case: &updated, Action: action, Details: details}, nil
}

// accrueRewards books the commissions owed on a case that just became paid.
// Accrual is keyed on case and owner role so a replay writes nothing.
func accrueRewards(ctx context.Context, store Store, policy models.Policy, c *models.Case, now time.Time) error {
	eligibleAt := workflow.EligibleAt(c.PaidCountdownStartedAt, policy)
	candidates := []struct {
		owner  *string
		role   models.UserRole
		amount int64
	}{
		{c.AssignedLawyerID, models.RoleLawyer, c.LawyerCommission},
		{c.InfluencerID, models.RoleInfluencer, c.InfluencerCommission},
	}
	for _, cand := range candidates {
		if cand.owner == nil || *cand.owner == "" || cand.amount == 0 {
			continue
		}
		reward := &models.Reward{
			CaseID:      c.ID,
			OwnerID:     *cand.owner,
			OwnerRole:   cand.role,
			StudentName: c.StudentName,
			Amount:      cand.amount,
			Currency:    c.Currency,
			Status:      models.RewardStatusPending,
			EligibleAt:  eligibleAt,
			CreatedAt:   now,
		}
		if _, err := store.Rewards.Accrue(ctx, reward); err != nil {
			return translateStoreError(err, "case not found")
		}
	}
	return nil
}

// rewardChange records one reward moved to a new amount.
type rewardChange struct {
	RewardID  string          `json:"reward_id"`
	OwnerRole models.UserRole `json:"owner_role"`
	From      int64           `json:"from"`
	To        int64           `json:"to"`
}

// repriceRewards brings the rewards of a paid case in line with its current
// commissions. Pending rewards take the new amount; a reward already inside
// a payout request or settled blocks the change with a conflict. Owners that
// had no reward yet get one accrued.
func repriceRewards(ctx context.Context, store Store, policy models.Policy, c *models.Case, now time.Time) ([]rewardChange, error) {
	if c.PaidAt == nil {
		return nil, nil
	}
	rewards, err := store.Rewards.ListByCaseForUpdate(ctx, c.ID)
	if err != nil {
		return nil, translateStoreError(err, "case not found")
	}
	changes := make([]rewardChange, 0, len(rewards))
	for _, r := range rewards {
		target, ok := commissionFor(c, r.OwnerRole)
		if !ok || r.Amount == target {
			continue
		}
		if r.Status != models.RewardStatusPending {
			return nil, appErrors.Clone(appErrors.ErrConflict, "case commission is already committed to a payout").
				WithDetails(map[string]interface{}{"reward_id": r.ID, "reward_status": string(r.Status), "amount": r.Amount, "requested_amount": target})
		}
		repriced, err := store.Rewards.Reprice(ctx, r.ID, target)
		if err != nil {
			return nil, translateStoreError(err, "reward not found")
		}
		if !repriced {
			return nil, concurrentModification("reward left pending concurrently")
		}
		changes = append(changes, rewardChange{RewardID: r.ID, OwnerRole: r.OwnerRole, From: r.Amount, To: target})
	}
	if err := accrueRewards(ctx, store, policy, c, now); err != nil {
		return nil, err
	}
	return changes, nil
}

func commissionFor(c *models.Case, role models.UserRole) (int64, bool) {
	switch role {
	case models.RoleLawyer:
		return c.LawyerCommission, true
	case models.RoleInfluencer:
		return c.InfluencerCommission, true
	}
	return 0, false
}

// checkCaseOwner lets admins act on any case and other staff only on cases
// assigned to them or still unassigned.
func checkCaseOwner(c *models.Case, actor models.Actor) error {
	if actor.IsAdmin() || c.AssignedLawyerID == nil || *c.AssignedLawyerID == "" || *c.AssignedLawyerID == actor.ID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "case is assigned to another lawyer").
		WithDetails(map[string]interface{}{"case_id": c.ID})
}
