package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
)

func TestConvertLeadIsIdempotentPerLead(t *testing.T) {
	f := newFixture(t)
	f.seedLead("lead-9", "Budi Santoso", strPtr("agent-1"))
	ctx := context.Background()

	first, err := f.cases.ConvertLead(ctx, dto.ConvertLeadRequest{LeadID: "lead-9", City: strPtr("Berlin"), NeedsAccommodation: true}, lawyerActor)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, models.CaseStatusNew, first.Case.Status)
	assert.Equal(t, "Budi Santoso", first.Case.StudentName)
	require.NotNil(t, first.Case.InfluencerID)
	assert.Equal(t, "agent-1", *first.Case.InfluencerID)
	assert.Equal(t, []models.CaseStatus{models.CaseStatusEligible, models.CaseStatusNotEligible}, first.Case.NextSteps)

	second, err := f.cases.ConvertLead(ctx, dto.ConvertLeadRequest{LeadID: "lead-9"}, lawyerActor)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Case.ID, second.Case.ID)
	assert.Equal(t, []string{models.AuditActionCaseCreate}, f.db.auditActions())
}

func TestConvertLeadUnknownLead(t *testing.T) {
	f := newFixture(t)
	_, err := f.cases.ConvertLead(context.Background(), dto.ConvertLeadRequest{LeadID: "missing"}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTransitionFromNewToPaidIsRejected(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusNew})
	before := f.db.caseByID(id)

	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "paid"}, adminActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	appErr := appErrors.FromError(err)
	assert.Equal(t, "new", appErr.Details["current"])
	assert.Equal(t, "paid", appErr.Details["target"])
	assert.False(t, appErrors.IsRetryable(err))

	assert.Equal(t, before, f.db.caseByID(id))
	assert.Empty(t, f.db.auditActions())
	assert.Empty(t, f.notifier.all())
}

func TestTransitionLeavesCaseUntouchedForEveryIllegalPair(t *testing.T) {
	for _, current := range workflow.Statuses() {
		for _, target := range workflow.Statuses() {
			if workflow.CanTransition(current, target) {
				continue
			}
			f := newFixture(t)
			id := f.seedCase(models.Case{Status: current, Currency: "EUR", ServiceFee: 100})
			before := f.db.caseByID(id)

			_, err := f.cases.Transition(context.Background(), id,
				dto.TransitionCaseRequest{Target: string(target), Reason: "manual check"}, adminActor)
			require.Error(t, err, "%s -> %s", current, target)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition), "%s -> %s", current, target)
			assert.Equal(t, before, f.db.caseByID(id), "%s -> %s", current, target)
		}
	}
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusNew})
	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "settled"}, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTransitionIntoPaidStampsCountdownAndAccruesRewards(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{
		Status:               models.CaseStatusReadyToApply,
		AssignedLawyerID:     strPtr(lawyerActor.ID),
		InfluencerID:         strPtr(agentActor.ID),
		Currency:             "EUR",
		ServiceFee:           15000,
		LawyerCommission:     1500,
		InfluencerCommission: 500,
	})

	view, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "paid"}, lawyerActor)
	require.NoError(t, err)
	require.NotNil(t, view.PaidAt)
	assert.Equal(t, testNow, *view.PaidAt)
	require.NotNil(t, view.PaidCountdownStartedAt)
	assert.Equal(t, testNow, *view.PaidCountdownStartedAt)

	stored := f.db.caseByID(id)
	assert.Equal(t, models.CaseStatusPaid, stored.Status)
	assert.Equal(t, testNow, *stored.PaidAt)
	assert.Equal(t, int64(2), stored.Version)

	lawyerRewards, err := f.payouts.ListRewards(context.Background(), lawyerActor)
	require.NoError(t, err)
	require.Len(t, lawyerRewards, 1)
	assert.Equal(t, int64(1500), lawyerRewards[0].Amount)
	assert.Equal(t, testNow.Add(20*24*time.Hour), *lawyerRewards[0].EligibleAt)
	assert.False(t, lawyerRewards[0].Eligible)

	agentRewards, err := f.payouts.ListRewards(context.Background(), agentActor)
	require.NoError(t, err)
	require.Len(t, agentRewards, 1)
	assert.Equal(t, int64(500), agentRewards[0].Amount)

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventCaseStatusChanged, events[0].Type)
	assert.Equal(t, "ready_to_apply", events[0].From)
	assert.Equal(t, "paid", events[0].To)
}

func TestTransitionIntoPaidKeepsExistingCountdown(t *testing.T) {
	f := newFixture(t)
	earlier := testNow.Add(-96 * time.Hour)
	id := f.seedCase(models.Case{Status: models.CaseStatusReadyToApply, PaidCountdownStartedAt: &earlier})

	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "paid"}, lawyerActor)
	require.NoError(t, err)
	stored := f.db.caseByID(id)
	assert.Equal(t, earlier, *stored.PaidCountdownStartedAt)
	assert.Equal(t, testNow, *stored.PaidAt)
}

func TestTransitionToContactedTouchesLeadInSameUnit(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusAssigned})
	leadID := f.db.caseByID(id).LeadID

	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "contacted"}, lawyerActor)
	require.NoError(t, err)
	f.db.put(func(s *memState) {
		require.NotNil(t, s.leads[leadID].LastContactedAt)
		assert.Equal(t, testNow, *s.leads[leadID].LastContactedAt)
	})

	g := newFixture(t)
	id = g.seedCase(models.Case{Status: models.CaseStatusAssigned})
	g.db.setFailure("leads.touch", errors.New("connection reset"))
	_, err = g.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "contacted"}, lawyerActor)
	require.Error(t, err)
	assert.Equal(t, models.CaseStatusAssigned, g.db.caseByID(id).Status)
}

func TestFastTrackRequiresAdminAndReason(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusProfileFilled})
	ctx := context.Background()

	_, err := f.cases.Transition(ctx, id, dto.TransitionCaseRequest{Target: "ready_to_apply", Reason: "no services"}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.cases.Transition(ctx, id, dto.TransitionCaseRequest{Target: "ready_to_apply"}, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, models.CaseStatusProfileFilled, f.db.caseByID(id).Status)

	view, err := f.cases.Transition(ctx, id, dto.TransitionCaseRequest{Target: "ready_to_apply", Reason: "student brings own services"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusReadyToApply, view.Status)
	assert.Equal(t, []string{models.AuditActionCaseStatusOverride}, f.db.auditActions())
}

func TestConcurrentTransitionsToPaidSucceedOnce(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusProfileFilled})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.cases.Transition(context.Background(), id,
				dto.TransitionCaseRequest{Target: "paid", Reason: "paid in full at intake"}, adminActor)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition) || errors.Is(err, appErrors.ErrConcurrentModification), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	stored := f.db.caseByID(id)
	assert.Equal(t, models.CaseStatusPaid, stored.Status)
	assert.Equal(t, testNow, *stored.PaidAt)
	assert.Equal(t, []string{models.AuditActionCaseStatusOverride}, f.db.auditActions())
}

func TestStaleStatusWriteReportsConcurrentModification(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusEligible})
	f.db.onStatusUpdate = func(state *memState, params repository.UpdateCaseStatusParams) {
		c := state.cases[params.ID]
		c.Status = models.CaseStatusNotEligible
		state.cases[params.ID] = c
	}

	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "assigned"}, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrConcurrentModification))
	assert.True(t, appErrors.IsRetryable(err))
	assert.Empty(t, f.db.auditActions())
}

func TestTransitionChecksExpectedVersion(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusNew, Version: 4})
	stale := int64(3)

	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "eligible", ExpectedVersion: &stale}, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrConcurrentModification))
	assert.Equal(t, models.CaseStatusNew, f.db.caseByID(id).Status)
}

func TestAdvanceFollowsPrimaryEdge(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusNew})

	view, err := f.cases.Advance(context.Background(), id, lawyerActor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusEligible, view.Status)

	done := f.seedCase(models.Case{ID: "case-2", Status: models.CaseStatusCompleted})
	_, err = f.cases.Advance(context.Background(), done, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestLegacyStatusIsResolvedOnRead(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: "something_from_2019"})

	view, err := f.cases.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusNew, view.Status)
}

func TestAssignAdvancesEligibleCaseAndDrivesSLA(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusEligible})
	ctx := context.Background()

	_, err := f.cases.Assign(ctx, id, dto.AssignCaseRequest{LawyerID: "lawyer-2"}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))

	view, err := f.cases.Assign(ctx, id, dto.AssignCaseRequest{LawyerID: "lawyer-2"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusAssigned, view.Status)
	assert.Equal(t, "lawyer-2", *view.AssignedLawyerID)
	assert.Equal(t, testNow, *view.AssignedAt)
	assert.Equal(t, models.SLAStateOK, view.SLA)
	assert.Equal(t, []string{models.AuditActionCaseAssign}, f.db.auditActions())
	f.db.put(func(s *memState) {
		assert.Contains(t, string(s.audit[0].OldValues), `"status":"eligible"`)
		assert.Contains(t, string(s.audit[0].NewValues), `"status":"assigned"`)
	})

	f.advance(25 * time.Hour)
	view, err = f.cases.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SLAStateWarning, view.SLA)

	f.advance(24 * time.Hour)
	view, err = f.cases.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SLAStateBreach, view.SLA)

	view, err = f.cases.Assign(ctx, id, dto.AssignCaseRequest{LawyerID: "lawyer-3"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.SLAStateOK, view.SLA)
	assert.Equal(t, f.now(), *view.AssignedAt)
}

func TestRecordFeesIsAdditive(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusPaid, SchoolCommission: 1000, Currency: "EUR"})
	ctx := context.Background()

	view, err := f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{
		SchoolCommission: decimal.RequireFromString("25.50"),
		TranslationFee:   decimal.RequireFromString("4"),
	}, lawyerActor)
	require.NoError(t, err)
	assert.Equal(t, int64(3550), view.SchoolCommission)
	assert.Equal(t, int64(400), view.TranslationFee)

	_, err = f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{ReferralDiscount: decimal.NewFromInt(-1)}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{Currency: "USD", ReferralDiscount: decimal.NewFromInt(1)}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Equal(t, int64(3550), f.db.caseByID(id).SchoolCommission)
	assert.Equal(t, []string{models.AuditActionCaseFees}, f.db.auditActions())
}

func TestRecordFeesAdoptsCurrency(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusContacted})

	_, err := f.cases.RecordFees(context.Background(), id, dto.RecordFeesRequest{TranslationFee: decimal.NewFromInt(10)}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	view, err := f.cases.RecordFees(context.Background(), id, dto.RecordFeesRequest{Currency: "jpy", TranslationFee: decimal.NewFromInt(1500)}, lawyerActor)
	require.NoError(t, err)
	assert.Equal(t, "JPY", view.Currency)
	assert.Equal(t, int64(1500), view.TranslationFee)
}

func TestCorrectMoneyOverwritesWithAudit(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusPaid, Currency: "EUR", ServiceFee: 20000, LawyerCommission: 2000})
	ctx := context.Background()
	req := dto.CorrectMoneyRequest{
		ServiceFee:       decimal.RequireFromString("180"),
		LawyerCommission: decimal.RequireFromString("18"),
		Reason:           "discount agreed after signing",
	}

	_, err := f.cases.CorrectMoney(ctx, id, req, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.cases.CorrectMoney(ctx, id, dto.CorrectMoneyRequest{ServiceFee: decimal.NewFromInt(1)}, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	view, err := f.cases.CorrectMoney(ctx, id, req, adminActor)
	require.NoError(t, err)
	assert.Equal(t, int64(18000), view.ServiceFee)
	assert.Equal(t, int64(1800), view.LawyerCommission)

	f.db.put(func(s *memState) {
		require.Len(t, s.audit, 1)
		entry := s.audit[0]
		assert.Equal(t, models.AuditActionCaseCorrection, entry.Action)
		assert.Equal(t, "discount agreed after signing", entry.Details)
		assert.Contains(t, string(entry.OldValues), `"service_fee":20000`)
		assert.Contains(t, string(entry.NewValues), `"service_fee":18000`)
	})
}

func seedDependents(f *fixture, caseID string) {
	f.db.put(func(s *memState) {
		s.snapshots = append(s.snapshots, models.ServiceSnapshot{ID: "snap-1", CaseID: caseID, MasterServiceID: "svc-1"})
		s.appointments = append(s.appointments, models.Appointment{ID: "appt-1", CaseID: caseID, ScheduledAt: testNow})
		s.rewards["reward-1"] = models.Reward{ID: "reward-1", CaseID: caseID, OwnerID: lawyerActor.ID, Status: models.RewardStatusPaid}
	})
}

func TestDeleteCascadesDependents(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusCompleted})
	leadID := f.db.caseByID(id).LeadID
	seedDependents(f, id)

	require.True(t, errors.Is(f.cases.Delete(context.Background(), id, lawyerActor), appErrors.ErrForbidden))
	require.NoError(t, f.cases.Delete(context.Background(), id, adminActor))

	f.db.put(func(s *memState) {
		assert.NotContains(t, s.cases, id)
		assert.Empty(t, s.snapshots)
		assert.Empty(t, s.appointments)
		assert.Empty(t, s.rewards)
		assert.Nil(t, s.leads[leadID].CaseID)
	})
	assert.Equal(t, []string{models.AuditActionCaseDelete}, f.db.auditActions())
}

func TestDeleteIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusCompleted})
	seedDependents(f, id)
	f.db.setFailure("appointments.delete", errors.New("lock timeout"))

	err := f.cases.Delete(context.Background(), id, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrCascadeFailure))
	assert.True(t, appErrors.IsRetryable(err))

	f.db.put(func(s *memState) {
		assert.Contains(t, s.cases, id)
		assert.Len(t, s.snapshots, 1)
		assert.Len(t, s.appointments, 1)
		assert.Len(t, s.rewards, 1)
	})
	assert.Empty(t, f.db.auditActions())
}

func TestDeleteRefusesWhileRewardsAreRequested(t *testing.T) {
	f := newFixture(t)
	f.seedPaidReward("case-7", "reward-7", lawyerActor, 1000, testNow.Add(-30*24*time.Hour))
	_, err := f.payouts.Request(context.Background(), dto.CreatePayoutRequest{RewardIDs: []string{"reward-7"}}, lawyerActor)
	require.NoError(t, err)

	err = f.cases.Delete(context.Background(), "case-7", adminActor)
	require.True(t, errors.Is(err, appErrors.ErrCascadeFailure))
	assert.Equal(t, models.CaseStatusPaid, f.db.caseByID("case-7").Status)
	assert.Equal(t, models.RewardStatusRequested, f.db.rewardByID("reward-7").Status)
}

func TestAuditFailureRollsBackTransition(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusReadyToApply, AssignedLawyerID: strPtr(lawyerActor.ID), LawyerCommission: 900, Currency: "EUR"})
	f.db.setFailure("audit.create", errors.New("audit sink unavailable"))

	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "paid"}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrAuditWriteFailure))
	assert.True(t, appErrors.IsRetryable(err))

	stored := f.db.caseByID(id)
	assert.Equal(t, models.CaseStatusReadyToApply, stored.Status)
	assert.Nil(t, stored.PaidAt)
	f.db.put(func(s *memState) { assert.Empty(t, s.rewards) })
	assert.Empty(t, f.notifier.all())
}

func TestListDecoratesViews(t *testing.T) {
	f := newFixture(t)
	assignedAt := testNow.Add(-30 * time.Hour)
	f.seedCase(models.Case{ID: "case-a", Status: models.CaseStatusAssigned, AssignedAt: &assignedAt, AssignedLawyerID: strPtr("lawyer-1")})
	f.seedCase(models.Case{ID: "case-b", Status: models.CaseStatusNew})

	views, page, err := f.cases.List(context.Background(), models.CaseFilter{AssignedLawyerID: "lawyer-1"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.SLAStateWarning, views[0].SLA)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)
}

func TestRecordFeesRejectsAmountsOutsideInt64(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusPaid, Currency: "EUR", SchoolCommission: math.MaxInt64 - 10})
	ctx := context.Background()

	_, err := f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{
		TranslationFee: decimal.RequireFromString("184467440737095516.17"),
	}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{
		SchoolCommission: decimal.RequireFromString("1"),
	}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "school_commission")

	stored := f.db.caseByID(id)
	assert.Equal(t, int64(math.MaxInt64-10), stored.SchoolCommission)
	assert.Zero(t, stored.TranslationFee)
	assert.Empty(t, f.db.auditActions())
}

// paidCaseWithLawyerReward drives a case through paid so the lawyer reward is
// accrued the way production accrues it.
func paidCaseWithLawyerReward(t *testing.T, f *fixture) (string, string) {
	t.Helper()
	id := f.seedCase(models.Case{
		Status:           models.CaseStatusReadyToApply,
		AssignedLawyerID: strPtr(lawyerActor.ID),
		Currency:         "EUR",
		ServiceFee:       15000,
		LawyerCommission: 1500,
	})
	_, err := f.cases.Transition(context.Background(), id, dto.TransitionCaseRequest{Target: "paid"}, lawyerActor)
	require.NoError(t, err)
	rewards, err := f.payouts.ListRewards(context.Background(), lawyerActor)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	require.Equal(t, int64(1500), rewards[0].Amount)
	return id, rewards[0].ID
}

func TestCorrectMoneyRepricesPendingRewards(t *testing.T) {
	f := newFixture(t)
	id, rewardID := paidCaseWithLawyerReward(t, f)
	ctx := context.Background()

	view, err := f.cases.CorrectMoney(ctx, id, dto.CorrectMoneyRequest{
		ServiceFee:       decimal.RequireFromString("150"),
		LawyerCommission: decimal.RequireFromString("20.00"),
		Reason:           "commission renegotiated",
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), view.LawyerCommission)
	assert.Equal(t, int64(2000), f.db.rewardByID(rewardID).Amount)

	rewards, err := f.payouts.ListRewards(ctx, lawyerActor)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, int64(2000), rewards[0].Amount)

	assert.Equal(t, []string{models.AuditActionCaseStatusChange, models.AuditActionCaseCorrection}, f.db.auditActions())
	f.db.put(func(s *memState) {
		entry := s.audit[len(s.audit)-1]
		assert.Contains(t, string(entry.NewValues), `"reward_id":"`+rewardID+`"`)
		assert.Contains(t, string(entry.NewValues), `"to":2000`)
	})
}

func TestCorrectMoneyRefusesCommittedRewards(t *testing.T) {
	f := newFixture(t)
	id, rewardID := paidCaseWithLawyerReward(t, f)
	ctx := context.Background()
	f.advance(21 * 24 * time.Hour)
	_, err := f.payouts.Request(ctx, dto.CreatePayoutRequest{RewardIDs: []string{rewardID}}, lawyerActor)
	require.NoError(t, err)

	_, err = f.cases.CorrectMoney(ctx, id, dto.CorrectMoneyRequest{
		ServiceFee:       decimal.RequireFromString("150"),
		LawyerCommission: decimal.RequireFromString("25"),
		Reason:           "late discount",
	}, adminActor)
	require.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, rewardID, appErrors.FromError(err).Details["reward_id"])

	stored := f.db.caseByID(id)
	assert.Equal(t, int64(1500), stored.LawyerCommission)
	assert.Equal(t, int64(1500), f.db.rewardByID(rewardID).Amount)
	assert.Equal(t, models.RewardStatusRequested, f.db.rewardByID(rewardID).Status)

	view, err := f.cases.CorrectMoney(ctx, id, dto.CorrectMoneyRequest{
		ServiceFee:       decimal.RequireFromString("140"),
		LawyerCommission: decimal.RequireFromString("15"),
		Reason:           "fee typo",
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, int64(14000), view.ServiceFee)
	assert.Equal(t, int64(1500), f.db.rewardByID(rewardID).Amount)
}

func TestStaffCanOnlyWriteTheirOwnCases(t *testing.T) {
	f := newFixture(t)
	id := f.seedCase(models.Case{Status: models.CaseStatusAssigned, AssignedLawyerID: strPtr("lawyer-2"), Currency: "EUR"})
	f.seedService("svc-visa", 10000, models.CommissionTypePercentage, "10")
	ctx := context.Background()

	_, err := f.cases.Transition(ctx, id, dto.TransitionCaseRequest{Target: "contacted"}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.cases.Advance(ctx, id, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{TranslationFee: decimal.NewFromInt(5)}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.snapshots.Attach(ctx, id, dto.AttachServicesRequest{ServiceIDs: []string{"svc-visa"}}, lawyerActor)
	require.True(t, errors.Is(err, appErrors.ErrForbidden))

	stored := f.db.caseByID(id)
	assert.Equal(t, models.CaseStatusAssigned, stored.Status)
	assert.Zero(t, stored.TranslationFee)
	assert.Zero(t, stored.ServiceFee)
	assert.Empty(t, f.db.auditActions())

	owner := models.Actor{ID: "lawyer-2", Role: models.RoleLawyer}
	view, err := f.cases.RecordFees(ctx, id, dto.RecordFeesRequest{TranslationFee: decimal.NewFromInt(5)}, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(500), view.TranslationFee)

	view, err = f.cases.Transition(ctx, id, dto.TransitionCaseRequest{Target: "contacted"}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusContacted, view.Status)
}
