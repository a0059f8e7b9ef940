package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/config"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var (
	adminActor  = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	lawyerActor = models.Actor{ID: "lawyer-1", Role: models.RoleLawyer}
	agentActor  = models.Actor{ID: "agent-1", Role: models.RoleInfluencer}
)

func testPolicy(eligibility string) StaticPolicy {
	return StaticPolicy{
		SLAWarningAfter:         24 * time.Hour,
		SLABreachAfter:          48 * time.Hour,
		PayoutEligibilityWindow: 20 * 24 * time.Hour,
		PayoutEligibilityPolicy: eligibility,
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Emit(ctx context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

type fixture struct {
	db       *memDB
	notifier *recordingNotifier
	metrics  *MetricsService

	mu sync.Mutex
	at time.Time

	cases     *CaseService
	snapshots *SnapshotService
	payouts   *PayoutService
	ledger    *LedgerService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, config.EligibilityPolicyBlock)
}

func newFixtureWithPolicy(t *testing.T, eligibility string) *fixture {
	t.Helper()
	f := &fixture{
		db:       newMemDB(),
		notifier: &recordingNotifier{},
		metrics:  NewMetricsService(),
		at:       testNow,
	}
	store := f.db.store()
	policy := testPolicy(eligibility)

	f.cases = NewCaseService(store, f.db, policy, f.notifier, nil, f.metrics, nil, nil)
	f.cases.now = f.now
	f.snapshots = NewSnapshotService(store, f.db, policy, f.notifier, nil, f.metrics, nil, nil)
	f.snapshots.now = f.now
	f.payouts = NewPayoutService(store, f.db, policy, f.notifier, f.metrics, nil, nil)
	f.payouts.now = f.now
	f.ledger = NewLedgerService(store, nil, time.Minute, nil)
	f.ledger.now = f.now
	return f
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.at = f.at.Add(d)
}

func (f *fixture) seedLead(id, name string, influencerID *string) {
	f.db.put(func(s *memState) {
		s.leads[id] = models.Lead{ID: id, FullName: name, InfluencerID: influencerID, Score: 80, CreatedAt: testNow}
	})
}

// seedCase stores c after filling identity defaults and returns its id.
func (f *fixture) seedCase(c models.Case) string {
	if c.ID == "" {
		c.ID = "case-1"
	}
	if c.LeadID == "" {
		c.LeadID = "lead-" + c.ID
	}
	if c.StudentName == "" {
		c.StudentName = "Ana Lima"
	}
	if c.Version == 0 {
		c.Version = 1
	}
	c.CreatedAt = testNow.Add(-72 * time.Hour)
	c.UpdatedAt = c.CreatedAt
	f.db.put(func(s *memState) {
		caseID := c.ID
		s.cases[c.ID] = c
		s.leads[c.LeadID] = models.Lead{ID: c.LeadID, FullName: c.StudentName, CaseID: &caseID}
	})
	return c.ID
}

func (f *fixture) seedService(id string, priceMinor int64, lawyerType models.CommissionType, lawyerValue string) {
	f.db.put(func(s *memState) {
		s.catalog[id] = models.CatalogService{
			ID:                       id,
			Name:                     "Service " + id,
			SalePrice:                priceMinor,
			Currency:                 "EUR",
			LawyerCommissionType:     lawyerType,
			LawyerCommissionValue:    decimal.RequireFromString(lawyerValue),
			InfluencerCommissionType: models.CommissionTypeNone,
			Active:                   true,
		}
	})
}

// seedPaidReward stores a paid case countdown-anchored at paidAt and one
// pending reward owned by owner.
func (f *fixture) seedPaidReward(caseID, rewardID string, owner models.Actor, amount int64, paidAt time.Time) {
	f.seedCase(models.Case{
		ID:                     caseID,
		StudentName:            "Student " + caseID,
		Status:                 models.CaseStatusPaid,
		Currency:               "EUR",
		PaidAt:                 &paidAt,
		PaidCountdownStartedAt: &paidAt,
	})
	eligibleAt := paidAt.Add(20 * 24 * time.Hour)
	f.db.put(func(s *memState) {
		s.rewards[rewardID] = models.Reward{
			ID:          rewardID,
			CaseID:      caseID,
			OwnerID:     owner.ID,
			OwnerRole:   owner.Role,
			StudentName: "Student " + caseID,
			Amount:      amount,
			Currency:    "EUR",
			Status:      models.RewardStatusPending,
			EligibleAt:  &eligibleAt,
			CreatedAt:   paidAt,
		}
	})
}

func strPtr(v string) *string { return &v }
