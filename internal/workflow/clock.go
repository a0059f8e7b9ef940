package workflow

import (
	"time"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// SLA derives the assignment SLA state at now. Only cases still sitting in
// assigned are measured.
func SLA(c *models.Case, now time.Time, policy models.Policy) models.SLAState {
	if c == nil || c.Status != models.CaseStatusAssigned || c.AssignedAt == nil {
		return models.SLAStateNone
	}
	elapsed := now.Sub(*c.AssignedAt)
	switch {
	case elapsed > policy.SLABreachAfter:
		return models.SLAStateBreach
	case elapsed > policy.SLAWarningAfter:
		return models.SLAStateWarning
	}
	return models.SLAStateOK
}

// EligibleAt returns when the payout window of a countdown anchor closes.
func EligibleAt(countdown *time.Time, policy models.Policy) *time.Time {
	if countdown == nil {
		return nil
	}
	at := countdown.Add(policy.PayoutEligibilityWindow)
	return &at
}

// LatestEligibleAt picks the latest eligibility instant across linked cases.
// ok is false when any case has no countdown yet.
func LatestEligibleAt(countdowns []*time.Time, policy models.Policy) (latest time.Time, ok bool) {
	if len(countdowns) == 0 {
		return time.Time{}, false
	}
	for _, c := range countdowns {
		at := EligibleAt(c, policy)
		if at == nil {
			return time.Time{}, false
		}
		if at.After(latest) {
			latest = *at
		}
	}
	return latest, true
}

// IsEligible reports whether now is at or past eligibleAt.
func IsEligible(eligibleAt *time.Time, now time.Time) bool {
	return eligibleAt != nil && !now.Before(*eligibleAt)
}
