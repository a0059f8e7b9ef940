package workflow

import "github.com/noah-isme/agency-case-api/internal/models"

var payoutEdges = map[models.PayoutStatus][]models.PayoutStatus{
	models.PayoutStatusPending:  {models.PayoutStatusApproved, models.PayoutStatusRejected},
	models.PayoutStatusApproved: {models.PayoutStatusPaid},
	models.PayoutStatusPaid:     nil,
	models.PayoutStatusRejected: nil,
}

// CanTransitionPayout reports whether a payout request may move to target.
func CanTransitionPayout(current, target models.PayoutStatus) bool {
	for _, s := range payoutEdges[current] {
		if s == target {
			return true
		}
	}
	return false
}

// IsPayoutTerminal reports whether no decision can follow current.
func IsPayoutTerminal(current models.PayoutStatus) bool {
	edges, ok := payoutEdges[current]
	return ok && len(edges) == 0
}
