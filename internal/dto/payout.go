package dto

import (
	"time"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// CreatePayoutRequest bundles pending rewards of the caller.
type CreatePayoutRequest struct {
	RewardIDs []string `json:"reward_ids" validate:"required,min=1,max=100,dive,required"`
}

// ApprovePayoutRequest approves a pending request. AcknowledgeIneligible is
// required under the warn policy when the eligibility window is still open.
type ApprovePayoutRequest struct {
	Notes                 string `json:"notes" validate:"max=500"`
	AcknowledgeIneligible bool   `json:"acknowledge_ineligible"`
}

// RejectPayoutRequest rejects a pending request.
type RejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// MarkPayoutPaidRequest settles an approved request.
type MarkPayoutPaidRequest struct {
	PaymentMethod  string `json:"payment_method" validate:"required,max=64"`
	TransactionRef string `json:"transaction_ref" validate:"required,max=128"`
	Notes          string `json:"notes" validate:"max=500"`
}

// BulkApprovePayoutRequest approves several requests independently.
type BulkApprovePayoutRequest struct {
	IDs                   []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
	Notes                 string   `json:"notes" validate:"max=500"`
	AcknowledgeIneligible bool     `json:"acknowledge_ineligible"`
}

// BulkRejectPayoutRequest rejects several requests independently.
type BulkRejectPayoutRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
	Reason string   `json:"reason" validate:"required,max=500"`
}

// RewardItem is a reward with its derived payout eligibility.
type RewardItem struct {
	models.Reward
	Eligible bool `json:"eligible"`
}

// PayoutView decorates a request with its eligibility at read time.
type PayoutView struct {
	models.PayoutRequest
	Eligible  bool      `json:"eligible"`
	CheckedAt time.Time `json:"checked_at"`
}
