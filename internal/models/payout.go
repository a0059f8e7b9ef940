package models

import (
	"time"

	"github.com/lib/pq"
)

// PayoutStatus is the state of a payout request.
type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusRejected PayoutStatus = "rejected"
	PayoutStatusPaid     PayoutStatus = "paid"
)

// PayoutRequest bundles rewards for withdrawal.
type PayoutRequest struct {
	ID                 string         `db:"id" json:"id"`
	RequestorID        string         `db:"requestor_id" json:"requestor_id"`
	RequestorRole      UserRole       `db:"requestor_role" json:"requestor_role"`
	Amount             int64          `db:"amount" json:"amount"`
	Currency           string         `db:"currency" json:"currency"`
	Status             PayoutStatus   `db:"status" json:"status"`
	LinkedRewardIDs    pq.StringArray `db:"linked_reward_ids" json:"linked_reward_ids"`
	LinkedCaseIDs      pq.StringArray `db:"linked_case_ids" json:"linked_case_ids"`
	LinkedStudentNames pq.StringArray `db:"linked_student_names" json:"linked_student_names"`
	EligibleAt         *time.Time     `db:"eligible_at" json:"eligible_at,omitempty"`
	EligibilityWarning bool           `db:"eligibility_warning" json:"eligibility_warning"`
	RequestedAt        time.Time      `db:"requested_at" json:"requested_at"`
	ApprovedAt         *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy         *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovalNotes      *string        `db:"approval_notes" json:"approval_notes,omitempty"`
	RejectedAt         *time.Time     `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectedBy         *string        `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectReason       *string        `db:"reject_reason" json:"reject_reason,omitempty"`
	PaidAt             *time.Time     `db:"paid_at" json:"paid_at,omitempty"`
	PaidBy             *string        `db:"paid_by" json:"paid_by,omitempty"`
	PaymentMethod      *string        `db:"payment_method" json:"payment_method,omitempty"`
	TransactionRef     *string        `db:"transaction_ref" json:"transaction_ref,omitempty"`
	PaymentNotes       *string        `db:"payment_notes" json:"payment_notes,omitempty"`
}

// PayoutFilter constrains payout listing.
type PayoutFilter struct {
	Status      []PayoutStatus
	RequestorID string
	Page        int
	PageSize    int
}

// PayoutTransaction is the append-only settlement record of a paid request.
type PayoutTransaction struct {
	ID              string    `db:"id" json:"id"`
	PayoutRequestID string    `db:"payout_request_id" json:"payout_request_id"`
	Amount          int64     `db:"amount" json:"amount"`
	Currency        string    `db:"currency" json:"currency"`
	PaymentMethod   string    `db:"payment_method" json:"payment_method"`
	TransactionRef  string    `db:"transaction_ref" json:"transaction_ref"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// BulkFailure reports why one id of a bulk action was not applied.
type BulkFailure struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkResult lists per-id outcomes of a bulk payout action.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}
