package models

import "time"

// RewardStatus tracks the payout progress of an accrued commission.
type RewardStatus string

const (
	RewardStatusPending   RewardStatus = "pending"
	RewardStatusRequested RewardStatus = "requested"
	RewardStatusPaid      RewardStatus = "paid"
)

// Reward is a commission owed to a handler or referral agent for one case.
type Reward struct {
	ID              string       `db:"id" json:"id"`
	CaseID          string       `db:"case_id" json:"case_id"`
	OwnerID         string       `db:"owner_id" json:"owner_id"`
	OwnerRole       UserRole     `db:"owner_role" json:"owner_role"`
	StudentName     string       `db:"student_name" json:"student_name"`
	Amount          int64        `db:"amount" json:"amount"`
	Currency        string       `db:"currency" json:"currency"`
	Status          RewardStatus `db:"status" json:"status"`
	PayoutRequestID *string      `db:"payout_request_id" json:"payout_request_id,omitempty"`
	EligibleAt      *time.Time   `db:"eligible_at" json:"eligible_at,omitempty"`
	PaidAt          *time.Time   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}
