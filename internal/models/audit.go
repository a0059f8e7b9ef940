package models

import "time"

// Audit actions recorded for privileged mutations.
const (
	AuditActionCaseCreate         = "CASE_CREATE"
	AuditActionCaseStatusChange   = "CASE_STATUS_CHANGE"
	AuditActionCaseStatusOverride = "CASE_STATUS_OVERRIDE"
	AuditActionCaseAssign         = "CASE_ASSIGN"
	AuditActionCaseFees           = "CASE_FEES_RECORD"
	AuditActionCaseCorrection     = "CASE_MONEY_CORRECTION"
	AuditActionCaseDelete         = "CASE_DELETE"
	AuditActionServiceAttach      = "SERVICE_ATTACH"
	AuditActionServicePaid        = "SERVICE_PAYMENT"
	AuditActionPayoutRequest      = "PAYOUT_REQUEST"
	AuditActionPayoutApprove      = "PAYOUT_APPROVE"
	AuditActionPayoutReject       = "PAYOUT_REJECT"
	AuditActionPayoutPaid         = "PAYOUT_PAID"
	AuditActionConfigUpdate       = "CONFIG_UPDATE"
)

// Audit target tables.
const (
	AuditTargetCases          = "cases"
	AuditTargetPayoutRequests = "payout_requests"
	AuditTargetSnapshots      = "service_snapshots"
	AuditTargetConfigurations = "configurations"
)

// AuditLog is an append-only record of a privileged mutation.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorID     string    `db:"actor_id" json:"actor_id"`
	Action      string    `db:"action" json:"action"`
	TargetTable *string   `db:"target_table" json:"target_table,omitempty"`
	TargetID    *string   `db:"target_id" json:"target_id,omitempty"`
	Details     string    `db:"details" json:"details"`
	OldValues   []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues   []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter constrains audit listing.
type AuditFilter struct {
	TargetTable string
	TargetID    string
	ActorID     string
	Action      string
	Page        int
	PageSize    int
}
