package models

import "time"

// CaseStatus is one value of the closed case lifecycle vocabulary.
type CaseStatus string

const (
	CaseStatusNew                  CaseStatus = "new"
	CaseStatusEligible             CaseStatus = "eligible"
	CaseStatusAssigned             CaseStatus = "assigned"
	CaseStatusContacted            CaseStatus = "contacted"
	CaseStatusAppointmentScheduled CaseStatus = "appointment_scheduled"
	CaseStatusAppointmentWaiting   CaseStatus = "appointment_waiting"
	CaseStatusAppointmentCompleted CaseStatus = "appointment_completed"
	CaseStatusProfileFilled        CaseStatus = "profile_filled"
	CaseStatusServicesFilled       CaseStatus = "services_filled"
	CaseStatusReadyToApply         CaseStatus = "ready_to_apply"
	CaseStatusPaid                 CaseStatus = "paid"
	CaseStatusVisaStage            CaseStatus = "visa_stage"
	CaseStatusCompleted            CaseStatus = "completed"
	CaseStatusNotEligible          CaseStatus = "not_eligible"
)

// Case is one student's engagement with the agency. Money columns hold
// non-negative minor units of Currency.
type Case struct {
	ID                     string     `db:"id" json:"id"`
	LeadID                 string     `db:"lead_id" json:"lead_id"`
	StudentName            string     `db:"student_name" json:"student_name"`
	City                   *string    `db:"city" json:"city,omitempty"`
	NeedsAccommodation     bool       `db:"needs_accommodation" json:"needs_accommodation"`
	Status                 CaseStatus `db:"status" json:"status"`
	AssignedLawyerID       *string    `db:"assigned_lawyer_id" json:"assigned_lawyer_id,omitempty"`
	AssignedAt             *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	InfluencerID           *string    `db:"influencer_id" json:"influencer_id,omitempty"`
	Currency               string     `db:"currency" json:"currency"`
	ServiceFee             int64      `db:"service_fee" json:"service_fee"`
	InfluencerCommission   int64      `db:"influencer_commission" json:"influencer_commission"`
	LawyerCommission       int64      `db:"lawyer_commission" json:"lawyer_commission"`
	ReferralDiscount       int64      `db:"referral_discount" json:"referral_discount"`
	SchoolCommission       int64      `db:"school_commission" json:"school_commission"`
	TranslationFee         int64      `db:"translation_fee" json:"translation_fee"`
	PaidAt                 *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	PaidCountdownStartedAt *time.Time `db:"paid_countdown_started_at" json:"paid_countdown_started_at,omitempty"`
	Version                int64      `db:"version" json:"version"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// CaseFilter constrains case listing.
type CaseFilter struct {
	Status           []CaseStatus
	AssignedLawyerID string
	PaidFrom         *time.Time
	PaidTo           *time.Time
	Page             int
	PageSize         int
}

// MoneyFields groups the six case amounts, in minor units.
type MoneyFields struct {
	ServiceFee           int64 `json:"service_fee"`
	InfluencerCommission int64 `json:"influencer_commission"`
	LawyerCommission     int64 `json:"lawyer_commission"`
	ReferralDiscount     int64 `json:"referral_discount"`
	SchoolCommission     int64 `json:"school_commission"`
	TranslationFee       int64 `json:"translation_fee"`
}

// Money returns the case amounts.
func (c *Case) Money() MoneyFields {
	return MoneyFields{
		ServiceFee:           c.ServiceFee,
		InfluencerCommission: c.InfluencerCommission,
		LawyerCommission:     c.LawyerCommission,
		ReferralDiscount:     c.ReferralDiscount,
		SchoolCommission:     c.SchoolCommission,
		TranslationFee:       c.TranslationFee,
	}
}

// SLAState is derived from assigned_at on every read and never stored.
type SLAState string

const (
	SLAStateNone    SLAState = "none"
	SLAStateOK      SLAState = "ok"
	SLAStateWarning SLAState = "warning"
	SLAStateBreach  SLAState = "breach"
)

// CaseView is the read model returned by case endpoints.
type CaseView struct {
	Case
	SLA       SLAState     `json:"sla"`
	NextSteps []CaseStatus `json:"next_steps"`
}

// Appointment is a scheduled meeting owned by a case.
type Appointment struct {
	ID          string    `db:"id" json:"id"`
	CaseID      string    `db:"case_id" json:"case_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
