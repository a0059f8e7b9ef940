package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// ConvertLeadRequest turns a scored lead into a case.
type ConvertLeadRequest struct {
	LeadID             string  `json:"lead_id" validate:"required"`
	City               *string `json:"city" validate:"omitempty,max=120"`
	NeedsAccommodation bool    `json:"needs_accommodation"`
	InfluencerID       *string `json:"influencer_id" validate:"omitempty,max=64"`
}

// TransitionCaseRequest moves a case to Target. Reason is mandatory for
// fast-track edges. ExpectedVersion enables optimistic checks from clients
// holding a stale copy.
type TransitionCaseRequest struct {
	Target          string `json:"target" validate:"required"`
	Reason          string `json:"reason" validate:"max=500"`
	ExpectedVersion *int64 `json:"expected_version" validate:"omitempty,min=1"`
}

// AssignCaseRequest sets the handler of a case.
type AssignCaseRequest struct {
	LawyerID string `json:"lawyer_id" validate:"required,max=64"`
}

// RecordFeesRequest adds the manually booked amounts of a case. Amounts are
// major units; Currency is only needed while the case has none.
type RecordFeesRequest struct {
	Currency         string          `json:"currency" validate:"omitempty,len=3"`
	SchoolCommission decimal.Decimal `json:"school_commission"`
	TranslationFee   decimal.Decimal `json:"translation_fee"`
	ReferralDiscount decimal.Decimal `json:"referral_discount"`
}

// CorrectMoneyRequest overwrites every case amount. Amounts are major units.
type CorrectMoneyRequest struct {
	ServiceFee           decimal.Decimal `json:"service_fee"`
	InfluencerCommission decimal.Decimal `json:"influencer_commission"`
	LawyerCommission     decimal.Decimal `json:"lawyer_commission"`
	ReferralDiscount     decimal.Decimal `json:"referral_discount"`
	SchoolCommission     decimal.Decimal `json:"school_commission"`
	TranslationFee       decimal.Decimal `json:"translation_fee"`
	Reason               string          `json:"reason" validate:"required,max=500"`
}

// AttachServicesRequest lists catalog services to snapshot onto a case.
type AttachServicesRequest struct {
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,max=50,dive,required"`
}

// AttachResult reports newly created snapshots and ids that were already attached.
type AttachResult struct {
	Attached   []models.ServiceSnapshot `json:"attached"`
	Duplicates []models.BulkFailure     `json:"duplicates"`
	Case       *models.CaseView         `json:"case"`
}

// ConvertLeadResult carries the case and whether this call created it.
type ConvertLeadResult struct {
	Case    *models.CaseView `json:"case"`
	Created bool             `json:"created"`
}
