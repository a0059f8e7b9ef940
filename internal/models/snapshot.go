package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks snapshot settlement independently of the case status.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// ServiceSnapshot is a price-locked copy of a catalog service attached to a case.
type ServiceSnapshot struct {
	ID                        string          `db:"id" json:"id"`
	CaseID                    string          `db:"case_id" json:"case_id"`
	MasterServiceID           string          `db:"master_service_id" json:"master_service_id"`
	ServiceName               string          `db:"service_name" json:"service_name"`
	SalePrice                 int64           `db:"sale_price" json:"sale_price"`
	Currency                  string          `db:"currency" json:"currency"`
	LawyerCommissionType      CommissionType  `db:"lawyer_commission_type" json:"lawyer_commission_type"`
	LawyerCommissionValue     decimal.Decimal `db:"lawyer_commission_value" json:"lawyer_commission_value"`
	InfluencerCommissionType  CommissionType  `db:"influencer_commission_type" json:"influencer_commission_type"`
	InfluencerCommissionValue decimal.Decimal `db:"influencer_commission_value" json:"influencer_commission_value"`
	Refundable                bool            `db:"refundable" json:"refundable"`
	PaymentStatus             PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaidAt                    *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedBy                 string          `db:"created_by" json:"created_by"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
}

// NewSnapshotFromCatalog copies the pricing terms of svc for caseID.
func NewSnapshotFromCatalog(caseID string, svc CatalogService, actorID string) ServiceSnapshot {
	return ServiceSnapshot{
		CaseID:                    caseID,
		MasterServiceID:           svc.ID,
		ServiceName:               svc.Name,
		SalePrice:                 svc.SalePrice,
		Currency:                  svc.Currency,
		LawyerCommissionType:      svc.LawyerCommissionType,
		LawyerCommissionValue:     svc.LawyerCommissionValue,
		InfluencerCommissionType:  svc.InfluencerCommissionType,
		InfluencerCommissionValue: svc.InfluencerCommissionValue,
		Refundable:                svc.Refundable,
		PaymentStatus:             PaymentStatusPending,
		CreatedBy:                 actorID,
	}
}
