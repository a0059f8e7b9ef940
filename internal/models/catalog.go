package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType selects how a commission value is applied to a sale price.
type CommissionType string

const (
	CommissionTypePercentage CommissionType = "percentage"
	CommissionTypeFlat       CommissionType = "flat"
	CommissionTypeNone       CommissionType = "none"
)

// CatalogService is the current master pricing of a service. Flat commission
// values are major units of Currency.
type CatalogService struct {
	ID                        string          `db:"id" json:"id"`
	Name                      string          `db:"name" json:"name"`
	SalePrice                 int64           `db:"sale_price" json:"sale_price"`
	Currency                  string          `db:"currency" json:"currency"`
	LawyerCommissionType      CommissionType  `db:"lawyer_commission_type" json:"lawyer_commission_type"`
	LawyerCommissionValue     decimal.Decimal `db:"lawyer_commission_value" json:"lawyer_commission_value"`
	InfluencerCommissionType  CommissionType  `db:"influencer_commission_type" json:"influencer_commission_type"`
	InfluencerCommissionValue decimal.Decimal `db:"influencer_commission_value" json:"influencer_commission_value"`
	Refundable                bool            `db:"refundable" json:"refundable"`
	Active                    bool            `db:"active" json:"active"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}
