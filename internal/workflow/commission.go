package workflow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

// Contribution is what one snapshot adds to its case totals, in minor units.
type Contribution struct {
	ServiceFee           int64
	LawyerCommission     int64
	InfluencerCommission int64
}

// Add accumulates other into c. c is left unchanged when any sum overflows.
func (c *Contribution) Add(other Contribution) error {
	fee, err := money.SafeAdd(c.ServiceFee, other.ServiceFee)
	if err != nil {
		return fmt.Errorf("service fee: %w", err)
	}
	lawyer, err := money.SafeAdd(c.LawyerCommission, other.LawyerCommission)
	if err != nil {
		return fmt.Errorf("lawyer commission: %w", err)
	}
	influencer, err := money.SafeAdd(c.InfluencerCommission, other.InfluencerCommission)
	if err != nil {
		return fmt.Errorf("influencer commission: %w", err)
	}
	c.ServiceFee, c.LawyerCommission, c.InfluencerCommission = fee, lawyer, influencer
	return nil
}

// Commission computes one commission track for a sale price. Percentage
// values are applied to the price; flat values are major units.
func Commission(price money.Money, kind models.CommissionType, value decimal.Decimal) (money.Money, error) {
	switch kind {
	case models.CommissionTypePercentage:
		return price.Percent(value)
	case models.CommissionTypeFlat:
		return money.FromDecimal(value, price.Currency())
	case models.CommissionTypeNone, "":
		return money.Zero(price.Currency()), nil
	}
	return money.Money{}, fmt.Errorf("unknown commission type %q", kind)
}

// SnapshotContribution prices a snapshot's effect on case totals.
func SnapshotContribution(s models.ServiceSnapshot) (Contribution, error) {
	price, err := money.New(s.SalePrice, s.Currency)
	if err != nil {
		return Contribution{}, err
	}
	lawyer, err := Commission(price, s.LawyerCommissionType, s.LawyerCommissionValue)
	if err != nil {
		return Contribution{}, fmt.Errorf("lawyer commission: %w", err)
	}
	influencer, err := Commission(price, s.InfluencerCommissionType, s.InfluencerCommissionValue)
	if err != nil {
		return Contribution{}, fmt.Errorf("influencer commission: %w", err)
	}
	return Contribution{
		ServiceFee:           price.Minor(),
		LawyerCommission:     lawyer.Minor(),
		InfluencerCommission: influencer.Minor(),
	}, nil
}
