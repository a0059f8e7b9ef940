package workflow

import (
	"github.com/noah-isme/agency-case-api/internal/models"
)

// Ledger field names, in row order.
const (
	FieldServiceFee           = "service_fee"
	FieldSchoolCommission     = "school_commission"
	FieldInfluencerCommission = "influencer_commission"
	FieldLawyerCommission     = "lawyer_commission"
	FieldReferralDiscount     = "referral_discount"
	FieldTranslationFee       = "translation_fee"
)

type ledgerField struct {
	name      string
	direction models.LedgerDirection
	value     func(models.MoneyFields) int64
}

var ledgerFields = []ledgerField{
	{FieldServiceFee, models.LedgerDirectionIn, func(m models.MoneyFields) int64 { return m.ServiceFee }},
	{FieldSchoolCommission, models.LedgerDirectionIn, func(m models.MoneyFields) int64 { return m.SchoolCommission }},
	{FieldInfluencerCommission, models.LedgerDirectionOut, func(m models.MoneyFields) int64 { return m.InfluencerCommission }},
	{FieldLawyerCommission, models.LedgerDirectionOut, func(m models.MoneyFields) int64 { return m.LawyerCommission }},
	{FieldReferralDiscount, models.LedgerDirectionOut, func(m models.MoneyFields) int64 { return m.ReferralDiscount }},
	{FieldTranslationFee, models.LedgerDirectionOut, func(m models.MoneyFields) int64 { return m.TranslationFee }},
}

// NetProfit is the single profit formula used by every view and export.
// The result is signed minor units.
func NetProfit(m models.MoneyFields) int64 {
	return m.ServiceFee + m.SchoolCommission -
		m.InfluencerCommission - m.LawyerCommission - m.ReferralDiscount - m.TranslationFee
}

// Rows synthesizes one row per non-zero money field of c.
func Rows(c *models.Case) []models.LedgerRow {
	status := models.PaymentStatusPending
	if c.PaidAt != nil {
		status = models.PaymentStatusPaid
	}
	fields := c.Money()
	rows := make([]models.LedgerRow, 0, len(ledgerFields))
	for _, f := range ledgerFields {
		amount := f.value(fields)
		if amount == 0 {
			continue
		}
		rows = append(rows, models.LedgerRow{
			CaseID:      c.ID,
			StudentName: c.StudentName,
			Field:       f.name,
			Direction:   f.direction,
			Amount:      amount,
			Currency:    c.Currency,
			Status:      status,
			PaidAt:      c.PaidAt,
		})
	}
	return rows
}

// BuildCaseLedger returns rows and totals for one case.
func BuildCaseLedger(c *models.Case) models.CaseLedger {
	rows := Rows(c)
	ledger := models.CaseLedger{CaseID: c.ID, Currency: c.Currency, Rows: rows}
	for _, r := range rows {
		if r.Direction == models.LedgerDirectionIn {
			ledger.In += r.Amount
		} else {
			ledger.Out += r.Amount
		}
	}
	ledger.NetProfit = NetProfit(c.Money())
	return ledger
}

// Summarize aggregates cases per currency in first-seen order.
func Summarize(cases []models.Case) []models.LedgerTotals {
	index := make(map[string]int)
	totals := make([]models.LedgerTotals, 0)
	for i := range cases {
		c := &cases[i]
		pos, ok := index[c.Currency]
		if !ok {
			pos = len(totals)
			index[c.Currency] = pos
			totals = append(totals, models.LedgerTotals{Currency: c.Currency, Fields: make(map[string]int64)})
		}
		t := &totals[pos]
		t.Cases++
		for _, r := range Rows(c) {
			t.Fields[r.Field] += r.Amount
			if r.Direction == models.LedgerDirectionIn {
				t.In += r.Amount
			} else {
				t.Out += r.Amount
			}
		}
		t.NetProfit += NetProfit(c.Money())
	}
	return totals
}
