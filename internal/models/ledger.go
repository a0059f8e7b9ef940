package models

import "time"

// LedgerDirection tags a synthesized ledger row as revenue or expense.
type LedgerDirection string

const (
	LedgerDirectionIn  LedgerDirection = "in"
	LedgerDirectionOut LedgerDirection = "out"
)

// LedgerRow is one synthesized transaction per non-zero case money field.
type LedgerRow struct {
	CaseID      string          `json:"case_id"`
	StudentName string          `json:"student_name"`
	Field       string          `json:"field"`
	Direction   LedgerDirection `json:"direction"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PaymentStatus   `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

// CaseLedger is the ledger view of a single case.
type CaseLedger struct {
	CaseID    string      `json:"case_id"`
	Currency  string      `json:"currency"`
	Rows      []LedgerRow `json:"rows"`
	In        int64       `json:"in"`
	Out       int64       `json:"out"`
	NetProfit int64       `json:"net_profit"`
}

// LedgerFilter bounds a summary by paid_at.
type LedgerFilter struct {
	From *time.Time
	To   *time.Time
}

// LedgerTotals aggregates one currency.
type LedgerTotals struct {
	Currency  string           `json:"currency"`
	Fields    map[string]int64 `json:"fields"`
	In        int64            `json:"in"`
	Out       int64            `json:"out"`
	NetProfit int64            `json:"net_profit"`
	Cases     int              `json:"cases"`
}

// LedgerSummary aggregates paid cases per currency.
type LedgerSummary struct {
	Totals      []LedgerTotals `json:"totals"`
	GeneratedAt time.Time      `json:"generated_at"`
}
