package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

const caseColumns = `id, lead_id, student_name, city, needs_accommodation, status, assigned_lawyer_id, assigned_at,
       influencer_id, currency, service_fee, influencer_commission, lawyer_commission, referral_discount,
       school_commission, translation_fee, paid_at, paid_countdown_started_at, version, created_at, updated_at`

// CaseRepository persists cases. Every write bumps version.
type CaseRepository struct {
	db sqlx.ExtContext
}

// NewCaseRepository constructs the repository over a DB or a transaction.
func NewCaseRepository(db sqlx.ExtContext) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts a case.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Version == 0 {
		c.Version = 1
	}
	const query = `INSERT INTO cases
	(id, lead_id, student_name, city, needs_accommodation, status, assigned_lawyer_id, assigned_at, influencer_id,
	 currency, service_fee, influencer_commission, lawyer_commission, referral_discount, school_commission,
	 translation_fee, paid_at, paid_countdown_started_at, version, created_at, updated_at)
	VALUES (:id, :lead_id, :student_name, :city, :needs_accommodation, :status, :assigned_lawyer_id, :assigned_at, :influencer_id,
	 :currency, :service_fee, :influencer_commission, :lawyer_commission, :referral_discount, :school_commission,
	 :translation_fee, :paid_at, :paid_countdown_started_at, :version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, c); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetByID fetches a case by identifier.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	var c models.Case
	if err := sqlx.GetContext(ctx, r.db, &c, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForUpdate fetches a case and locks its row until the transaction ends.
func (r *CaseRepository) GetForUpdate(ctx context.Context, id string) (*models.Case, error) {
	var c models.Case
	if err := sqlx.GetContext(ctx, r.db, &c, `SELECT `+caseColumns+` FROM cases WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByLeadID fetches the case converted from a lead.
func (r *CaseRepository) GetByLeadID(ctx context.Context, leadID string) (*models.Case, error) {
	var c models.Case
	if err := sqlx.GetContext(ctx, r.db, &c, `SELECT `+caseColumns+` FROM cases WHERE lead_id = $1`, leadID); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns cases matching the filter with the total count.
func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	conds := &conditions{}
	statuses := make([]string, len(filter.Status))
	for i, s := range filter.Status {
		statuses[i] = string(s)
	}
	conds.in("status", statuses)
	if filter.AssignedLawyerID != "" {
		conds.add("assigned_lawyer_id = $%d", filter.AssignedLawyerID)
	}
	if filter.PaidFrom != nil {
		conds.add("paid_at >= $%d", *filter.PaidFrom)
	}
	if filter.PaidTo != nil {
		conds.add("paid_at < $%d", *filter.PaidTo)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM cases%s ORDER BY created_at DESC LIMIT %d OFFSET %d", caseColumns, conds.where(), limit, offset)

	var cases []models.Case
	if err := sqlx.SelectContext(ctx, r.db, &cases, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM cases"+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}
	return cases, total, nil
}

// ListPaid returns every case with paid_at inside the filter window.
func (r *CaseRepository) ListPaid(ctx context.Context, filter models.LedgerFilter) ([]models.Case, error) {
	conds := &conditions{clauses: []string{"paid_at IS NOT NULL"}}
	if filter.From != nil {
		conds.add("paid_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		conds.add("paid_at < $%d", *filter.To)
	}
	query := fmt.Sprintf("SELECT %s FROM cases%s ORDER BY paid_at ASC, id ASC", caseColumns, conds.where())
	var cases []models.Case
	if err := sqlx.SelectContext(ctx, r.db, &cases, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list paid cases: %w", err)
	}
	return cases, nil
}

// UpdateCaseStatusParams describes a guarded status write.
type UpdateCaseStatusParams struct {
	ID   string
	From models.CaseStatus
	To   models.CaseStatus
	// PaidAt and CountdownStartedAt are only applied when the column is still null.
	PaidAt             *time.Time
	CountdownStartedAt *time.Time
	Now                time.Time
}

// UpdateStatus moves a case from From to To. It returns sql.ErrNoRows when the
// stored status no longer equals From.
func (r *CaseRepository) UpdateStatus(ctx context.Context, params UpdateCaseStatusParams) error {
	const query = `UPDATE cases SET status = $3,
       paid_at = COALESCE(paid_at, $4),
       paid_countdown_started_at = COALESCE(paid_countdown_started_at, $5),
       version = version + 1, updated_at = $6
	WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.From, params.To, params.PaidAt, params.CountdownStartedAt, params.Now)
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return expectRows(result, "update case status")
}

// Assign sets the handler and refreshes assigned_at.
func (r *CaseRepository) Assign(ctx context.Context, id, lawyerID string, at time.Time) error {
	const query = `UPDATE cases SET assigned_lawyer_id = $2, assigned_at = $3, version = version + 1, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, lawyerID, at)
	if err != nil {
		return fmt.Errorf("assign case: %w", err)
	}
	return expectRows(result, "assign case")
}

// MoneyDelta is an additive change to case amounts, in minor units.
type MoneyDelta struct {
	ServiceFee           int64
	InfluencerCommission int64
	LawyerCommission     int64
	ReferralDiscount     int64
	SchoolCommission     int64
	TranslationFee       int64
}

// IsZero reports whether the delta changes nothing.
func (d MoneyDelta) IsZero() bool {
	return d == MoneyDelta{}
}

// ApplyTo returns the amounts after adding d, failing before any write when a
// column would leave the bigint range.
func (d MoneyDelta) ApplyTo(m models.MoneyFields) (models.MoneyFields, error) {
	pairs := []struct {
		name  string
		field *int64
		delta int64
	}{
		{"service_fee", &m.ServiceFee, d.ServiceFee},
		{"influencer_commission", &m.InfluencerCommission, d.InfluencerCommission},
		{"lawyer_commission", &m.LawyerCommission, d.LawyerCommission},
		{"referral_discount", &m.ReferralDiscount, d.ReferralDiscount},
		{"school_commission", &m.SchoolCommission, d.SchoolCommission},
		{"translation_fee", &m.TranslationFee, d.TranslationFee},
	}
	for _, p := range pairs {
		sum, err := money.SafeAdd(*p.field, p.delta)
		if err != nil {
			return models.MoneyFields{}, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.field = sum
	}
	return m, nil
}

// IncrementMoney adds delta atomically and adopts currency when the case has
// none yet. It returns the updated case.
func (r *CaseRepository) IncrementMoney(ctx context.Context, id string, delta MoneyDelta, currency string, now time.Time) (*models.Case, error) {
	query := `UPDATE cases SET
       service_fee = service_fee + $2,
       influencer_commission = influencer_commission + $3,
       lawyer_commission = lawyer_commission + $4,
       referral_discount = referral_discount + $5,
       school_commission = school_commission + $6,
       translation_fee = translation_fee + $7,
       currency = CASE WHEN currency = '' THEN $8 ELSE currency END,
       version = version + 1, updated_at = $9
	WHERE id = $1
	RETURNING ` + caseColumns
	var c models.Case
	err := sqlx.GetContext(ctx, r.db, &c, query, id,
		delta.ServiceFee, delta.InfluencerCommission, delta.LawyerCommission,
		delta.ReferralDiscount, delta.SchoolCommission, delta.TranslationFee,
		currency, now)
	if err != nil {
		return nil, fmt.Errorf("increment case money: %w", err)
	}
	return &c, nil
}

// SetMoney overwrites all amounts. Only explicit corrections use it.
func (r *CaseRepository) SetMoney(ctx context.Context, id string, fields models.MoneyFields, now time.Time) error {
	const query = `UPDATE cases SET service_fee = $2, influencer_commission = $3, lawyer_commission = $4,
       referral_discount = $5, school_commission = $6, translation_fee = $7,
       version = version + 1, updated_at = $8
	WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id,
		fields.ServiceFee, fields.InfluencerCommission, fields.LawyerCommission,
		fields.ReferralDiscount, fields.SchoolCommission, fields.TranslationFee, now)
	if err != nil {
		return fmt.Errorf("set case money: %w", err)
	}
	return expectRows(result, "set case money")
}

// Delete removes the case row. Dependents must be removed first.
func (r *CaseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return expectRows(result, "delete case")
}

func expectRows(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
