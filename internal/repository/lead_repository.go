package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

const leadColumns = `id, full_name, email, influencer_id, score, last_contacted_at, case_id, created_at`

// LeadRepository reads leads and records contact and conversion markers.
type LeadRepository struct {
	db sqlx.ExtContext
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db sqlx.ExtContext) *LeadRepository {
	return &LeadRepository{db: db}
}

// GetForUpdate fetches a lead and locks it so conversions serialise.
func (r *LeadRepository) GetForUpdate(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := sqlx.GetContext(ctx, r.db, &lead, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &lead, nil
}

// TouchContacted stamps last_contacted_at.
func (r *LeadRepository) TouchContacted(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE leads SET last_contacted_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch lead contact: %w", err)
	}
	return expectRows(result, "touch lead contact")
}

// LinkCase records the case a lead was converted into.
func (r *LeadRepository) LinkCase(ctx context.Context, id, caseID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE leads SET case_id = $2 WHERE id = $1 AND case_id IS NULL`, id, caseID)
	if err != nil {
		return fmt.Errorf("link lead case: %w", err)
	}
	return expectRows(result, "link lead case")
}

// UnlinkCase clears the conversion marker when the case is deleted.
func (r *LeadRepository) UnlinkCase(ctx context.Context, caseID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE leads SET case_id = NULL WHERE case_id = $1`, caseID); err != nil {
		return fmt.Errorf("unlink lead case: %w", err)
	}
	return nil
}
