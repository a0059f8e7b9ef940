package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

const snapshotColumns = `id, case_id, master_service_id, service_name, sale_price, currency,
       lawyer_commission_type, lawyer_commission_value, influencer_commission_type, influencer_commission_value,
       refundable, payment_status, paid_at, created_by, created_at`

// SnapshotRepository stores price-locked service attachments. Pricing
// columns are never updated.
type SnapshotRepository struct {
	db sqlx.ExtContext
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db sqlx.ExtContext) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a snapshot unless the master service is already attached to
// the case. It reports whether a row was written.
func (r *SnapshotRepository) Insert(ctx context.Context, s *models.ServiceSnapshot) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.PaymentStatus == "" {
		s.PaymentStatus = models.PaymentStatusPending
	}
	const query = `INSERT INTO service_snapshots
	(id, case_id, master_service_id, service_name, sale_price, currency, lawyer_commission_type, lawyer_commission_value,
	 influencer_commission_type, influencer_commission_value, refundable, payment_status, paid_at, created_by, created_at)
	VALUES (:id, :case_id, :master_service_id, :service_name, :sale_price, :currency, :lawyer_commission_type, :lawyer_commission_value,
	 :influencer_commission_type, :influencer_commission_value, :refundable, :payment_status, :paid_at, :created_by, :created_at)
	ON CONFLICT (case_id, master_service_id) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, s)
	if err != nil {
		return false, fmt.Errorf("insert service snapshot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check snapshot insert rows: %w", err)
	}
	return rows > 0, nil
}

// ListByCase returns the snapshots of a case in attach order.
func (r *SnapshotRepository) ListByCase(ctx context.Context, caseID string) ([]models.ServiceSnapshot, error) {
	var snapshots []models.ServiceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM service_snapshots WHERE case_id = $1 ORDER BY created_at ASC, id ASC`
	if err := sqlx.SelectContext(ctx, r.db, &snapshots, query, caseID); err != nil {
		return nil, fmt.Errorf("list service snapshots: %w", err)
	}
	return snapshots, nil
}

// GetByID fetches one snapshot scoped to its case.
func (r *SnapshotRepository) GetByID(ctx context.Context, caseID, id string) (*models.ServiceSnapshot, error) {
	var s models.ServiceSnapshot
	query := `SELECT ` + snapshotColumns + ` FROM service_snapshots WHERE id = $1 AND case_id = $2`
	if err := sqlx.GetContext(ctx, r.db, &s, query, id, caseID); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkPaid settles a snapshot. It reports false when it was already paid.
func (r *SnapshotRepository) MarkPaid(ctx context.Context, caseID, id string, at time.Time) (bool, error) {
	const query = `UPDATE service_snapshots SET payment_status = $3, paid_at = $4
	WHERE id = $1 AND case_id = $2 AND payment_status <> $3`
	result, err := r.db.ExecContext(ctx, query, id, caseID, models.PaymentStatusPaid, at)
	if err != nil {
		return false, fmt.Errorf("mark snapshot paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check snapshot payment rows: %w", err)
	}
	return rows > 0, nil
}

// DeleteByCase removes every snapshot of a case.
func (r *SnapshotRepository) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM service_snapshots WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("delete case snapshots: %w", err)
	}
	return result.RowsAffected()
}
