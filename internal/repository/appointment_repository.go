package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AppointmentRepository manages appointment rows owned by cases.
type AppointmentRepository struct {
	db sqlx.ExtContext
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db sqlx.ExtContext) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// DeleteByCase removes the appointments of a case.
func (r *AppointmentRepository) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("delete case appointments: %w", err)
	}
	return result.RowsAffected()
}
