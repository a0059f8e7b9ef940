package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// AuditRepository appends and lists audit entries. It exposes no update or
// delete and the table rejects both.
type AuditRepository struct {
	db sqlx.ExtContext
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, target_table, target_id, details, old_values, new_values, created_at)
	VALUES (:id, :actor_id, :action, :target_table, :target_id, :details, :old_values, :new_values, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns entries newest first with the total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	conds := &conditions{}
	if filter.TargetTable != "" {
		conds.add("target_table = $%d", filter.TargetTable)
	}
	if filter.TargetID != "" {
		conds.add("target_id = $%d", filter.TargetID)
	}
	if filter.ActorID != "" {
		conds.add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		conds.add("action = $%d", filter.Action)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT id, actor_id, action, target_table, target_id, details, old_values, new_values, created_at
	FROM audit_logs%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, conds.where(), limit, offset)

	var logs []models.AuditLog
	if err := sqlx.SelectContext(ctx, r.db, &logs, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM audit_logs"+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}
