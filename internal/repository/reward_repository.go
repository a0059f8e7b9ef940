package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

const rewardColumns = `id, case_id, owner_id, owner_role, student_name, amount, currency, status,
       payout_request_id, eligible_at, paid_at, created_at`

// RewardRepository persists accrued commissions.
type RewardRepository struct {
	db sqlx.ExtContext
}

// NewRewardRepository constructs the repository.
func NewRewardRepository(db sqlx.ExtContext) *RewardRepository {
	return &RewardRepository{db: db}
}

// Accrue inserts a reward once per case and owner role. It reports whether
// a row was written.
func (r *RewardRepository) Accrue(ctx context.Context, reward *models.Reward) (bool, error) {
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now().UTC()
	}
	if reward.Status == "" {
		reward.Status = models.RewardStatusPending
	}
	const query = `INSERT INTO rewards
	(id, case_id, owner_id, owner_role, student_name, amount, currency, status, payout_request_id, eligible_at, paid_at, created_at)
	VALUES (:id, :case_id, :owner_id, :owner_role, :student_name, :amount, :currency, :status, :payout_request_id, :eligible_at, :paid_at, :created_at)
	ON CONFLICT (case_id, owner_role) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, reward)
	if err != nil {
		return false, fmt.Errorf("accrue reward: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check reward accrual rows: %w", err)
	}
	return rows > 0, nil
}

// ListByIDsForUpdate locks and returns the given rewards.
func (r *RewardRepository) ListByIDsForUpdate(ctx context.Context, ids []string) ([]models.Reward, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM rewards WHERE id IN (%s) ORDER BY id FOR UPDATE`, rewardColumns, placeholders(len(ids)))
	var rewards []models.Reward
	if err := sqlx.SelectContext(ctx, r.db, &rewards, query, stringArgs(ids)...); err != nil {
		return nil, fmt.Errorf("lock rewards: %w", err)
	}
	return rewards, nil
}

// ListByOwner returns the rewards of one owner, newest first.
func (r *RewardRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE owner_id = $1 ORDER BY created_at DESC`
	var rewards []models.Reward
	if err := sqlx.SelectContext(ctx, r.db, &rewards, query, ownerID); err != nil {
		return nil, fmt.Errorf("list owner rewards: %w", err)
	}
	return rewards, nil
}

// MarkRequested links pending rewards to a payout request and returns the
// number of rows moved.
func (r *RewardRepository) MarkRequested(ctx context.Context, ids []string, requestID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`UPDATE rewards SET status = $1, payout_request_id = $2
	WHERE status = $3 AND id IN (%s)`, placeholdersFrom(4, len(ids)))
	args := append([]interface{}{models.RewardStatusRequested, requestID, models.RewardStatusPending}, stringArgs(ids)...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark rewards requested: %w", err)
	}
	return result.RowsAffected()
}

// Release returns the requested rewards of a payout request to pending and
// clears their request marker.
func (r *RewardRepository) Release(ctx context.Context, requestID string) (int64, error) {
	const query = `UPDATE rewards SET status = $1, payout_request_id = NULL
	WHERE payout_request_id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, models.RewardStatusPending, requestID, models.RewardStatusRequested)
	if err != nil {
		return 0, fmt.Errorf("release rewards: %w", err)
	}
	return result.RowsAffected()
}

// MarkPaid settles the rewards of a payout request. Already paid rows are
// left untouched so a retry is a no-op.
func (r *RewardRepository) MarkPaid(ctx context.Context, requestID string, at time.Time) (int64, error) {
	const query = `UPDATE rewards SET status = $1, paid_at = $2
	WHERE payout_request_id = $3 AND status <> $1`
	result, err := r.db.ExecContext(ctx, query, models.RewardStatusPaid, at, requestID)
	if err != nil {
		return 0, fmt.Errorf("mark rewards paid: %w", err)
	}
	return result.RowsAffected()
}

// ListByCaseForUpdate locks and returns the rewards of one case.
func (r *RewardRepository) ListByCaseForUpdate(ctx context.Context, caseID string) ([]models.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE case_id = $1 ORDER BY owner_role FOR UPDATE`
	var rewards []models.Reward
	if err := sqlx.SelectContext(ctx, r.db, &rewards, query, caseID); err != nil {
		return nil, fmt.Errorf("lock case rewards: %w", err)
	}
	return rewards, nil
}

// Reprice sets the amount of a pending reward. It reports false when the
// reward is no longer pending.
func (r *RewardRepository) Reprice(ctx context.Context, id string, amount int64) (bool, error) {
	const query = `UPDATE rewards SET amount = $2 WHERE id = $1 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, id, amount, models.RewardStatusPending)
	if err != nil {
		return false, fmt.Errorf("reprice reward: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check reward reprice rows: %w", err)
	}
	return rows > 0, nil
}

// CountInFlight counts rewards of a case that sit inside a payout request.
func (r *RewardRepository) CountInFlight(ctx context.Context, caseID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM rewards WHERE case_id = $1 AND status = $2`
	if err := sqlx.GetContext(ctx, r.db, &count, query, caseID, models.RewardStatusRequested); err != nil {
		return 0, fmt.Errorf("count in-flight rewards: %w", err)
	}
	return count, nil
}

// DeleteByCase removes the rewards of a case.
func (r *RewardRepository) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rewards WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("delete case rewards: %w", err)
	}
	return result.RowsAffected()
}
