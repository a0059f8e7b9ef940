package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

const payoutColumns = `id, requestor_id, requestor_role, amount, currency, status, linked_reward_ids, linked_case_ids,
       linked_student_names, eligible_at, eligibility_warning, requested_at, approved_at, approved_by, approval_notes,
       rejected_at, rejected_by, reject_reason, paid_at, paid_by, payment_method, transaction_ref, payment_notes`

// PayoutRepository persists payout requests.
type PayoutRepository struct {
	db sqlx.ExtContext
}

// NewPayoutRepository constructs the repository.
func NewPayoutRepository(db sqlx.ExtContext) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create inserts a pending payout request.
func (r *PayoutRepository) Create(ctx context.Context, p *models.PayoutRequest) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PayoutStatusPending
	}
	if p.RequestedAt.IsZero() {
		p.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payout_requests
	(id, requestor_id, requestor_role, amount, currency, status, linked_reward_ids, linked_case_ids, linked_student_names,
	 eligible_at, eligibility_warning, requested_at)
	VALUES (:id, :requestor_id, :requestor_role, :amount, :currency, :status, :linked_reward_ids, :linked_case_ids, :linked_student_names,
	 :eligible_at, :eligibility_warning, :requested_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, p); err != nil {
		return fmt.Errorf("create payout request: %w", err)
	}
	return nil
}

// GetByID fetches a payout request.
func (r *PayoutRepository) GetByID(ctx context.Context, id string) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	if err := sqlx.GetContext(ctx, r.db, &p, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetForUpdate fetches a payout request and locks its row.
func (r *PayoutRepository) GetForUpdate(ctx context.Context, id string) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	if err := sqlx.GetContext(ctx, r.db, &p, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns payout requests, newest first, with the total count.
func (r *PayoutRepository) List(ctx context.Context, filter models.PayoutFilter) ([]models.PayoutRequest, int, error) {
	conds := &conditions{}
	statuses := make([]string, len(filter.Status))
	for i, s := range filter.Status {
		statuses[i] = string(s)
	}
	conds.in("status", statuses)
	if filter.RequestorID != "" {
		conds.add("requestor_id = $%d", filter.RequestorID)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM payout_requests%s ORDER BY requested_at DESC LIMIT %d OFFSET %d", payoutColumns, conds.where(), limit, offset)

	var payouts []models.PayoutRequest
	if err := sqlx.SelectContext(ctx, r.db, &payouts, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list payout requests: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM payout_requests"+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count payout requests: %w", err)
	}
	return payouts, total, nil
}

// PayoutTransitionParams groups the columns written by one decision.
type PayoutTransitionParams struct {
	ID             string
	From           models.PayoutStatus
	To             models.PayoutStatus
	ActorID        string
	At             time.Time
	Notes          *string
	Reason         *string
	PaymentMethod  *string
	TransactionRef *string
}

// Transition applies a decision while the request is still in From. It
// returns sql.ErrNoRows when another decision won the race.
func (r *PayoutRepository) Transition(ctx context.Context, params PayoutTransitionParams) error {
	setParts := []string{"status = :to"}
	switch params.To {
	case models.PayoutStatusApproved:
		setParts = append(setParts, "approved_at = :at", "approved_by = :actor", "approval_notes = :notes")
	case models.PayoutStatusRejected:
		setParts = append(setParts, "rejected_at = :at", "rejected_by = :actor", "reject_reason = :reason")
	case models.PayoutStatusPaid:
		setParts = append(setParts, "paid_at = :at", "paid_by = :actor", "payment_method = :method",
			"transaction_ref = :ref", "payment_notes = :notes")
	default:
		return fmt.Errorf("unsupported payout target %q", params.To)
	}
	query := fmt.Sprintf("UPDATE payout_requests SET %s WHERE id = :id AND status = :from", strings.Join(setParts, ", "))
	result, err := sqlx.NamedExecContext(ctx, r.db, query, map[string]interface{}{
		"id":     params.ID,
		"from":   params.From,
		"to":     params.To,
		"at":     params.At,
		"actor":  params.ActorID,
		"notes":  params.Notes,
		"reason": params.Reason,
		"method": params.PaymentMethod,
		"ref":    params.TransactionRef,
	})
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	return expectRows(result, "update payout status")
}

// CountOpenForCase counts pending or approved requests that link caseID.
func (r *PayoutRepository) CountOpenForCase(ctx context.Context, caseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM payout_requests WHERE $1 = ANY(linked_case_ids) AND status IN ($2, $3)`
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, caseID, models.PayoutStatusPending, models.PayoutStatusApproved); err != nil {
		return 0, fmt.Errorf("count open payouts for case: %w", err)
	}
	return count, nil
}
