package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
)

// PayoutTransactionRepository appends settlement records; rows are never updated.
type PayoutTransactionRepository struct {
	db sqlx.ExtContext
}

// NewPayoutTransactionRepository constructs the repository.
func NewPayoutTransactionRepository(db sqlx.ExtContext) *PayoutTransactionRepository {
	return &PayoutTransactionRepository{db: db}
}

// Append inserts a transaction row.
func (r *PayoutTransactionRepository) Append(ctx context.Context, tx *models.PayoutTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payout_transactions
	(id, payout_request_id, amount, currency, payment_method, transaction_ref, notes, created_by, created_at)
	VALUES (:id, :payout_request_id, :amount, :currency, :payment_method, :transaction_ref, :notes, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, tx); err != nil {
		return fmt.Errorf("append payout transaction: %w", err)
	}
	return nil
}
