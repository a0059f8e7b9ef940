package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agency-case-api/internal/models"
)

var payoutRowColumns = []string{"id", "requestor_id", "requestor_role", "amount", "currency", "status", "linked_reward_ids",
	"linked_case_ids", "linked_student_names", "eligible_at", "eligibility_warning", "requested_at", "approved_at", "approved_by",
	"approval_notes", "rejected_at", "rejected_by", "reject_reason", "paid_at", "paid_by", "payment_method", "transaction_ref", "payment_notes"}

func TestPayoutRepositoryGetScansArrays(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewPayoutRepository(db)

	rows := sqlmock.NewRows(payoutRowColumns).
		AddRow("p-1", "lawyer-1", "LAWYER", 2500, "EUR", "pending", "{r1,r2}", "{c1}", "{Ana}", nil, false, time.Now(),
			nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payout_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("p-1").
		WillReturnRows(rows)

	p, err := repo.GetForUpdate(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, []string(p.LinkedRewardIDs))
	assert.Equal(t, models.PayoutStatusPending, p.Status)
}

func TestPayoutRepositoryTransitionGuardsCurrentStatus(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewPayoutRepository(db)
	notes := "ok"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payout_requests SET status = ?, approved_at = ?, approved_by = ?, approval_notes = ? WHERE id = ? AND status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Transition(context.Background(), PayoutTransitionParams{
		ID: "p-1", From: models.PayoutStatusPending, To: models.PayoutStatusApproved,
		ActorID: "admin-1", At: time.Now(), Notes: &notes,
	}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payout_requests SET status = ?, rejected_at = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Transition(context.Background(), PayoutTransitionParams{
		ID: "p-1", From: models.PayoutStatusPending, To: models.PayoutStatusRejected, ActorID: "admin-1", At: time.Now(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	err = repo.Transition(context.Background(), PayoutTransitionParams{ID: "p-1", To: models.PayoutStatusPending})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
