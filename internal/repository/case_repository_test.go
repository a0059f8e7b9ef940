package repository

import (
	"context"
	"database/sql"
	"math"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var caseRowColumns = []string{
	"id", "lead_id", "student_name", "city", "needs_accommodation", "status", "assigned_lawyer_id", "assigned_at",
	"influencer_id", "currency", "service_fee", "influencer_commission", "lawyer_commission", "referral_discount",
	"school_commission", "translation_fee", "paid_at", "paid_countdown_started_at", "version", "created_at", "updated_at",
}

func caseRows(id string, status models.CaseStatus, serviceFee int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(caseRowColumns).
		AddRow(id, "lead-1", "Ana", nil, false, string(status), nil, nil,
			nil, "EUR", serviceFee, 0, 0, 0, 0, 0, nil, nil, 3, now, now)
}

func TestCaseRepositoryCreateAndGetForUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCaseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cases")).WillReturnResult(sqlmock.NewResult(1, 1))
	c := &models.Case{LeadID: "lead-1", StudentName: "Ana", Status: models.CaseStatusNew}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, int64(1), c.Version)

	mock.ExpectQuery(`SELECT (.+) FROM cases WHERE id = \$1 FOR UPDATE`).
		WithArgs(c.ID).
		WillReturnRows(caseRows(c.ID, models.CaseStatusNew, 0))
	found, err := repo.GetForUpdate(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusNew, found.Status)
	assert.Equal(t, int64(3), found.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryUpdateStatusIsConditional(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCaseRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cases SET status = $3")).
		WithArgs("case-1", models.CaseStatusReadyToApply, models.CaseStatusPaid, &now, &now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), UpdateCaseStatusParams{
		ID: "case-1", From: models.CaseStatusReadyToApply, To: models.CaseStatusPaid,
		PaidAt: &now, CountdownStartedAt: &now, Now: now,
	}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cases SET status = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), UpdateCaseStatusParams{
		ID: "case-1", From: models.CaseStatusReadyToApply, To: models.CaseStatusPaid, Now: now,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryIncrementMoneyUsesAtomicAdds(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCaseRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("service_fee = service_fee + $2")).
		WithArgs("case-1", int64(15000), int64(0), int64(1500), int64(0), int64(0), int64(0), "EUR", now).
		WillReturnRows(caseRows("case-1", models.CaseStatusProfileFilled, 15000))

	updated, err := repo.IncrementMoney(context.Background(), "case-1", MoneyDelta{ServiceFee: 15000, LawyerCommission: 1500}, "EUR", now)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), updated.ServiceFee)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyDeltaApplyToRejectsOverflow(t *testing.T) {
	next, err := MoneyDelta{TranslationFee: 500}.ApplyTo(models.MoneyFields{TranslationFee: 100, ServiceFee: 9})
	require.NoError(t, err)
	assert.Equal(t, models.MoneyFields{TranslationFee: 600, ServiceFee: 9}, next)

	_, err = MoneyDelta{SchoolCommission: 1}.ApplyTo(models.MoneyFields{SchoolCommission: math.MaxInt64})
	require.ErrorIs(t, err, money.ErrOverflow)
	assert.Contains(t, err.Error(), "school_commission")
}

func TestCaseRepositoryListBuildsFilters(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCaseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM cases WHERE status IN ($1,$2) AND assigned_lawyer_id = $3 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("assigned", "contacted", "lawyer-1").
		WillReturnRows(caseRows("case-1", models.CaseStatusAssigned, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cases WHERE status IN ($1,$2) AND assigned_lawyer_id = $3")).
		WithArgs("assigned", "contacted", "lawyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	cases, total, err := repo.List(context.Background(), models.CaseFilter{
		Status:           []models.CaseStatus{models.CaseStatusAssigned, models.CaseStatusContacted},
		AssignedLawyerID: "lawyer-1",
		Page:             2,
		PageSize:         10,
	})
	require.NoError(t, err)
	assert.Len(t, cases, 1)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryDeleteMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCaseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cases WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), sql.ErrNoRows)
}
