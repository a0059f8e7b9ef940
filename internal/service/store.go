package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
)

type caseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	GetForUpdate(ctx context.Context, id string) (*models.Case, error)
	GetByLeadID(ctx context.Context, leadID string) (*models.Case, error)
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error)
	ListPaid(ctx context.Context, filter models.LedgerFilter) ([]models.Case, error)
	UpdateStatus(ctx context.Context, params repository.UpdateCaseStatusParams) error
	Assign(ctx context.Context, id, lawyerID string, at time.Time) error
	IncrementMoney(ctx context.Context, id string, delta repository.MoneyDelta, currency string, now time.Time) (*models.Case, error)
	SetMoney(ctx context.Context, id string, fields models.MoneyFields, now time.Time) error
	Delete(ctx context.Context, id string) error
}

type leadRepository interface {
	GetForUpdate(ctx context.Context, id string) (*models.Lead, error)
	TouchContacted(ctx context.Context, id string, at time.Time) error
	LinkCase(ctx context.Context, id, caseID string) error
	UnlinkCase(ctx context.Context, caseID string) error
}

type catalogRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.CatalogService, error)
}

type snapshotRepository interface {
	Insert(ctx context.Context, s *models.ServiceSnapshot) (bool, error)
	ListByCase(ctx context.Context, caseID string) ([]models.ServiceSnapshot, error)
	GetByID(ctx context.Context, caseID, id string) (*models.ServiceSnapshot, error)
	MarkPaid(ctx context.Context, caseID, id string, at time.Time) (bool, error)
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type appointmentRepository interface {
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type rewardRepository interface {
	Accrue(ctx context.Context, reward *models.Reward) (bool, error)
	ListByIDsForUpdate(ctx context.Context, ids []string) ([]models.Reward, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Reward, error)
	MarkRequested(ctx context.Context, ids []string, requestID string) (int64, error)
	Release(ctx context.Context, requestID string) (int64, error)
	MarkPaid(ctx context.Context, requestID string, at time.Time) (int64, error)
	ListByCaseForUpdate(ctx context.Context, caseID string) ([]models.Reward, error)
	Reprice(ctx context.Context, id string, amount int64) (bool, error)
	CountInFlight(ctx context.Context, caseID string) (int, error)
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type payoutRepository interface {
	Create(ctx context.Context, p *models.PayoutRequest) error
	GetByID(ctx context.Context, id string) (*models.PayoutRequest, error)
	GetForUpdate(ctx context.Context, id string) (*models.PayoutRequest, error)
	List(ctx context.Context, filter models.PayoutFilter) ([]models.PayoutRequest, int, error)
	Transition(ctx context.Context, params repository.PayoutTransitionParams) error
	CountOpenForCase(ctx context.Context, caseID string) (int, error)
}

type payoutTransactionRepository interface {
	Append(ctx context.Context, tx *models.PayoutTransaction) error
}

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) (int64, error)
}

// Store groups the repositories one unit of work operates on.
type Store struct {
	Cases          caseRepository
	Leads          leadRepository
	Catalog        catalogRepository
	Snapshots      snapshotRepository
	Appointments   appointmentRepository
	Rewards        rewardRepository
	Payouts        payoutRepository
	Transactions   payoutTransactionRepository
	Audit          auditRepository
	Configurations configurationRepository
}

// NewSQLStore binds every repository to db, which may be a pool or a transaction.
func NewSQLStore(db sqlx.ExtContext) Store {
	return Store{
		Cases:          repository.NewCaseRepository(db),
		Leads:          repository.NewLeadRepository(db),
		Catalog:        repository.NewCatalogRepository(db),
		Snapshots:      repository.NewSnapshotRepository(db),
		Appointments:   repository.NewAppointmentRepository(db),
		Rewards:        repository.NewRewardRepository(db),
		Payouts:        repository.NewPayoutRepository(db),
		Transactions:   repository.NewPayoutTransactionRepository(db),
		Audit:          repository.NewAuditRepository(db),
		Configurations: repository.NewConfigurationRepository(db),
	}
}

// UnitOfWork runs fn against a Store whose writes commit or roll back together.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q sqlx.ExtContext) error) error
}

type sqlUnitOfWork struct {
	runner txRunner
}

// NewSQLUnitOfWork adapts a database transaction runner.
func NewSQLUnitOfWork(runner txRunner) UnitOfWork {
	return &sqlUnitOfWork{runner: runner}
}

func (u *sqlUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	return u.runner.WithinTx(ctx, func(ctx context.Context, q sqlx.ExtContext) error {
		return fn(ctx, NewSQLStore(q))
	})
}
