package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Beginner starts sqlx transactions; *sqlx.DB satisfies it.
type Beginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxRunner executes a unit of work inside one database transaction.
type TxRunner struct {
	db   Beginner
	opts *sql.TxOptions
}

// NewTxRunner builds a runner using read-committed isolation; row locks taken
// with SELECT ... FOR UPDATE provide per-record serialisation.
func NewTxRunner(db Beginner) *TxRunner {
	return &TxRunner{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

// WithinTx commits when fn returns nil and rolls back otherwise, including on panic.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, q sqlx.ExtContext) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, r.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
