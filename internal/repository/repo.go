package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the transaction handle usecases hold between repository calls.
// pgx.Tx satisfies it; test fakes implement the two methods directly.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// within resolves the querier for an optional transaction: repo methods run
// against tx when one is open, the pool otherwise.
func within(db *pgxpool.Pool, tx Tx) querier {
	if t, ok := tx.(pgx.Tx); ok && t != nil {
		return t
	}
	return db
}

func beginTx(ctx context.Context, db *pgxpool.Pool) (Tx, error) {
	return db.BeginTx(ctx, pgx.TxOptions{})
}
