package repo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
// Beginning on a pgx.Tx opens a savepoint, so tests can run a whole
// detector transaction inside their own rolled-back transaction.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner runs a unit of work against an AttendanceRepo inside one transaction.
type TxRunner interface {
	// InTx commits if fn returns nil and rolls back otherwise.
	// fn's error is returned unchanged; begin and commit failures are
	// classified as domain.ErrConnection or domain.ErrQuery.
	InTx(ctx context.Context, fn func(AttendanceRepo) error) error
}

type pgTxRunner struct {
	b beginner
}

// NewTxRunner constructs a TxRunner that begins transactions on b.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx.
func NewTxRunner(b beginner) TxRunner {
	return &pgTxRunner{b: b}
}

func (r *pgTxRunner) InTx(ctx context.Context, fn func(AttendanceRepo) error) error {
	tx, err := r.b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: begin: %w", classifyBegin(err))
	}
	// Rollback is a no-op once Commit has succeeded.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(NewAttendanceRepo(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: commit: %w", classify(err))
	}
	return nil
}

// classify tags a driver error with the matching domain error kind.
// Context cancellation is passed through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrQuery, err)
}

// classifyBegin treats every non-context failure to open a transaction as a
// connection problem: the pool could not hand out a usable connection.
func classifyBegin(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, domain.ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrConnection, err)
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 28: invalid authorization.
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "28")
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
