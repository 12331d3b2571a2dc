package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"dixis-bulk-orders/logging"
)

// Postgres error codes that mean the transaction may succeed on retry
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL shared by reads outside and inside a transaction
type queries struct {
	q      queryer
	logger *logging.Logger
}

// PostgresStore implements StoreInterface on top of database/sql with the pgx driver
type PostgresStore struct {
	queries
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStore creates a new PostgresStore. timeout bounds every statement
// and every transaction.
func NewPostgresStore(conn *sql.DB, timeout time.Duration, logger *logging.Logger) *PostgresStore {
	logger = logger.WithComponent("postgres_store")
	return &PostgresStore{
		queries: queries{q: conn, logger: logger},
		db:      conn,
		timeout: timeout,
	}
}

// Ensure PostgresStore implements StoreInterface
var _ StoreInterface = (*PostgresStore)(nil)

// pgTx implements TxInterface on an open *sql.Tx
type pgTx struct {
	queries
	tx *sql.Tx
}

var _ TxInterface = (*pgTx)(nil)

// WithTx runs fn inside one transaction. The transaction commits only when fn
// returns nil; any error, panic or expired context rolls everything back.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx TxInterface) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("❌ Error starting transaction", "error", err)
		return fmt.Errorf("failed to start transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	if s.timeout > 0 {
		ms := s.timeout.Milliseconds()
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)); err != nil {
			return fmt.Errorf("failed to set statement timeout: %w", mapError(err))
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", mapError(err))
		}
	}

	if err := fn(&pgTx{queries: queries{q: tx, logger: s.logger}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("❌ Error committing transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// mapError converts driver errors into the package sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrSerialization, pgErr.Message)
		case pgQueryCanceled:
			return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	}
	return err
}

// isUniqueViolation reports a duplicate key error
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
