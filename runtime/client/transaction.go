// Package client provides transaction support.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hydrate-orm/hydrate-go/query/cache"
	"github.com/hydrate-orm/hydrate-go/query/storedproc"
)

// IsolationLevel represents transaction isolation levels
type IsolationLevel int

const (
	// ReadUncommitted allows dirty reads
	ReadUncommitted IsolationLevel = iota
	// ReadCommitted prevents dirty reads (default)
	ReadCommitted
	// RepeatableRead prevents dirty reads and non-repeatable reads
	RepeatableRead
	// Serializable prevents dirty reads, non-repeatable reads, and phantom reads
	Serializable
)

// ToSQLIsolationLevel converts IsolationLevel to sql.IsolationLevel
func (level IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch level {
	case ReadUncommitted:
		return sql.LevelReadUncommitted
	case ReadCommitted:
		return sql.LevelReadCommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}

// NewTxOptions creates sql.TxOptions from isolation level
func NewTxOptions(isolation IsolationLevel, readOnly bool) *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: isolation.ToSQLIsolationLevel(),
		ReadOnly:  readOnly,
	}
}

// Tx wraps sql.Tx with write tracking. Table writes made inside the
// transaction are recorded against the tracker only on commit.
type Tx struct {
	*sql.Tx
	provider string
	tracker  *cache.TimestampTracker
	touched  []string
	depth    int // savepoint nesting depth
}

// TransactionFunc is a function that runs within a transaction
type TransactionFunc func(tx *Tx) error

// ExecDML runs a data-changing statement inside the transaction and
// remembers the written tables for the commit-time tracker update.
func (tx *Tx) ExecDML(ctx context.Context, statement string, check storedproc.CheckStrategy, expected int64, tables []string, args ...any) (int64, error) {
	result, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected row count: %w", err)
	}
	if check == storedproc.CheckCount && affected != expected {
		return affected, &storedproc.UnexpectedRowCountError{Statement: statement, Expected: expected, Actual: affected}
	}
	tx.touched = append(tx.touched, tables...)
	return affected, nil
}

// Transaction executes a function within a database transaction.
// The transaction is rolled back when the function errors and committed
// otherwise.
func (c *Client) Transaction(ctx context.Context, fn TransactionFunc) error {
	return c.TransactionWithOptions(ctx, nil, fn)
}

// TransactionWithOptions executes a transaction with custom options.
func (c *Client) TransactionWithOptions(ctx context.Context, opts *sql.TxOptions, fn TransactionFunc) error {
	sqlTx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		Tx:       sqlTx,
		provider: c.provider,
		tracker:  c.tracker,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Writes become visible only now; stamp them after the commit.
	if len(tx.touched) > 0 && tx.tracker != nil {
		tx.tracker.Touch(tx.touched...)
	}
	return nil
}

// NestedTransaction executes a nested transaction using savepoints.
func (tx *Tx) NestedTransaction(ctx context.Context, fn TransactionFunc) error {
	tx.depth++
	savepointName := fmt.Sprintf("sp_%d", tx.depth)

	_, err := tx.ExecContext(ctx, fmt.Sprintf("SAVEPOINT %s", savepointName))
	if err != nil {
		tx.depth--
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = tx.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", savepointName))
			tx.depth--
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", savepointName)); rbErr != nil {
			tx.depth--
			return fmt.Errorf("nested transaction error: %v, rollback error: %w", err, rbErr)
		}
		tx.depth--
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", savepointName)); err != nil {
		tx.depth--
		return fmt.Errorf("failed to release savepoint: %w", err)
	}

	tx.depth--
	return nil
}

// TransactionWithIsolation executes a transaction with a specific isolation level
func (c *Client) TransactionWithIsolation(ctx context.Context, isolation IsolationLevel, fn TransactionFunc) error {
	return c.TransactionWithOptions(ctx, NewTxOptions(isolation, false), fn)
}

// ReadOnlyTransaction executes a read-only transaction
func (c *Client) ReadOnlyTransaction(ctx context.Context, fn TransactionFunc) error {
	return c.TransactionWithOptions(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}
