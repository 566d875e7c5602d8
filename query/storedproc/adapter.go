package storedproc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hydrate-orm/hydrate-go/internal/debug"
	"github.com/hydrate-orm/hydrate-go/query/materializer"
)

// Outcome is one item a procedure execution produced: either an update
// count or a result set.
type Outcome interface {
	isOutcome()
}

// UpdateCount is a DML row count produced before or between result sets.
// A count of -1 marks a set the driver reported without surfacing the
// affected row number.
type UpdateCount int64

func (UpdateCount) isOutcome() {}

// ResultSet is a scannable result set produced by a procedure.
type ResultSet struct {
	Cursor materializer.RowCursor
}

func (ResultSet) isOutcome() {}

// SelectResultSet scans outcomes in execution order and returns the first
// result set, skipping any update counts before it. Outcomes after the
// selected one are ignored.
func SelectResultSet(outcomes []Outcome) (ResultSet, error) {
	for _, outcome := range outcomes {
		if rs, ok := outcome.(ResultSet); ok {
			return rs, nil
		}
	}
	return ResultSet{}, ErrNoResultSet
}

// Adapter runs stored procedures against one backend connection.
type Adapter struct {
	db       *sql.DB
	provider string
}

// NewAdapter creates an adapter for the given provider.
func NewAdapter(db *sql.DB, provider string) *Adapter {
	return &Adapter{db: db, provider: provider}
}

// Query invokes a procedure and returns a cursor over its first true
// result set. firstResult/maxResults do not apply to procedures; paged
// invocations go through CheckPaging before reaching here.
func (a *Adapter) Query(ctx context.Context, procedure string, args ...any) (materializer.RowCursor, error) {
	call, err := BuildCall(a.provider, procedure, len(args))
	if err != nil {
		return nil, err
	}
	debug.Debug("calling procedure", "procedure", procedure, "call", call)

	rows, err := a.db.QueryContext(ctx, call, args...)
	if err != nil {
		return nil, fmt.Errorf("procedure %s failed: %w", procedure, err)
	}
	outcomes, err := scanOutcomes(rows)
	if err != nil {
		return nil, err
	}
	rs, err := SelectResultSet(outcomes)
	if err != nil {
		return nil, err
	}
	return rs.Cursor, nil
}

// CheckPaging rejects window settings on a procedure call.
func CheckPaging(procedure string, firstResult, maxResults int) error {
	if firstResult > 0 || maxResults > 0 {
		return &UnsupportedPagingError{Procedure: procedure}
	}
	return nil
}

// scanOutcomes walks the returned sets in execution order. Sets without
// columns are update counts; database/sql does not surface the affected
// row number mid-scan, so they carry -1. Scanning stops at the first
// true result set, which stays open behind its cursor.
func scanOutcomes(rows *sql.Rows) ([]Outcome, error) {
	var outcomes []Outcome
	for {
		columns, err := rows.Columns()
		if err == nil && len(columns) > 0 {
			cursor, err := materializer.NewRowsCursor(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			return append(outcomes, ResultSet{Cursor: cursor}), nil
		}
		if err == nil {
			outcomes = append(outcomes, UpdateCount(-1))
		}
		if !rows.NextResultSet() {
			closeErr := rows.Close()
			if err := rows.Err(); err != nil {
				return nil, err
			}
			if closeErr != nil {
				return nil, closeErr
			}
			return outcomes, nil
		}
	}
}

// CheckStrategy declares how a DML execution's affected row count is
// validated.
type CheckStrategy int

const (
	// CheckNone accepts any affected row count.
	CheckNone CheckStrategy = iota
	// CheckCount requires the affected row count to match exactly.
	CheckCount
)

// ExecDML runs a data-changing statement and returns the affected row
// count, validated against the chosen strategy.
func (a *Adapter) ExecDML(ctx context.Context, statement string, check CheckStrategy, expected int64, args ...any) (int64, error) {
	result, err := a.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected row count: %w", err)
	}
	if check == CheckCount && affected != expected {
		return affected, &UnexpectedRowCountError{Statement: statement, Expected: expected, Actual: affected}
	}
	return affected, nil
}
