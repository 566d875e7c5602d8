// Package materializer turns raw tabular rows into typed results per a
// mapping spec, deduplicating entities by identity key within one pass.
package materializer

import (
	"database/sql"
	"fmt"
	"strings"
)

// RawRow is one result tuple: ordered column names with their values.
// Rows are ephemeral; the materializer never retains one across iterations.
type RawRow struct {
	columns []string
	values  []any
	index   map[string]int
}

// NewRawRow builds a row over the given columns and values.
func NewRawRow(columns []string, values []any) RawRow {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[strings.ToLower(c)] = i
	}
	return RawRow{columns: columns, values: values, index: index}
}

// Columns returns the row's column names in result-set order.
func (r RawRow) Columns() []string { return r.columns }

// Get returns the value of a column, matched case-insensitively.
func (r RawRow) Get(column string) (any, bool) {
	i, ok := r.index[strings.ToLower(column)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// RowCursor yields RawRow values on demand. Next advances and reports
// whether a row is available; Row returns the current row.
type RowCursor interface {
	Next() bool
	Row() (RawRow, error)
	Err() error
	Close() error
}

// RowsCursor adapts *sql.Rows to the RowCursor interface.
type RowsCursor struct {
	rows    *sql.Rows
	columns []string
	closed  bool
}

// NewRowsCursor wraps an open *sql.Rows.
func NewRowsCursor(rows *sql.Rows) (*RowsCursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return &RowsCursor{rows: rows, columns: columns}, nil
}

// Columns returns the result-set column names.
func (c *RowsCursor) Columns() []string { return c.columns }

// Next advances to the next backend row.
func (c *RowsCursor) Next() bool { return c.rows.Next() }

// Row scans the current backend row.
func (c *RowsCursor) Row() (RawRow, error) {
	values := make([]any, len(c.columns))
	valuePtrs := make([]any, len(c.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := c.rows.Scan(valuePtrs...); err != nil {
		return RawRow{}, fmt.Errorf("scan failed: %w", err)
	}
	return NewRawRow(c.columns, values), nil
}

// Err reports any error seen while iterating.
func (c *RowsCursor) Err() error { return c.rows.Err() }

// Close releases the underlying rows. Safe to call more than once.
func (c *RowsCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}

// SliceCursor serves rows from memory; used for fixtures and for feeding
// pre-shaped result sets into the materializer.
type SliceCursor struct {
	columns []string
	rows    [][]any
	pos     int
}

// NewSliceCursor creates a cursor over in-memory rows.
func NewSliceCursor(columns []string, rows ...[]any) *SliceCursor {
	return &SliceCursor{columns: columns, rows: rows, pos: -1}
}

func (c *SliceCursor) Next() bool {
	if c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Row() (RawRow, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return RawRow{}, fmt.Errorf("no current row")
	}
	return NewRawRow(c.columns, c.rows[c.pos]), nil
}

func (c *SliceCursor) Err() error   { return nil }
func (c *SliceCursor) Close() error { return nil }

// PagedCursor applies firstResult/maxResults windowing over another cursor.
// Paging happens cursor-side; no dialect-specific LIMIT rewriting is done.
type PagedCursor struct {
	inner   RowCursor
	skip    int
	remain  int
	bounded bool
}

// NewPagedCursor skips the first `first` rows and stops after `max` rows;
// max <= 0 means unbounded.
func NewPagedCursor(inner RowCursor, first, max int) *PagedCursor {
	return &PagedCursor{inner: inner, skip: first, remain: max, bounded: max > 0}
}

func (c *PagedCursor) Next() bool {
	for c.skip > 0 {
		if !c.inner.Next() {
			return false
		}
		c.skip--
	}
	if c.bounded {
		if c.remain == 0 {
			return false
		}
		c.remain--
	}
	return c.inner.Next()
}

func (c *PagedCursor) Row() (RawRow, error) { return c.inner.Row() }
func (c *PagedCursor) Err() error           { return c.inner.Err() }
func (c *PagedCursor) Close() error         { return c.inner.Close() }
