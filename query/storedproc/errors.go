package storedproc

import (
	"errors"
	"fmt"
)

// ErrNoResultSet is returned when a procedure produced only update counts
// and no scannable result set.
var ErrNoResultSet = errors.New("procedure returned no result set")

// ErrProceduresUnsupported is returned for backends without stored
// procedure support.
var ErrProceduresUnsupported = errors.New("provider does not support stored procedures")

// UnsupportedPagingError reports firstResult/maxResults applied to a
// procedure call. Procedures own their result shape; windowing them is
// rejected up front rather than silently ignored.
type UnsupportedPagingError struct {
	Procedure string
}

func (e *UnsupportedPagingError) Error() string {
	return fmt.Sprintf("procedure %q cannot be paged with firstResult/maxResults", e.Procedure)
}

// UnexpectedRowCountError reports a DML execution whose affected row
// count did not match the declared expectation.
type UnexpectedRowCountError struct {
	Statement string
	Expected  int64
	Actual    int64
}

func (e *UnexpectedRowCountError) Error() string {
	return fmt.Sprintf("statement affected %d rows, expected %d: %s", e.Actual, e.Expected, e.Statement)
}
