package client

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hydrate-orm/hydrate-go/query/spec"
	"github.com/hydrate-orm/hydrate-go/query/storedproc"
)

// fakeBackend scripts the rows the next query returns and records what
// the client actually sent to the driver.
type fakeBackend struct {
	mu       sync.Mutex
	columns  []string
	rows     [][]driver.Value
	affected int64

	prepared []string
	queries  []string
	execs    []string
}

func (b *fakeBackend) script(columns []string, rows ...[]driver.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.columns = columns
	b.rows = rows
}

func (b *fakeBackend) queryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queries)
}

type fakeConnector struct{ backend *fakeBackend }

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{backend: c.backend}, nil
}

func (c fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open through the connector")
}

type fakeConn struct{ backend *fakeBackend }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	c.backend.mu.Lock()
	c.backend.prepared = append(c.backend.prepared, query)
	c.backend.mu.Unlock()
	return &fakeStmt{backend: c.backend, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeStmt struct {
	backend *fakeBackend
	query   string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.backend.mu.Lock()
	s.backend.execs = append(s.backend.execs, s.query)
	affected := s.backend.affected
	s.backend.mu.Unlock()
	return driver.RowsAffected(affected), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.backend.mu.Lock()
	s.backend.queries = append(s.backend.queries, s.query)
	columns := s.backend.columns
	rows := s.backend.rows
	s.backend.mu.Unlock()
	return &fakeRows{columns: columns, rows: rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

type flowAuthor struct {
	ID   int64
	Name string
}

func flowAuthorEntity() *spec.EntityDescriptor {
	return &spec.EntityDescriptor{
		Name:    "Author",
		Factory: func() any { return &flowAuthor{} },
		Properties: []spec.PropertyDescriptor{
			{Name: "id"},
			{Name: "name"},
		},
		IDProperty: "id",
	}
}

type QueryFlowSuite struct {
	suite.Suite
	backend *fakeBackend
	client  *Client
}

func (s *QueryFlowSuite) SetupTest() {
	s.backend = &fakeBackend{}
	db := sql.OpenDB(fakeConnector{backend: s.backend})
	db.SetMaxOpenConns(1)

	c, err := FromDB("postgresql", db, WithCache(16, time.Minute))
	s.Require().NoError(err)
	s.client = c
}

func (s *QueryFlowSuite) mapping() *spec.Mapping {
	m, err := spec.New(&spec.EntityReturn{Alias: "a", Entity: flowAuthorEntity()})
	s.Require().NoError(err)
	return m
}

func (s *QueryFlowSuite) scriptAuthors() {
	s.backend.script([]string{"id", "name"},
		[]driver.Value{int64(1), "felix"},
		[]driver.Value{int64(2), "iris"},
	)
}

func (s *QueryFlowSuite) TestListMaterializesEntities() {
	s.scriptAuthors()

	results, err := s.client.Query("SELECT id, name FROM authors a", s.mapping()).List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(results, 2)

	first, ok := results[0].(*flowAuthor)
	s.Require().True(ok)
	s.Equal(int64(1), first.ID)
	s.Equal("felix", first.Name)
}

func (s *QueryFlowSuite) TestCacheableListSkipsBackendOnHit() {
	s.scriptAuthors()
	q := s.client.Query("SELECT id, name FROM authors a", s.mapping()).
		Cacheable("authors").
		SyncTables("authors")

	_, err := q.List(context.Background())
	s.Require().NoError(err)
	s.Equal(1, s.backend.queryCount())

	results, err := q.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(1, s.backend.queryCount())
}

func (s *QueryFlowSuite) TestCacheableWithoutCacheConfigured() {
	backend := &fakeBackend{}
	db := sql.OpenDB(fakeConnector{backend: backend})
	db.SetMaxOpenConns(1)
	c, err := FromDB("postgresql", db)
	s.Require().NoError(err)

	backend.script([]string{"id", "name"}, []driver.Value{int64(1), "felix"})
	q := c.Query("SELECT id, name FROM authors a", s.mapping()).
		Cacheable("authors").
		SyncTables("authors")

	_, err = q.List(context.Background())
	s.Require().NoError(err)
	results, err := q.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(2, backend.queryCount())
}

func (s *QueryFlowSuite) TestWriteDuringExecutionIsNotHiddenByCache() {
	s.scriptAuthors()

	// A concurrent write lands after the backend read but before the
	// results reach the cache.
	s.client.Use(func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		s.client.Tracker().Touch("authors")
		return err
	})

	q := s.client.Query("SELECT id, name FROM authors a", s.mapping()).
		Cacheable("authors").
		SyncTables("authors")

	_, err := q.List(context.Background())
	s.Require().NoError(err)

	_, err = q.List(context.Background())
	s.Require().NoError(err)
	s.Equal(2, s.backend.queryCount())
}

func (s *QueryFlowSuite) TestWriteMakesCachedListStale() {
	s.scriptAuthors()
	q := s.client.Query("SELECT id, name FROM authors a", s.mapping()).
		Cacheable("authors").
		SyncTables("authors")

	_, err := q.List(context.Background())
	s.Require().NoError(err)

	_, err = s.client.ExecDML(context.Background(),
		"DELETE FROM authors WHERE id = $1", storedproc.CheckNone, 0,
		[]string{"authors"}, int64(2))
	s.Require().NoError(err)

	_, err = q.List(context.Background())
	s.Require().NoError(err)
	s.Equal(2, s.backend.queryCount())
}

func (s *QueryFlowSuite) TestExecDMLCountCheck() {
	s.backend.affected = 0

	_, err := s.client.ExecDML(context.Background(),
		"DELETE FROM authors WHERE id = $1", storedproc.CheckCount, 1,
		[]string{"authors"}, int64(99))

	var countErr *storedproc.UnexpectedRowCountError
	s.Require().ErrorAs(err, &countErr)
	s.Equal(int64(1), countErr.Expected)
	s.Equal(int64(0), countErr.Actual)
}

func (s *QueryFlowSuite) TestSingleRejectsMultipleRows() {
	s.scriptAuthors()

	_, err := s.client.Query("SELECT id, name FROM authors a", s.mapping()).Single(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "expected a single result")
}

func (s *QueryFlowSuite) TestIterateStreamsLazily() {
	s.scriptAuthors()

	it, err := s.client.Query("SELECT id, name FROM authors a", s.mapping()).Iterate(context.Background())
	s.Require().NoError(err)
	defer it.Close()

	var names []string
	for it.Next() {
		names = append(names, it.Result().(*flowAuthor).Name)
	}
	s.Require().NoError(it.Err())
	s.Equal([]string{"felix", "iris"}, names)
}

func (s *QueryFlowSuite) TestResultWindow() {
	s.backend.script([]string{"id", "name"},
		[]driver.Value{int64(1), "felix"},
		[]driver.Value{int64(2), "iris"},
		[]driver.Value{int64(3), "nora"},
	)

	results, err := s.client.Query("SELECT id, name FROM authors a", s.mapping()).
		FirstResult(1).
		MaxResults(1).
		List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(int64(2), results[0].(*flowAuthor).ID)
}

func (s *QueryFlowSuite) TestPreparedStatementReuse() {
	s.scriptAuthors()
	q := s.client.Query("SELECT id, name FROM authors a", s.mapping())

	_, err := q.List(context.Background())
	s.Require().NoError(err)
	_, err = q.List(context.Background())
	s.Require().NoError(err)

	s.Equal(2, s.backend.queryCount())
	s.Len(s.backend.prepared, 1)
}

func (s *QueryFlowSuite) TestProcedureCallPagingRejected() {
	_, err := s.client.Call("find_authors", s.mapping()).
		MaxResults(10).
		List(context.Background())

	var paging *storedproc.UnsupportedPagingError
	s.Require().ErrorAs(err, &paging)
	s.Equal("find_authors", paging.Procedure)
}

func (s *QueryFlowSuite) TestProcedureCallReturnsRows() {
	s.scriptAuthors()

	results, err := s.client.Call("find_authors", s.mapping()).List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal([]string{"SELECT * FROM find_authors()"}, s.backend.queries)
}

func TestQueryFlowSuite(t *testing.T) {
	suite.Run(t, new(QueryFlowSuite))
}
