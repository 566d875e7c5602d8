package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hydrate-orm/hydrate-go/internal/debug"
	"github.com/hydrate-orm/hydrate-go/query/alias"
	"github.com/hydrate-orm/hydrate-go/query/cache"
	"github.com/hydrate-orm/hydrate-go/query/materializer"
	"github.com/hydrate-orm/hydrate-go/query/spec"
	"github.com/hydrate-orm/hydrate-go/query/storedproc"
	"github.com/hydrate-orm/hydrate-go/telemetry"
)

// NativeQuery is a configured native query or procedure call. The zero
// window (firstResult 0, maxResults 0) returns all rows.
type NativeQuery struct {
	client      *Client
	template    string
	procedure   string
	mapping     *spec.Mapping
	args        []any
	firstResult int
	maxResults  int
	region      string
	cacheable   bool
	syncTables  []string
}

// Query starts a native query over a template with placeholders, mapped
// through the given spec.
func (c *Client) Query(template string, mapping *spec.Mapping) *NativeQuery {
	return &NativeQuery{client: c, template: template, mapping: mapping}
}

// Call starts a stored procedure call mapped through the given spec.
func (c *Client) Call(procedure string, mapping *spec.Mapping) *NativeQuery {
	return &NativeQuery{client: c, procedure: procedure, mapping: mapping}
}

// Args sets the positional query arguments.
func (q *NativeQuery) Args(args ...any) *NativeQuery {
	q.args = args
	return q
}

// FirstResult skips the first n materialized rows.
func (q *NativeQuery) FirstResult(n int) *NativeQuery {
	q.firstResult = n
	return q
}

// MaxResults bounds the number of materialized rows.
func (q *NativeQuery) MaxResults(n int) *NativeQuery {
	q.maxResults = n
	return q
}

// Cacheable stores and serves this query's results under the given cache
// region. No-op when the client was built without a cache.
func (q *NativeQuery) Cacheable(region string) *NativeQuery {
	q.region = region
	q.cacheable = true
	return q
}

// SyncTables declares the tables this query reads. Cached results become
// stale when any of them is written through the client.
func (q *NativeQuery) SyncTables(tables ...string) *NativeQuery {
	q.syncTables = tables
	return q
}

// useCache reports whether this execution consults the client's cache.
func (q *NativeQuery) useCache() bool {
	return q.cacheable && q.client.cache != nil
}

// List executes the query and materializes all results eagerly. Cacheable
// queries are served from and stored to the client's cache.
func (q *NativeQuery) List(ctx context.Context) ([]materializer.Result, error) {
	start := time.Now()
	executionID := uuid.New().String()

	rewritten, table, err := q.prepare()
	if err != nil {
		return nil, err
	}

	var key string
	if q.useCache() {
		key = cache.GenerateKey(q.region, rewritten, q.args)
		if value, ok := q.client.cache.Get(key); ok {
			telemetry.RecordCache(q.region, true)
			debug.Debug("query served from cache", "execution", executionID, "region", q.region)
			return value.([]materializer.Result), nil
		}
		telemetry.RecordCache(q.region, false)
	}

	cursor, err := q.open(ctx, rewritten)
	if err != nil {
		return nil, err
	}

	m := materializer.New(q.mapping, materializer.WithAliasTable(table), materializer.WithRegistry(q.client.registry))
	results, err := m.List(ctx, cursor)
	telemetry.RecordQuery(q.client.provider, time.Since(start), len(results), false, err)
	if err != nil {
		return nil, err
	}
	debug.Debug("query materialized", "execution", executionID, "results", len(results), "duration", time.Since(start))

	if q.useCache() {
		// Stamp the entry with the execution start so writes landing
		// between the backend read and the store mark it stale.
		q.client.cache.Put(key, results, q.region, q.syncTables, start, 0)
	}
	return results, nil
}

// Iterate executes the query and returns a lazy iterator. Iterators
// always hit the backend; caching applies to List only. The caller must
// close the iterator.
func (q *NativeQuery) Iterate(ctx context.Context) (*materializer.Iterator, error) {
	rewritten, table, err := q.prepare()
	if err != nil {
		return nil, err
	}
	cursor, err := q.open(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	m := materializer.New(q.mapping, materializer.WithAliasTable(table), materializer.WithRegistry(q.client.registry))
	return m.Materialize(ctx, cursor), nil
}

// Single executes the query and returns exactly one result.
func (q *NativeQuery) Single(ctx context.Context) (materializer.Result, error) {
	results, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("expected a single result, got %d", len(results))
	}
	return results[0], nil
}

// prepare resolves placeholders for template queries. Procedure calls
// have no template to rewrite.
func (q *NativeQuery) prepare() (string, *alias.Table, error) {
	if q.procedure != "" {
		if err := storedproc.CheckPaging(q.procedure, q.firstResult, q.maxResults); err != nil {
			return "", nil, err
		}
		return "", nil, nil
	}
	return alias.NewResolver(q.mapping).Resolve(q.template)
}

// open runs the backend query or procedure and wraps the rows in a
// cursor, applying the result window for template queries.
func (q *NativeQuery) open(ctx context.Context, rewritten string) (materializer.RowCursor, error) {
	if q.procedure != "" {
		start := time.Now()
		cursor, err := q.client.procs.Query(ctx, q.procedure, q.args...)
		telemetry.RecordProcedure(q.client.provider, time.Since(start), err)
		return cursor, err
	}

	run := func() (materializer.RowCursor, error) {
		stmt, err := q.client.stmts.get(ctx, rewritten)
		if err != nil {
			return nil, err
		}
		rows, err := stmt.QueryContext(ctx, q.args...)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		cursor, err := materializer.NewRowsCursor(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		return cursor, nil
	}

	cursor, err := q.client.runWithMiddleware(ctx, rewritten, q.args, run)
	if err != nil {
		return nil, err
	}
	if q.firstResult > 0 || q.maxResults > 0 {
		return materializer.NewPagedCursor(cursor, q.firstResult, q.maxResults), nil
	}
	return cursor, nil
}
