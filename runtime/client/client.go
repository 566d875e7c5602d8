// Package client provides the session facade: native queries, stored
// procedure calls and DML, with result caching and update tracking.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/hydrate-orm/hydrate-go/internal/debug"
	"github.com/hydrate-orm/hydrate-go/query/cache"
	"github.com/hydrate-orm/hydrate-go/query/coerce"
	"github.com/hydrate-orm/hydrate-go/query/storedproc"
	"github.com/hydrate-orm/hydrate-go/telemetry"
)

// Client is the main session facade. It owns the connection, the result
// cache and the per-table update tracker.
type Client struct {
	db       *sql.DB
	provider string
	cache    *cache.ResultCache
	tracker  *cache.TimestampTracker
	registry *coerce.Registry
	procs    *storedproc.Adapter
	stmts    *stmtCache

	middlewares []Middleware
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables result caching with the given capacity and default TTL.
func WithCache(maxSize int, defaultTTL time.Duration) Option {
	return func(c *Client) {
		c.cache = cache.New(maxSize, defaultTTL, c.tracker)
	}
}

// WithRegistry overrides the scalar coercion registry.
func WithRegistry(r *coerce.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// Open creates a client for the given provider and connection string.
func Open(provider string, connectionString string, opts ...Option) (*Client, error) {
	driverName := getDriverName(provider)
	if driverName == "" {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	db, err := sql.Open(driverName, connectionString)
	if err != nil {
		return nil, err
	}
	return FromDB(provider, db, opts...)
}

// FromDB creates a client over an existing database connection.
func FromDB(provider string, db *sql.DB, opts ...Option) (*Client, error) {
	c := &Client{
		db:       db,
		provider: provider,
		tracker:  cache.NewTimestampTracker(),
		registry: coerce.Default(),
	}
	c.procs = storedproc.NewAdapter(db, provider)
	c.stmts = newStmtCache(db)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// getDriverName maps provider names to Go database driver names
func getDriverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return ""
	}
}

// Connect establishes the database connection
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Disconnect closes the database connection
func (c *Client) Disconnect(ctx context.Context) error {
	c.stmts.close()
	return c.db.Close()
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Provider returns the configured provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Tracker returns the per-table update tracker.
func (c *Client) Tracker() *cache.TimestampTracker {
	return c.tracker
}

// Procedures returns the stored procedure adapter.
func (c *Client) Procedures() *storedproc.Adapter {
	return c.procs
}

// InvalidateRegion drops every cached result in a region.
func (c *Client) InvalidateRegion(region string) {
	if c.cache != nil {
		c.cache.InvalidateRegion(region)
	}
}

// ExecDML runs a data-changing statement, records the write against the
// given tables and returns the affected row count.
func (c *Client) ExecDML(ctx context.Context, statement string, check storedproc.CheckStrategy, expected int64, tables []string, args ...any) (int64, error) {
	start := time.Now()
	affected, err := c.procs.ExecDML(ctx, statement, check, expected, args...)
	if err != nil {
		return affected, err
	}
	if len(tables) > 0 {
		c.tracker.Touch(tables...)
	}
	debug.Debug("dml executed", "statement", statement, "affected", affected, "duration", time.Since(start))
	telemetry.RecordQuery(c.provider, time.Since(start), int(affected), false, nil)
	return affected, nil
}
