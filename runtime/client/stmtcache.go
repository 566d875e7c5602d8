package client

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// stmtCache reuses prepared statements across executions of the same
// rewritten query text.
type stmtCache struct {
	db    *sql.DB
	mu    sync.RWMutex
	stmts map[string]*sql.Stmt
}

func newStmtCache(db *sql.DB) *stmtCache {
	return &stmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

// get returns the cached prepared statement for a query, preparing it on
// first use.
func (c *stmtCache) get(ctx context.Context, query string) (*sql.Stmt, error) {
	c.mu.RLock()
	stmt, ok := c.stmts[query]
	c.mu.RUnlock()
	if ok && stmt != nil {
		return stmt, nil
	}

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	c.mu.Lock()
	// Another goroutine may have prepared the same query in the meantime.
	if existing, ok := c.stmts[query]; ok && existing != nil {
		c.mu.Unlock()
		stmt.Close()
		return existing, nil
	}
	c.stmts[query] = stmt
	c.mu.Unlock()

	return stmt, nil
}

// close releases every cached statement.
func (c *stmtCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range c.stmts {
		stmt.Close()
	}
	c.stmts = make(map[string]*sql.Stmt)
}
