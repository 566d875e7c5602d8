// Package client provides middleware support for query hooks.
package client

import (
	"context"
	"time"

	"github.com/hydrate-orm/hydrate-go/query/materializer"
)

// QueryEvent describes one backend query execution as seen by middleware.
type QueryEvent struct {
	Query    string
	Args     []any
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts backend query executions. It must call next to
// let the query proceed.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// Use appends a middleware to the client's chain. Middlewares run in
// registration order around every native query execution.
func (c *Client) Use(middleware Middleware) {
	c.middlewares = append(c.middlewares, middleware)
}

// runWithMiddleware threads a query execution through the middleware
// chain.
func (c *Client) runWithMiddleware(ctx context.Context, query string, args []any, run func() (materializer.RowCursor, error)) (materializer.RowCursor, error) {
	if len(c.middlewares) == 0 {
		return run()
	}

	event := &QueryEvent{
		Query: query,
		Args:  args,
		Start: time.Now(),
	}

	var cursor materializer.RowCursor
	var next func() error
	index := 0

	next = func() error {
		if index >= len(c.middlewares) {
			var err error
			cursor, err = run()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}
		middleware := c.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	if err := next(); err != nil {
		return nil, err
	}
	return cursor, nil
}

// LoggingMiddleware creates a middleware that logs queries
func LoggingMiddleware(logger func(format string, args ...any)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		logger("Executing query: %s with args: %v", event.Query, event.Args)
		err := next()
		if err != nil {
			logger("Query failed: %v", err)
		} else {
			logger("Query completed in %v", event.Duration)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures query execution time
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(query string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}
