// Package workerpool runs independent work items with bounded parallelism.
package workerpool

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent work items (default: 1)
}

// DefaultConfig runs items one at a time.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 1,
	}
}

// Pool bounds how many work items run at once.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a worker pool. If logger is nil, a no-op logger is used.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all work items with bounded parallelism and returns results
// in submission order, regardless of completion order. Item failures are
// returned in WorkResult.Err and never stop the remaining items. Items not yet
// started when ctx is cancelled report ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))

	if pool.config.MaxConcurrent == 1 {
		for i, item := range items {
			results[i] = run(ctx, item)
			if onProgress != nil {
				onProgress(i+1, len(items))
			}
		}
		return results
	}

	progress := make(chan struct{}, len(items))
	done := make(chan struct{})
	go func() {
		defer close(done)
		completed := 0
		for range progress {
			completed++
			if onProgress != nil {
				onProgress(completed, len(items))
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(pool.config.MaxConcurrent)
	for i, item := range items {
		g.Go(func() error {
			results[i] = run(ctx, item)
			progress <- struct{}{}
			return nil
		})
	}
	_ = g.Wait()
	close(progress)
	<-done

	pool.logger.Debug("Processed work items",
		zap.Int("count", len(items)),
		zap.Int("max_concurrent", pool.config.MaxConcurrent))

	return results
}

func run[T any](ctx context.Context, item WorkItem[T]) WorkResult[T] {
	if err := ctx.Err(); err != nil {
		return WorkResult[T]{ID: item.ID, Err: err}
	}
	result, err := item.Execute(ctx)
	return WorkResult[T]{ID: item.ID, Result: result, Err: err}
}
