package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func makeItems(n int, delay func(i int) time.Duration) []WorkItem[int] {
	items := make([]WorkItem[int], n)
	for i := range n {
		items[i] = WorkItem[int]{
			ID: fmt.Sprintf("item-%d", i),
			Execute: func(ctx context.Context) (int, error) {
				time.Sleep(delay(i))
				return i * 10, nil
			},
		}
	}
	return items
}

func TestProcess_ResultsInSubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 4}, zap.NewNop())

	// Later items finish first
	items := makeItems(8, func(i int) time.Duration { return time.Duration(8-i) * 2 * time.Millisecond })

	results := Process(context.Background(), pool, items, nil)

	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.ID)
		assert.Equal(t, i*10, r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcess_SequentialByDefault(t *testing.T) {
	pool := New(DefaultConfig(), nil)

	var running, maxRunning int32
	var order []int
	items := make([]WorkItem[int], 5)
	for i := range items {
		items[i] = WorkItem[int]{ID: fmt.Sprint(i), Execute: func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&running, 1)
			if n > atomic.LoadInt32(&maxRunning) {
				atomic.StoreInt32(&maxRunning, n)
			}
			order = append(order, i)
			atomic.AddInt32(&running, -1)
			return i, nil
		}}
	}

	Process(context.Background(), pool, items, nil)

	assert.Equal(t, int32(1), maxRunning)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestProcess_BoundsConcurrency(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	var running, maxRunning int32
	items := make([]WorkItem[int], 10)
	for i := range items {
		items[i] = WorkItem[int]{ID: fmt.Sprint(i), Execute: func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return i, nil
		}}
	}

	Process(context.Background(), pool, items, nil)

	assert.LessOrEqual(t, maxRunning, int32(2))
}

func TestProcess_ErrorsDoNotStopOthers(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3}, zap.NewNop())
	boom := errors.New("boom")

	items := []WorkItem[string]{
		{ID: "a", Execute: func(ctx context.Context) (string, error) { return "a", nil }},
		{ID: "b", Execute: func(ctx context.Context) (string, error) { return "", boom }},
		{ID: "c", Execute: func(ctx context.Context) (string, error) { return "c", nil }},
	}

	results := Process(context.Background(), pool, items, nil)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "c", results[2].Result)
}

func TestProcess_CancelledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	items := []WorkItem[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { atomic.AddInt32(&executed, 1); return 1, nil }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { atomic.AddInt32(&executed, 1); return 2, nil }},
	}

	results := Process(ctx, pool, items, nil)

	assert.Equal(t, int32(0), executed)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestProcess_Progress(t *testing.T) {
	for _, workers := range []int{1, 3} {
		pool := New(Config{MaxConcurrent: workers}, zap.NewNop())

		var calls, lastCompleted, lastTotal int
		Process(context.Background(), pool, makeItems(5, func(int) time.Duration { return 0 }), func(completed, total int) {
			calls++
			lastCompleted, lastTotal = completed, total
		})

		assert.Equal(t, 5, calls, "workers=%d", workers)
		assert.Equal(t, 5, lastCompleted)
		assert.Equal(t, 5, lastTotal)
	}
}

func TestProcess_Empty(t *testing.T) {
	assert.Nil(t, Process[int](context.Background(), New(DefaultConfig(), nil), nil, nil))
}
