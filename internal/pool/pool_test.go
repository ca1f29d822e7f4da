package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesOrder(t *testing.T) {
	p := New(WithWorkerLimit[string](4))

	items := make([]string, 50)
	for i := range items {
		items[i] = fmt.Sprintf("item-%02d", i)
	}

	results := p.Run(context.Background(), items, func(ctx context.Context, item string) (string, error) {
		return strings.ToUpper(item), nil
	})

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, items[i], r.Item)
		assert.Equal(t, strings.ToUpper(items[i]), r.Value)
		assert.NoError(t, r.Err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const limit = 3
	p := New(WithWorkerLimit[int](limit))

	var active, peak int32
	var mu sync.Mutex

	items := make([]string, 30)
	for i := range items {
		items[i] = fmt.Sprintf("%d", i)
	}

	p.Run(context.Background(), items, func(ctx context.Context, item string) (int, error) {
		n := atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		atomic.AddInt32(&active, -1)
		return 0, nil
	})

	assert.LessOrEqual(t, peak, int32(limit))
}

func TestRunPerItemErrors(t *testing.T) {
	p := New(WithWorkerLimit[int](2))

	results := p.Run(context.Background(), []string{"ok", "bad", "ok"},
		func(ctx context.Context, item string) (int, error) {
			if item == "bad" {
				return 0, fmt.Errorf("broken item")
			}
			return 1, nil
		})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestRunCancelledContext(t *testing.T) {
	p := New(WithWorkerLimit[int](1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := make([]string, 100)
	for i := range items {
		items[i] = fmt.Sprintf("%d", i)
	}

	results := p.Run(ctx, items,
		func(ctx context.Context, item string) (int, error) {
			return 1, nil
		})

	require.Len(t, results, len(items))
	cancelled := 0
	for _, r := range results {
		if r.Err == context.Canceled {
			cancelled++
		}
	}
	assert.Positive(t, cancelled, "undispatched items carry the context error")
}

func TestRunEmptyInput(t *testing.T) {
	p := New[int]()
	assert.Nil(t, p.Run(context.Background(), nil, func(ctx context.Context, item string) (int, error) {
		return 0, nil
	}))
}
