package work

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_ResultsInInputOrder(t *testing.T) {
	runner := NewRunner(4, zerolog.Nop())

	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN"}
	results := runner.Run(context.Background(), symbols, func(ctx context.Context, symbol string) (int, error) {
		return len(symbol), nil
	})

	require.Len(t, results, len(symbols))
	for i, result := range results {
		assert.Equal(t, symbols[i], result.Symbol)
		assert.Equal(t, len(symbols[i]), result.Rows)
		assert.NoError(t, result.Err)
	}
}

func TestRunner_FailureIsIsolatedPerSymbol(t *testing.T) {
	runner := NewRunner(2, zerolog.Nop())

	boom := errors.New("boom")
	results := runner.Run(context.Background(), []string{"AAPL", "BAD", "MSFT"}, func(ctx context.Context, symbol string) (int, error) {
		if symbol == "BAD" {
			return 0, boom
		}
		return 1, nil
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
}

func TestRunner_CancellationMarksUndispatched(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	symbols := []string{"AAPL", "MSFT", "GOOG"}
	ran := 0
	results := runner.Run(ctx, symbols, func(ctx context.Context, symbol string) (int, error) {
		ran++
		return 1, nil
	})

	require.Len(t, results, len(symbols))
	cancelled := 0
	for _, result := range results {
		if errors.Is(result.Err, context.Canceled) {
			cancelled++
		}
	}
	// At least the undispatched tail carries the context error.
	assert.Greater(t, cancelled, 0)
	assert.LessOrEqual(t, ran, len(symbols)-cancelled)
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	const workers = 3
	runner := NewRunner(workers, zerolog.Nop())

	var mu sync.Mutex
	active, peak := 0, 0
	gate := make(chan struct{})

	symbols := make([]string, 20)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%d", i)
	}

	done := make(chan []Result)
	go func() {
		done <- runner.Run(context.Background(), symbols, func(ctx context.Context, symbol string) (int, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			<-gate

			mu.Lock()
			active--
			mu.Unlock()
			return 1, nil
		})
	}()

	close(gate)
	results := <-done

	require.Len(t, results, len(symbols))
	mu.Lock()
	assert.LessOrEqual(t, peak, workers)
	mu.Unlock()
}

func TestNewRunner_MinimumOneWorker(t *testing.T) {
	runner := NewRunner(0, zerolog.Nop())

	results := runner.Run(context.Background(), []string{"AAPL"}, func(ctx context.Context, symbol string) (int, error) {
		return 1, nil
	})
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}
