package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errBoom = errors.New("boom")

func keysN(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%03d", i)
	}
	return keys
}

func TestRun_CountsAreExact(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		failing []int
	}{
		{"empty", 0, nil},
		{"all succeed", 5, nil},
		{"all fail", 5, []int{0, 1, 2, 3, 4}},
		{"first fails", 5, []int{0}},
		{"last fails", 5, []int{4}},
		{"alternating", 6, []int{1, 3, 5}},
		{"single key fails", 1, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := keysN(tt.n)
			fail := map[string]bool{}
			for _, i := range tt.failing {
				fail[keys[i]] = true
			}

			calls := map[string]int{}
			res := New().Run(context.Background(), keys, func(_ context.Context, key string) error {
				calls[key]++
				if fail[key] {
					return errBoom
				}
				return nil
			})

			assert.Equal(t, tt.n-len(tt.failing), res.Succeeded)
			assert.Equal(t, len(tt.failing), res.Failed)
			assert.Equal(t, tt.n, res.Total())
			assert.Equal(t, len(tt.failing) == 0, res.OK())
			for _, k := range keys {
				assert.Equal(t, 1, calls[k], "key %s", k)
			}
			for _, f := range res.Failures {
				assert.True(t, fail[f.Key])
				assert.ErrorIs(t, f.Err, errBoom)
			}
		})
	}
}

func TestRun_RandomFailurePatterns(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		keys := keysN(n)
		fail := map[string]bool{}
		for _, k := range keys {
			if rng.Intn(3) == 0 {
				fail[k] = true
			}
		}

		var calls int
		res := New().Run(context.Background(), keys, func(_ context.Context, key string) error {
			calls++
			if fail[key] {
				return errBoom
			}
			return nil
		})

		require.Equal(t, n, calls)
		require.Equal(t, len(fail), res.Failed)
		require.Equal(t, n-len(fail), res.Succeeded)
	}
}

func TestRun_Sequential(t *testing.T) {
	var inFlight, maxInFlight int32
	var order []string

	res := New().Run(context.Background(), keysN(10), func(_ context.Context, key string) error {
		cur := atomic.AddInt32(&inFlight, 1)
		if cur > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, cur)
		}
		time.Sleep(time.Millisecond)
		order = append(order, key)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	assert.Equal(t, int32(1), maxInFlight)
	assert.Equal(t, keysN(10), order)
	assert.Equal(t, 10, res.Succeeded)
}

func TestRun_CancelledContextStillVisitsEveryKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	keys := keysN(4)

	var calls int
	res := New(WithRate(1000)).Run(ctx, keys, func(ctx context.Context, key string) error {
		calls++
		if key == keys[1] {
			cancel()
		}
		return ctx.Err()
	})

	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, keys[1], res.Failures[0].Key)
	assert.ErrorIs(t, res.Failures[2].Err, context.Canceled)
}

func TestRun_PanicIsAFailure(t *testing.T) {
	res := New().Run(context.Background(), []string{"a", "b"}, func(_ context.Context, key string) error {
		if key == "a" {
			panic("kaboom")
		}
		return nil
	})

	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 1)
	var pe *PanicError
	require.ErrorAs(t, res.Failures[0].Err, &pe)
	assert.Equal(t, "a", pe.Key)
}

func TestRun_ProgressAndLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	var seen []int
	res := New(
		WithLogger(zap.New(core)),
		WithProgress(func(_ string, _ error, done, total int) {
			assert.Equal(t, 3, total)
			seen = append(seen, done)
		}),
	).Run(context.Background(), keysN(3), func(_ context.Context, key string) error {
		if key == "k001" {
			return errBoom
		}
		return nil
	})

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, logs.FilterMessage("batch item failed").Len())
	finished := logs.FilterMessage("batch finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(2), finished[0].ContextMap()["succeeded"])
	assert.Equal(t, res.RunID, finished[0].ContextMap()["run_id"])
}

func TestRun_RatePaces(t *testing.T) {
	start := time.Now()
	New(WithRate(50)).Run(context.Background(), keysN(3), func(context.Context, string) error { return nil })
	// burst 1: the 2nd and 3rd key each wait ~20ms
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
