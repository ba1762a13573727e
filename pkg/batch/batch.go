// Package batch applies one operation to many keys and tallies the outcome.
//
// Execution is strictly sequential: each key's round trip completes before the
// next starts. This bounds backend load and makes the counts reproducible. An
// optional rate limit can slow a run down further; nothing here parallelizes.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Op performs the work for a single key.
type Op func(ctx context.Context, key string) error

// Failure records one key whose operation returned an error.
type Failure struct {
	Key string
	Err error
}

// Result summarises a run. It is produced once and never updated.
type Result struct {
	RunID     string
	Succeeded int
	Failed    int
	Failures  []Failure
	Duration  time.Duration
}

// Total returns Succeeded + Failed.
func (r Result) Total() int {
	return r.Succeeded + r.Failed
}

// OK reports whether every key succeeded.
func (r Result) OK() bool {
	return r.Failed == 0
}

// Progress is called after each key with the running counts.
type Progress func(key string, err error, done, total int)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRate paces the run to at most perSecond keys per second. Zero or
// negative disables pacing.
func WithRate(perSecond float64) Option {
	return func(e *Executor) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			e.limiter = nil
		}
	}
}

// WithProgress registers a per-key callback.
func WithProgress(fn Progress) Option {
	return func(e *Executor) {
		e.progress = fn
	}
}

// Executor runs operations sequentially.
type Executor struct {
	logger   *zap.Logger
	limiter  *rate.Limiter
	progress Progress
}

// New returns an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run calls op exactly once for every key, in order, and never stops early.
//
// A failing key is recorded and the run moves on. If ctx is cancelled the
// remaining keys are still visited; op then sees the cancelled context and
// its error is tallied like any other failure. Run itself never fails.
func (e *Executor) Run(ctx context.Context, keys []string, op Op) Result {
	res := Result{RunID: uuid.NewString()}
	if len(keys) == 0 {
		return res
	}

	log := e.logger.With(zap.String("run_id", res.RunID), zap.Int("keys", len(keys)))
	log.Debug("batch started")
	start := time.Now()

	for i, key := range keys {
		if e.limiter != nil {
			// A cancelled wait falls through so op still sees this key.
			_ = e.limiter.Wait(ctx)
		}

		err := e.invoke(ctx, key, op)
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{Key: key, Err: err})
			log.Warn("batch item failed", zap.String("key", key), zap.Error(err))
		} else {
			res.Succeeded++
		}

		if e.progress != nil {
			e.progress(key, err, i+1, len(keys))
		}
	}

	res.Duration = time.Since(start)
	log.Info("batch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// invoke shields the run from a panicking op.
func (e *Executor) invoke(ctx context.Context, key string, op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Key: key, Value: r}
		}
	}()
	return op(ctx, key)
}
