// Package upload puts a bounded batch of files under a prefix.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/provider"
)

// MaxBatchFiles is the largest batch Submit accepts.
const MaxBatchFiles = 20

// File is one upload candidate.
type File struct {
	// Name is the final key segment. It must not contain "/".
	Name string

	// Size is the body length, or -1 when unknown.
	Size int64

	// Open returns a fresh body. It is called once per upload.
	Open func() (io.ReadCloser, error)
}

// LocalFile describes a file on disk, named after its base name.
func LocalFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// BytesFile wraps an in-memory body.
func BytesFile(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Outcome is the result of one file's put.
type Outcome struct {
	Name string
	Key  string
	Size int64
	Err  error
}

// Result collects every outcome of a batch in input order.
type Result struct {
	RunID     string
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Total returns the number of files attempted.
func (r Result) Total() int {
	return r.Succeeded + r.Failed
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithParallel caps in-flight puts. Zero or negative means the whole batch at
// once.
func WithParallel(n int) Option {
	return func(c *Coordinator) {
		c.parallel = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// Coordinator dispatches uploads concurrently.
type Coordinator struct {
	putter   provider.ObjectPutter
	parallel int
	logger   *zap.Logger
}

// New returns a Coordinator writing through p.
func New(p provider.ObjectPutter, opts ...Option) *Coordinator {
	c := &Coordinator{putter: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit uploads files to prefix + name.
//
// A batch over MaxBatchFiles is rejected whole and nothing is dispatched.
// Otherwise every file gets exactly one put; a failed put never cancels its
// siblings. onResult, if non-nil, is called once per file as puts complete,
// never concurrently. Submit returns when every put has finished.
func (c *Coordinator) Submit(ctx context.Context, prefix browse.Prefix, files []File, onResult func(Outcome)) (Result, error) {
	if len(files) > MaxBatchFiles {
		return Result{}, &BatchTooLargeError{Count: len(files), Max: MaxBatchFiles}
	}

	res := Result{RunID: uuid.NewString(), Outcomes: make([]Outcome, len(files))}
	if len(files) == 0 {
		return res, nil
	}

	log := c.logger.With(zap.String("run_id", res.RunID), zap.String("prefix", prefix.String()))
	start := time.Now()

	// Plain Group: a failure must not cancel the others.
	var g errgroup.Group
	if c.parallel > 0 {
		g.SetLimit(c.parallel)
	}

	var mu sync.Mutex
	for i, f := range files {
		g.Go(func() error {
			out := c.put(ctx, prefix, f)
			if out.Err != nil {
				log.Warn("upload failed", zap.String("key", out.Key), zap.Error(out.Err))
			}

			mu.Lock()
			defer mu.Unlock()
			res.Outcomes[i] = out
			if onResult != nil {
				onResult(out)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range res.Outcomes {
		if out.Err != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	res.Duration = time.Since(start)
	log.Info("upload batch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// put uploads one file. A panic in Open or the putter fails only this file.
func (c *Coordinator) put(ctx context.Context, prefix browse.Prefix, f File) (out Outcome) {
	out = Outcome{Name: f.Name, Key: prefix.String() + f.Name, Size: f.Size}
	defer func() {
		if r := recover(); r != nil {
			out.Err = &PanicError{Key: out.Key, Value: r}
		}
	}()
	if f.Name == "" || strings.Contains(f.Name, browse.Delimiter) {
		out.Err = fmt.Errorf("%w: file name %q", provider.ErrInvalidKey, f.Name)
		return out
	}
	if f.Open == nil {
		out.Err = fmt.Errorf("file %q has no body", f.Name)
		return out
	}

	body, err := f.Open()
	if err != nil {
		out.Err = fmt.Errorf("open %q: %w", f.Name, err)
		return out
	}
	defer func() { _ = body.Close() }()

	out.Err = c.putter.PutObject(ctx, out.Key, body, f.Size)
	return out
}
