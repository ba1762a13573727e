// Package providertest provides an in-memory gateway for tests.
package providertest

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// ErrInjected is the error returned for keys registered with Fail.
var ErrInjected = errors.New("injected failure")

// Call records one mutating call in arrival order.
type Call struct {
	Op  string
	Key string
}

// Memory is a bucket held in a map. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	mtime   time.Time
	fail    map[string]error
	calls   []Call
	lists   int

	// ListErr, when set, is returned by every listing call.
	ListErr error

	// OnPut runs inside PutObject before the object is stored.
	OnPut func(key string)
}

var _ provider.Gateway = (*Memory)(nil)

// New returns a bucket holding keys with empty bodies.
func New(keys ...string) *Memory {
	m := &Memory{
		objects: make(map[string][]byte, len(keys)),
		mtime:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		fail:    map[string]error{},
	}
	for _, k := range keys {
		m.objects[k] = nil
	}
	return m
}

// Fail makes every mutating call for key return err (ErrInjected if nil).
func (m *Memory) Fail(key string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[key] = err
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Body returns the stored body for key.
func (m *Memory) Body(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

// Calls returns the mutating calls seen so far.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// ListCalls returns how many listing calls were served.
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

// ListWithDelimiter lists one level in key order. With MaxKeys set, pages
// hold at most MaxKeys entries and the continuation token is the last entry
// returned.
func (m *Memory) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	seen := map[string]bool{}
	res := &provider.ListWithDelimiterResult{}
	n := 0
	for _, k := range m.sortedLocked() {
		if !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		entry, isPrefix := k, false
		rest := strings.TrimPrefix(k, opts.Prefix)
		if opts.Delimiter != "" {
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				entry, isPrefix = opts.Prefix+rest[:i+len(opts.Delimiter)], true
			}
		}
		if seen[entry] || (opts.ContinuationToken != "" && entry <= opts.ContinuationToken) {
			continue
		}
		if opts.MaxKeys > 0 && n == opts.MaxKeys {
			res.IsTruncated = true
			break
		}
		seen[entry] = true
		n++
		res.ContinuationToken = entry
		if isPrefix {
			res.CommonPrefixes = append(res.CommonPrefixes, entry)
		} else {
			res.Objects = append(res.Objects, m.summaryLocked(k))
		}
	}
	if !res.IsTruncated {
		res.ContinuationToken = ""
	}
	return res, nil
}

func (m *Memory) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return nil, &provider.ProviderError{Op: "Head", Provider: "memory", Key: key, Err: provider.ErrNotFound}
	}
	return &provider.ObjectMeta{
		ObjectSummary: m.summaryLocked(key),
		ContentType:   mime.TypeByExtension(path.Ext(key)),
	}, nil
}

func (m *Memory) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	if m.OnPut != nil {
		m.OnPut(key)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "put", Key: key})
	if err := m.fail[key]; err != nil {
		return &provider.ProviderError{Op: "PutObject", Provider: "memory", Key: key, Err: err}
	}
	m.objects[key] = data
	return nil
}

func (m *Memory) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "delete", Key: key})
	if err := m.fail[key]; err != nil {
		return &provider.ProviderError{Op: "DeleteObject", Provider: "memory", Key: key, Err: err}
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "delete-prefix", Key: prefix})
	if err := m.fail[prefix]; err != nil {
		return 0, &provider.ProviderError{Op: "DeletePrefix", Provider: "memory", Key: prefix, Err: err}
	}
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) sortedLocked() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) summaryLocked(key string) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          key,
		Size:         int64(len(m.objects[key])),
		LastModified: m.mtime,
	}
}
