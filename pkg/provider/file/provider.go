// Package file implements the browse gateway over a local directory.
//
// Keys are slash-separated paths relative to the base directory; directories
// play the role of folder prefixes. It is used for offline browsing and as a
// fixture backend in tests.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// Provider is the filesystem gateway rooted at one directory.
type Provider struct {
	baseDir string
}

var _ provider.Gateway = (*Provider)(nil)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

func (p *Provider) Close() error { return nil }

// ListWithDelimiter reads one directory. Only "/" is supported as delimiter.
//
// Entries are sorted by key; the continuation token is the last key returned.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Delimiter != "" && opts.Delimiter != "/" {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, fmt.Errorf("unsupported delimiter %q", opts.Delimiter))
	}

	// A prefix like "a/b" lists directory "a" filtered by names starting with "b".
	dirKey, namePrefix := "", opts.Prefix
	if i := strings.LastIndex(opts.Prefix, "/"); i >= 0 {
		dirKey, namePrefix = opts.Prefix[:i+1], opts.Prefix[i+1:]
	}

	dir, err := p.fullPath(dirKey)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &provider.ListWithDelimiterResult{}, nil
		}
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	type item struct {
		key   string
		isDir bool
		entry fs.DirEntry
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), namePrefix) {
			continue
		}
		key := dirKey + e.Name()
		if e.IsDir() {
			key += "/"
		}
		items = append(items, item{key: key, isDir: e.IsDir(), entry: e})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	start := 0
	if opts.ContinuationToken != "" {
		start = sort.Search(len(items), func(i int) bool { return items[i].key > opts.ContinuationToken })
	}
	end := len(items)
	if opts.MaxKeys > 0 && start+opts.MaxKeys < end {
		end = start + opts.MaxKeys
	}

	res := &provider.ListWithDelimiterResult{}
	for _, it := range items[start:end] {
		if it.isDir {
			res.CommonPrefixes = append(res.CommonPrefixes, it.key)
			continue
		}
		info, err := it.entry.Info()
		if err != nil {
			continue
		}
		res.Objects = append(res.Objects, provider.ObjectSummary{Key: it.key, Size: info.Size(), LastModified: info.ModTime()})
	}
	if end < len(items) {
		res.IsTruncated = true
		res.ContinuationToken = items[end-1].key
	}
	return res, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	full, err := p.fullPath(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotFound}
	}
	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{Key: strings.TrimPrefix(key, "/"), Size: st.Size(), LastModified: st.ModTime()},
		ContentType:   mime.TypeByExtension(filepath.Ext(full)),
	}, nil
}

// PutObject writes through a temp file and renames it into place.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	if strings.HasSuffix(key, "/") {
		return p.wrapError("PutObject", key, provider.ErrInvalidKey)
	}
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".bucketnav-put-*")
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if contentLength >= 0 && n != contentLength {
		return p.wrapError("PutObject", key, fmt.Errorf("short body: wrote %d of %d bytes", n, contentLength))
	}
	if err := tmp.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// DeleteObject removes one file. Missing files are not an error.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// DeletePrefix removes the directory behind prefix and everything in it.
func (p *Provider) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" || !strings.HasSuffix(prefix, "/") {
		return 0, p.wrapError("DeletePrefix", prefix, provider.ErrInvalidKey)
	}
	keys, err := p.collectKeys(prefix)
	if err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, err)
	}
	dir, err := p.fullPath(prefix)
	if err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, err)
	}
	return len(keys), nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	clean := strings.TrimPrefix(filepath.Clean("/"+key), "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", provider.ErrInvalidKey
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

func (p *Provider) collectKeys(prefix string) ([]string, error) {
	root, err := p.fullPath(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var keys []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(keys)
	return keys, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: err}
	switch {
	case os.IsNotExist(err):
		wrapped.Err = provider.ErrNotFound
	case os.IsPermission(err):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
