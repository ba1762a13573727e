// Package admin implements the browse gateway against the admin web
// backend's bucket browser endpoints:
//
//	GET    {endpoint}/browse/{bucket}?prefix=&limit=&continuationToken=
//	HEAD   {endpoint}/browse/{bucket}/{key...}
//	PUT    {endpoint}/browse/{bucket}/{key...}      multipart field "file"
//	DELETE {endpoint}/browse/{bucket}/{key...}[?recursive=true]
//
// The backend lists one delimiter level at a time and usually deletes folders
// server-side, so this gateway never needs flat listing.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/bucketnav/pkg/provider"
)

// DefaultTimeout bounds each request when no client is supplied.
const DefaultTimeout = 60 * time.Second

// Config configures an admin backend gateway.
type Config struct {
	// Endpoint is the API base URL, e.g. http://localhost:3909/api.
	Endpoint string
	Bucket   string

	// Token is sent as a bearer token when set.
	Token string

	// Client overrides the HTTP client.
	Client *http.Client

	MaxKeys int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("admin config: bucket name is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("admin config: endpoint %q must be an absolute URL", c.Endpoint)
	}
	return nil
}

// Provider talks to one bucket through the admin backend.
type Provider struct {
	base    *url.URL
	bucket  string
	token   string
	client  *http.Client
	maxKeys int
}

var _ provider.Gateway = (*Provider)(nil)

// New validates cfg and returns a gateway. It does not contact the backend.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(strings.TrimSuffix(cfg.Endpoint, "/"))

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	return &Provider{base: base, bucket: cfg.Bucket, token: cfg.Token, client: client, maxKeys: maxKeys}, nil
}

func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// listResponse is the backend's listing body.
type listResponse struct {
	Prefix    string   `json:"prefix"`
	Prefixes  []string `json:"prefixes"`
	Objects   []object `json:"objects"`
	NextToken string   `json:"nextToken"`
}

type object struct {
	ObjectKey    string    `json:"objectKey"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	ETag         string    `json:"etag"`
	URL          string    `json:"url"`
}

// ListWithDelimiter lists one level. The backend always groups on "/".
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if opts.Delimiter != "" && opts.Delimiter != "/" {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, 0, fmt.Errorf("unsupported delimiter %q", opts.Delimiter))
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = p.maxKeys
	}
	q := url.Values{}
	q.Set("prefix", opts.Prefix)
	q.Set("limit", strconv.Itoa(maxKeys))
	if opts.ContinuationToken != "" {
		q.Set("continuationToken", opts.ContinuationToken)
	}

	req, err := p.newRequest(ctx, http.MethodGet, p.bucketURL("", q), nil)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, 0, err)
	}
	var body listResponse
	if err := p.do(req, &body); err != nil {
		return nil, p.requestError("ListWithDelimiter", opts.Prefix, err)
	}

	// Object keys come back relative to the listing prefix.
	res := &provider.ListWithDelimiterResult{
		CommonPrefixes:    body.Prefixes,
		ContinuationToken: body.NextToken,
		IsTruncated:       body.NextToken != "",
	}
	for _, o := range body.Objects {
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key:          body.Prefix + o.ObjectKey,
			Size:         o.Size,
			ETag:         strings.Trim(o.ETag, "\""),
			LastModified: o.LastModified,
		})
	}
	return res, nil
}

// Head reads object metadata from the headers of a HEAD request. User
// metadata comes from x-amz-meta-* headers.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, p.wrapError("Head", key, 0, provider.ErrInvalidKey)
	}
	req, err := p.newRequest(ctx, http.MethodHead, p.bucketURL(key, nil), nil)
	if err != nil {
		return nil, p.wrapError("Head", key, 0, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.wrapError("Head", key, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, p.wrapError("Head", key, resp.StatusCode, &statusError{Status: resp.StatusCode})
	}

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:  key,
			ETag: strings.Trim(resp.Header.Get("ETag"), "\""),
		},
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.ContentLength > 0 {
		meta.Size = resp.ContentLength
	}
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		meta.LastModified = t
	}
	for name, values := range resp.Header {
		if k, ok := strings.CutPrefix(strings.ToLower(name), "x-amz-meta-"); ok && len(values) > 0 {
			if meta.Metadata == nil {
				meta.Metadata = map[string]string{}
			}
			meta.Metadata[k] = values[0]
		}
	}
	return meta, nil
}

// PutObject streams body to the backend as a chunked multipart form.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		part, err := mw.CreateFormFile("file", path.Base(key))
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	// The writer goroutine must not outlive the call; body belongs to the caller.
	defer func() {
		_ = pr.Close()
		<-done
	}()

	req, err := p.newRequest(ctx, http.MethodPut, p.bucketURL(key, nil), pr)
	if err != nil {
		return p.wrapError("PutObject", key, 0, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := p.do(req, nil); err != nil {
		return p.requestError("PutObject", key, err)
	}
	return nil
}

// DeleteObject deletes one object.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	req, err := p.newRequest(ctx, http.MethodDelete, p.bucketURL(key, nil), nil)
	if err != nil {
		return p.wrapError("DeleteObject", key, 0, err)
	}
	if err := p.do(req, nil); err != nil {
		return p.requestError("DeleteObject", key, err)
	}
	return nil
}

// deleteResponse is the optional body of a recursive delete.
type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// DeletePrefix asks the backend for a recursive delete. The count is only as
// precise as the backend reports; zero means unknown.
//
// Backends that answer 405 or 501 to a recursive delete are emptied key by
// key with provider.DeleteTree.
func (p *Provider) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" || !strings.HasSuffix(prefix, "/") {
		return 0, p.wrapError("DeletePrefix", prefix, 0, provider.ErrInvalidKey)
	}
	q := url.Values{}
	q.Set("recursive", "true")
	req, err := p.newRequest(ctx, http.MethodDelete, p.bucketURL(prefix, q), nil)
	if err != nil {
		return 0, p.wrapError("DeletePrefix", prefix, 0, err)
	}
	var body deleteResponse
	if err := p.do(req, &body); err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.Status == http.StatusMethodNotAllowed || se.Status == http.StatusNotImplemented) {
			return provider.DeleteTree(ctx, p, prefix)
		}
		return 0, p.requestError("DeletePrefix", prefix, err)
	}
	return body.Deleted, nil
}

func (p *Provider) bucketURL(key string, q url.Values) string {
	u := *p.base
	segs := []string{u.Path, "browse", url.PathEscape(p.bucket)}
	if key != "" {
		parts := strings.Split(key, "/")
		for i := range parts {
			parts[i] = url.PathEscape(parts[i])
		}
		segs = append(segs, strings.Join(parts, "/"))
	}
	u.RawPath = strings.Join(segs, "/")
	u.Path, _ = url.PathUnescape(u.RawPath)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (p *Provider) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	return req, nil
}

// statusError carries a non-2xx response.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		if msg.Message == "" {
			msg.Message = strings.TrimSpace(string(data))
		}
		return &statusError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
