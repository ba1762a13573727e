package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/provider"
)

// Writer emits records. Implementations are safe for concurrent use.
type Writer interface {
	WriteEntry(ctx context.Context, e *EntryRecord) error
	WriteItem(ctx context.Context, it *ItemRecord) error
	WriteSummary(ctx context.Context, s *SummaryRecord) error
	WriteError(ctx context.Context, e *ErrorRecord) error
	Close() error
}

// Formats accepted by New.
const (
	FormatTable = "table"
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

// New returns a writer for format.
func New(format string, w io.Writer, runID, bucket string) (Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return NewTableWriter(w), nil
	case FormatJSONL, "json":
		return NewJSONLWriter(w, runID, bucket), nil
	case FormatYAML, "yml":
		return NewYAMLWriter(w, runID, bucket), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, jsonl or yaml)", format)
	}
}

// ObjectEntry converts the metadata of one object into an entry.
func ObjectEntry(meta *provider.ObjectMeta) *EntryRecord {
	rec := &EntryRecord{
		Kind:        KindObject,
		Key:         meta.Key,
		Name:        path.Base(meta.Key),
		Size:        meta.Size,
		ETag:        meta.ETag,
		ContentType: meta.ContentType,
		Metadata:    meta.Metadata,
	}
	if mod := meta.LastModified; !mod.IsZero() {
		rec.LastModified = &mod
	}
	return rec
}

// WriteListing emits every entry of l followed by a summary.
func WriteListing(ctx context.Context, w Writer, l browse.Listing) error {
	for _, f := range l.Folders {
		if err := w.WriteEntry(ctx, &EntryRecord{Kind: KindFolder, Key: f.String(), Name: f.Name() + browse.Delimiter}); err != nil {
			return err
		}
	}
	for _, o := range l.Objects {
		mod := o.LastModified
		rec := &EntryRecord{
			Kind: KindObject,
			Key:  l.FullKey(o),
			Name: o.RelativeKey,
			Size: o.Size,
			ETag: o.ETag,
		}
		if !mod.IsZero() {
			rec.LastModified = &mod
		}
		if err := w.WriteEntry(ctx, rec); err != nil {
			return err
		}
	}
	return w.WriteSummary(ctx, &SummaryRecord{
		Op:        "list",
		Prefix:    l.Prefix.String(),
		Folders:   len(l.Folders),
		Objects:   len(l.Objects),
		Bytes:     l.TotalSize(),
		NextToken: l.NextToken,
	})
}

// envelopeWriter shares the envelope and locking between JSONL and YAML.
type envelopeWriter struct {
	runID  string
	bucket string
	encode func(Record) error

	mu     sync.Mutex
	closed bool
}

func (ew *envelopeWriter) WriteEntry(ctx context.Context, e *EntryRecord) error {
	return ew.write(ctx, TypeEntry, e)
}

func (ew *envelopeWriter) WriteItem(ctx context.Context, it *ItemRecord) error {
	return ew.write(ctx, TypeItem, it)
}

func (ew *envelopeWriter) WriteSummary(ctx context.Context, s *SummaryRecord) error {
	return ew.write(ctx, TypeSummary, s)
}

func (ew *envelopeWriter) WriteError(ctx context.Context, e *ErrorRecord) error {
	return ew.write(ctx, TypeError, e)
}

// Close marks the writer closed. The underlying io.Writer is left open.
func (ew *envelopeWriter) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	ew.closed = true
	return nil
}

func (ew *envelopeWriter) write(ctx context.Context, typ string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.closed {
		return ErrWriterClosed
	}
	return ew.encode(Record{
		Type:   typ,
		TS:     time.Now().UTC(),
		RunID:  ew.runID,
		Bucket: ew.bucket,
		Data:   data,
	})
}

// JSONLWriter writes one JSON record per line.
type JSONLWriter struct {
	envelopeWriter
}

// NewJSONLWriter returns a JSONL writer on w.
func NewJSONLWriter(w io.Writer, runID, bucket string) *JSONLWriter {
	jw := &JSONLWriter{envelopeWriter{runID: runID, bucket: bucket}}
	jw.encode = func(r Record) error {
		line, err := json.Marshal(r)
		if err != nil {
			return &WriteError{Op: "marshal", Err: err}
		}
		if err := writeAll(w, append(line, '\n')); err != nil {
			return &WriteError{Op: "write", Err: err}
		}
		return nil
	}
	return jw
}

// YAMLWriter writes one YAML document per record.
type YAMLWriter struct {
	envelopeWriter
	enc *yaml.Encoder
}

// NewYAMLWriter returns a YAML writer on w.
func NewYAMLWriter(w io.Writer, runID, bucket string) *YAMLWriter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	yw := &YAMLWriter{envelopeWriter: envelopeWriter{runID: runID, bucket: bucket}, enc: enc}
	yw.encode = func(r Record) error {
		if err := enc.Encode(r); err != nil {
			return &WriteError{Op: "encode", Err: err}
		}
		return nil
	}
	return yw
}

// Close flushes the encoder and marks the writer closed.
func (yw *YAMLWriter) Close() error {
	yw.mu.Lock()
	defer yw.mu.Unlock()
	if yw.closed {
		return nil
	}
	yw.closed = true
	if err := yw.enc.Close(); err != nil {
		return &WriteError{Op: "flush", Err: err}
	}
	return nil
}

// TableWriter renders aligned columns for terminals. Summaries and errors
// are printed as plain lines after the table.
type TableWriter struct {
	mu     sync.Mutex
	w      io.Writer
	tw     *tabwriter.Writer
	closed bool
}

// NewTableWriter returns a table writer on w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{w: w, tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
}

func (t *TableWriter) WriteEntry(ctx context.Context, e *EntryRecord) error {
	if e.Kind == KindFolder {
		return t.row(ctx, "DIR", "-", "-", e.Key)
	}
	mod := "-"
	if e.LastModified != nil {
		mod = e.LastModified.UTC().Format(time.RFC3339)
	}
	if e.ContentType != "" {
		return t.row(ctx, "OBJ", FormatSize(e.Size), mod, e.Key, e.ContentType)
	}
	return t.row(ctx, "OBJ", FormatSize(e.Size), mod, e.Key)
}

func (t *TableWriter) WriteItem(ctx context.Context, it *ItemRecord) error {
	status := "ok"
	if !it.OK {
		status = "FAILED: " + it.Error
	}
	return t.row(ctx, strings.ToUpper(it.Op), it.Key, status)
}

func (t *TableWriter) WriteSummary(ctx context.Context, s *SummaryRecord) error {
	var line string
	switch s.Op {
	case "list":
		line = fmt.Sprintf("%d folders, %d objects, %s", s.Folders, s.Objects, FormatSize(s.Bytes))
		if s.NextToken != "" {
			line += " (more available)"
		}
	default:
		line = fmt.Sprintf("%s: %d succeeded, %d failed", s.Op, s.Succeeded, s.Failed)
		if s.DurationHuman != "" {
			line += " in " + s.DurationHuman
		}
	}
	return t.line(ctx, line)
}

func (t *TableWriter) WriteError(ctx context.Context, e *ErrorRecord) error {
	subject := e.Key
	if subject == "" {
		subject = e.Prefix
	}
	return t.line(ctx, fmt.Sprintf("error %s %s: %s", e.Code, subject, e.Message))
}

// Close flushes pending rows.
func (t *TableWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.tw.Flush()
}

func (t *TableWriter) row(ctx context.Context, cols ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrWriterClosed
	}
	if _, err := fmt.Fprintln(t.tw, strings.Join(cols, "\t")); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func (t *TableWriter) line(ctx context.Context, s string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrWriterClosed
	}
	if err := t.tw.Flush(); err != nil {
		return &WriteError{Op: "flush", Err: err}
	}
	if _, err := fmt.Fprintln(t.w, s); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// FormatSize renders bytes with binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// writeAll loops over short writes so a JSONL line is never truncated.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = (*YAMLWriter)(nil)
	_ Writer = (*TableWriter)(nil)
)
