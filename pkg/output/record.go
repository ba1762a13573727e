// Package output renders browse results as JSONL, YAML or a text table.
//
// JSONL and YAML emit one typed envelope per record so a stream can be
// parsed line by line (or document by document).
package output

import (
	"errors"
	"time"
)

// Record types. The pattern is bucketnav.<type>.v<version>.
const (
	TypeEntry   = "bucketnav.entry.v1"
	TypeItem    = "bucketnav.item.v1"
	TypeSummary = "bucketnav.summary.v1"
	TypeError   = "bucketnav.error.v1"
)

// Record is the envelope for every structured line.
type Record struct {
	Type   string    `json:"type" yaml:"type"`
	TS     time.Time `json:"ts" yaml:"ts"`
	RunID  string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Bucket string    `json:"bucket" yaml:"bucket"`
	Data   any       `json:"data" yaml:"data"`
}

// Entry kinds.
const (
	KindFolder = "folder"
	KindObject = "object"
)

// EntryRecord is one row of a listing.
type EntryRecord struct {
	Kind         string     `json:"kind" yaml:"kind"`
	Key          string     `json:"key" yaml:"key"`
	Name         string     `json:"name" yaml:"name"`
	Size         int64      `json:"size,omitempty" yaml:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	ETag         string     `json:"etag,omitempty" yaml:"etag,omitempty"`

	// Set only for single-object lookups.
	ContentType string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Item operations.
const (
	OpDelete = "delete"
	OpPut    = "put"
)

// ItemRecord is the outcome of one delete or put.
type ItemRecord struct {
	Op    string `json:"op" yaml:"op"`
	Key   string `json:"key" yaml:"key"`
	OK    bool   `json:"ok" yaml:"ok"`
	Code  string `json:"code,omitempty" yaml:"code,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SummaryRecord closes a listing or a batch.
type SummaryRecord struct {
	Op            string        `json:"op" yaml:"op"`
	Prefix        string        `json:"prefix" yaml:"prefix"`
	Folders       int           `json:"folders,omitempty" yaml:"folders,omitempty"`
	Objects       int           `json:"objects,omitempty" yaml:"objects,omitempty"`
	Bytes         int64         `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Succeeded     int           `json:"succeeded,omitempty" yaml:"succeeded,omitempty"`
	Failed        int           `json:"failed,omitempty" yaml:"failed,omitempty"`
	NextToken     string        `json:"next_token,omitempty" yaml:"next_token,omitempty"`
	Duration      time.Duration `json:"duration_ns,omitempty" yaml:"duration_ns,omitempty"`
	DurationHuman string        `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ErrorRecord reports a failure that did not stop the command.
type ErrorRecord struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps encoding and I/O failures.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
