package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/bucketnav/internal/errors"
	"github.com/3leaps/bucketnav/pkg/batch"
	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/match"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/session"
	"github.com/3leaps/bucketnav/pkg/upload"
)

// Opener opens a browse session for a bucket URI such as s3://bucket/prefix/.
type Opener func(ctx context.Context, uri string) (*session.Session, error)

// InvalidURI marks err as a client mistake in a session URI.
func InvalidURI(err error) error {
	return apperrors.BadRequest("invalid uri", err)
}

// SessionsConfig configures the session endpoints.
type SessionsConfig struct {
	ReadOnly       bool
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Sessions serves /api/v1/sessions. Each session is one browser view.
type Sessions struct {
	open      Opener
	readOnly  bool
	maxUpload int64
	logger    *zap.Logger

	mu    sync.Mutex
	items map[string]*session.Session
}

// NewSessions returns an empty session table.
func NewSessions(open Opener, cfg SessionsConfig) *Sessions {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		open:      open,
		readOnly:  cfg.ReadOnly,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
		items:     map[string]*session.Session{},
	}
}

// Routes mounts the session endpoints on r.
func (h *Sessions) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.close)
		r.Get("/listing", h.listing)
		r.Get("/object", h.stat)
		r.Post("/refresh", h.refresh)
		r.Post("/navigate", h.navigate)
		r.Post("/back", h.back)
		r.Post("/forward", h.forward)
		r.Post("/home", h.home)
		r.Post("/selection/toggle", h.toggle)
		r.Post("/selection/all", h.selectAll)
		r.Post("/selection/match", h.selectMatching)
		r.Delete("/selection", h.clearSelection)
		r.Post("/delete", h.deleteSelected)
		r.Post("/upload", h.upload)
	})
}

// Len returns the number of open sessions.
func (h *Sessions) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// CloseAll closes every open session.
func (h *Sessions) CloseAll() error {
	h.mu.Lock()
	items := h.items
	h.items = map[string]*session.Session{}
	h.mu.Unlock()

	var errs []error
	for _, s := range items {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Sessions) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	h.mu.Lock()
	s, ok := h.items[id]
	h.mu.Unlock()
	if !ok {
		respondWithError(w, r, apperrors.New(http.StatusNotFound, apperrors.CodeNotFound, fmt.Sprintf("session %q not found", id)))
		return nil, false
	}
	return s, true
}

func (h *Sessions) writable(w http.ResponseWriter, r *http.Request) bool {
	if h.readOnly {
		respondWithError(w, r, apperrors.New(http.StatusForbidden, apperrors.CodeReadOnly, "server is running in readonly mode"))
		return false
	}
	return true
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.BadRequest("invalid request body", err)
	}
	return nil
}

type createRequest struct {
	URI string `json:"uri"`
}

func (h *Sessions) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.URI == "" {
		respondWithError(w, r, apperrors.BadRequest("uri is required", nil))
		return
	}
	s, err := h.open(r.Context(), req.URI)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	id := s.ID()
	s.Subscribe(func(ev session.Event) {
		h.logger.Debug("session event",
			zap.String("session_id", id),
			zap.String("event", string(ev.Kind)),
			zap.String("prefix", ev.Snapshot.Prefix.String()),
			zap.Int("selected", len(ev.Snapshot.Selected)))
	})

	h.mu.Lock()
	h.items[id] = s
	h.mu.Unlock()
	h.logger.Info("session opened", zap.String("session_id", id), zap.String("uri", req.URI))

	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *Sessions) get(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func (h *Sessions) close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	delete(h.items, s.ID())
	h.mu.Unlock()

	if err := s.Close(); err != nil {
		h.logger.Warn("session close failed", zap.String("session_id", s.ID()), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListingResponse is one page of the current level plus its selection state.
type ListingResponse struct {
	Listing           browse.Listing   `json:"listing"`
	Session           session.Snapshot `json:"session"`
	AllSelected       bool             `json:"all_selected"`
	PartiallySelected bool             `json:"partially_selected"`
}

func listingResponse(s *session.Session, l browse.Listing) ListingResponse {
	sel := s.Selection()
	return ListingResponse{
		Listing:           l,
		Session:           s.Snapshot(),
		AllSelected:       sel.IsAllSelected(l),
		PartiallySelected: sel.IsPartiallySelected(l),
	}
}

func (h *Sessions) listing(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	l, err := s.ListingPage(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(s, l))
}

// ObjectResponse is the metadata of one object.
type ObjectResponse struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (h *Sessions) stat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		respondWithError(w, r, apperrors.BadRequest("key is required", nil))
		return
	}
	meta, err := s.Stat(r.Context(), key)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ObjectResponse{
		Key:          meta.Key,
		Size:         meta.Size,
		LastModified: meta.LastModified,
		ETag:         meta.ETag,
		ContentType:  meta.ContentType,
		Metadata:     meta.Metadata,
	})
}

func (h *Sessions) refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	l, err := s.Refresh(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse(s, l))
}

type navigateRequest struct {
	Prefix *string `json:"prefix"`
	Index  *int    `json:"index"`
}

func (h *Sessions) navigate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	var (
		snap session.Snapshot
		err  error
	)
	switch {
	case req.Prefix != nil && req.Index != nil:
		err = apperrors.BadRequest("prefix and index are mutually exclusive", nil)
	case req.Prefix != nil:
		var p browse.Prefix
		if p, err = browse.ParsePrefix(*req.Prefix); err == nil {
			snap, err = s.Navigate(p)
		}
	case req.Index != nil:
		snap, err = s.NavigateIndex(*req.Index)
	default:
		err = apperrors.BadRequest("prefix or index is required", nil)
	}
	h.writeSnapshot(w, r, snap, err)
}

func (h *Sessions) back(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		snap, err := s.Back()
		h.writeSnapshot(w, r, snap, err)
	}
}

func (h *Sessions) forward(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		snap, err := s.Forward()
		h.writeSnapshot(w, r, snap, err)
	}
}

func (h *Sessions) home(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		snap, err := s.Home()
		h.writeSnapshot(w, r, snap, err)
	}
}

type toggleRequest struct {
	Key string `json:"key"`
}

func (h *Sessions) toggle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Key == "" {
		respondWithError(w, r, apperrors.BadRequest("key is required", nil))
		return
	}
	snap, err := s.Toggle(r.Context(), req.Key)
	h.writeSnapshot(w, r, snap, err)
}

func (h *Sessions) selectAll(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		snap, err := s.SelectAll(r.Context())
		h.writeSnapshot(w, r, snap, err)
	}
}

type matchRequest struct {
	Pattern       string `json:"pattern"`
	IncludeHidden bool   `json:"include_hidden"`
}

// selectMatching adds the keys of the current level that match a glob over
// full keys, e.g. "logs/*.log".
func (h *Sessions) selectMatching(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req matchRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Pattern == "" {
		respondWithError(w, r, apperrors.BadRequest("pattern is required", nil))
		return
	}
	m, err := match.New(match.Config{Includes: []string{req.Pattern}, IncludeHidden: req.IncludeHidden})
	if err != nil {
		respondWithError(w, r, apperrors.BadRequest("invalid pattern", err))
		return
	}
	snap, err := s.SelectMatching(r.Context(), m)
	h.writeSnapshot(w, r, snap, err)
}

func (h *Sessions) clearSelection(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		snap, err := s.ClearSelection()
		h.writeSnapshot(w, r, snap, err)
	}
}

type deleteRequest struct {
	Confirm bool `json:"confirm"`
}

// ItemFailure is one failed key or file of a batch.
type ItemFailure struct {
	Key   string `json:"key"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// DeleteResponse reports a batch delete.
type DeleteResponse struct {
	RunID     string           `json:"run_id"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Failures  []ItemFailure    `json:"failures,omitempty"`
	Session   session.Snapshot `json:"session"`
}

func (h *Sessions) deleteSelected(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok || !h.writable(w, r) {
		return
	}
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if !req.Confirm {
		respondWithError(w, r, apperrors.New(http.StatusBadRequest, apperrors.CodeConfirmRequired, "delete requires \"confirm\": true"))
		return
	}

	res, err := s.DeleteSelected(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{
		RunID:     res.RunID,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Failures:  deleteFailures(res.Failures),
		Session:   s.Snapshot(),
	})
}

func deleteFailures(in []batch.Failure) []ItemFailure {
	if len(in) == 0 {
		return nil
	}
	out := make([]ItemFailure, 0, len(in))
	for _, f := range in {
		out = append(out, ItemFailure{Key: f.Key, Code: provider.Code(f.Err), Error: f.Err.Error()})
	}
	return out
}

// UploadItem reports one uploaded file.
type UploadItem struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Size  int64  `json:"size"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// UploadResponse reports a batch upload.
type UploadResponse struct {
	RunID     string           `json:"run_id"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Files     []UploadItem     `json:"files"`
	Session   session.Snapshot `json:"session"`
}

// uploadMemory is how much of a multipart form is held in memory before
// spilling to temp files.
const uploadMemory = 32 << 20

// upload accepts a multipart form with one "file" part per file.
func (h *Sessions) upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok || !h.writable(w, r) {
		return
	}
	if h.maxUpload > 0 {
		if r.ContentLength > h.maxUpload {
			respondWithError(w, r, uploadTooLarge(h.maxUpload))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondWithError(w, r, uploadTooLarge(tooBig.Limit))
			return
		}
		respondWithError(w, r, apperrors.BadRequest("invalid multipart form", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, formFile(fh))
	}

	res, err := s.Upload(r.Context(), files, nil)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	items := make([]UploadItem, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		item := UploadItem{Name: o.Name, Key: o.Key, Size: o.Size}
		if o.Err != nil {
			item.Code = provider.Code(o.Err)
			item.Error = o.Err.Error()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		RunID:     res.RunID,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Files:     items,
		Session:   s.Snapshot(),
	})
}

func uploadTooLarge(limit int64) error {
	return apperrors.New(http.StatusRequestEntityTooLarge, apperrors.CodeBatchTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
}

func formFile(fh *multipart.FileHeader) upload.File {
	return upload.File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func (h *Sessions) writeSnapshot(w http.ResponseWriter, r *http.Request, snap session.Snapshot, err error) {
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
