// Package session is the view model shared by the terminal browser and the
// HTTP API.
//
// A Session owns one bucket's browse state (history and selection), reads
// listings through a cache, and runs batch deletes and uploads against the
// gateway. In-memory transitions are serialized by a mutex; network calls run
// without it. A view generation counter guards against stale updates: a
// mutation that completes after the view navigated away or closed still
// invalidates the cache but leaves selection and observers alone.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/pkg/batch"
	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/listcache"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/upload"
)

// DefaultPageSize matches the listing limit of the admin backend.
const DefaultPageSize = 1000

// Option configures a Session.
type Option func(*Session)

// WithInitialPrefix seeds history from a deep link.
func WithInitialPrefix(p browse.Prefix) Option {
	return func(s *Session) { s.state = browse.NewState(p) }
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithCache shares a listing cache between sessions.
func WithCache(c *listcache.Cache) Option {
	return func(s *Session) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithExecutor sets the batch executor used by DeleteSelected.
func WithExecutor(e *batch.Executor) Option {
	return func(s *Session) {
		if e != nil {
			s.executor = e
		}
	}
}

// WithUploader sets the upload coordinator.
func WithUploader(u *upload.Coordinator) Option {
	return func(s *Session) {
		if u != nil {
			s.uploader = u
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is safe for concurrent use.
type Session struct {
	id       string
	bucket   string
	gateway  provider.Gateway
	pageSize int
	cache    *listcache.Cache
	executor *batch.Executor
	uploader *upload.Coordinator
	logger   *zap.Logger

	mu        sync.Mutex
	state     browse.State
	listing   browse.Listing
	hasList   bool
	gen       uint64
	closed    bool
	observers map[int]Observer
	nextObs   int
}

// New opens a session on bucket. The session owns gw and closes it on Close.
func New(gw provider.Gateway, bucket string, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		bucket:    bucket,
		gateway:   gw,
		pageSize:  DefaultPageSize,
		logger:    zap.NewNop(),
		observers: map[int]Observer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = listcache.New(listcache.DefaultTTL, listcache.WithLogger(s.logger))
	}
	if s.executor == nil {
		s.executor = batch.New(batch.WithLogger(s.logger))
	}
	if s.uploader == nil {
		s.uploader = upload.New(gw, upload.WithLogger(s.logger))
	}
	s.logger = s.logger.With(zap.String("session_id", s.id), zap.String("bucket", bucket))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Bucket returns the browsed bucket.
func (s *Session) Bucket() string { return s.bucket }

// Subscribe registers fn and returns a function that removes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers, id)
		})
	}
}

// Snapshot returns the current view state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Current returns the displayed prefix.
func (s *Session) Current() browse.Prefix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Current()
}

// Selection returns the current selection.
func (s *Session) Selection() browse.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Selection
}

// Navigate moves to p and clears the selection.
func (s *Session) Navigate(p browse.Prefix) (Snapshot, error) {
	return s.transition(func(st browse.State) (browse.State, error) {
		return st.Navigate(p), nil
	})
}

// NavigateIndex jumps to breadcrumb i and clears the selection.
func (s *Session) NavigateIndex(i int) (Snapshot, error) {
	return s.transition(func(st browse.State) (browse.State, error) {
		return st.NavigateIndex(i)
	})
}

// Back steps back one history entry.
func (s *Session) Back() (Snapshot, error) {
	return s.transition(func(st browse.State) (browse.State, error) {
		return st.Back(), nil
	})
}

// Forward steps forward one history entry.
func (s *Session) Forward() (Snapshot, error) {
	return s.transition(func(st browse.State) (browse.State, error) {
		return st.Forward(), nil
	})
}

// Home returns to the bucket root.
func (s *Session) Home() (Snapshot, error) {
	return s.transition(func(st browse.State) (browse.State, error) {
		return st.Home(), nil
	})
}

func (s *Session) transition(fn func(browse.State) (browse.State, error)) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	next, err := fn(s.state)
	if err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.state = next
	s.gen++
	s.hasList = false
	s.listing = browse.Listing{}
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	s.logger.Debug("navigated", zap.String("prefix", snap.Prefix.String()), zap.Int("pos", snap.Pos))
	notify(obs, Event{Kind: EventNavigated, Snapshot: snap})
	return snap, nil
}

// Listing returns the first page of the current prefix.
func (s *Session) Listing(ctx context.Context) (browse.Listing, error) {
	return s.ListingPage(ctx, "")
}

// ListingPage returns the page of the current prefix starting at token.
//
// On failure it returns a *FetchError and leaves history and selection
// untouched. A page that arrives after the view moved on is returned to the
// caller but not adopted as the displayed listing.
func (s *Session) ListingPage(ctx context.Context, token string) (browse.Listing, error) {
	prefix, gen, err := s.view()
	if err != nil {
		return browse.Listing{}, err
	}
	l, err := s.fetch(ctx, prefix, token)
	if err != nil {
		return browse.Listing{}, err
	}
	s.adopt(l, gen)
	return l, nil
}

// ListingAll fetches up to maxPages pages of the current prefix (0 means no
// limit) and adopts them as one listing. If pages remain, the result has
// Truncated set and NextToken names the first page not fetched.
func (s *Session) ListingAll(ctx context.Context, maxPages int) (browse.Listing, error) {
	prefix, gen, err := s.view()
	if err != nil {
		return browse.Listing{}, err
	}

	merged := browse.Listing{Prefix: prefix}
	var token string
	for page := 0; ; page++ {
		if maxPages > 0 && page == maxPages {
			merged.NextToken, merged.Truncated = token, true
			break
		}
		l, err := s.fetch(ctx, prefix, token)
		if err != nil {
			return browse.Listing{}, err
		}
		merged.Folders = append(merged.Folders, l.Folders...)
		merged.Objects = append(merged.Objects, l.Objects...)
		if token = l.NextToken; token == "" {
			break
		}
	}
	s.adopt(merged, gen)
	return merged, nil
}

func (s *Session) view() (browse.Prefix, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browse.Root, 0, ErrClosed
	}
	return s.state.Current(), s.gen, nil
}

func (s *Session) fetch(ctx context.Context, prefix browse.Prefix, token string) (browse.Listing, error) {
	key := listcache.Key{Bucket: s.bucket, Prefix: prefix, Token: token}
	l, err := s.cache.Get(ctx, key, func(ctx context.Context) (browse.Listing, error) {
		return provider.ListLevel(ctx, s.gateway, prefix, provider.LevelOptions{
			ContinuationToken: token,
			MaxKeys:           s.pageSize,
		})
	})
	if err != nil {
		s.logger.Warn("listing failed", zap.String("prefix", prefix.String()), zap.Error(err))
		return browse.Listing{}, &FetchError{Bucket: s.bucket, Prefix: prefix, Err: err}
	}
	return l, nil
}

// adopt makes l the displayed listing unless the view moved on since gen.
func (s *Session) adopt(l browse.Listing, gen uint64) {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.listing = l
	s.hasList = true
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, Event{Kind: EventListingLoaded, Snapshot: snap})
}

// Refresh drops the cached pages of the current prefix and refetches.
func (s *Session) Refresh(ctx context.Context) (browse.Listing, error) {
	s.cache.Invalidate(s.bucket, s.Current())
	return s.Listing(ctx)
}

// Stat returns the metadata of one object. Folder keys have no metadata and
// fail with provider.ErrInvalidKey.
func (s *Session) Stat(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if key == "" || browse.IsFolderKey(key) {
		return nil, &provider.ProviderError{Op: "Head", Bucket: s.bucket, Key: key, Err: provider.ErrInvalidKey}
	}
	return s.gateway.Head(ctx, key)
}

// Toggle flips the selection of key, loading the listing first if needed.
//
// Only entries of the displayed listing can be selected; anything else fails
// with ErrNotInListing. A selected key can always be deselected.
func (s *Session) Toggle(ctx context.Context, key string) (Snapshot, error) {
	if err := s.ensureListing(ctx); err != nil {
		return s.Snapshot(), err
	}
	return s.selectWith(func(sel browse.Selection, l browse.Listing) (browse.Selection, error) {
		if !sel.Has(key) && !l.Has(key) {
			return sel, fmt.Errorf("%w: %q is not an entry of %q", ErrNotInListing, key, l.Prefix)
		}
		return sel.Toggle(key), nil
	})
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() (Snapshot, error) {
	return s.selectWith(func(sel browse.Selection, _ browse.Listing) (browse.Selection, error) {
		return sel.Clear(), nil
	})
}

// SelectAll selects exactly the keys of the displayed listing, loading it
// first if needed.
func (s *Session) SelectAll(ctx context.Context) (Snapshot, error) {
	if err := s.ensureListing(ctx); err != nil {
		return s.Snapshot(), err
	}
	return s.selectWith(func(sel browse.Selection, l browse.Listing) (browse.Selection, error) {
		return sel.SelectAll(l), nil
	})
}

// SelectMatching adds the displayed keys accepted by m.
func (s *Session) SelectMatching(ctx context.Context, m browse.KeyMatcher) (Snapshot, error) {
	if err := s.ensureListing(ctx); err != nil {
		return s.Snapshot(), err
	}
	return s.selectWith(func(sel browse.Selection, l browse.Listing) (browse.Selection, error) {
		return sel.SelectMatching(l, m), nil
	})
}

func (s *Session) ensureListing(ctx context.Context) error {
	s.mu.Lock()
	has := s.hasList
	s.mu.Unlock()
	if has {
		return nil
	}
	_, err := s.Listing(ctx)
	return err
}

func (s *Session) selectWith(fn func(browse.Selection, browse.Listing) (browse.Selection, error)) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	sel, err := fn(s.state.Selection, s.listing)
	if err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.state = s.state.WithSelection(sel)
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, Event{Kind: EventSelectionChanged, Snapshot: snap})
	return snap, nil
}

// DeleteSelected deletes every selected key, one at a time.
//
// Folder keys are deleted recursively. The run never stops on a failure.
// Afterwards every cached listing of the bucket is invalidated once and, if
// the view is still the one that started the run, the selection is cleared.
// An empty selection is a no-op.
func (s *Session) DeleteSelected(ctx context.Context) (batch.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return batch.Result{}, ErrClosed
	}
	keys := s.state.Selection.Keys()
	gen := s.gen
	s.mu.Unlock()

	if len(keys) == 0 {
		return batch.Result{}, nil
	}

	res := s.executor.Run(ctx, keys, batch.DeleteOp(s.gateway))
	s.afterMutation(gen, true)
	return res, nil
}

// Upload puts files under the current prefix.
//
// A batch over upload.MaxBatchFiles fails with upload.ErrBatchTooLarge and
// dispatches nothing. Otherwise the bucket's cached listings are invalidated
// once after every put has finished.
func (s *Session) Upload(ctx context.Context, files []upload.File, onResult func(upload.Outcome)) (upload.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return upload.Result{}, ErrClosed
	}
	prefix := s.state.Current()
	gen := s.gen
	s.mu.Unlock()

	res, err := s.uploader.Submit(ctx, prefix, files, onResult)
	if err != nil {
		return res, err
	}
	if res.Total() > 0 {
		s.afterMutation(gen, false)
	}
	return res, nil
}

// afterMutation invalidates every cached listing of the bucket, since a
// removed or added subtree also changes the folders of its ancestors, and,
// unless the view has moved on, resets it.
func (s *Session) afterMutation(gen uint64, clearSelection bool) {
	s.cache.Invalidate(s.bucket, browse.Root)

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("view moved on during mutation, skipping view update")
		return
	}
	if clearSelection {
		s.state = s.state.WithSelection(browse.Selection{})
	}
	s.hasList = false
	s.listing = browse.Listing{}
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, Event{Kind: EventMutated, Snapshot: snap})
}

// Close ends the session and closes its gateway. In-flight mutations finish
// but no longer touch the view.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	s.observers = map[int]Observer{}
	s.mu.Unlock()

	if s.gateway == nil {
		return nil
	}
	if err := s.gateway.Close(); err != nil {
		return fmt.Errorf("close gateway: %w", err)
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	h := s.state.History
	return Snapshot{
		ID:         s.id,
		Bucket:     s.bucket,
		Prefix:     h.Current(),
		Pos:        h.Pos(),
		History:    h.Entries(),
		Selected:   s.state.Selection.Keys(),
		CanBack:    h.CanBack(),
		CanForward: h.CanForward(),
		Generation: s.gen,
	}
}

func (s *Session) observersLocked() []Observer {
	out := make([]Observer, 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if fn, ok := s.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(obs []Observer, ev Event) {
	for _, fn := range obs {
		fn(ev)
	}
}
