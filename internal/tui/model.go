// Package tui is the interactive bucket browser.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/pkg/batch"
	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/match"
	"github.com/3leaps/bucketnav/pkg/output"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/session"
)

type mode int

const (
	modeBrowse mode = iota
	modeMatch
	modeConfirm
)

// Options configures the browser.
type Options struct {
	// ReadOnly disables delete.
	ReadOnly bool
	Logger   *zap.Logger
}

// entry is one row: the parent link, a folder or an object.
type entry struct {
	key    string
	name   string
	folder bool
	parent bool
	object browse.Object
}

type listingMsg struct {
	prefix  browse.Prefix
	listing browse.Listing
	err     error
}

type snapshotMsg struct {
	snap session.Snapshot
	err  error
}

type deletedMsg struct {
	res batch.Result
	err error
}

type statMsg struct {
	meta *provider.ObjectMeta
	err  error
}

// Model is the bubbletea model over one session.
type Model struct {
	ctx      context.Context
	sess     *session.Session
	readOnly bool
	logger   *zap.Logger

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	snap    session.Snapshot
	listing browse.Listing
	entries []entry
	cursor  int
	offset  int
	width   int
	height  int

	mode    mode
	loading bool
	status  string
	err     error
}

// New returns a browser positioned at the session's current prefix.
func New(ctx context.Context, sess *session.Session, opts Options) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))

	in := textinput.New()
	in.Prompt = "glob: "
	in.Placeholder = "*.log"

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		ctx:      ctx,
		sess:     sess,
		readOnly: opts.ReadOnly,
		logger:   logger,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
		input:    in,
		snap:     sess.Snapshot(),
		width:    80,
		height:   24,
		loading:  true,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(""), m.spinner.Tick)
}

func (m *Model) load(token string) tea.Cmd {
	sess, ctx := m.sess, m.ctx
	prefix := sess.Current()
	return func() tea.Msg {
		l, err := sess.ListingPage(ctx, token)
		return listingMsg{prefix: prefix, listing: l, err: err}
	}
}

func (m *Model) refresh() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	prefix := sess.Current()
	return func() tea.Msg {
		l, err := sess.Refresh(ctx)
		return listingMsg{prefix: prefix, listing: l, err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeConfirm:
			return m.handleConfirm(msg)
		case modeMatch:
			return m.handleMatchInput(msg)
		}
		return m.handleBrowse(msg)

	case listingMsg:
		// A listing for a prefix the view has left is dropped.
		if msg.prefix != m.sess.Current() {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.setListing(msg.listing)
		m.snap = m.sess.Snapshot()
		return m, nil

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.snap = msg.snap
		return m, nil

	case deletedMsg:
		m.loading = true
		m.snap = m.sess.Snapshot()
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = fmt.Sprintf("Deleted %d, failed %d", msg.res.Succeeded, msg.res.Failed)
			for _, f := range msg.res.Failures {
				m.logger.Warn("delete failed", zap.String("key", f.Key), zap.Error(f.Err))
			}
		}
		return m, m.load("")

	case statMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = describeObject(msg.meta)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Open):
		e, ok := m.current()
		switch {
		case !ok:
		case e.parent:
			return m.navigate(m.sess.Navigate(m.snap.Prefix.Parent()))
		case e.folder:
			return m.navigate(m.sess.Navigate(browse.Prefix(e.key)))
		default:
			sess, ctx, key := m.sess, m.ctx, e.key
			return m, func() tea.Msg {
				meta, err := sess.Stat(ctx, key)
				return statMsg{meta: meta, err: err}
			}
		}
	case key.Matches(msg, m.keys.Parent):
		if !m.snap.Prefix.IsRoot() {
			return m.navigate(m.sess.Navigate(m.snap.Prefix.Parent()))
		}
	case key.Matches(msg, m.keys.Back):
		return m.navigate(m.sess.Back())
	case key.Matches(msg, m.keys.Forward):
		return m.navigate(m.sess.Forward())
	case key.Matches(msg, m.keys.Home):
		return m.navigate(m.sess.Home())
	case key.Matches(msg, m.keys.Toggle):
		if e, ok := m.current(); ok && !e.parent {
			m.applySnapshot(m.sess.Toggle(m.ctx, e.key))
			m.moveCursor(1)
		}
	case key.Matches(msg, m.keys.SelectAll):
		return m, m.async(func(ctx context.Context) (session.Snapshot, error) {
			return m.sess.SelectAll(ctx)
		})
	case key.Matches(msg, m.keys.Clear):
		m.applySnapshot(m.sess.ClearSelection())
	case key.Matches(msg, m.keys.Match):
		m.mode = modeMatch
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Delete):
		switch {
		case m.readOnly:
			m.status = "readonly mode: delete disabled"
		case len(m.snap.Selected) == 0:
			m.status = "nothing selected"
		default:
			m.mode = modeConfirm
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.refresh()
	case key.Matches(msg, m.keys.NextPage):
		if m.listing.NextToken != "" {
			m.loading = true
			return m, m.load(m.listing.NextToken)
		}
		m.status = "no more pages"
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.mode = modeBrowse
		m.loading = true
		m.status = fmt.Sprintf("Deleting %d item(s)...", len(m.snap.Selected))
		sess, ctx := m.sess, m.ctx
		return m, func() tea.Msg {
			res, err := sess.DeleteSelected(ctx)
			return deletedMsg{res: res, err: err}
		}
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.mode = modeBrowse
		m.status = "delete cancelled"
	}
	return m, nil
}

func (m *Model) handleMatchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeBrowse
		m.input.Blur()
		pattern := m.snap.Prefix.String() + m.input.Value()
		matcher, err := match.Glob(pattern)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.async(func(ctx context.Context) (session.Snapshot, error) {
			return m.sess.SelectMatching(ctx, matcher)
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) async(fn func(context.Context) (session.Snapshot, error)) tea.Cmd {
	m.loading = true
	ctx := m.ctx
	return func() tea.Msg {
		snap, err := fn(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *Model) navigate(snap session.Snapshot, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.err = err
		return m, nil
	}
	m.snap = snap
	m.err = nil
	m.entries = nil
	m.listing = browse.Listing{Prefix: snap.Prefix}
	m.cursor, m.offset = 0, 0
	m.loading = true
	return m, m.load("")
}

func (m *Model) applySnapshot(snap session.Snapshot, err error) {
	if err != nil {
		m.err = err
		return
	}
	m.snap = snap
}

func (m *Model) setListing(l browse.Listing) {
	m.listing = l
	entries := make([]entry, 0, l.Len()+1)
	if !l.Prefix.IsRoot() {
		entries = append(entries, entry{name: "..", parent: true})
	}
	for _, f := range l.Folders {
		entries = append(entries, entry{key: f.String(), name: f.Name() + browse.Delimiter, folder: true})
	}
	for _, o := range l.Objects {
		entries = append(entries, entry{key: l.FullKey(o), name: o.RelativeKey, object: o})
	}
	m.entries = entries
	m.clampCursor()
}

func (m *Model) current() (entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return entry{}, false
	}
	return m.entries[m.cursor], true
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.entries) {
		m.cursor = len(m.entries) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	rows := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

// listHeight is the number of rows left after header and footer.
func (m *Model) listHeight() int {
	if h := m.height - 8; h > 1 {
		return h
	}
	return 1
}

func describeObject(meta *provider.ObjectMeta) string {
	parts := []string{meta.Key, output.FormatSize(meta.Size)}
	if meta.ContentType != "" {
		parts = append(parts, meta.ContentType)
	}
	if !meta.LastModified.IsZero() {
		parts = append(parts, meta.LastModified.Format("2006-01-02 15:04"))
	}
	if meta.ETag != "" {
		parts = append(parts, "etag "+meta.ETag)
	}
	return strings.Join(parts, "  ")
}
