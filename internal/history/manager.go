// Package history keeps a bounded stack of whole-document snapshots for
// undo and redo, and coalesces bursts of text edits into one step.
//
// A Manager is not safe for concurrent use. Callers serialize access and, when
// the coalescing timer fires on another goroutine, supply a Scheduler whose
// callbacks run under the same lock.
package history

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/models"
)

// Defaults used when no option overrides them.
const (
	DefaultMaxDepth    = 100
	DefaultQuietPeriod = 1500 * time.Millisecond
)

// Snapshot is an independent copy of the undoable document fields.
type Snapshot struct {
	Root        *models.Node
	CurrentPath []string
	Title       string

	digest string
}

// Take copies the undoable fields of doc.
func Take(doc *models.Document) Snapshot {
	s := Snapshot{
		Root:        doc.Root.Clone(),
		CurrentPath: append([]string{}, doc.CurrentPath...),
		Title:       doc.Title,
	}
	s.digest = digest(s)
	return s
}

// Equal reports whether two snapshots hold the same content.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.digest != "" && s.digest == o.digest
}

func digest(s Snapshot) string {
	data, err := json.Marshal(struct {
		Root        *models.Node `json:"root"`
		CurrentPath []string     `json:"currentPath"`
		Title       string       `json:"title"`
	}{s.Root, s.CurrentPath, s.Title})
	if err != nil {
		return ""
	}
	return checksum.Sum(data)
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxDepth caps the number of stored snapshots.
func WithMaxDepth(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxDepth = n
		}
	}
}

// WithQuietPeriod sets how long RecordDebounced waits for edits to stop.
func WithQuietPeriod(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.quiet = d
		}
	}
}

// WithScheduler replaces the wall-clock timer.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRestoreHook registers fn to run after Undo or Redo rewrites the
// document. Recording is suppressed while fn runs.
func WithRestoreHook(fn func(*models.Document)) Option {
	return func(m *Manager) { m.onRestore = fn }
}

// Manager is the undo/redo stack. entries[cursor] is the snapshot matching
// the most recently recorded or restored state.
type Manager struct {
	maxDepth  int
	quiet     time.Duration
	sched     Scheduler
	logger    *slog.Logger
	onRestore func(*models.Document)

	entries    []Snapshot
	cursor     int
	suppressed bool

	pending    Timer
	pendingDoc *models.Document
	generation uint64
}

// New returns an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		maxDepth: DefaultMaxDepth,
		quiet:    DefaultQuietPeriod,
		sched:    WallClock{},
		logger:   slog.Default(),
		cursor:   -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of stored snapshots.
func (m *Manager) Len() int { return len(m.entries) }

// Cursor returns the index of the current snapshot, or -1 when empty.
func (m *Manager) Cursor() int { return m.cursor }

// Suppressed reports whether a snapshot is being restored.
func (m *Manager) Suppressed() bool { return m.suppressed }

// Pending reports whether a coalesced record is waiting for its timer.
func (m *Manager) Pending() bool { return m.pending != nil }

// Push stores s after the cursor, discarding any redo branch. A snapshot
// equal to the current one only discards the branch. It reports whether an
// entry was added.
func (m *Manager) Push(s Snapshot) bool {
	if m.suppressed {
		return false
	}
	m.entries = m.entries[:m.cursor+1]
	if m.cursor >= 0 && m.entries[m.cursor].Equal(s) {
		return false
	}
	m.entries = append(m.entries, s)
	if over := len(m.entries) - m.maxDepth; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
		m.logger.Debug("history evicted oldest snapshots", slog.Int("count", over))
	}
	m.cursor = len(m.entries) - 1
	return true
}

// Record snapshots doc immediately. A pending coalesced record is dropped
// without being taken.
func (m *Manager) Record(doc *models.Document) bool {
	if m.suppressed {
		return false
	}
	return m.RecordSnapshot(Take(doc))
}

// RecordSnapshot is Record for a snapshot taken earlier, typically just
// before a mutation that turned out to change something.
func (m *Manager) RecordSnapshot(s Snapshot) bool {
	if m.suppressed {
		return false
	}
	m.cancelPending()
	return m.Push(s)
}

// RecordDebounced snapshots doc once no further call arrives for the quiet
// period. Each call reschedules the timer.
func (m *Manager) RecordDebounced(doc *models.Document) {
	if m.suppressed {
		return
	}
	m.cancelPending()
	m.generation++
	gen := m.generation
	m.pendingDoc = doc
	m.pending = m.sched.AfterFunc(m.quiet, func() { m.fire(gen) })
}

func (m *Manager) fire(gen uint64) {
	// A stopped timer may still deliver if it raced with Stop.
	if gen != m.generation || m.pending == nil {
		return
	}
	doc := m.pendingDoc
	m.pending, m.pendingDoc = nil, nil
	m.Push(Take(doc))
}

// Flush takes a pending coalesced record now. It reports whether one was
// pending.
func (m *Manager) Flush() bool {
	if m.pending == nil {
		return false
	}
	doc := m.pendingDoc
	m.cancelPending()
	m.Push(Take(doc))
	return true
}

func (m *Manager) cancelPending() {
	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending, m.pendingDoc = nil, nil
	m.generation++
}

// CanUndo reports whether Undo would change doc.
func (m *Manager) CanUndo(doc *models.Document) bool {
	if m.pending != nil || m.cursor > 0 {
		return true
	}
	return m.cursor == len(m.entries)-1 && m.cursor >= 0 && !m.entries[m.cursor].Equal(Take(doc))
}

// CanRedo reports whether Redo would change the document.
func (m *Manager) CanRedo() bool {
	return m.cursor >= 0 && m.cursor < len(m.entries)-1
}

// Undo steps back one snapshot and writes it into doc. Pending typing is
// flushed first, and unrecorded changes at the tip are captured so Redo can
// return to them. It reports whether doc changed.
func (m *Manager) Undo(doc *models.Document) bool {
	if m.suppressed {
		return false
	}
	m.Flush()
	if n := len(m.entries); n > 0 && m.cursor == n-1 {
		m.Push(Take(doc))
	}
	if m.cursor <= 0 {
		return false
	}
	m.cursor--
	m.restore(doc, m.entries[m.cursor])
	m.logger.Debug("history undo", slog.Int("cursor", m.cursor), slog.Int("entries", len(m.entries)))
	return true
}

// Redo steps forward one snapshot. It reports whether doc changed.
func (m *Manager) Redo(doc *models.Document) bool {
	if m.suppressed {
		return false
	}
	m.Flush()
	if !m.CanRedo() {
		return false
	}
	m.cursor++
	m.restore(doc, m.entries[m.cursor])
	m.logger.Debug("history redo", slog.Int("cursor", m.cursor), slog.Int("entries", len(m.entries)))
	return true
}

// Reset drops every snapshot and records doc as the only entry.
func (m *Manager) Reset(doc *models.Document) {
	m.cancelPending()
	m.entries = nil
	m.cursor = -1
	m.Push(Take(doc))
}

func (m *Manager) restore(doc *models.Document, s Snapshot) {
	m.suppressed = true
	defer func() { m.suppressed = false }()

	doc.Root = s.Root.Clone()
	doc.CurrentPath = append([]string{}, s.CurrentPath...)
	doc.Title = s.Title
	if m.onRestore != nil {
		m.onRestore(doc)
	}
}
