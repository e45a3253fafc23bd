// Package session binds one document to its history, selection and focus
// directive, and runs every command as a unit of work: snapshot, mutate,
// record, persist, render.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/calendar"
	"github.com/starford/outliner/internal/history"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
)

// Option configures a Session.
type Option func(*Session)

// WithRender sets the callback invoked after every change, outside the lock.
func WithRender(fn func()) Option {
	return func(s *Session) { s.render = fn }
}

// WithPersist sets the hook that receives a deep copy of the document after
// every change. It must not block.
func WithPersist(fn func(*models.Document)) Option {
	return func(s *Session) { s.persist = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory passes options to the history manager.
func WithHistory(opts ...history.Option) Option {
	return func(s *Session) { s.histOpts = append(s.histOpts, opts...) }
}

// WithScheduler drives the coalescing timer.
func WithScheduler(sched history.Scheduler) Option {
	return func(s *Session) {
		if sched != nil {
			s.sched = sched
		}
	}
}

// WithClock sets the time source used by open_day.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is safe for concurrent use. Commands run one at a time.
type Session struct {
	mu sync.Mutex

	doc   *models.Document
	hist  *history.Manager
	sel   outline.Selection
	focus models.Focus

	render   func()
	persist  func(*models.Document)
	logger   *slog.Logger
	histOpts []history.Option
	sched    history.Scheduler
	now      func() time.Time
}

// New wraps doc. A nil doc starts a fresh outline. The document is repaired
// so that its zoom root has at least one child and no pin is stale, and its
// current state becomes the first history entry.
func New(doc *models.Document, opts ...Option) *Session {
	s := &Session{
		logger: slog.Default(),
		sched:  history.WallClock{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if doc == nil {
		doc = outline.NewDocument("")
	}
	s.doc = doc
	outline.EnsureChild(outline.ResolveZoomRoot(doc))
	if n := outline.PrunePins(doc); n > 0 {
		s.logger.Debug("session: pruned stale pins", slog.Int("count", n))
	}

	hopts := append([]history.Option{history.WithLogger(s.logger)}, s.histOpts...)
	hopts = append(hopts,
		history.WithScheduler(lockedScheduler{mu: &s.mu, next: s.sched}),
		history.WithRestoreHook(s.afterRestore),
	)
	s.hist = history.New(hopts...)
	s.hist.Reset(doc)
	return s
}

// lockedScheduler runs timer callbacks under the session lock.
type lockedScheduler struct {
	mu   *sync.Mutex
	next history.Scheduler
}

func (l lockedScheduler) AfterFunc(d time.Duration, f func()) history.Timer {
	return l.next.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		f()
	})
}

func (s *Session) afterRestore(doc *models.Document) {
	outline.EnsureChild(outline.ResolveZoomRoot(doc))
	s.sel.Clear()
}

// Document returns a deep copy of the current document.
func (s *Session) Document() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// TakeFocus returns the last focus directive and clears it.
func (s *Session) TakeFocus() models.Focus {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.focus
	s.focus = models.Focus{}
	return f
}

// Selection returns the selected ids in document order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.IDs(outline.ResolveZoomRoot(s.doc))
}

// Flush records pending coalesced typing.
func (s *Session) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Flush()
}

// Undo restores the previous history entry.
func (s *Session) Undo() Result {
	return s.restore(s.hist.Undo, "undo")
}

// Redo re-applies the entry undone last.
func (s *Session) Redo() Result {
	return s.restore(s.hist.Redo, "redo")
}

func (s *Session) restore(step func(*models.Document) bool, name string) Result {
	s.mu.Lock()
	changed := step(s.doc)
	var copyDoc *models.Document
	if changed {
		copyDoc = s.doc.Clone()
	}
	s.mu.Unlock()

	if changed {
		s.logger.Debug("session "+name, slog.String("title", copyDoc.Title))
		s.notify(copyDoc)
	}
	return Result{Changed: changed}
}

// Apply runs cmd. Structural no-ops are not errors: they come back with
// Changed false. Only malformed commands fail.
func (s *Session) Apply(cmd Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	var day time.Time
	if cmd.Op == OpOpenDay {
		day = s.now()
		if cmd.Date != "" {
			t, err := calendar.ParseDay(cmd.Date, day.Location())
			if err != nil {
				return Result{}, fmt.Errorf("session: %w: %v", apperr.ErrInvalidCommand, err)
			}
			day = t
		}
	}

	s.mu.Lock()
	res, persist := s.apply(cmd, day)
	if !res.Focus.IsZero() {
		s.focus = res.Focus
	}
	var copyDoc *models.Document
	if persist {
		copyDoc = s.doc.Clone()
	}
	s.mu.Unlock()

	s.logger.Debug("session command", slog.String("op", cmd.Op), slog.Bool("changed", res.Changed))
	switch {
	case persist:
		s.notify(copyDoc)
	case !res.Focus.IsZero() && s.render != nil:
		s.render()
	}
	return res, nil
}

func (s *Session) notify(doc *models.Document) {
	if s.persist != nil {
		s.persist(doc)
	}
	if s.render != nil {
		s.render()
	}
}

// apply dispatches cmd with the lock held. The second result reports whether
// the document must be persisted.
func (s *Session) apply(cmd Command, day time.Time) (Result, bool) {
	doc := s.doc
	switch cmd.Op {
	case OpSetText:
		return s.typing(func() (models.Focus, bool) { return outline.SetText(doc, cmd.ID, cmd.Text) })
	case OpSetNote:
		return s.typing(func() (models.Focus, bool) { return models.Focus{}, outline.SetNote(doc, cmd.ID, cmd.Text) })
	case OpSetTitle:
		return s.typing(func() (models.Focus, bool) {
			if doc.Title == cmd.Text {
				return models.Focus{}, false
			}
			doc.Title = cmd.Text
			return models.Focus{}, true
		})

	case OpSplit:
		return s.structural(func() (models.Focus, bool) { return outline.Split(doc, cmd.ID, cmd.Offset) })
	case OpMerge:
		return s.structural(func() (models.Focus, bool) { return outline.Merge(doc, cmd.ID) })
	case OpIndent:
		return s.structural(func() (models.Focus, bool) { return outline.Indent(doc, cmd.ID) })
	case OpOutdent:
		return s.structural(func() (models.Focus, bool) { return outline.Outdent(doc, cmd.ID) })
	case OpIndentSelection, OpOutdentSelection:
		ids := s.targets(cmd)
		many := outline.IndentMany
		if cmd.Op == OpOutdentSelection {
			many = outline.OutdentMany
		}
		res, persist := s.structural(func() (models.Focus, bool) {
			if !many(doc, ids) {
				return models.Focus{}, false
			}
			return models.FocusOn(ids[0]), true
		})
		if res.Changed {
			s.sel.Clear()
		}
		return res, persist
	case OpMove:
		return s.structural(func() (models.Focus, bool) { return outline.Move(doc, cmd.ID, cmd.Target, cmd.Position) })
	case OpReorder:
		return s.structural(func() (models.Focus, bool) { return outline.Reorder(doc, cmd.ID, cmd.Direction) })
	case OpDelete:
		return s.structural(func() (models.Focus, bool) { return outline.Delete(doc, cmd.ID) })
	case OpDeleteSelection:
		ids := s.targets(cmd)
		res, persist := s.structural(func() (models.Focus, bool) { return outline.RangedDelete(doc, ids) })
		if res.Changed {
			s.sel.Clear()
		}
		return res, persist
	case OpToggleChecked:
		return s.structural(func() (models.Focus, bool) { return outline.ToggleChecked(doc, cmd.ID) })
	case OpMakeChecklist:
		return s.structural(func() (models.Focus, bool) { return outline.MakeChecklist(doc, cmd.ID) })
	case OpClearChecklist:
		return s.structural(func() (models.Focus, bool) { return outline.ClearChecklist(doc, cmd.ID) })
	case OpCollapse, OpExpand:
		return s.structural(func() (models.Focus, bool) { return outline.SetCollapsed(doc, cmd.ID, cmd.Op == OpCollapse) })
	case OpToggleCollapsed:
		return s.structural(func() (models.Focus, bool) { return outline.ToggleCollapsed(doc, cmd.ID) })
	case OpCollapseParent:
		return s.structural(func() (models.Focus, bool) { return outline.CollapseParent(doc, cmd.ID) })

	case OpZoomIn, OpOpenPin:
		return s.structural(func() (models.Focus, bool) { return s.zoom(func() bool { return outline.ZoomIn(doc, cmd.ID) }) })
	case OpZoomOut:
		return s.structural(func() (models.Focus, bool) { return s.zoom(func() bool { return outline.ZoomOut(doc) }) })
	case OpZoomHome:
		return s.structural(func() (models.Focus, bool) { return s.zoom(func() bool { return outline.ZoomHome(doc) }) })
	case OpOpenDay:
		before := history.Take(doc)
		focus, changed := calendar.OpenDay(doc, day)
		if !changed {
			// The day is already filed and visible: only focus moves.
			return Result{Focus: focus}, false
		}
		s.sel.Clear()
		s.hist.RecordSnapshot(before)
		return Result{Changed: true, Focus: focus}, true

	case OpPin:
		changed := outline.AddPin(doc, cmd.ID)
		return Result{Changed: changed}, changed
	case OpUnpin:
		changed := outline.RemovePin(doc, cmd.ID)
		return Result{Changed: changed}, changed
	case OpMovePin:
		changed := outline.MovePin(doc, cmd.From, cmd.To)
		return Result{Changed: changed}, changed

	case OpSelect:
		s.sel = outline.Selection{Anchor: cmd.ID, Focus: cmd.Target}
		return Result{Changed: true}, false
	case OpExtendSelection:
		moved := s.sel.Extend(outline.ResolveZoomRoot(doc), cmd.ID, cmd.Direction)
		res := Result{Changed: moved}
		if moved {
			res.Focus = models.FocusOn(s.sel.Focus)
		}
		return res, false
	case OpClearSelection:
		changed := s.sel.Active()
		s.sel.Clear()
		return Result{Changed: changed}, false
	}
	return Result{}, false
}

// structural snapshots before op and records the snapshot only when op
// changed the document. Pending typing is superseded by that snapshot.
func (s *Session) structural(op func() (models.Focus, bool)) (Result, bool) {
	before := history.Take(s.doc)
	focus, ok := op()
	if !ok {
		return Result{}, false
	}
	s.hist.RecordSnapshot(before)
	return Result{Changed: true, Focus: focus}, true
}

// typing coalesces bursts of edits: the state before the first edit of a
// burst is recorded now, the state after the last one when typing pauses.
func (s *Session) typing(op func() (models.Focus, bool)) (Result, bool) {
	pending := s.hist.Pending()
	var before history.Snapshot
	if !pending {
		before = history.Take(s.doc)
	}
	focus, ok := op()
	if !ok {
		return Result{}, false
	}
	if !pending {
		s.hist.RecordSnapshot(before)
	}
	s.hist.RecordDebounced(s.doc)
	return Result{Changed: true, Focus: focus}, true
}

func (s *Session) zoom(step func() bool) (models.Focus, bool) {
	if !step() {
		return models.Focus{}, false
	}
	s.sel.Clear()
	root := outline.ResolveZoomRoot(s.doc)
	outline.EnsureChild(root)
	return models.FocusAt(root.Children[0].ID, 0), true
}

// targets returns cmd.IDs, or the current selection when none are given.
func (s *Session) targets(cmd Command) []string {
	if len(cmd.IDs) > 0 {
		return cmd.IDs
	}
	if ids := s.sel.IDs(outline.ResolveZoomRoot(s.doc)); len(ids) > 0 {
		return ids
	}
	if cmd.ID != "" {
		return []string{cmd.ID}
	}
	return nil
}
