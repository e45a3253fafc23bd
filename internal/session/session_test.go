package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/history"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
)

type manualTimer struct {
	mu   *sync.Mutex
	f    func()
	done bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := !t.done
	t.done = true
	return live
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualScheduler) AfterFunc(_ time.Duration, f func()) history.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{mu: &m.mu, f: f}
	m.timers = append(m.timers, t)
	return t
}

// elapse fires every live timer.
func (m *manualScheduler) elapse() {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.done {
			t.done = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func newTestSession(t *testing.T, texts ...string) (*Session, *manualScheduler) {
	t.Helper()
	doc := outline.NewDocument("Test")
	doc.Root.Children = doc.Root.Children[:0]
	for _, text := range texts {
		doc.Root.Children = append(doc.Root.Children, outline.NewNode(text, nil))
	}
	sched := &manualScheduler{}
	return New(doc, WithScheduler(sched)), sched
}

func mustApply(t *testing.T, s *Session, cmd Command) Result {
	t.Helper()
	res, err := s.Apply(cmd)
	if err != nil {
		t.Fatalf("apply %s: %v", cmd.Op, err)
	}
	return res
}

func topTexts(s *Session) []string {
	doc := s.Document()
	out := make([]string, len(doc.Root.Children))
	for i, c := range doc.Root.Children {
		out[i] = c.Text
	}
	return out
}

func TestNew_BootstrapsEmptyDocument(t *testing.T) {
	doc := &models.Document{Root: &models.Node{ID: "root"}}
	s := New(doc)
	got := s.Document()
	if len(got.Root.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(got.Root.Children))
	}
	if res := s.Undo(); res.Changed {
		t.Error("bootstrap must not be undoable")
	}
}

func TestNew_PrunesStalePins(t *testing.T) {
	doc := outline.NewDocument("Pins")
	keep := doc.Root.Children[0].ID
	doc.PinnedItems = []string{"gone", keep}
	s := New(doc)
	if got := s.Document().PinnedItems; len(got) != 1 || got[0] != keep {
		t.Errorf("pins = %v", got)
	}
}

func TestApply_SplitUndoRedo(t *testing.T) {
	s, _ := newTestSession(t, "buy milk")
	a := s.Document().Root.Children[0].ID

	res := mustApply(t, s, Command{Op: OpSplit, ID: a, Offset: 4})
	if !res.Changed {
		t.Fatal("split did nothing")
	}
	if got := topTexts(s); len(got) != 2 || got[0] != "buy " || got[1] != "milk" {
		t.Fatalf("texts = %q", got)
	}
	if res.Focus.Offset != 0 || res.Focus.NodeID == a {
		t.Errorf("focus = %+v", res.Focus)
	}
	if f := s.TakeFocus(); f != res.Focus {
		t.Errorf("take focus = %+v", f)
	}
	if f := s.TakeFocus(); !f.IsZero() {
		t.Error("focus directive should be read once")
	}

	if !s.Undo().Changed {
		t.Fatal("undo did nothing")
	}
	if got := topTexts(s); len(got) != 1 || got[0] != "buy milk" {
		t.Errorf("after undo = %q", got)
	}
	if !s.Redo().Changed {
		t.Fatal("redo did nothing")
	}
	if got := topTexts(s); len(got) != 2 {
		t.Errorf("after redo = %q", got)
	}
}

func TestApply_NoOpIsNotRecorded(t *testing.T) {
	s, _ := newTestSession(t, "a", "b")
	a := s.Document().Root.Children[0].ID
	res := mustApply(t, s, Command{Op: OpOutdent, ID: a})
	if res.Changed {
		t.Error("outdent under the zoom root should be rejected")
	}
	if s.Undo().Changed {
		t.Error("a rejected command must not create history")
	}
}

func TestApply_TypingCoalesces(t *testing.T) {
	s, sched := newTestSession(t, "")
	id := s.Document().Root.Children[0].ID
	for _, text := range []string{"h", "he", "hel", "hello"} {
		mustApply(t, s, Command{Op: OpSetText, ID: id, Text: text})
	}
	sched.elapse()
	mustApply(t, s, Command{Op: OpSetText, ID: id, Text: "hello world"})
	sched.elapse()

	s.Undo()
	if got := topTexts(s)[0]; got != "hello" {
		t.Errorf("first undo = %q, want hello", got)
	}
	s.Undo()
	if got := topTexts(s)[0]; got != "" {
		t.Errorf("second undo = %q, want empty", got)
	}
}

func TestApply_UndoDuringTypingKeepsText(t *testing.T) {
	s, sched := newTestSession(t, "")
	id := s.Document().Root.Children[0].ID
	mustApply(t, s, Command{Op: OpSetText, ID: id, Text: "draft"})

	s.Undo()
	if got := topTexts(s)[0]; got != "" {
		t.Errorf("undo = %q", got)
	}
	s.Redo()
	if got := topTexts(s)[0]; got != "draft" {
		t.Errorf("redo = %q, want draft", got)
	}
	sched.elapse()
	if got := topTexts(s)[0]; got != "draft" {
		t.Errorf("late timer changed text to %q", got)
	}
}

func TestApply_StructuralEditEndsTypingBurst(t *testing.T) {
	s, _ := newTestSession(t, "", "second")
	first := s.Document().Root.Children[0].ID
	mustApply(t, s, Command{Op: OpSetText, ID: first, Text: "typed"})
	mustApply(t, s, Command{Op: OpSplit, ID: first, Offset: 2})

	s.Undo()
	if got := topTexts(s); len(got) != 2 || got[0] != "typed" {
		t.Errorf("undo split = %q", got)
	}
	s.Undo()
	if got := topTexts(s); got[0] != "" {
		t.Errorf("undo typing = %q", got)
	}
}

func TestApply_PersistAndRender(t *testing.T) {
	var persisted []*models.Document
	renders := 0
	doc := outline.NewDocument("Test")
	s := New(doc,
		WithScheduler(&manualScheduler{}),
		WithPersist(func(d *models.Document) { persisted = append(persisted, d) }),
		WithRender(func() { renders++ }),
	)
	id := doc.Root.Children[0].ID

	mustApply(t, s, Command{Op: OpSetText, ID: id, Text: "x"})
	mustApply(t, s, Command{Op: OpIndent, ID: id})
	mustApply(t, s, Command{Op: OpSelect, ID: id})
	s.Undo()

	if len(persisted) != 2 || renders != 2 {
		t.Fatalf("persisted = %d renders = %d, want 2 and 2", len(persisted), renders)
	}
	persisted[0].Root.Children[0].Text = "mutated"
	if topTexts(s)[0] == "mutated" {
		t.Error("persist hook must receive a copy")
	}
}

func TestApply_DeleteSelection(t *testing.T) {
	s, _ := newTestSession(t, "a", "b", "c", "d")
	doc := s.Document()
	ids := []string{doc.Root.Children[1].ID, doc.Root.Children[2].ID}

	mustApply(t, s, Command{Op: OpSelect, ID: ids[0]})
	mustApply(t, s, Command{Op: OpExtendSelection, ID: ids[0], Direction: models.Down})
	if got := s.Selection(); len(got) != 2 {
		t.Fatalf("selection = %v", got)
	}
	res := mustApply(t, s, Command{Op: OpDeleteSelection})
	if got := topTexts(s); len(got) != 2 || got[0] != "a" || got[1] != "d" {
		t.Errorf("texts = %q", got)
	}
	if res.Focus.NodeID != doc.Root.Children[0].ID {
		t.Errorf("focus = %+v, want a", res.Focus)
	}
	if len(s.Selection()) != 0 {
		t.Error("selection should clear after delete")
	}
}

func TestApply_IndentSelection(t *testing.T) {
	s, _ := newTestSession(t, "a", "b", "c")
	doc := s.Document()
	mustApply(t, s, Command{Op: OpSelect, ID: doc.Root.Children[1].ID, Target: doc.Root.Children[2].ID})
	mustApply(t, s, Command{Op: OpIndentSelection})
	got := s.Document()
	if len(got.Root.Children) != 1 || len(got.Root.Children[0].Children) != 2 {
		t.Errorf("tree = %+v", got.Root.Children)
	}
}

func TestApply_ZoomKeepsChild(t *testing.T) {
	s, _ := newTestSession(t, "a", "b")
	a := s.Document().Root.Children[0].ID
	res := mustApply(t, s, Command{Op: OpZoomIn, ID: a})
	doc := s.Document()
	zoom := outline.ResolveZoomRoot(doc)
	if zoom.ID != a || len(zoom.Children) != 1 {
		t.Fatalf("zoom root = %s with %d children", zoom.ID, len(zoom.Children))
	}
	if res.Focus != models.FocusAt(zoom.Children[0].ID, 0) {
		t.Errorf("focus = %+v", res.Focus)
	}
	v := s.View(ViewFilter{})
	if len(v.Breadcrumb) != 1 || v.Breadcrumb[0].ID != a {
		t.Errorf("breadcrumb = %+v", v.Breadcrumb)
	}

	s.Undo()
	if len(s.Document().CurrentPath) != 0 {
		t.Error("undo should restore the path")
	}
}

func TestApply_OpenDay(t *testing.T) {
	doc := outline.NewDocument("")
	clock := func() time.Time { return time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC) }
	s := New(doc, WithScheduler(&manualScheduler{}), WithClock(clock))
	res := mustApply(t, s, Command{Op: OpOpenDay})
	day := outline.Find(s.Document().Root, res.Focus.NodeID)
	if day == nil || day.Text != "2025-01-02(Thu)" {
		t.Fatalf("day = %+v", day)
	}
	if _, err := s.Apply(Command{Op: OpSetText, ID: day.ID, Text: "edit"}); err != nil {
		t.Fatal(err)
	}
	if outline.Find(s.Document().Root, day.ID).Text != "2025-01-02(Thu)" {
		t.Error("date nodes are read-only")
	}
	res = mustApply(t, s, Command{Op: OpOpenDay, Date: "2024-02-29"})
	if outline.Find(s.Document().Root, res.Focus.NodeID).Text != "2024-02-29(Thu)" {
		t.Error("explicit date not honoured")
	}
}

func TestApply_OpenDayFocusesExistingDay(t *testing.T) {
	doc := outline.NewDocument("")
	clock := func() time.Time { return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC) }
	var renders int
	s := New(doc, WithScheduler(&manualScheduler{}), WithClock(clock), WithRender(func() { renders++ }))

	first := mustApply(t, s, Command{Op: OpOpenDay})
	if !first.Changed || first.Focus.NodeID == "" {
		t.Fatalf("first = %+v", first)
	}
	s.TakeFocus()
	mustApply(t, s, Command{Op: OpZoomHome})
	rendersBefore := renders

	second := mustApply(t, s, Command{Op: OpOpenDay})
	if second.Focus.NodeID != first.Focus.NodeID {
		t.Errorf("second focus = %q, want %q", second.Focus.NodeID, first.Focus.NodeID)
	}
	if second.Changed {
		t.Error("opening a visible day should not change the document")
	}
	if got := s.TakeFocus(); got.NodeID != first.Focus.NodeID {
		t.Errorf("TakeFocus = %+v", got)
	}
	if renders != rendersBefore+1 {
		t.Errorf("renders = %d, want %d", renders, rendersBefore+1)
	}
}

func TestView_HideCheckedHidesSubtree(t *testing.T) {
	doc := outline.NewDocument("Test")
	parent := doc.Root.Children[0]
	parent.Text = "parent"
	parent.Children = append(parent.Children, outline.NewNode("child", nil))
	doc.Root.Children = append(doc.Root.Children, outline.NewNode("other", nil))
	s := New(doc, WithScheduler(&manualScheduler{}))
	mustApply(t, s, Command{Op: OpMakeChecklist, ID: parent.ID})
	mustApply(t, s, Command{Op: OpToggleChecked, ID: parent.ID})

	v := s.View(ViewFilter{HideChecked: true})
	if len(v.Rows) != 1 || v.Rows[0].Text != "other" || v.Rows[0].Depth != 0 {
		t.Errorf("rows = %+v", v.Rows)
	}
}

func TestApply_Pins(t *testing.T) {
	s, _ := newTestSession(t, "a", "b")
	doc := s.Document()
	a, b := doc.Root.Children[0].ID, doc.Root.Children[1].ID
	mustApply(t, s, Command{Op: OpPin, ID: a})
	mustApply(t, s, Command{Op: OpPin, ID: b})
	mustApply(t, s, Command{Op: OpMovePin, From: 1, To: 0})
	if got := s.Document().PinnedItems; len(got) != 2 || got[0] != b {
		t.Errorf("pins = %v", got)
	}
	mustApply(t, s, Command{Op: OpDelete, ID: b})
	if v := s.View(ViewFilter{}); len(v.Pins) != 1 || v.Pins[0].ID != a {
		t.Errorf("view pins = %+v", v.Pins)
	}
}

func TestApply_InvalidCommand(t *testing.T) {
	s, _ := newTestSession(t, "a")
	cases := []Command{
		{Op: "explode"},
		{Op: OpSplit},
		{Op: OpMove, ID: "x", Target: "y", Position: "sideways"},
		{Op: OpReorder, ID: "x"},
		{Op: OpOpenDay, Date: "tomorrow"},
	}
	for _, cmd := range cases {
		if _, err := s.Apply(cmd); !errors.Is(err, apperr.ErrInvalidCommand) {
			t.Errorf("%+v: err = %v", cmd, err)
		}
	}
}

func TestView_Filter(t *testing.T) {
	s, _ := newTestSession(t, "milk", "bread", "done milk")
	doc := s.Document()
	mustApply(t, s, Command{Op: OpMakeChecklist, ID: doc.Root.Children[2].ID})
	mustApply(t, s, Command{Op: OpToggleChecked, ID: doc.Root.Children[2].ID})

	v := s.View(ViewFilter{Query: "MILK", HideChecked: true})
	if len(v.Rows) != 1 || v.Rows[0].Text != "milk" {
		t.Errorf("rows = %+v", v.Rows)
	}
	if !v.CanUndo || v.CanRedo {
		t.Errorf("canUndo = %v canRedo = %v", v.CanUndo, v.CanRedo)
	}
}

func TestSession_ConcurrentCommands(t *testing.T) {
	s, sched := newTestSession(t, "")
	id := s.Document().Root.Children[0].ID
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Apply(Command{Op: OpSetText, ID: id, Text: "typing"})
			_ = s.View(ViewFilter{})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.elapse()
	}()
	wg.Wait()
	if topTexts(s)[0] != "typing" {
		t.Errorf("text = %q", topTexts(s)[0])
	}
}
