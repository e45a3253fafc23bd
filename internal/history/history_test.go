package history

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
)

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

// fakeScheduler hands out timers that only fire when the test says so.
type fakeScheduler struct {
	timers []*fakeTimer
	last   time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	s.last = d
	return t
}

func (s *fakeScheduler) fire() {
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.f()
		}
	}
}

func (s *fakeScheduler) active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func newDoc(texts ...string) *models.Document {
	doc := outline.NewDocument("Test")
	doc.Root.Children = doc.Root.Children[:0]
	for _, text := range texts {
		doc.Root.Children = append(doc.Root.Children, outline.NewNode(text, nil))
	}
	return doc
}

func firstText(doc *models.Document) string {
	return doc.Root.Children[0].Text
}

func TestTake_IsIndependent(t *testing.T) {
	doc := newDoc("one")
	snap := Take(doc)
	doc.Root.Children[0].Text = "changed"
	doc.CurrentPath = append(doc.CurrentPath, doc.Root.Children[0].ID)
	if snap.Root.Children[0].Text != "one" {
		t.Errorf("snapshot text = %q", snap.Root.Children[0].Text)
	}
	if len(snap.CurrentPath) != 0 {
		t.Errorf("snapshot path = %v", snap.CurrentPath)
	}
}

func TestRecordUndo_ReturnsToPreFirstRecord(t *testing.T) {
	const steps = 5
	doc := newDoc("v0")
	original := doc.Clone()
	m := New()
	for i := 1; i <= steps; i++ {
		m.Record(doc)
		doc.Root.Children[0].Text = fmt.Sprintf("v%d", i)
	}
	for i := 0; i < steps; i++ {
		if !m.Undo(doc) {
			t.Fatalf("undo %d did nothing", i)
		}
	}
	if !reflect.DeepEqual(doc.Root, original.Root) {
		t.Errorf("root = %+v, want %+v", doc.Root, original.Root)
	}
	if m.Undo(doc) {
		t.Error("undo past the oldest entry should do nothing")
	}
}

func TestRedo_RestoresStateBeforeUndo(t *testing.T) {
	doc := newDoc("v0")
	m := New()
	for i := 1; i <= 3; i++ {
		m.Record(doc)
		doc.Root.Children[0].Text = fmt.Sprintf("v%d", i)
	}

	steps := []struct {
		undo bool
		want string
	}{
		{true, "v2"},
		{true, "v1"},
		{false, "v2"},
		{true, "v1"},
		{true, "v0"},
		{false, "v1"},
		{false, "v2"},
		{false, "v3"},
	}
	for i, step := range steps {
		before := firstText(doc)
		var ok bool
		if step.undo {
			ok = m.Undo(doc)
		} else {
			ok = m.Redo(doc)
		}
		if !ok {
			t.Fatalf("step %d: no change from %q", i, before)
		}
		if got := firstText(doc); got != step.want {
			t.Fatalf("step %d: text = %q, want %q", i, got, step.want)
		}
	}
	if m.Redo(doc) {
		t.Error("redo at the newest entry should do nothing")
	}
}

func TestRecord_TruncatesRedoBranch(t *testing.T) {
	doc := newDoc("a")
	m := New()
	m.Record(doc)
	doc.Root.Children[0].Text = "b"
	m.Undo(doc)
	if !m.CanRedo() {
		t.Fatal("redo should be available")
	}
	m.Record(doc)
	doc.Root.Children[0].Text = "c"
	if m.CanRedo() {
		t.Error("a new edit must discard the redo branch")
	}
	m.Undo(doc)
	if firstText(doc) != "a" {
		t.Errorf("text = %q, want a", firstText(doc))
	}
}

func TestPush_EvictsOldest(t *testing.T) {
	doc := newDoc("0")
	m := New(WithMaxDepth(3))
	for i := 0; i < 5; i++ {
		doc.Root.Children[0].Text = fmt.Sprint(i)
		m.Record(doc)
	}
	if m.Len() != 3 || m.Cursor() != 2 {
		t.Fatalf("len = %d cursor = %d", m.Len(), m.Cursor())
	}
	m.Undo(doc)
	m.Undo(doc)
	if firstText(doc) != "2" {
		t.Errorf("oldest retained = %q, want 2", firstText(doc))
	}
	if m.Undo(doc) {
		t.Error("evicted entries must not be reachable")
	}
}

func TestPush_SkipsDuplicates(t *testing.T) {
	doc := newDoc("same")
	m := New()
	if !m.Record(doc) {
		t.Fatal("first record should store")
	}
	if m.Record(doc) {
		t.Error("identical state should not add an entry")
	}
	if m.Len() != 1 {
		t.Errorf("len = %d", m.Len())
	}
}

func TestRecordDebounced_Coalesces(t *testing.T) {
	sched := &fakeScheduler{}
	doc := newDoc("")
	m := New(WithScheduler(sched), WithQuietPeriod(time.Second))
	m.Record(doc)
	for _, text := range []string{"h", "he", "hel", "hello"} {
		doc.Root.Children[0].Text = text
		m.RecordDebounced(doc)
	}
	if sched.active() != 1 {
		t.Fatalf("active timers = %d, want 1", sched.active())
	}
	if sched.last != time.Second {
		t.Errorf("quiet period = %v", sched.last)
	}
	sched.fire()
	if m.Pending() {
		t.Error("nothing should be pending after the timer fires")
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	m.Undo(doc)
	if firstText(doc) != "" {
		t.Errorf("undo should drop the whole burst, text = %q", firstText(doc))
	}
}

func TestUndo_FlushesPendingTyping(t *testing.T) {
	sched := &fakeScheduler{}
	doc := newDoc("")
	m := New(WithScheduler(sched))
	m.Record(doc)
	doc.Root.Children[0].Text = "typed"
	m.RecordDebounced(doc)

	if !m.Undo(doc) {
		t.Fatal("undo did nothing")
	}
	if sched.active() != 0 {
		t.Error("flush should cancel the timer")
	}
	if firstText(doc) != "" {
		t.Errorf("text = %q", firstText(doc))
	}
	m.Redo(doc)
	if firstText(doc) != "typed" {
		t.Errorf("redo text = %q, want typed", firstText(doc))
	}
}

func TestRecord_DropsPendingTimer(t *testing.T) {
	sched := &fakeScheduler{}
	doc := newDoc("")
	m := New(WithScheduler(sched))
	doc.Root.Children[0].Text = "draft"
	m.RecordDebounced(doc)
	stale := sched.timers[0]

	m.Record(doc)
	if m.Pending() {
		t.Error("record should cancel the pending timer")
	}
	// Deliver the stopped timer anyway, as a racing time.Timer might.
	doc.Root.Children[0].Text = "later"
	stale.f()
	if m.Len() != 1 {
		t.Errorf("stale timer recorded a snapshot, len = %d", m.Len())
	}
}

func TestRestoreHook_IsSuppressed(t *testing.T) {
	doc := newDoc("a")
	var m *Manager
	calls := 0
	m = New(WithRestoreHook(func(d *models.Document) {
		calls++
		if !m.Suppressed() {
			t.Error("hook should run while suppressed")
		}
		if m.Record(d) {
			t.Error("record during restore must be ignored")
		}
		m.RecordDebounced(d)
	}))
	m.Record(doc)
	doc.Root.Children[0].Text = "b"
	m.Undo(doc)
	if calls != 1 {
		t.Errorf("hook calls = %d", calls)
	}
	if m.Pending() {
		t.Error("debounced record during restore must be ignored")
	}
	if m.Len() != 2 {
		t.Errorf("len = %d, want 2", m.Len())
	}
}

func TestUndo_RestoresPathAndTitle(t *testing.T) {
	doc := newDoc("a")
	m := New()
	m.Record(doc)
	doc.Title = "Renamed"
	outline.ZoomIn(doc, doc.Root.Children[0].ID)
	m.Undo(doc)
	if doc.Title != "Test" || len(doc.CurrentPath) != 0 {
		t.Errorf("title = %q path = %v", doc.Title, doc.CurrentPath)
	}
}

func TestCanUndo(t *testing.T) {
	doc := newDoc("a")
	m := New()
	m.Reset(doc)
	if m.CanUndo(doc) {
		t.Error("fresh history has nothing to undo")
	}
	doc.Root.Children[0].Text = "b"
	if !m.CanUndo(doc) {
		t.Error("unrecorded change at the tip should be undoable")
	}
}
