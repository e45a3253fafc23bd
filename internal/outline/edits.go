package outline

import (
	"strings"

	"github.com/starford/outliner/internal/models"
)

var checklistPrefixes = []string{"[ ] ", "[] "}

// SetText replaces the node's text. Calendar date nodes are read-only. A
// plain node whose new text starts with "[ ] " becomes an unchecked
// checklist item and the marker is dropped.
func SetText(doc *models.Document, id, text string) (models.Focus, bool) {
	n := Find(doc.Root, id)
	if n == nil || n == doc.Root || n.CalendarType.IsDate() {
		return models.Focus{}, false
	}
	if !n.IsChecklist() {
		for _, p := range checklistPrefixes {
			if strings.HasPrefix(text, p) {
				n.Checked = models.Bool(false)
				n.Text = strings.TrimPrefix(text, p)
				return models.FocusAt(id, 0), true
			}
		}
	}
	if n.Text == text {
		return models.Focus{}, false
	}
	n.Text = text
	return models.Focus{}, true
}

// SetNote replaces the node's note.
func SetNote(doc *models.Document, id, note string) bool {
	n := Find(doc.Root, id)
	if n == nil || n == doc.Root || n.Note == note {
		return false
	}
	n.Note = note
	return true
}

// ToggleChecked flips a checklist item. Plain nodes are left alone.
func ToggleChecked(doc *models.Document, id string) (models.Focus, bool) {
	n := Find(doc.Root, id)
	if n == nil || !n.IsChecklist() {
		return models.Focus{}, false
	}
	n.Checked = models.Bool(!*n.Checked)
	return models.FocusOn(id), true
}

// MakeChecklist turns a plain node into an unchecked checklist item.
func MakeChecklist(doc *models.Document, id string) (models.Focus, bool) {
	n := Find(doc.Root, id)
	if n == nil || n == doc.Root || n.IsChecklist() {
		return models.Focus{}, false
	}
	n.Checked = models.Bool(false)
	return models.FocusOn(id), true
}

// ClearChecklist turns a checklist item back into a plain node.
func ClearChecklist(doc *models.Document, id string) (models.Focus, bool) {
	n := Find(doc.Root, id)
	if n == nil || !n.IsChecklist() {
		return models.Focus{}, false
	}
	n.Checked = nil
	return models.FocusAt(id, 0), true
}

// SetCollapsed collapses or expands a node that has children.
func SetCollapsed(doc *models.Document, id string, collapsed bool) (models.Focus, bool) {
	n := Find(doc.Root, id)
	if n == nil || n == doc.Root || len(n.Children) == 0 || n.Collapsed == collapsed {
		return models.Focus{}, false
	}
	n.Collapsed = collapsed
	return models.FocusOn(id), true
}

// ToggleCollapsed flips the collapsed flag of a node that has children.
func ToggleCollapsed(doc *models.Document, id string) (models.Focus, bool) {
	n := Find(doc.Root, id)
	if n == nil {
		return models.Focus{}, false
	}
	return SetCollapsed(doc, id, !n.Collapsed)
}

// CollapseParent collapses the node's parent and focuses it. Children of the
// zoom root have no collapsible parent.
func CollapseParent(doc *models.Document, id string) (models.Focus, bool) {
	root := ResolveZoomRoot(doc)
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil || loc.Parent == root {
		return models.Focus{}, false
	}
	loc.Parent.Collapsed = true
	return models.FocusAt(loc.Parent.ID, 0), true
}
