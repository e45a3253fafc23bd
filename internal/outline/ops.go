package outline

import (
	"sort"

	"github.com/starford/outliner/internal/models"
)

// All structural operations resolve the zoom root from doc, work relative to
// it, and report whether the tree changed. A false result is the only failure
// signal: illegal requests leave the tree untouched. History bookkeeping is
// the caller's job.

// Split divides the node's text at offset (in characters). The node keeps the
// text before the caret; a new node gets the rest. The new node becomes the
// node's first child when the node has visible children, its next sibling
// otherwise.
func Split(doc *models.Document, id string, offset int) (models.Focus, bool) {
	root := ResolveZoomRoot(doc)
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil || loc.Node.CalendarType.IsDate() {
		return models.Focus{}, false
	}
	node := loc.Node
	runes := []rune(node.Text)
	offset = clamp(offset, 0, len(runes))

	var checked *bool
	if node.IsChecklist() {
		checked = models.Bool(false)
	}
	created := NewNode(string(runes[offset:]), checked)
	node.Text = string(runes[:offset])

	if node.HasVisibleChildren() {
		insertAt(node, 0, created)
	} else {
		insertAt(loc.Parent, loc.Index+1, created)
	}
	return models.FocusAt(created.ID, 0), true
}

// Merge appends the node's text and children to the previous visible node
// and removes the node. The first visible node cannot be merged.
func Merge(doc *models.Document, id string) (models.Focus, bool) {
	root := ResolveZoomRoot(doc)
	flat := FlattenVisible(root)
	idx := IndexOf(flat, id)
	if idx <= 0 {
		return models.Focus{}, false
	}
	node, prev := flat[idx], flat[idx-1]
	if node.CalendarType.IsDate() || prev.CalendarType.IsDate() {
		return models.Focus{}, false
	}
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil {
		return models.Focus{}, false
	}

	prevLen := prev.TextLen()
	prev.Text += node.Text
	removeAt(loc.Parent, loc.Index)
	prev.Children = append(prev.Children, node.Children...)
	return models.FocusAt(prev.ID, prevLen), true
}

// Indent makes the node the last child of its previous sibling, expanding
// that sibling. A first child cannot be indented.
func Indent(doc *models.Document, id string) (models.Focus, bool) {
	return indent(ResolveZoomRoot(doc), id)
}

func indent(root *models.Node, id string) (models.Focus, bool) {
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil || loc.Index == 0 {
		return models.Focus{}, false
	}
	prev := loc.Parent.Children[loc.Index-1]
	removeAt(loc.Parent, loc.Index)
	prev.Collapsed = false
	prev.Children = append(prev.Children, loc.Node)
	return models.FocusOn(id), true
}

// Outdent moves the node next to its parent. Its younger siblings become its
// last children. Nodes directly under the zoom root stay put.
func Outdent(doc *models.Document, id string) (models.Focus, bool) {
	return outdent(ResolveZoomRoot(doc), id)
}

func outdent(root *models.Node, id string) (models.Focus, bool) {
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil || loc.Parent == root {
		return models.Focus{}, false
	}
	parentLoc, ok := Locate(root, loc.Parent.ID)
	if !ok || parentLoc.Parent == nil {
		return models.Focus{}, false
	}
	parent, node := loc.Parent, loc.Node

	younger := append([]*models.Node{}, parent.Children[loc.Index+1:]...)
	parent.Children = parent.Children[:loc.Index:loc.Index]
	node.Children = append(node.Children, younger...)
	insertAt(parentLoc.Parent, parentLoc.Index+1, node)
	return models.FocusOn(id), true
}

// IndentMany indents ids first to last so that a run of siblings lands under
// the same new parent. Indenting last to first instead would nest each
// sibling one level below the previous one. It reports whether any node
// moved.
func IndentMany(doc *models.Document, ids []string) bool {
	root := ResolveZoomRoot(doc)
	changed := false
	for _, id := range ids {
		if _, ok := indent(root, id); ok {
			changed = true
		}
	}
	return changed
}

// OutdentMany outdents ids in order.
func OutdentMany(doc *models.Document, ids []string) bool {
	root := ResolveZoomRoot(doc)
	changed := false
	for _, id := range ids {
		if _, ok := outdent(root, id); ok {
			changed = true
		}
	}
	return changed
}

// Move detaches the node and reinserts it before, after, or as the first
// child of target. Moving a node onto itself or into its own subtree is
// rejected.
func Move(doc *models.Document, id, targetID string, pos models.Position) (models.Focus, bool) {
	if !pos.Valid() || id == targetID {
		return models.Focus{}, false
	}
	root := ResolveZoomRoot(doc)
	src, ok := Locate(root, id)
	if !ok || src.Parent == nil || IsAncestorOrSelf(src.Node, targetID) {
		return models.Focus{}, false
	}
	tgt, ok := Locate(root, targetID)
	if !ok || (pos != models.Child && tgt.Parent == nil) {
		return models.Focus{}, false
	}

	removeAt(src.Parent, src.Index)
	// Removal may shift the target's index.
	tgt, _ = Locate(root, targetID)
	switch pos {
	case models.Child:
		tgt.Node.Collapsed = false
		insertAt(tgt.Node, 0, src.Node)
	case models.Before:
		insertAt(tgt.Parent, tgt.Index, src.Node)
	case models.After:
		insertAt(tgt.Parent, tgt.Index+1, src.Node)
	}
	return models.FocusOn(id), true
}

// Reorder swaps the node with its previous (Up) or next (Down) sibling.
func Reorder(doc *models.Document, id string, dir models.Direction) (models.Focus, bool) {
	root := ResolveZoomRoot(doc)
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil {
		return models.Focus{}, false
	}
	sibs := loc.Parent.Children
	var other int
	switch dir {
	case models.Up:
		other = loc.Index - 1
	case models.Down:
		other = loc.Index + 1
	default:
		return models.Focus{}, false
	}
	if other < 0 || other >= len(sibs) {
		return models.Focus{}, false
	}
	sibs[loc.Index], sibs[other] = sibs[other], sibs[loc.Index]
	return models.FocusOn(id), true
}

// Delete removes the node and its subtree. The sole child of the zoom root
// is never removed. Focus moves to the previous visible node, or to the next
// one outside the removed subtree.
func Delete(doc *models.Document, id string) (models.Focus, bool) {
	root := ResolveZoomRoot(doc)
	loc, ok := Locate(root, id)
	if !ok || loc.Parent == nil || guardsLastTopLevel(root, loc) {
		return models.Focus{}, false
	}

	var focus models.Focus
	flat := FlattenVisible(root)
	if i := IndexOf(flat, id); i >= 0 {
		var target *models.Node
		if i > 0 {
			target = flat[i-1]
		} else {
			for _, n := range flat[i+1:] {
				if !IsAncestorOrSelf(loc.Node, n.ID) {
					target = n
					break
				}
			}
		}
		if target != nil {
			focus = models.FocusAt(target.ID, target.TextLen())
		}
	}

	removeAt(loc.Parent, loc.Index)
	return focus, true
}

func guardsLastTopLevel(root *models.Node, loc Location) bool {
	return loc.Parent == root && len(root.Children) == 1
}

// RangedDelete deletes ids from last to first in document order, skipping
// any id whose removal would empty the zoom root. Focus goes to the nearest
// surviving unselected visible node before the range, else after it; when
// none exists no directive is returned.
func RangedDelete(doc *models.Document, ids []string) (models.Focus, bool) {
	root := ResolveZoomRoot(doc)
	selected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}

	order := documentOrder(root)
	targets := make([]string, 0, len(ids))
	for id := range selected {
		if _, ok := order[id]; ok {
			targets = append(targets, id)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return order[targets[i]] > order[targets[j]] })

	flat := FlattenVisible(root)
	first, last := -1, -1
	for i, n := range flat {
		if _, ok := selected[n.ID]; ok {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	changed := false
	for _, id := range targets {
		loc, ok := Locate(root, id)
		if !ok || loc.Parent == nil || guardsLastTopLevel(root, loc) {
			continue
		}
		removeAt(loc.Parent, loc.Index)
		changed = true
	}
	if !changed {
		return models.Focus{}, false
	}
	if first < 0 {
		return models.Focus{}, true
	}

	alive := func(n *models.Node) bool {
		if _, sel := selected[n.ID]; sel {
			return false
		}
		_, ok := Locate(root, n.ID)
		return ok
	}
	for i := first - 1; i >= 0; i-- {
		if alive(flat[i]) {
			return models.FocusAt(flat[i].ID, flat[i].TextLen()), true
		}
	}
	for i := last + 1; i < len(flat); i++ {
		if alive(flat[i]) {
			return models.FocusAt(flat[i].ID, flat[i].TextLen()), true
		}
	}
	return models.Focus{}, true
}

func documentOrder(root *models.Node) map[string]int {
	order := make(map[string]int)
	i := 0
	Walk(root, func(n *models.Node, _ int) bool {
		order[n.ID] = i
		i++
		return true
	})
	return order
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
