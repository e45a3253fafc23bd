package outline

import "github.com/starford/outliner/internal/models"

// ZoomIn replaces the current path with the full path from the document
// root to id.
func ZoomIn(doc *models.Document, id string) bool {
	path, ok := PathTo(doc.Root, id)
	if !ok {
		return false
	}
	doc.CurrentPath = path
	return true
}

// ZoomOut drops the last id of the current path.
func ZoomOut(doc *models.Document) bool {
	ResolveZoomRoot(doc)
	if len(doc.CurrentPath) == 0 {
		return false
	}
	doc.CurrentPath = doc.CurrentPath[:len(doc.CurrentPath)-1]
	return true
}

// ZoomHome returns to the document root.
func ZoomHome(doc *models.Document) bool {
	if len(doc.CurrentPath) == 0 {
		return false
	}
	doc.CurrentPath = []string{}
	return true
}

// Breadcrumb returns the nodes along the current path, outermost first.
func Breadcrumb(doc *models.Document) []*models.Node {
	ResolveZoomRoot(doc)
	out := make([]*models.Node, 0, len(doc.CurrentPath))
	node := doc.Root
	for _, id := range doc.CurrentPath {
		node = childByID(node, id)
		out = append(out, node)
	}
	return out
}

// AddPin appends id to the pinned items. Unknown ids and duplicates are
// rejected.
func AddPin(doc *models.Document, id string) bool {
	if Find(doc.Root, id) == nil || id == doc.Root.ID {
		return false
	}
	for _, p := range doc.PinnedItems {
		if p == id {
			return false
		}
	}
	doc.PinnedItems = append(doc.PinnedItems, id)
	return true
}

// RemovePin drops id from the pinned items.
func RemovePin(doc *models.Document, id string) bool {
	for i, p := range doc.PinnedItems {
		if p == id {
			doc.PinnedItems = append(doc.PinnedItems[:i], doc.PinnedItems[i+1:]...)
			return true
		}
	}
	return false
}

// MovePin moves the pin at index from to index to.
func MovePin(doc *models.Document, from, to int) bool {
	n := len(doc.PinnedItems)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	id := doc.PinnedItems[from]
	pins := append(doc.PinnedItems[:from:from], doc.PinnedItems[from+1:]...)
	pins = append(pins[:to], append([]string{id}, pins[to:]...)...)
	doc.PinnedItems = pins
	return true
}

// PrunePins drops pinned ids that no longer resolve and reports how many
// were removed.
func PrunePins(doc *models.Document) int {
	kept := doc.PinnedItems[:0:0]
	for _, id := range doc.PinnedItems {
		if Find(doc.Root, id) != nil {
			kept = append(kept, id)
		}
	}
	removed := len(doc.PinnedItems) - len(kept)
	doc.PinnedItems = kept
	return removed
}
