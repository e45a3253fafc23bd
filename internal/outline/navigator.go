// Package outline implements the tree engine: read queries over a document's
// node tree, the structural mutations that keep it consistent, contiguous
// selection, and zoom path resolution.
//
// Every function takes the document (or a subtree root) explicitly and works
// on node ids, never on handles retained across calls. Parent links are
// recomputed with Locate whenever they are needed.
package outline

import "github.com/starford/outliner/internal/models"

// Location is a node together with its owning parent and sibling index.
// Parent is nil only for the search root itself.
type Location struct {
	Node   *models.Node
	Parent *models.Node
	Index  int
}

// ResolveZoomRoot walks doc.CurrentPath from the document root. When an id
// does not resolve, the path is reset and the document root is returned.
func ResolveZoomRoot(doc *models.Document) *models.Node {
	node := doc.Root
	for _, id := range doc.CurrentPath {
		next := childByID(node, id)
		if next == nil {
			doc.CurrentPath = []string{}
			return doc.Root
		}
		node = next
	}
	return node
}

func childByID(n *models.Node, id string) *models.Node {
	for _, c := range n.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Locate finds id in the subtree rooted at root, depth first.
func Locate(root *models.Node, id string) (Location, bool) {
	if root == nil {
		return Location{}, false
	}
	if root.ID == id {
		return Location{Node: root}, true
	}
	return locateIn(root, id)
}

func locateIn(parent *models.Node, id string) (Location, bool) {
	for i, c := range parent.Children {
		if c.ID == id {
			return Location{Node: c, Parent: parent, Index: i}, true
		}
		if loc, ok := locateIn(c, id); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// Find returns the node with id under root, or nil.
func Find(root *models.Node, id string) *models.Node {
	loc, ok := Locate(root, id)
	if !ok {
		return nil
	}
	return loc.Node
}

// FlattenVisible lists root's descendants in document order, descending only
// into nodes that are not collapsed. root itself is excluded.
func FlattenVisible(root *models.Node) []*models.Node {
	var out []*models.Node
	var walk func(n *models.Node)
	walk = func(n *models.Node) {
		out = append(out, n)
		if n.Collapsed {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, c := range root.Children {
		walk(c)
	}
	return out
}

// Row is a visible node with its depth below the zoom root (top level is 0).
type Row struct {
	Node  *models.Node
	Depth int
}

// VisibleRows is FlattenVisible with nesting depth, for renderers.
func VisibleRows(root *models.Node) []Row {
	var out []Row
	var walk func(n *models.Node, depth int)
	walk = func(n *models.Node, depth int) {
		out = append(out, Row{Node: n, Depth: depth})
		if n.Collapsed {
			return
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, c := range root.Children {
		walk(c, 0)
	}
	return out
}

// PathTo returns the ids from (but excluding) from down to and including
// id. The first match in depth-first order wins.
func PathTo(from *models.Node, id string) ([]string, bool) {
	for _, c := range from.Children {
		if c.ID == id {
			return []string{c.ID}, true
		}
		if rest, ok := PathTo(c, id); ok {
			return append([]string{c.ID}, rest...), true
		}
	}
	return nil, false
}

// IsAncestorOrSelf reports whether the node with id b lies in the subtree
// rooted at a, a included.
func IsAncestorOrSelf(a *models.Node, b string) bool {
	if a == nil {
		return false
	}
	if a.ID == b {
		return true
	}
	for _, c := range a.Children {
		if IsAncestorOrSelf(c, b) {
			return true
		}
	}
	return false
}

// IndexOf returns the position of id in nodes, or -1.
func IndexOf(nodes []*models.Node, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// PrevVisible returns the visible node before id under root.
func PrevVisible(root *models.Node, id string) (*models.Node, bool) {
	flat := FlattenVisible(root)
	i := IndexOf(flat, id)
	if i <= 0 {
		return nil, false
	}
	return flat[i-1], true
}

// NextVisible returns the visible node after id under root.
func NextVisible(root *models.Node, id string) (*models.Node, bool) {
	flat := FlattenVisible(root)
	i := IndexOf(flat, id)
	if i < 0 || i >= len(flat)-1 {
		return nil, false
	}
	return flat[i+1], true
}

// Walk visits every node under root in document order, root excluded,
// regardless of collapsed state. Returning false stops the walk.
func Walk(root *models.Node, fn func(n *models.Node, depth int) bool) {
	var walk func(n *models.Node, depth int) bool
	walk = func(n *models.Node, depth int) bool {
		if !fn(n, depth) {
			return false
		}
		for _, c := range n.Children {
			if !walk(c, depth+1) {
				return false
			}
		}
		return true
	}
	for _, c := range root.Children {
		if !walk(c, 0) {
			return
		}
	}
}
