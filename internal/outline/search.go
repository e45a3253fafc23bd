package outline

import (
	"strings"

	"github.com/starford/outliner/internal/models"
)

// Match returns the ids below root whose text or note contains query,
// ignoring case, together with every ancestor of such a node. Collapsed
// subtrees are searched too. An empty query matches nothing.
func Match(root *models.Node, query string) map[string]bool {
	out := make(map[string]bool)
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return out
	}
	var visit func(n *models.Node) bool
	visit = func(n *models.Node) bool {
		hit := strings.Contains(strings.ToLower(n.Text), q) || strings.Contains(strings.ToLower(n.Note), q)
		for _, c := range n.Children {
			if visit(c) {
				hit = true
			}
		}
		if hit {
			out[n.ID] = true
		}
		return hit
	}
	for _, c := range root.Children {
		visit(c)
	}
	return out
}
