package outline

import "github.com/starford/outliner/internal/models"

// Selection is a contiguous range of visible nodes between an anchor and a
// focus. The anchor stays put while the focus moves.
type Selection struct {
	Anchor string `json:"anchor,omitempty"`
	Focus  string `json:"focus,omitempty"`
}

// Active reports whether an anchor is set.
func (s *Selection) Active() bool {
	return s.Anchor != ""
}

// Clear drops both ends.
func (s *Selection) Clear() {
	s.Anchor, s.Focus = "", ""
}

// Range returns the visible nodes between anchor and focus inclusive, in
// document order. Without an anchor the range is empty; without a focus it
// is the anchor alone.
func (s *Selection) Range(root *models.Node) []*models.Node {
	if s.Anchor == "" {
		return nil
	}
	flat := FlattenVisible(root)
	ai := IndexOf(flat, s.Anchor)
	if ai < 0 {
		return nil
	}
	fi := ai
	if s.Focus != "" {
		if i := IndexOf(flat, s.Focus); i >= 0 {
			fi = i
		}
	}
	lo, hi := min(ai, fi), max(ai, fi)
	return append([]*models.Node{}, flat[lo:hi+1]...)
}

// IDs returns the ids of Range.
func (s *Selection) IDs(root *models.Node) []string {
	nodes := s.Range(root)
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

// Extend moves the focus one visible node up or down starting from current,
// anchoring at current when no selection is active. It reports whether the
// focus moved.
func (s *Selection) Extend(root *models.Node, current string, dir models.Direction) bool {
	flat := FlattenVisible(root)
	if IndexOf(flat, current) < 0 && s.Anchor == "" {
		return false
	}
	if s.Anchor == "" {
		s.Anchor = current
	}
	from := s.Focus
	if from == "" {
		from = current
	}
	i := IndexOf(flat, from)
	if i < 0 {
		return false
	}
	switch dir {
	case models.Up:
		if i == 0 {
			return false
		}
		s.Focus = flat[i-1].ID
	case models.Down:
		if i >= len(flat)-1 {
			return false
		}
		s.Focus = flat[i+1].ID
	default:
		return false
	}
	return true
}
