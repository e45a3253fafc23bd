package outline

import (
	"github.com/google/uuid"

	"github.com/starford/outliner/internal/models"
)

// NewID returns a fresh node identifier.
func NewID() string {
	return uuid.NewString()
}

// NewNode creates a detached node with a fresh id.
func NewNode(text string, checked *bool) *models.Node {
	return &models.Node{
		ID:       NewID(),
		Text:     text,
		Children: []*models.Node{},
		Checked:  checked,
	}
}

// NewDocument returns a document holding one empty top-level node.
func NewDocument(title string) *models.Document {
	if title == "" {
		title = models.DefaultTitle
	}
	root := NewNode("", nil)
	root.Children = append(root.Children, NewNode("", nil))
	return &models.Document{
		Root:        root,
		CurrentPath: []string{},
		Title:       title,
		PinnedItems: []string{},
		Version:     models.CurrentVersion,
	}
}

// EnsureChild gives n one empty child when it has none and reports whether
// it did so.
func EnsureChild(n *models.Node) (*models.Node, bool) {
	if len(n.Children) > 0 {
		return nil, false
	}
	c := NewNode("", nil)
	n.Children = append(n.Children, c)
	return c, true
}

func insertAt(parent *models.Node, index int, n *models.Node) {
	if index < 0 {
		index = 0
	}
	if index > len(parent.Children) {
		index = len(parent.Children)
	}
	parent.Children = append(parent.Children, nil)
	copy(parent.Children[index+1:], parent.Children[index:])
	parent.Children[index] = n
}

func removeAt(parent *models.Node, index int) *models.Node {
	n := parent.Children[index]
	parent.Children = append(parent.Children[:index], parent.Children[index+1:]...)
	return n
}
