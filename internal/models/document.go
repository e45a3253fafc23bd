// Package models defines the domain types for the outliner.
package models

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// CurrentVersion is the document schema version written by this build.
const CurrentVersion = 1

// DefaultTitle is used when a document carries no title.
const DefaultTitle = "Outline"

// CalendarType tags nodes that belong to the auto-generated calendar hierarchy.
type CalendarType string

// Calendar node kinds.
const (
	CalendarNone  CalendarType = ""
	CalendarRoot  CalendarType = "root"
	CalendarYear  CalendarType = "year"
	CalendarMonth CalendarType = "month"
	CalendarDay   CalendarType = "day"
)

// IsDate reports whether nodes of this kind have generated, read-only text.
func (c CalendarType) IsDate() bool {
	return c == CalendarYear || c == CalendarMonth || c == CalendarDay
}

// Node is one entry of the outline. A node owns its children exclusively;
// parentage is implied by containment and never stored.
type Node struct {
	ID           string       `json:"id" yaml:"id"`
	Text         string       `json:"text" yaml:"text"`
	Note         string       `json:"note" yaml:"note"`
	Children     []*Node      `json:"children" yaml:"children"`
	Collapsed    bool         `json:"collapsed" yaml:"collapsed"`
	Checked      *bool        `json:"checked,omitempty" yaml:"checked,omitempty"`
	CalendarType CalendarType `json:"calendarType,omitempty" yaml:"calendarType,omitempty"`
}

// IsChecklist reports whether the node is a checklist item.
func (n *Node) IsChecklist() bool {
	return n.Checked != nil
}

// IsDone reports whether the node is a checked checklist item.
func (n *Node) IsDone() bool {
	return n.Checked != nil && *n.Checked
}

// HasVisibleChildren reports whether the node has children that are shown.
func (n *Node) HasVisibleChildren() bool {
	return len(n.Children) > 0 && !n.Collapsed
}

// TextLen returns the length of Text in characters, the unit used by caret offsets.
func (n *Node) TextLen() int {
	return utf8.RuneCountInString(n.Text)
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Checked != nil {
		v := *n.Checked
		c.Checked = &v
	}
	c.Children = make([]*Node, len(n.Children))
	for i, ch := range n.Children {
		c.Children[i] = ch.Clone()
	}
	return &c
}

// Bool returns a pointer to v, for populating Checked.
func Bool(v bool) *bool {
	return &v
}

// Document is one outline: a root node that is never shown plus view state.
type Document struct {
	Root        *Node    `json:"root" yaml:"root"`
	CurrentPath []string `json:"currentPath" yaml:"currentPath"`
	Title       string   `json:"title" yaml:"title"`
	PinnedItems []string `json:"pinnedItems" yaml:"pinnedItems"`
	Version     int      `json:"version" yaml:"version"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Root:        d.Root.Clone(),
		CurrentPath: append([]string{}, d.CurrentPath...),
		Title:       d.Title,
		PinnedItems: append([]string{}, d.PinnedItems...),
		Version:     d.Version,
	}
}

// Position is where Move places a node relative to its target.
type Position string

// Move positions.
const (
	Before Position = "before"
	After  Position = "after"
	Child  Position = "child"
)

// Valid reports whether p is a known position.
func (p Position) Valid() bool {
	return p == Before || p == After || p == Child
}

// Direction is the sibling direction used by Reorder.
type Direction string

// Reorder directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// KeepOffset marks a focus directive that leaves the caret where it is.
const KeepOffset = -1

// Focus tells the presentation layer which node to focus after a mutation.
// The zero value is "no directive".
type Focus struct {
	NodeID string
	Offset int
}

// FocusAt returns a directive for id with the caret at offset.
func FocusAt(id string, offset int) Focus {
	return Focus{NodeID: id, Offset: offset}
}

// FocusOn returns a directive for id that keeps the current caret offset.
func FocusOn(id string) Focus {
	return Focus{NodeID: id, Offset: KeepOffset}
}

// IsZero reports whether f carries no directive.
func (f Focus) IsZero() bool {
	return f.NodeID == ""
}

type focusJSON struct {
	NodeID *string `json:"nodeId"`
	Offset *int    `json:"offset"`
}

// MarshalJSON encodes absent fields as null.
func (f Focus) MarshalJSON() ([]byte, error) {
	var out focusJSON
	if f.NodeID != "" {
		id := f.NodeID
		out.NodeID = &id
		if f.Offset != KeepOffset {
			off := f.Offset
			out.Offset = &off
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON.
func (f *Focus) UnmarshalJSON(data []byte) error {
	var in focusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*f = Focus{Offset: KeepOffset}
	if in.NodeID != nil {
		f.NodeID = *in.NodeID
	}
	if in.Offset != nil {
		f.Offset = *in.Offset
	}
	return nil
}

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
