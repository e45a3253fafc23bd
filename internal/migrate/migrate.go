// Package migrate upgrades previously serialized documents of unknown or
// older shape into the current models.Document.
//
// Migration runs on the loosely typed map produced by parser.Decode. Every
// missing field gets its default and nodes without an id get a fresh one.
// Only a document with no root object is rejected.
package migrate

import (
	"errors"
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/parser"
)

// ErrNoRoot is returned for input that has no root node.
var ErrNoRoot = fmt.Errorf("%w: missing root", apperr.ErrInvalidDocument)

// step upgrades raw from version i to i+1 in place.
type step func(raw map[string]any)

// steps[i] upgrades version i to i+1. Unversioned input counts as version 0;
// apart from the missing version field its shape matches version 1.
var steps = []step{
	func(raw map[string]any) { raw["version"] = 1 },
}

// Decode parses data as JSON, YAML or OPML and migrates it.
func Decode(data []byte) (*models.Document, error) {
	raw, err := parser.Decode(data)
	if err != nil {
		return nil, err
	}
	return FromMap(raw)
}

// FromMap migrates raw to the current version and converts it.
func FromMap(raw map[string]any) (*models.Document, error) {
	if _, ok := raw["root"].(map[string]any); !ok {
		return nil, ErrNoRoot
	}
	for v := max(intValue(raw["version"]), 0); v < len(steps) && v < models.CurrentVersion; v++ {
		steps[v](raw)
	}
	// Repair runs on every load so a hand-edited current-version file still
	// gets ids and defaults.
	fillDefaults(raw)

	doc := &models.Document{
		Root:        toNode(raw["root"].(map[string]any)),
		CurrentPath: stringList(raw["currentPath"]),
		Title:       stringValue(raw["title"]),
		PinnedItems: stringList(raw["pinnedItems"]),
		Version:     models.CurrentVersion,
	}
	dedupeIDs(doc.Root)
	outline.ResolveZoomRoot(doc)
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fillDefaults(raw map[string]any) {
	if _, ok := raw["currentPath"].([]any); !ok {
		raw["currentPath"] = []any{}
	}
	if s, _ := raw["title"].(string); s == "" {
		raw["title"] = models.DefaultTitle
	}
	if _, ok := raw["pinnedItems"].([]any); !ok {
		raw["pinnedItems"] = []any{}
	}
	if intValue(raw["version"]) < 1 {
		raw["version"] = 1
	}
	fillNode(raw["root"].(map[string]any))
}

func fillNode(n map[string]any) {
	if s := stringValue(n["id"]); s == "" {
		n["id"] = outline.NewID()
	}
	for _, key := range []string{"text", "note"} {
		if _, ok := n[key].(string); !ok {
			n[key] = stringValue(n[key])
		}
	}
	if _, ok := n["collapsed"].(bool); !ok {
		n["collapsed"] = false
	}
	children, ok := n["children"].([]any)
	if !ok {
		children = []any{}
	}
	kept := children[:0]
	for _, c := range children {
		if m, ok := c.(map[string]any); ok {
			fillNode(m)
			kept = append(kept, m)
		}
	}
	n["children"] = kept
}

func toNode(m map[string]any) *models.Node {
	n := &models.Node{
		ID:           stringValue(m["id"]),
		Text:         stringValue(m["text"]),
		Note:         stringValue(m["note"]),
		Collapsed:    m["collapsed"] == true,
		CalendarType: models.CalendarType(stringValue(m["calendarType"])),
		Children:     []*models.Node{},
	}
	if b, ok := m["checked"].(bool); ok {
		n.Checked = models.Bool(b)
	}
	switch n.CalendarType {
	case models.CalendarNone, models.CalendarRoot, models.CalendarYear, models.CalendarMonth, models.CalendarDay:
	default:
		n.CalendarType = models.CalendarNone
	}
	for _, c := range m["children"].([]any) {
		n.Children = append(n.Children, toNode(c.(map[string]any)))
	}
	return n
}

// dedupeIDs gives a fresh id to every node whose id was already seen.
func dedupeIDs(root *models.Node) {
	seen := map[string]bool{root.ID: true}
	outline.Walk(root, func(n *models.Node, _ int) bool {
		if seen[n.ID] {
			n.ID = outline.NewID()
		}
		seen[n.ID] = true
		return true
	})
}

// Validate checks the invariants a migrated document must hold.
func Validate(doc *models.Document) error {
	err := validation.ValidateStruct(doc,
		validation.Field(&doc.Root, validation.NotNil),
		validation.Field(&doc.Title, validation.Required),
		validation.Field(&doc.Version, validation.Required, validation.Min(1), validation.Max(models.CurrentVersion)),
	)
	if err != nil {
		return fmt.Errorf("migrate: validate: %w: %v", apperr.ErrInvalidDocument, err)
	}
	var verr error
	outline.Walk(doc.Root, func(n *models.Node, _ int) bool {
		if n.ID == "" {
			verr = errors.New("node without id")
			return false
		}
		return true
	})
	if verr != nil {
		return fmt.Errorf("migrate: validate: %w: %v", apperr.ErrInvalidDocument, verr)
	}
	return nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(s)
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
