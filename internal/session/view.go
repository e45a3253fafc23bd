package session

import (
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
)

// Row is one visible node as a renderer draws it.
type Row struct {
	ID           string              `json:"id"`
	Text         string              `json:"text"`
	Note         string              `json:"note,omitempty"`
	Depth        int                 `json:"depth"`
	Checked      *bool               `json:"checked,omitempty"`
	Collapsed    bool                `json:"collapsed,omitempty"`
	HasChildren  bool                `json:"hasChildren,omitempty"`
	CalendarType models.CalendarType `json:"calendarType,omitempty"`
	Selected     bool                `json:"selected,omitempty"`
}

// Crumb is one ancestor in the zoom path.
type Crumb struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// View is everything a renderer needs for one frame.
type View struct {
	Title      string   `json:"title"`
	Breadcrumb []Crumb  `json:"breadcrumb"`
	Rows       []Row    `json:"rows"`
	Pins       []Crumb  `json:"pins"`
	Selection  []string `json:"selection"`
	CanUndo    bool     `json:"canUndo"`
	CanRedo    bool     `json:"canRedo"`
}

// ViewFilter narrows the rows of a View.
type ViewFilter struct {
	// Query keeps rows whose text or note matches, plus their ancestors.
	Query string
	// HideChecked drops completed checklist items together with their
	// subtrees.
	HideChecked bool
}

// View renders the visible tree below the zoom root. Stale pins are left out.
func (s *Session) View(f ViewFilter) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.doc
	root := outline.ResolveZoomRoot(doc)
	v := View{
		Title:      doc.Title,
		Breadcrumb: []Crumb{},
		Rows:       []Row{},
		Pins:       []Crumb{},
		Selection:  s.sel.IDs(root),
		CanUndo:    s.hist.CanUndo(doc),
		CanRedo:    s.hist.CanRedo(),
	}
	for _, n := range outline.Breadcrumb(doc) {
		v.Breadcrumb = append(v.Breadcrumb, Crumb{ID: n.ID, Text: n.Text})
	}
	for _, id := range doc.PinnedItems {
		if n := outline.Find(doc.Root, id); n != nil {
			v.Pins = append(v.Pins, Crumb{ID: n.ID, Text: n.Text})
		}
	}

	selected := make(map[string]bool, len(v.Selection))
	for _, id := range v.Selection {
		selected[id] = true
	}
	var matches map[string]bool
	if f.Query != "" {
		matches = outline.Match(root, f.Query)
	}
	hiddenDepth := -1
	for _, r := range outline.VisibleRows(root) {
		n := r.Node
		if hiddenDepth >= 0 {
			if r.Depth > hiddenDepth {
				continue
			}
			hiddenDepth = -1
		}
		if f.HideChecked && n.IsDone() {
			hiddenDepth = r.Depth
			continue
		}
		if matches != nil && !matches[n.ID] {
			continue
		}
		var checked *bool
		if n.Checked != nil {
			checked = models.Bool(*n.Checked)
		}
		v.Rows = append(v.Rows, Row{
			ID:           n.ID,
			Text:         n.Text,
			Note:         n.Note,
			Depth:        r.Depth,
			Checked:      checked,
			Collapsed:    n.Collapsed,
			HasChildren:  len(n.Children) > 0,
			CalendarType: n.CalendarType,
			Selected:     selected[n.ID],
		})
	}
	return v
}
