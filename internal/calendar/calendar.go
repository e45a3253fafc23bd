// Package calendar files day nodes under an auto-generated
// Calendar > year > month > day hierarchy at the top of a document.
package calendar

import (
	"fmt"
	"time"

	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
)

// RootText is the text of a newly created calendar root.
const RootText = "Calendar"

// YearText, MonthText and DayText return the generated labels for t.
func YearText(t time.Time) string  { return t.Format("2006") }
func MonthText(t time.Time) string { return t.Format("2006-01") }
func DayText(t time.Time) string   { return t.Format("2006-01-02(Mon)") }

// OpenDay finds or creates the day node for t and focuses it. When the day
// is not visible from the current zoom root, the view zooms to it. It
// reports whether the document changed.
func OpenDay(doc *models.Document, t time.Time) (models.Focus, bool) {
	changed := false

	cal := findKind(doc.Root, models.CalendarRoot, "")
	if cal == nil {
		cal = outline.NewNode(RootText, nil)
		cal.CalendarType = models.CalendarRoot
		doc.Root.Children = append(doc.Root.Children, cal)
		changed = true
	}
	year, created := child(cal, models.CalendarYear, YearText(t))
	changed = changed || created
	month, created := child(year, models.CalendarMonth, MonthText(t))
	changed = changed || created
	day, created := child(month, models.CalendarDay, DayText(t))
	changed = changed || created

	if outline.IndexOf(outline.FlattenVisible(outline.ResolveZoomRoot(doc)), day.ID) < 0 {
		outline.ZoomIn(doc, day.ID)
		outline.EnsureChild(day)
		changed = true
	}
	return models.FocusAt(day.ID, 0), changed
}

// child returns the child of parent with the given kind and text, creating
// it at the end and expanding parent when missing.
func child(parent *models.Node, kind models.CalendarType, text string) (*models.Node, bool) {
	if n := findKind(parent, kind, text); n != nil {
		return n, false
	}
	n := outline.NewNode(text, nil)
	n.CalendarType = kind
	parent.Children = append(parent.Children, n)
	parent.Collapsed = false
	return n, true
}

func findKind(parent *models.Node, kind models.CalendarType, text string) *models.Node {
	for _, c := range parent.Children {
		if c.CalendarType == kind && (text == "" || c.Text == text) {
			return c
		}
	}
	return nil
}

// ParseDay parses a YYYY-MM-DD date in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: parse day %q: %w", s, err)
	}
	return t, nil
}
