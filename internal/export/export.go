// Package export renders documents as plain text outlines, JSON, OPML and
// YAML.
package export

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/outliner/internal/models"
)

// Format is an export format name.
type Format string

// Supported formats.
const (
	Text Format = "text"
	JSON Format = "json"
	OPML Format = "opml"
	YAML Format = "yaml"
)

// ErrUnknownFormat is returned by Render for unsupported formats.
var ErrUnknownFormat = errors.New("export: unknown format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{Text, JSON, OPML, YAML}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case OPML:
		return "text/x-opml; charset=utf-8"
	case YAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == Text {
		return "txt"
	}
	return string(f)
}

// Render encodes doc in format f.
func Render(doc *models.Document, f Format) ([]byte, error) {
	switch f {
	case Text:
		return []byte(RenderText(doc)), nil
	case JSON:
		return RenderJSON(doc)
	case OPML:
		return RenderOPML(doc)
	case YAML:
		return RenderYAML(doc)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

func title(doc *models.Document) string {
	if doc.Title == "" {
		return models.DefaultTitle
	}
	return doc.Title
}

// RenderText writes the title followed by one "- " line per node, two
// spaces of indent per level. Checklist items carry "[x] " or "[ ] " and
// notes follow on their own line one level deeper.
func RenderText(doc *models.Document) string {
	var b strings.Builder
	b.WriteString(title(doc))
	var walk func(n *models.Node, depth int)
	walk = func(n *models.Node, depth int) {
		pad := strings.Repeat("  ", depth)
		b.WriteString("\n" + pad + "- ")
		if n.Checked != nil {
			if *n.Checked {
				b.WriteString("[x] ")
			} else {
				b.WriteString("[ ] ")
			}
		}
		b.WriteString(n.Text)
		if n.Note != "" {
			b.WriteString("\n" + pad + "  " + n.Note)
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, c := range doc.Root.Children {
		walk(c, 0)
	}
	return b.String()
}

// RenderJSON writes the serialized document shape, indented.
func RenderJSON(doc *models.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: json: %w", err)
	}
	return data, nil
}

// RenderYAML writes the serialized document shape as YAML.
func RenderYAML(doc *models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("export: yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("export: yaml: %w", err)
	}
	return buf.Bytes(), nil
}

type opmlOutline struct {
	XMLName  xml.Name      `xml:"outline"`
	Text     string        `xml:"text,attr"`
	Note     string        `xml:"_note,attr,omitempty"`
	Children []opmlOutline `xml:"outline"`
}

type opmlDoc struct {
	XMLName xml.Name      `xml:"opml"`
	Version string        `xml:"version,attr"`
	Title   string        `xml:"head>title"`
	Body    []opmlOutline `xml:"body>outline"`
}

// RenderOPML writes an OPML 2.0 document. Notes go in the _note attribute.
func RenderOPML(doc *models.Document) ([]byte, error) {
	out := opmlDoc{Version: "2.0", Title: title(doc), Body: toOPML(doc.Root.Children)}
	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: opml: %w", err)
	}
	return append([]byte(`<?xml version="1.0" encoding="utf-8"?>`+"\n"), data...), nil
}

func toOPML(nodes []*models.Node) []opmlOutline {
	out := make([]opmlOutline, len(nodes))
	for i, n := range nodes {
		out[i] = opmlOutline{Text: n.Text, Note: n.Note, Children: toOPML(n.Children)}
	}
	return out
}
