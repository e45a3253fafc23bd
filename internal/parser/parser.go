// Package parser decodes serialized outlines into a loosely typed form and
// extracts tags and wikilinks from node text.
package parser

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Format names a serialization Decode understands.
type Format string

// Supported input formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatOPML Format = "opml"
)

// Sniff guesses the format of data from its first significant byte.
func Sniff(data []byte) Format {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON
	case bytes.HasPrefix(trimmed, []byte("<")):
		return FormatOPML
	default:
		return FormatYAML
	}
}

// Decode parses data into a generic map without checking its shape.
func Decode(data []byte) (map[string]any, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var (
		raw map[string]any
		err error
	)
	switch Sniff(data) {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatOPML:
		raw, err = decodeOPML(data)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parser: decode: %w: %v", apperr.ErrInvalidDocument, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parser: decode: %w: empty input", apperr.ErrInvalidDocument)
	}
	return raw, nil
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Note     string        `xml:"_note,attr"`
	Children []opmlOutline `xml:"outline"`
}

type opmlFile struct {
	Title string        `xml:"head>title"`
	Body  []opmlOutline `xml:"body>outline"`
}

func decodeOPML(data []byte) (map[string]any, error) {
	var f opmlFile
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return map[string]any{
		"title": f.Title,
		"root":  map[string]any{"text": "", "children": opmlChildren(f.Body)},
	}, nil
}

func opmlChildren(list []opmlOutline) []any {
	out := make([]any, len(list))
	for i, o := range list {
		out[i] = map[string]any{
			"text":     o.Text,
			"note":     o.Note,
			"children": opmlChildren(o.Children),
		}
	}
	return out
}

// Entry is one node flattened for indexing.
type Entry struct {
	ID      string
	Text    string
	Note    string
	Depth   int
	Checked *bool
	Tags    []string
}

// Result holds what the index needs from one document.
type Result struct {
	Title string
	Tags  []string
	Links []string
	Nodes []Entry
}

// Parse walks every node below the root in document order, collapsed
// subtrees included.
func Parse(doc *models.Document) *Result {
	res := &Result{Title: doc.Title}
	tagSeen := make(map[string]struct{})
	linkSeen := make(map[string]struct{})

	var walk func(n *models.Node, depth int)
	walk = func(n *models.Node, depth int) {
		tags := ExtractTags(n.Text + "\n" + n.Note)
		res.Nodes = append(res.Nodes, Entry{
			ID:      n.ID,
			Text:    n.Text,
			Note:    n.Note,
			Depth:   depth,
			Checked: n.Checked,
			Tags:    tags,
		})
		for _, t := range tags {
			if _, dup := tagSeen[t]; !dup {
				tagSeen[t] = struct{}{}
				res.Tags = append(res.Tags, t)
			}
		}
		for _, l := range ExtractLinks(n.Text + "\n" + n.Note) {
			if _, dup := linkSeen[l]; !dup {
				linkSeen[l] = struct{}{}
				res.Links = append(res.Links, l)
			}
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if doc.Root != nil {
		for _, c := range doc.Root.Children {
			walk(c, 0)
		}
	}
	return res
}

// ExtractLinks returns deduplicated wikilink targets, normalising aliases.
func ExtractLinks(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		raw := m[1]
		// [[Target|Alias]] links to Target.
		target := raw
		if i := strings.Index(raw, "|"); i >= 0 {
			target = raw[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// ExtractTags collects inline #tags.
func ExtractTags(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
