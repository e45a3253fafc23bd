package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/outliner/internal/apperr"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	NodeCount int       `json:"node_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeRow is one indexed node.
type NodeRow struct {
	ID      string
	Text    string
	Note    string
	Depth   int
	Checked *bool
	Tags    []string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Document string `json:"document"`
	Title    string `json:"title"`
	NodeID   string `json:"node_id"`
	Text     string `json:"text"`
	Snippet  string `json:"snippet"`
}

// TagHit is a node carrying a tag.
type TagHit struct {
	Document string `json:"document"`
	NodeID   string `json:"node_id"`
	Text     string `json:"text"`
}

// UpsertDocument replaces a document, its nodes, tags, FTS entries and
// links within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, nodes []NodeRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if d.Tags == nil {
		d.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(d.Tags)

	_, err = tx.Exec(`
		INSERT INTO documents (name, title, checksum, tags, node_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			node_count = excluded.node_count,
			updated_at = excluded.updated_at
	`, d.Name, d.Title, d.Checksum, string(tagsJSON), len(nodes), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := clearNodes(tx, d.Name); err != nil {
		return err
	}

	nodeStmt, err := tx.Prepare(`INSERT OR REPLACE INTO nodes (doc, node_id, text, note, depth, ord, checked) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	tagStmt, err := tx.Prepare(`INSERT OR IGNORE INTO tags (doc, node_id, tag) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	for i, n := range nodes {
		var checked sql.NullBool
		if n.Checked != nil {
			checked = sql.NullBool{Bool: *n.Checked, Valid: true}
		}
		if _, err := nodeStmt.Exec(d.Name, n.ID, n.Text, n.Note, n.Depth, i, checked); err != nil {
			return fmt.Errorf("index: insert node: %w", err)
		}
		for _, tag := range n.Tags {
			if _, err := tagStmt.Exec(d.Name, n.ID, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
		// FTS upsert (no-op when FTS5 tag is absent).
		if err := ftsInsert(tx, d.Name, n); err != nil {
			return err
		}
	}

	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, 'inline')`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(d.Name, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// clearNodes drops every per-node row and outgoing link of a document.
func clearNodes(tx *sql.Tx, name string) error {
	if err := ftsDelete(tx, name); err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM nodes WHERE doc = ?`,
		`DELETE FROM tags WHERE doc = ?`,
		`DELETE FROM links WHERE source = ?`,
	} {
		if _, err := tx.Exec(q, name); err != nil {
			return fmt.Errorf("index: clear document: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document with its nodes, FTS entries and
// outgoing links.
func (db *DB) DeleteDocument(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := clearNodes(tx, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE name = ?`, name).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetDocument returns one indexed document.
func (db *DB) GetDocument(name string) (*DocumentRow, error) {
	row := db.conn.QueryRow(`SELECT name, title, checksum, tags, node_count, updated_at FROM documents WHERE name = ?`, name)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: document %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns every indexed document ordered by name. A non-empty
// tag restricts the result to documents carrying it.
func (db *DB) ListDocuments(tag string) ([]DocumentRow, error) {
	q := `SELECT name, title, checksum, tags, node_count, updated_at FROM documents`
	var args []any
	if tag != "" {
		q += ` WHERE name IN (SELECT doc FROM tags WHERE tag = ?)`
		args = append(args, tag)
	}
	rows, err := db.conn.Query(q+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	out := []DocumentRow{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*DocumentRow, error) {
	var (
		d        DocumentRow
		tagsJSON string
	)
	if err := s.Scan(&d.Name, &d.Title, &d.Checksum, &tagsJSON, &d.NodeCount, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &d.Tags); err != nil || d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

// ByTag returns every node carrying tag, in document order.
func (db *DB) ByTag(tag string) ([]TagHit, error) {
	rows, err := db.conn.Query(`
		SELECT n.doc, n.node_id, n.text
		FROM tags t
		JOIN nodes n ON n.doc = t.doc AND n.node_id = t.node_id
		WHERE t.tag = ?
		ORDER BY n.doc, n.ord
	`, tag)
	if err != nil {
		return nil, fmt.Errorf("index: by tag: %w", err)
	}
	defer rows.Close()

	out := []TagHit{}
	for rows.Next() {
		var h TagHit
		if err := rows.Scan(&h.Document, &h.NodeID, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Tags returns every tag with the number of nodes carrying it.
func (db *DB) Tags() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT tag, count(*) FROM tags GROUP BY tag`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			tag string
			n   int
		)
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		out[tag] = n
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, cs string
		if err := rows.Scan(&name, &cs); err != nil {
			return nil, err
		}
		out[name] = cs
	}
	return out, rows.Err()
}

// Backlinks returns all document names that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
