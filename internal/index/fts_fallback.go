//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE over the nodes table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ NodeRow) error {
	// Text and note are already stored in the nodes table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search over node text and notes (fallback
// when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if strings.TrimSpace(query) == "" {
		return []SearchResult{}, nil
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT n.doc, d.title, n.node_id, n.text,
		       CASE WHEN n.text LIKE ? THEN substr(n.text, 1, 200) ELSE substr(n.note, 1, 200) END
		FROM nodes n
		JOIN documents d ON d.name = n.doc
		WHERE n.text LIKE ? OR n.note LIKE ?
		ORDER BY n.doc, n.ord
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Document, &r.Title, &r.NodeID, &r.Text, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
