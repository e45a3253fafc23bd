package index

import (
	"log/slog"
	"time"

	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/migrate"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/parser"
	"github.com/starford/outliner/internal/storage"
)

// Sync walks the library and brings the index up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Name] = struct{}{}

		if checksums[m.Name] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Name)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("name", m.Name), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Name, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("name", m.Name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("name", m.Name))
		}
	}

	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if err := db.DeleteDocument(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("name", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("name", name))
			}
		}
	}

	return nil
}

// IndexDocument upserts doc under name. sum is the checksum of the bytes
// stored for it.
func IndexDocument(db DocumentIndex, name string, doc *models.Document, sum string, updatedAt time.Time) error {
	res := parser.Parse(doc)
	nodes := make([]NodeRow, len(res.Nodes))
	for i, e := range res.Nodes {
		nodes[i] = NodeRow{ID: e.ID, Text: e.Text, Note: e.Note, Depth: e.Depth, Checked: e.Checked, Tags: e.Tags}
	}
	row := DocumentRow{
		Name:      name,
		Title:     res.Title,
		Checksum:  sum,
		Tags:      res.Tags,
		UpdatedAt: updatedAt,
	}
	return db.UpsertDocument(row, nodes, res.Links)
}

// indexFile migrates data and upserts it into the DB.
func indexFile(db *DB, name string, data []byte, updatedAt time.Time) error {
	doc, err := migrate.Decode(data)
	if err != nil {
		return err
	}
	return IndexDocument(db, name, doc, checksum.Sum(data), updatedAt)
}
