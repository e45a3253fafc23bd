// Package testutil provides shared test helpers for setting up libraries,
// databases and outlines.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/outliner/internal/index"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "outliner-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary library directory with a storage.FS.
func TestLibrary(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Node builds a node with the given id, text and children.
func Node(id, text string, children ...*models.Node) *models.Node {
	if children == nil {
		children = []*models.Node{}
	}
	return &models.Node{ID: id, Text: text, Children: children}
}

// Doc builds a document with title whose root holds nodes.
func Doc(title string, nodes ...*models.Node) *models.Document {
	return &models.Document{
		Root:        Node("root", "", nodes...),
		CurrentPath: []string{},
		Title:       title,
		PinnedItems: []string{},
		Version:     models.CurrentVersion,
	}
}
