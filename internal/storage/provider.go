// Package storage defines the document library file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/outliner/internal/models"
)

// Ext is the suffix of every document file in the library.
const Ext = ".outline.json"

// Provider is the interface for library operations. Documents are addressed
// by name: the slash-separated path below the library root without Ext.
type Provider interface {
	// List returns metadata for every document in the library.
	List() ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the named document.
	Read(name string) ([]byte, error)
	// Write atomically replaces the named document.
	Write(name string, content []byte) error
	// Delete removes the named document.
	Delete(name string) error
	// Move renames a document.
	Move(oldName, newName string) error
}

// FileName returns the library-relative file path for name.
func FileName(name string) string {
	return filepath.FromSlash(name) + Ext
}

// NameOf returns the document name for a library-relative file path, and
// false when the path is not a document file.
func NameOf(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, Ext) || strings.HasPrefix(filepath.Base(rel), ".") {
		return "", false
	}
	name := strings.TrimSuffix(rel, Ext)
	if name == "" || strings.HasSuffix(name, "/") {
		return "", false
	}
	return name, true
}
