package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/storage"
)

// Event kinds reported by Watch.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Event describes one watcher-driven index change. Checksum is empty for
// deletions.
type Event struct {
	Kind     string
	Name     string
	Checksum string
}

// EventCallback is called after a watcher-driven index change.
type EventCallback func(Event)

// Watch starts an fsnotify watcher on the library root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation. Writes whose content is already indexed
// (for instance the service's own saves) are skipped silently.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Documents may have landed before the watch was added.
					indexNewDir(db, store, root, absPath, logger, emit)
					continue
				}
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			name, isDoc := storage.NameOf(rel)
			if !isDoc {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := Updated
				if ev.Op&fsnotify.Create != 0 {
					kind = Created
				}
				if e, changed := reindex(db, store, name, kind, logger); changed {
					logger.Debug("watcher: indexed", slog.String("name", name), slog.String("op", kind))
					emit(e)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDocument(name); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("name", name), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("name", name))
				emit(Event{Kind: Deleted, Name: name})

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path arrives as a separate Create event when it stays
				// within a watched dir; reconciliation catches the rest.
				if delErr := db.DeleteDocument(name); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("name", name), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("name", name))
					emit(Event{Kind: Deleted, Name: name})
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex reads name and indexes it unless the stored checksum already
// matches.
func reindex(db *DB, store storage.Provider, name, kind string, logger *slog.Logger) (Event, bool) {
	data, err := store.Read(name)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("name", name), slog.String("error", err.Error()))
		return Event{}, false
	}
	if cs, _ := db.GetChecksum(name); checksum.Matches(data, cs) {
		return Event{}, false
	}
	sum := checksum.Sum(data)
	if err := indexFile(db, name, data, time.Now().UTC()); err != nil {
		logger.Warn("watcher: index failed", slog.String("name", name), slog.String("error", err.Error()))
		return Event{}, false
	}
	return Event{Kind: kind, Name: name, Checksum: sum}, true
}

// reconcile does a lightweight sync using batch lookups: it removes index
// entries without a file on disk and indexes on-disk documents that are
// missing or out of date.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, emit func(Event)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Name] = m.Checksum
	}

	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if delErr := db.DeleteDocument(name); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("name", name))
				emit(Event{Kind: Deleted, Name: name})
			}
		}
	}

	for name, cs := range disk {
		if checksums[name] == cs {
			continue
		}
		if e, changed := reindex(db, store, name, Created, logger); changed {
			logger.Debug("reconcile: indexed new", slog.String("name", name))
			emit(e)
		}
	}
}

// indexNewDir indexes any documents found in a newly created directory.
func indexNewDir(db *DB, store storage.Provider, root, dirPath string, logger *slog.Logger, emit func(Event)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		name, ok := storage.NameOf(rel)
		if !ok {
			return nil
		}
		if e, changed := reindex(db, store, name, Created, logger); changed {
			logger.Debug("watcher: indexed from new dir", slog.String("name", name))
			emit(e)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
