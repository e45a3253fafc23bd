// Package docservice manages the library of named outline documents. It
// keeps one live session per open document, saves every change through a
// background writer, keeps the index current and publishes change events.
package docservice

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"sort"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/checksum"
	"github.com/starford/outliner/internal/export"
	"github.com/starford/outliner/internal/index"
	"github.com/starford/outliner/internal/migrate"
	"github.com/starford/outliner/internal/models"
	"github.com/starford/outliner/internal/outline"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/storage"
)

var nameRe = regexp.MustCompile(`^[\p{L}\p{N}_][\p{L}\p{N}_ .-]*(/[\p{L}\p{N}_][\p{L}\p{N}_ .-]*)*$`)

// Publisher receives document change events.
type Publisher interface {
	PublishDocumentEvent(kind, name string)
}

// Event kinds passed to Publisher.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
	KindChanged = "changed"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sets the receiver of change events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithSessionOptions adds options applied to every session the service opens.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Service) { s.sessOpts = append(s.sessOpts, opts...) }
}

// DocumentView is a session view addressed by document name.
type DocumentView struct {
	Name string `json:"name"`
	session.View
	Backlinks []string `json:"backlinks"`
}

// recentWrites bounds how many saved checksums a session remembers. Watcher
// events can lag several saves behind.
const recentWrites = 8

type entry struct {
	sess *session.Session
	// written holds checksums of the bytes recently saved for this session,
	// oldest first.
	written []string
}

func (e *entry) remember(sum string) {
	if len(e.written) == recentWrites {
		e.written = append(e.written[:0], e.written[1:]...)
	}
	e.written = append(e.written, sum)
}

func (e *entry) wrote(sum string) bool {
	return sum != "" && slices.Contains(e.written, sum)
}

// Service coordinates sessions, storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.DocumentIndex
	logger   *slog.Logger
	pub      Publisher
	sessOpts []session.Option

	mu       sync.Mutex
	sessions map[string]*entry
	pending  map[string]*models.Document

	writeMu sync.Mutex // serializes drains so saves of one name stay ordered
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewService creates a document service and starts its background writer.
// Call Close to stop it.
func NewService(store storage.Provider, db index.DocumentIndex, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		logger:   slog.Default(),
		sessions: make(map[string]*entry),
		pending:  make(map[string]*models.Document),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.writeLoop()
	return s
}

// Close saves pending changes and stops the writer.
func (s *Service) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// ValidateName checks a document name.
func ValidateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 200),
		validation.Match(nameRe),
	)
	if err != nil {
		return fmt.Errorf("%w %q: %v", apperr.ErrInvalidName, name, err)
	}
	return nil
}

// Open returns the live session for name, loading it on first use.
func (s *Service) Open(name string) (*session.Session, error) {
	s.mu.Lock()
	if e, ok := s.sessions[name]; ok {
		s.mu.Unlock()
		return e.sess, nil
	}
	s.mu.Unlock()

	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := s.store.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docservice: %q: %w", name, apperr.ErrNotFound)
		}
		return nil, err
	}
	doc, err := migrate.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("docservice: load %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[name]; ok {
		return e.sess, nil
	}
	e := s.attach(name, doc)
	e.remember(checksum.Sum(data))
	s.logger.Debug("docservice: opened", slog.String("name", name))
	return e.sess, nil
}

// attach wraps doc in a session registered under name. Caller holds s.mu.
func (s *Service) attach(name string, doc *models.Document) *entry {
	e := &entry{}
	opts := append([]session.Option{session.WithLogger(s.logger)}, s.sessOpts...)
	opts = append(opts,
		session.WithPersist(func(d *models.Document) { s.enqueue(e, d) }),
		session.WithRender(func() { s.publish(KindChanged, s.nameOf(e)) }),
	)
	e.sess = session.New(doc, opts...)
	s.sessions[name] = e
	return e
}

// nameOf returns the current name of e, which changes on Rename, or "" once
// the session has been closed.
func (s *Service) nameOf(e *entry) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nameLocked(e)
}

func (s *Service) nameLocked(e *entry) string {
	for name, other := range s.sessions {
		if other == e {
			return name
		}
	}
	return ""
}

// enqueue hands doc to the background writer. Never blocks. Copies from a
// session that has been closed are dropped.
func (s *Service) enqueue(e *entry, doc *models.Document) {
	s.mu.Lock()
	name := s.nameLocked(e)
	if name != "" {
		s.pending[name] = doc
	}
	s.mu.Unlock()
	if name == "" {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.Flush()
		case <-s.stop:
			s.Flush()
			return
		}
	}
}

// Flush saves every pending change synchronously.
func (s *Service) Flush() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]*models.Document)
	s.mu.Unlock()

	names := make([]string, 0, len(batch))
	for name := range batch {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.save(name, batch[name]); err != nil {
			s.logger.Error("docservice: save failed", slog.String("name", name), slog.String("error", err.Error()))
		}
	}
}

// save writes doc and indexes it.
func (s *Service) save(name string, doc *models.Document) error {
	data, err := export.RenderJSON(doc)
	if err != nil {
		return err
	}
	sum := checksum.Sum(data)

	s.mu.Lock()
	if e, ok := s.sessions[name]; ok {
		e.remember(sum)
	}
	s.mu.Unlock()

	if err := s.store.Write(name, data); err != nil {
		return err
	}
	if err := index.IndexDocument(s.db, name, doc, sum, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Debug("docservice: saved", slog.String("name", name), slog.Int("bytes", len(data)))
	return nil
}

func (s *Service) publish(kind, name string) {
	if s.pub != nil && name != "" {
		s.pub.PublishDocumentEvent(kind, name)
	}
}

func (s *Service) exists(name string) bool {
	s.mu.Lock()
	_, open := s.sessions[name]
	s.mu.Unlock()
	if open {
		return true
	}
	_, err := s.store.Read(name)
	return err == nil
}

// Create starts a new document holding one empty node.
func (s *Service) Create(name, title string) (*index.DocumentRow, error) {
	return s.add(name, outline.NewDocument(title))
}

// Import migrates data (JSON, YAML or OPML) and stores it as a new document.
func (s *Service) Import(name string, data []byte) (*index.DocumentRow, error) {
	doc, err := migrate.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("docservice: import %q: %w", name, err)
	}
	return s.add(name, doc)
}

func (s *Service) add(name string, doc *models.Document) (*index.DocumentRow, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if s.exists(name) {
		return nil, fmt.Errorf("docservice: %q: %w", name, apperr.ErrAlreadyExists)
	}
	// Bootstrap and repair through a session before the first save.
	s.mu.Lock()
	if _, ok := s.sessions[name]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("docservice: %q: %w", name, apperr.ErrAlreadyExists)
	}
	e := s.attach(name, doc)
	s.mu.Unlock()

	if err := s.save(name, e.sess.Document()); err != nil {
		s.mu.Lock()
		delete(s.sessions, name)
		s.mu.Unlock()
		return nil, err
	}
	s.publish(KindCreated, name)
	return s.db.GetDocument(name)
}

// Delete removes a document from storage, index and the open sessions.
func (s *Service) Delete(name string) error {
	s.mu.Lock()
	delete(s.sessions, name)
	delete(s.pending, name)
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.Delete(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: %q: %w", name, apperr.ErrNotFound)
		}
		return err
	}
	if err := s.db.DeleteDocument(name); err != nil {
		return err
	}
	s.publish(KindDeleted, name)
	return nil
}

// Rename moves a document. An open session follows it to the new name.
func (s *Service) Rename(oldName, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	s.Flush()
	if s.exists(newName) {
		return fmt.Errorf("docservice: %q: %w", newName, apperr.ErrAlreadyExists)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.Move(oldName, newName); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: %q: %w", oldName, apperr.ErrNotFound)
		}
		return err
	}
	s.mu.Lock()
	if e, ok := s.sessions[oldName]; ok {
		delete(s.sessions, oldName)
		s.sessions[newName] = e
	}
	if d, ok := s.pending[oldName]; ok {
		delete(s.pending, oldName)
		s.pending[newName] = d
	}
	s.mu.Unlock()

	if err := s.db.DeleteDocument(oldName); err != nil {
		return err
	}
	data, err := s.store.Read(newName)
	if err != nil {
		return err
	}
	doc, err := migrate.Decode(data)
	if err != nil {
		return err
	}
	if err := index.IndexDocument(s.db, newName, doc, checksum.Sum(data), time.Now().UTC()); err != nil {
		return err
	}
	s.publish(KindDeleted, oldName)
	s.publish(KindCreated, newName)
	return nil
}

// List returns indexed documents, optionally only those carrying tag.
func (s *Service) List(tag string) ([]index.DocumentRow, error) {
	return s.db.ListDocuments(tag)
}

// Command applies cmd to the named document.
func (s *Service) Command(name string, cmd session.Command) (session.Result, error) {
	sess, err := s.Open(name)
	if err != nil {
		return session.Result{}, err
	}
	return sess.Apply(cmd)
}

// Undo steps the named document back one history entry.
func (s *Service) Undo(name string) (session.Result, error) {
	sess, err := s.Open(name)
	if err != nil {
		return session.Result{}, err
	}
	return sess.Undo(), nil
}

// Redo re-applies the entry undone last.
func (s *Service) Redo(name string) (session.Result, error) {
	sess, err := s.Open(name)
	if err != nil {
		return session.Result{}, err
	}
	return sess.Redo(), nil
}

// View renders the named document.
func (s *Service) View(name string, f session.ViewFilter) (*DocumentView, error) {
	sess, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(name)
	if err != nil {
		return nil, err
	}
	if bl == nil {
		bl = []string{}
	}
	return &DocumentView{Name: name, View: sess.View(f), Backlinks: bl}, nil
}

// Export renders the named document in format f.
func (s *Service) Export(name string, f export.Format) ([]byte, error) {
	sess, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	return export.Render(sess.Document(), f)
}

// Search delegates full-text search to the index.
func (s *Service) Search(query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// ByTag returns every node carrying tag.
func (s *Service) ByTag(tag string) ([]index.TagHit, error) {
	return s.db.ByTag(tag)
}

// Tags returns every tag with its node count.
func (s *Service) Tags() (map[string]int, error) {
	return s.db.Tags()
}

// HandleIndexEvent reacts to a watcher event. An open session whose file
// changed on disk behind its back is dropped so the next access reloads it;
// events caused by the service's own saves are ignored.
func (s *Service) HandleIndexEvent(ev index.Event) {
	s.mu.Lock()
	e, open := s.sessions[ev.Name]
	if open && ev.Kind != index.Deleted && e.wrote(ev.Checksum) {
		s.mu.Unlock()
		return
	}
	if open {
		delete(s.sessions, ev.Name)
		delete(s.pending, ev.Name)
	}
	s.mu.Unlock()

	if open {
		s.logger.Info("docservice: changed on disk, session dropped", slog.String("name", ev.Name), slog.String("op", ev.Kind))
	}
	s.publish(ev.Kind, ev.Name)
}
