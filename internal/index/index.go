package index

// DocumentIndex defines the interface for library indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type DocumentIndex interface {
	UpsertDocument(d DocumentRow, nodes []NodeRow, links []string) error
	DeleteDocument(name string) error
	GetChecksum(name string) (string, error)
	GetDocument(name string) (*DocumentRow, error)
	ListDocuments(tag string) ([]DocumentRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	ByTag(tag string) ([]TagHit, error)
	Tags() (map[string]int, error)
	Backlinks(target string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)
