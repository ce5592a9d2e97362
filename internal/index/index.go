package index

import "github.com/starford/paperlink/internal/models"

// Registry defines the placeholder and embed index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Registry interface {
	UpsertPlaceholder(p models.Placeholder) (previousID string, err error)
	GetPlaceholder(filename string) (*models.Placeholder, error)
	ListPlaceholders() ([]models.Placeholder, error)
	DeletePlaceholderPath(path string) (bool, error)
	UpsertNote(path, checksum string, embeds []string) error
	DeleteNote(path string) error
	EmbeddingNotes(filename string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Registry at compile time.
var _ Registry = (*DB)(nil)
