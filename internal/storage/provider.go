// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/paperlink/internal/models"

// Provider is the interface for vault file operations. All paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns metadata for every .md note under dir.
	List(dir string) ([]models.FileMeta, error)
	// FileByPath returns the file at path, or an error wrapping
	// os.ErrNotExist when it is absent.
	FileByPath(path string) (models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Create atomically creates a new file. It fails if the file already
	// exists or its parent folder is missing.
	Create(path string, content []byte) (models.FileMeta, error)
	// Modify atomically replaces the full content of an existing file.
	Modify(file models.FileMeta, content []byte) error
	// Write atomically writes content, creating parent folders as needed.
	Write(path string, content []byte) error
}
