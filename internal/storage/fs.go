package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/checksum"
	"github.com/starford/paperlink/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// List walks dir (relative to root) and returns metadata for every .md file.
// Hidden directories such as .paperlink are skipped.
func (f *FS) List(dir string) ([]models.FileMeta, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.FileMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		meta, err := f.meta(p)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// FileByPath stats a vault file.
func (f *FS) FileByPath(path string) (models.FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.FileMeta{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.FileMeta{}, fmt.Errorf("storage: %s is a directory", path)
	}
	return f.meta(abs)
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Create writes a new file via tmp file, fsync and hard link (or an exclusive open where links
// are unsupported), so a file that
// appears under path always carries its full content. The parent folder is
// not created.
func (f *FS) Create(path string, content []byte) (models.FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.FileMeta{}, err
	}
	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: create %s: parent folder: %w", path, err)
	}
	if !info.IsDir() {
		return models.FileMeta{}, fmt.Errorf("storage: create %s: parent is not a folder", path)
	}

	tmpName, err := writeTemp(dir, content)
	if err != nil {
		return models.FileMeta{}, err
	}
	defer os.Remove(tmpName)

	if err := linkFile(tmpName, abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return models.FileMeta{}, fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
		}
		// Some vault filesystems (exFAT, network mounts) lack hard links.
		if err := createExclusive(abs, content); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return models.FileMeta{}, fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
			}
			return models.FileMeta{}, fmt.Errorf("storage: create %s: %w", path, err)
		}
	}
	return f.meta(abs)
}

var linkFile = os.Link

// createExclusive writes content to a file that must not exist yet. A
// failed write removes the partial file.
func createExclusive(abs string, content []byte) error {
	file, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		os.Remove(abs)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(abs)
		return err
	}
	return file.Close()
}

// Modify atomically replaces the content of an existing file.
func (f *FS) Modify(file models.FileMeta, content []byte) error {
	abs, err := f.safePath(file.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("storage: modify %s: %w", file.Path, err)
	}
	return replace(abs, content)
}

// Write atomically writes content, creating parent folders as needed.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return replace(abs, content)
}

func (f *FS) meta(abs string) (models.FileMeta, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileMeta{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.FileMeta{}, err
	}
	rel, _ := filepath.Rel(f.root, abs)
	return models.FileMeta{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// replace writes content to abs: tmp file → fsync → rename.
func replace(abs string, content []byte) error {
	tmpName, err := writeTemp(filepath.Dir(abs), content)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// writeTemp writes content to a synced temp file in dir and returns its name.
func writeTemp(dir string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".paperlink-tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	success = true
	return tmpName, nil
}
