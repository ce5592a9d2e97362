package index

import (
	"errors"
	"log/slog"
	"os"

	"github.com/starford/paperlink/internal/checksum"
	"github.com/starford/paperlink/internal/parser"
	"github.com/starford/paperlink/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed notes are parsed and their embeds upserted
//   - notes removed from disk are deleted from the index
//   - placeholders whose file is gone are dropped from the registry
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexNote(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	placeholders, err := db.ListPlaceholders()
	if err != nil {
		return err
	}
	for _, p := range placeholders {
		if _, err := store.FileByPath(p.Path); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if _, err := db.DeletePlaceholderPath(p.Path); err != nil {
			logger.Warn("sync: drop placeholder failed", slog.String("path", p.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: dropped missing placeholder", slog.String("path", p.Path))
		}
	}

	return nil
}

// IndexNote parses a note's content and records its embeds.
func IndexNote(db Registry, path string, data []byte) error {
	res := parser.Parse(data)
	return db.UpsertNote(path, checksum.Sum(data), res.Embeds)
}
