// Package linker resolves paperless-ngx document ids into placeholder
// files in the vault and embeds them into the text being edited.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/paperlink/internal/checksum"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/paperless"
	"github.com/starford/paperlink/internal/parser"
)

// MetadataFetcher looks up document metadata on the paperless-ngx server.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, apiURL, id string) (models.DocumentMetadata, error)
}

// Vault is the part of the file store the linker writes placeholders to.
type Vault interface {
	FileByPath(path string) (models.FileMeta, error)
	Create(path string, content []byte) (models.FileMeta, error)
	Modify(file models.FileMeta, content []byte) error
}

// Editor is a text surface with cursor and line addressing.
type Editor interface {
	Cursor() models.Position
	Line(n int) string
	ReplaceRange(from, to models.Position, text string) error
	InsertAt(pos models.Position, text string) error
}

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f(message).
func (f NotifierFunc) Notify(message string) { f(message) }

// Observer is called after every successful placeholder upsert.
type Observer func(ctx context.Context, p models.Placeholder)

// Edit describes the change applied to the editor.
type Edit struct {
	From models.Position `json:"from"`
	To   models.Position `json:"to"`
	Text string          `json:"text"`
}

// Result is the outcome of a successful render or insert.
type Result struct {
	Filename    string             `json:"filename"`
	Placeholder models.Placeholder `json:"placeholder"`
	Edit        Edit               `json:"edit"`
}

// Option configures a Linker.
type Option func(*Linker)

// WithLogger sets the operator-facing logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Linker) { l.logger = logger }
}

// WithNotifier sets the user-facing notifier.
func WithNotifier(n Notifier) Option {
	return func(l *Linker) { l.notifier = n }
}

// WithObserver registers an upsert observer.
func WithObserver(o Observer) Option {
	return func(l *Linker) { l.observers = append(l.observers, o) }
}

// Linker runs the resolve → placeholder → edit workflow. Invocations share
// nothing but the configuration, which is replaced wholesale.
type Linker struct {
	cfg       atomic.Pointer[models.Configuration]
	fetcher   MetadataFetcher
	vault     Vault
	notifier  Notifier
	logger    *slog.Logger
	observers []Observer
}

// New creates a Linker.
func New(cfg models.Configuration, fetcher MetadataFetcher, vault Vault, opts ...Option) *Linker {
	l := &Linker{
		fetcher:  fetcher,
		vault:    vault,
		notifier: NotifierFunc(func(string) {}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.UpdateConfiguration(cfg)
	return l
}

// Configuration returns the current configuration.
func (l *Linker) Configuration() models.Configuration {
	return *l.cfg.Load()
}

// UpdateConfiguration replaces the held configuration.
func (l *Linker) UpdateConfiguration(cfg models.Configuration) {
	l.cfg.Store(&cfg)
}

// placeholderPath joins folder and name, refusing names that resolve
// outside folder. Nested names stay allowed.
func placeholderPath(folder, name string) (string, bool) {
	dir := path.Clean(strings.TrimRight(folder, "/"))
	p := path.Join(dir, name)
	if dir == "." {
		return p, p != "." && p != ".." && !strings.HasPrefix(p, "../")
	}
	return p, strings.HasPrefix(p, dir+"/")
}

// UpsertPlaceholder fetches the metadata of document id and creates or
// overwrites {folder}/{media_filename} with the document's preview URL.
func (l *Linker) UpsertPlaceholder(ctx context.Context, id string) (models.Placeholder, error) {
	if !parser.IsDocumentID(id) {
		return models.Placeholder{}, l.fail(&Error{Kind: KindValidation, Notice: NoticeInvalidNumber, Detail: "document id must be decimal digits: " + id})
	}
	cfg := l.Configuration()

	meta, err := l.fetcher.FetchMetadata(ctx, cfg.APIURL, id)
	if err != nil {
		return models.Placeholder{}, l.fail(&Error{Kind: KindRemoteLookup, Notice: NoticeAddFailed, Detail: "fetch metadata for document " + id, Err: err})
	}

	filePath, ok := placeholderPath(cfg.PlaceholderFolder, meta.MediaFilename)
	if !ok {
		return models.Placeholder{}, l.fail(&Error{Kind: KindRemoteLookup, Notice: NoticeAddFailed, Detail: fmt.Sprintf("media_filename %q of document %s escapes %s", meta.MediaFilename, id, cfg.PlaceholderFolder)})
	}
	previewURL := paperless.PreviewURL(cfg.APIURL, id)
	content := []byte(previewURL)

	created := false
	file, err := l.vault.FileByPath(filePath)
	switch {
	case err == nil:
		if err := l.vault.Modify(file, content); err != nil {
			return models.Placeholder{}, l.fail(&Error{Kind: KindStore, Notice: NoticeAddFailed, Detail: "overwrite " + filePath, Err: err})
		}
	case errors.Is(err, os.ErrNotExist):
		if _, err := l.vault.Create(filePath, content); err != nil {
			return models.Placeholder{}, l.fail(&Error{Kind: KindStore, Notice: NoticeAddFailed, Detail: "create " + filePath, Err: err})
		}
		created = true
	default:
		return models.Placeholder{}, l.fail(&Error{Kind: KindStore, Notice: NoticeAddFailed, Detail: "look up " + filePath, Err: err})
	}

	p := models.Placeholder{
		DocumentID: id,
		Filename:   meta.MediaFilename,
		Path:       filePath,
		PreviewURL: previewURL,
		Checksum:   checksum.Sum(content),
		Created:    created,
		UpdatedAt:  time.Now(),
	}
	l.logger.Info("placeholder upserted",
		slog.String("document_id", id),
		slog.String("path", filePath),
		slog.Bool("created", created))
	for _, o := range l.observers {
		o(ctx, p)
	}
	return p, nil
}

// ResolveAndRender replaces the "paperless-ngx <id>" token on the cursor
// line with an embed reference to the document's placeholder.
func (l *Linker) ResolveAndRender(ctx context.Context, ed Editor) (*Result, error) {
	lineNo := ed.Cursor().Line
	m, ok := parser.FindDocument(ed.Line(lineNo))
	if !ok {
		return nil, l.fail(&Error{Kind: KindValidation, Notice: NoticeInvalidID, Detail: "no document token on cursor line"})
	}

	p, err := l.UpsertPlaceholder(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	// The line may have changed while the request was in flight.
	again, ok := parser.FindDocument(ed.Line(lineNo))
	if !ok || again.ID != m.ID {
		return nil, l.fail(&Error{Kind: KindEditor, Notice: NoticeSourceMissing, Detail: "document token " + m.ID + " no longer on line"})
	}

	edit := Edit{
		From: models.Position{Line: lineNo, Column: again.StartColumn},
		To:   models.Position{Line: lineNo, Column: again.EndColumn},
		Text: parser.EmbedRef(p.Filename),
	}
	if err := ed.ReplaceRange(edit.From, edit.To, edit.Text); err != nil {
		return nil, l.fail(&Error{Kind: KindEditor, Notice: NoticeRenderFailed, Detail: "replace document token", Err: err})
	}
	return &Result{Filename: p.Filename, Placeholder: p, Edit: edit}, nil
}

// ResolveAndInsert inserts an embed reference to document id's placeholder
// at the cursor. Existing text is left in place.
func (l *Linker) ResolveAndInsert(ctx context.Context, ed Editor, id string) (*Result, error) {
	p, err := l.UpsertPlaceholder(ctx, id)
	if err != nil {
		return nil, err
	}

	pos := ed.Cursor()
	edit := Edit{From: pos, To: pos, Text: parser.EmbedRef(p.Filename)}
	if err := ed.InsertAt(pos, edit.Text); err != nil {
		return nil, l.fail(&Error{Kind: KindEditor, Notice: NoticeInsertFailed, Detail: "insert embed", Err: err})
	}
	return &Result{Filename: p.Filename, Placeholder: p, Edit: edit}, nil
}

// fail reports e to the user and the operator log and returns it.
func (l *Linker) fail(e *Error) error {
	attrs := []any{slog.String("kind", string(e.Kind)), slog.String("detail", e.Detail)}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	if e.Kind == KindValidation {
		l.logger.Warn("document link rejected", attrs...)
	} else {
		l.logger.Error("document link failed", attrs...)
	}
	l.notifier.Notify(e.Notice)
	return e
}
