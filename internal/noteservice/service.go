// Package noteservice runs linker commands against notes stored in the
// vault and keeps the placeholder registry and event stream in sync.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/checksum"
	"github.com/starford/paperlink/internal/editor"
	"github.com/starford/paperlink/internal/index"
	"github.com/starford/paperlink/internal/linker"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/settings"
	"github.com/starford/paperlink/internal/sse"
	"github.com/starford/paperlink/internal/storage"
)

// Publisher receives change events.
type Publisher interface {
	Publish(event sse.Event)
	PublishNoteEvent(kind, path string)
}

// NoteEdit is the outcome of a command run against a vault note.
type NoteEdit struct {
	Note     string         `json:"note"`
	Checksum string         `json:"checksum"`
	Result   *linker.Result `json:"result"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the service and its linker.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n linker.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithEvents sets the change event publisher.
func WithEvents(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// Service coordinates the linker, storage, index and settings.
type Service struct {
	store    storage.Provider
	db       index.Registry
	settings *settings.Manager
	linker   *linker.Linker
	events   Publisher
	notifier linker.Notifier
	logger   *slog.Logger
}

// NewService creates a note service. The linker follows every settings
// update and records each upserted placeholder in the registry.
func NewService(store storage.Provider, db index.Registry, mgr *settings.Manager, fetcher linker.MetadataFetcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		settings: mgr,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	lopts := []linker.Option{linker.WithLogger(s.logger), linker.WithObserver(s.recordPlaceholder)}
	if s.notifier != nil {
		lopts = append(lopts, linker.WithNotifier(s.notifier))
	}
	s.linker = linker.New(mgr.Current(), fetcher, store, lopts...)
	mgr.Subscribe(s.linker.UpdateConfiguration)
	return s
}

// Linker returns the linker, for surfaces that bring their own editor.
func (s *Service) Linker() *linker.Linker {
	return s.linker
}

// UpsertPlaceholder creates or refreshes the placeholder for document id.
func (s *Service) UpsertPlaceholder(ctx context.Context, id string) (models.Placeholder, error) {
	return s.linker.UpsertPlaceholder(ctx, id)
}

// Render replaces the document token on the given line of note with an
// embed reference and saves the note.
func (s *Service) Render(ctx context.Context, note string, line int) (*NoteEdit, error) {
	file, buf, err := s.open(note, models.Position{Line: line})
	if err != nil {
		return nil, err
	}
	res, err := s.linker.ResolveAndRender(ctx, buf)
	if err != nil {
		return nil, err
	}
	return s.save(file, buf, res)
}

// Insert adds an embed reference for document id at pos in note and saves
// the note.
func (s *Service) Insert(ctx context.Context, note string, pos models.Position, id string) (*NoteEdit, error) {
	file, buf, err := s.open(note, pos)
	if err != nil {
		return nil, err
	}
	if pos.Line < 0 || pos.Line >= buf.LineCount() ||
		pos.Column < 0 || pos.Column > utf8.RuneCountInString(buf.Line(pos.Line)) {
		return nil, fmt.Errorf("%w: position %d:%d outside %s", apperr.ErrValidation, pos.Line, pos.Column, note)
	}
	res, err := s.linker.ResolveAndInsert(ctx, buf, id)
	if err != nil {
		return nil, err
	}
	return s.save(file, buf, res)
}

// ListPlaceholders returns every registered placeholder.
func (s *Service) ListPlaceholders(_ context.Context) ([]models.Placeholder, error) {
	list, err := s.db.ListPlaceholders()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Placeholder{}
	}
	return list, nil
}

// GetPlaceholder returns the placeholder registered under filename.
func (s *Service) GetPlaceholder(_ context.Context, filename string) (*models.Placeholder, error) {
	return s.db.GetPlaceholder(filename)
}

// Embeds lists the notes that embed filename.
func (s *Service) Embeds(_ context.Context, filename string) ([]models.Embed, error) {
	notes, err := s.db.EmbeddingNotes(filename)
	if err != nil {
		return nil, err
	}
	out := make([]models.Embed, len(notes))
	for i, n := range notes {
		out[i] = models.Embed{Note: n, Filename: filename}
	}
	return out, nil
}

// Settings returns the configuration in effect.
func (s *Service) Settings() models.Configuration {
	return s.settings.Current()
}

// UpdateSettings applies a settings patch.
func (s *Service) UpdateSettings(_ context.Context, p settings.Patch) (models.Configuration, error) {
	before := s.settings.Current()
	cfg, err := s.settings.Update(p)
	if err != nil {
		return cfg, err
	}
	if cfg != before && s.events != nil {
		s.events.Publish(sse.Event{Type: sse.SettingsUpdated, Data: cfg})
	}
	return cfg, nil
}

// open loads a note into an editor buffer with the cursor at pos.
func (s *Service) open(note string, pos models.Position) (models.FileMeta, *editor.Buffer, error) {
	if !strings.HasSuffix(note, ".md") {
		return models.FileMeta{}, nil, fmt.Errorf("%w: note must be a .md file: %s", apperr.ErrValidation, note)
	}
	file, err := s.store.FileByPath(note)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.FileMeta{}, nil, apperr.ErrNotFound
		}
		return models.FileMeta{}, nil, err
	}
	data, err := s.store.Read(note)
	if err != nil {
		return models.FileMeta{}, nil, err
	}
	return file, editor.NewBuffer(string(data), pos), nil
}

// save writes an edited buffer back and reindexes the note.
func (s *Service) save(file models.FileMeta, buf *editor.Buffer, res *linker.Result) (*NoteEdit, error) {
	data := []byte(buf.String())
	if err := s.store.Modify(file, data); err != nil {
		return nil, fmt.Errorf("noteservice: save %s: %w", file.Path, err)
	}
	if err := index.IndexNote(s.db, file.Path, data); err != nil {
		s.logger.Warn("noteservice: reindex failed", slog.String("path", file.Path), slog.String("error", err.Error()))
	}
	if s.events != nil {
		s.events.PublishNoteEvent("updated", file.Path)
	}
	return &NoteEdit{Note: file.Path, Checksum: checksum.Sum(data), Result: res}, nil
}

// recordPlaceholder is the linker observer: it registers p and announces it.
func (s *Service) recordPlaceholder(_ context.Context, p models.Placeholder) {
	previous, err := s.db.UpsertPlaceholder(p)
	if err != nil {
		s.logger.Warn("noteservice: register placeholder failed",
			slog.String("filename", p.Filename), slog.String("error", err.Error()))
	} else if previous != "" {
		s.logger.Warn("placeholder aliased",
			slog.String("filename", p.Filename),
			slog.String("previous_document_id", previous),
			slog.String("document_id", p.DocumentID))
	}
	if s.events == nil {
		return
	}
	kind := sse.PlaceholderUpdated
	if p.Created {
		kind = sse.PlaceholderCreated
	}
	s.events.Publish(sse.Event{Type: kind, Data: p})
}
