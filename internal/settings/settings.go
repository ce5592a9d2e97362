// Package settings persists the user-editable linker configuration.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/models"
)

// Default values used until the user changes them.
const (
	DefaultAPIURL            = "http://192.168.1.100:1280/api"
	DefaultPlaceholderFolder = "attachments/paperless-ngx"
)

// Defaults returns the default configuration.
func Defaults() models.Configuration {
	return models.Configuration{
		APIURL:            DefaultAPIURL,
		PlaceholderFolder: DefaultPlaceholderFolder,
	}
}

// Store is the file access the manager needs.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

// Patch carries a settings update. Empty fields are left unchanged.
type Patch struct {
	APIURL            string `json:"apiUrl"`
	PlaceholderFolder string `json:"dummyFolder"`
}

// Manager owns the current configuration and its persisted copy.
type Manager struct {
	mu          sync.Mutex
	store       Store
	path        string
	logger      *slog.Logger
	current     models.Configuration
	subscribers []func(models.Configuration)
}

// Load reads settings from path, merged over the defaults. A missing file
// is created with the defaults.
func Load(store Store, path string, logger *slog.Logger) (*Manager, error) {
	m := &Manager{store: store, path: path, logger: logger, current: Defaults()}

	data, err := store.Read(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := m.save(m.current); err != nil {
			return nil, err
		}
		logger.Info("settings: wrote defaults", slog.String("path", path))
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("settings: %s: %w", path, err)
	}
	m.current = cfg
	return m, nil
}

// Current returns the configuration in effect.
func (m *Manager) Current() models.Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers fn to receive every accepted configuration.
func (m *Manager) Subscribe(fn func(models.Configuration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Update applies p, ignoring empty fields, then validates, persists and
// publishes the result. An invalid result leaves everything unchanged.
func (m *Manager) Update(p Patch) (models.Configuration, error) {
	m.mu.Lock()
	next := m.current
	if p.APIURL != "" {
		next.APIURL = p.APIURL
	}
	if p.PlaceholderFolder != "" {
		next.PlaceholderFolder = p.PlaceholderFolder
	}
	if next == m.current {
		m.mu.Unlock()
		return next, nil
	}
	if err := Validate(next); err != nil {
		m.mu.Unlock()
		return m.Current(), err
	}
	if err := m.save(next); err != nil {
		m.mu.Unlock()
		return m.Current(), err
	}
	m.current = next
	subs := append([]func(models.Configuration){}, m.subscribers...)
	m.mu.Unlock()

	m.logger.Info("settings: updated",
		slog.String("api_url", next.APIURL),
		slog.String("dummy_folder", next.PlaceholderFolder))
	for _, fn := range subs {
		fn(next)
	}
	return next, nil
}

func (m *Manager) save(cfg models.Configuration) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := m.store.Write(m.path, data); err != nil {
		return fmt.Errorf("settings: write %s: %w", m.path, err)
	}
	return nil
}

// Validate checks that both settings are usable.
func Validate(cfg models.Configuration) error {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.APIURL, validation.Required, validation.By(httpURL)),
		validation.Field(&cfg.PlaceholderFolder, validation.Required, validation.By(vaultFolder)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func vaultFolder(value any) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") {
		return errors.New("must be relative to the vault")
	}
	for _, part := range strings.Split(path.Clean(s), "/") {
		if part == ".." {
			return errors.New("must stay inside the vault")
		}
	}
	return nil
}
