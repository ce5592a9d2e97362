// Package testutil provides shared test helpers for setting up vaults,
// databases and a stand-in paperless-ngx server.
package testutil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/starford/paperlink/internal/index"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/settings"
	"github.com/starford/paperlink/internal/storage"
)

// PlaceholderFolder is the folder TestSettings configures and TestVault
// creates.
const PlaceholderFolder = "attachments/paperless-ngx"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "paperlink-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory, with the placeholder
// folder in place, and a storage.Provider over it.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(vaultDir, filepath.FromSlash(PlaceholderFolder)), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestSettings loads a settings manager pointing at apiURL.
func TestSettings(t *testing.T, store storage.Provider, apiURL string) *settings.Manager {
	t.Helper()
	mgr, err := settings.Load(store, ".paperlink/settings.yaml", Logger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Update(settings.Patch{APIURL: apiURL, PlaceholderFolder: PlaceholderFolder}); err != nil {
		t.Fatal(err)
	}
	return mgr
}

// Logger returns a logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var metadataPath = regexp.MustCompile(`^/api/documents/(\d+)/metadata/$`)

// Paperless is a stand-in paperless-ngx server serving document metadata.
type Paperless struct {
	*httptest.Server
	// Requests counts metadata requests received.
	Requests atomic.Int64
}

// APIURL returns the server's API base URL.
func (p *Paperless) APIURL() string {
	return p.URL + "/api"
}

// NewPaperless starts a server that answers metadata requests for the
// documents in files (id → media_filename) and 404 for anything else.
func NewPaperless(t *testing.T, files map[string]string) *Paperless {
	t.Helper()
	p := &Paperless{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Requests.Add(1)
		m := metadataPath.FindStringSubmatch(r.URL.Path)
		if m == nil || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		name, ok := files[m[1]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.DocumentMetadata{MediaFilename: name})
	}))
	t.Cleanup(p.Close)
	return p
}
