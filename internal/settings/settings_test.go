package settings

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/storage"
)

const testPath = ".paperlink/settings.yaml"

func testStore(t *testing.T) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoad_WritesDefaults(t *testing.T) {
	store := testStore(t)
	m, err := Load(store, testPath, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Current() != Defaults() {
		t.Errorf("current = %+v", m.Current())
	}
	data, err := store.Read(testPath)
	if err != nil {
		t.Fatalf("defaults not persisted: %v", err)
	}
	if !strings.Contains(string(data), "api_url: http://192.168.1.100:1280/api") {
		t.Errorf("persisted = %q", data)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	store := testStore(t)
	_ = store.Write(testPath, []byte("api_url: https://paper.example/api\n"))

	m, err := Load(store, testPath, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := models.Configuration{APIURL: "https://paper.example/api", PlaceholderFolder: DefaultPlaceholderFolder}
	if m.Current() != want {
		t.Errorf("current = %+v, want %+v", m.Current(), want)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	store := testStore(t)
	_ = store.Write(testPath, []byte("api_url: ftp://nope\n"))
	if _, err := Load(store, testPath, quietLogger()); err == nil {
		t.Error("expected validation error")
	}
}

func TestUpdate_EmptyFieldsIgnored(t *testing.T) {
	m, _ := Load(testStore(t), testPath, quietLogger())
	called := 0
	m.Subscribe(func(models.Configuration) { called++ })

	got, err := m.Update(Patch{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got != Defaults() {
		t.Errorf("config = %+v", got)
	}
	if called != 0 {
		t.Error("no-op update must not notify subscribers")
	}

	got, err = m.Update(Patch{PlaceholderFolder: "att"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.APIURL != DefaultAPIURL || got.PlaceholderFolder != "att" {
		t.Errorf("config = %+v", got)
	}
}

func TestUpdate_PersistsAndNotifies(t *testing.T) {
	store := testStore(t)
	m, _ := Load(store, testPath, quietLogger())
	var pushed models.Configuration
	m.Subscribe(func(c models.Configuration) { pushed = c })

	if _, err := m.Update(Patch{APIURL: "http://h/api"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if pushed.APIURL != "http://h/api" {
		t.Errorf("subscriber got %+v", pushed)
	}

	reloaded, err := Load(store, testPath, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Current().APIURL != "http://h/api" {
		t.Errorf("reloaded = %+v", reloaded.Current())
	}
}

func TestUpdate_InvalidRejected(t *testing.T) {
	m, _ := Load(testStore(t), testPath, quietLogger())
	for _, p := range []Patch{
		{APIURL: "not a url"},
		{APIURL: "ftp://h/api"},
		{PlaceholderFolder: "/abs"},
		{PlaceholderFolder: "../outside"},
	} {
		if _, err := m.Update(p); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%+v: err = %v, want ErrValidation", p, err)
		}
	}
	if m.Current() != Defaults() {
		t.Errorf("rejected updates changed config: %+v", m.Current())
	}
}
