package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/noteservice"
	"github.com/starford/paperlink/internal/paperless"
	"github.com/starford/paperlink/internal/testutil"
)

// testEnv sets up a temp vault, SQLite DB, stand-in paperless server,
// service, and router for testing. An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	paper := testutil.NewPaperless(t, map[string]string{"42": "invoice.pdf"})
	mgr := testutil.TestSettings(t, store, paper.APIURL())

	svc := noteservice.NewService(store, db, mgr, paperless.NewClient(5*time.Second),
		noteservice.WithLogger(testutil.Logger()))
	return NewRouter(svc, authEnabled, token, sseHandler), vaultDir
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func writeNote(t *testing.T, vaultDir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(vaultDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRenderCommand(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	writeNote(t, vaultDir, "note.md", "paperless-ngx 42\n")

	w := do(t, router, http.MethodPost, "/commands/render", RenderRequest{Note: "note.md", Line: 0})
	if w.Code != http.StatusOK {
		t.Fatalf("render status = %d, body = %s", w.Code, w.Body.String())
	}
	var edit NoteEdit
	_ = json.Unmarshal(w.Body.Bytes(), &edit)
	if edit.Result == nil || edit.Result.Filename != "invoice.pdf" {
		t.Errorf("edit = %+v", edit)
	}
	data, _ := os.ReadFile(filepath.Join(vaultDir, "note.md"))
	if string(data) != "![[invoice.pdf]]\n" {
		t.Errorf("note = %q", data)
	}
}

func TestRenderCommand_NoToken(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	writeNote(t, vaultDir, "note.md", "plain text\n")

	w := do(t, router, http.MethodPost, "/commands/render", RenderRequest{Note: "note.md"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "Please provide a valid document ID." || body.Kind != "validation" {
		t.Errorf("body = %+v", body)
	}
}

func TestRenderCommand_RemoteFailure(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	writeNote(t, vaultDir, "note.md", "paperless-ngx 404\n")

	w := do(t, router, http.MethodPost, "/commands/render", RenderRequest{Note: "note.md"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestRenderCommand_MissingNote(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/commands/render", RenderRequest{Note: "ghost.md"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRenderCommand_InvalidBody(t *testing.T) {
	router, _ := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/commands/render", map[string]any{"line": -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestInsertCommand(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	writeNote(t, vaultDir, "note.md", "see \n")

	w := do(t, router, http.MethodPost, "/commands/insert", InsertRequest{Note: "note.md", Line: 0, Column: 4, ID: "42"})
	if w.Code != http.StatusOK {
		t.Fatalf("insert status = %d, body = %s", w.Code, w.Body.String())
	}
	data, _ := os.ReadFile(filepath.Join(vaultDir, "note.md"))
	if string(data) != "see ![[invoice.pdf]]\n" {
		t.Errorf("note = %q", data)
	}
}

func TestInsertCommand_BadID(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	writeNote(t, vaultDir, "note.md", "x\n")

	w := do(t, router, http.MethodPost, "/commands/insert", InsertRequest{Note: "note.md", ID: "4x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPlaceholderEndpoints(t *testing.T) {
	router, vaultDir := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/documents/42/placeholder", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first upsert = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPut, "/documents/42/placeholder", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second upsert = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/placeholders", nil)
	var list PlaceholderListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Placeholders) != 1 || list.Placeholders[0].DocumentID != "42" {
		t.Fatalf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/placeholders/invoice.pdf", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get placeholder = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/placeholders/nope.pdf", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing placeholder = %d, want 404", w.Code)
	}

	writeNote(t, vaultDir, "note.md", "paperless-ngx 42\n")
	_ = do(t, router, http.MethodPost, "/commands/render", RenderRequest{Note: "note.md"})

	w = do(t, router, http.MethodGet, "/placeholders/invoice.pdf/embeds", nil)
	var embeds EmbedListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &embeds)
	if len(embeds.Embeds) != 1 || embeds.Embeds[0] != (models.Embed{Note: "note.md", Filename: "invoice.pdf"}) {
		t.Errorf("embeds = %+v", embeds)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/settings", nil)
	var cfg models.Configuration
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.PlaceholderFolder != testutil.PlaceholderFolder {
		t.Fatalf("settings = %+v", cfg)
	}

	w = do(t, router, http.MethodPatch, "/settings", SettingsRequest{PlaceholderFolder: "docs"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.PlaceholderFolder != "docs" || cfg.APIURL == "" {
		t.Errorf("patched = %+v", cfg)
	}

	w = do(t, router, http.MethodPatch, "/settings", SettingsRequest{APIURL: "not a url"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid patch = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/placeholders", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/placeholders", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/placeholders", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/placeholders", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "secret", blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
