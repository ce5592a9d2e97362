package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/noteservice"
	"github.com/starford/paperlink/internal/paperless"
	"github.com/starford/paperlink/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	paper := testutil.NewPaperless(t, map[string]string{"42": "invoice.pdf"})
	mgr := testutil.TestSettings(t, store, paper.APIURL())

	svc := noteservice.NewService(store, db, mgr, paperless.NewClient(5*time.Second),
		noteservice.WithLogger(testutil.Logger()))
	return New(svc), vaultDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "upsert_placeholder":
		result, err = srv.upsertPlaceholder(ctx, req)
	case "render_document":
		result, err = srv.renderDocument(ctx, req)
	case "insert_document":
		result, err = srv.insertDocument(ctx, req)
	case "list_placeholders":
		result, err = srv.listPlaceholders(ctx, req)
	case "get_embeds":
		result, err = srv.getEmbeds(ctx, req)
	case "get_settings":
		result, err = srv.getSettings(ctx, req)
	case "update_settings":
		result, err = srv.updateSettings(ctx, req)
	case "get_embed_contract":
		result, err = srv.getEmbedContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestUpsertPlaceholder(t *testing.T) {
	srv, vaultDir := testServer(t)

	r := callTool(t, srv, "upsert_placeholder", map[string]interface{}{"id": "42"})
	if r.IsError {
		t.Fatalf("upsert failed: %s", resultText(r))
	}
	var p models.Placeholder
	if err := json.Unmarshal([]byte(resultText(r)), &p); err != nil {
		t.Fatal(err)
	}
	if p.Filename != "invoice.pdf" || !p.Created {
		t.Errorf("placeholder = %+v", p)
	}
	data, err := os.ReadFile(filepath.Join(vaultDir, filepath.FromSlash(p.Path)))
	if err != nil {
		t.Fatalf("placeholder file: %v", err)
	}
	if !strings.HasSuffix(string(data), "/documents/42/preview/") {
		t.Errorf("placeholder content = %q", data)
	}
}

func TestUpsertPlaceholder_RemoteFailure(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "upsert_placeholder", map[string]interface{}{"id": "9"})
	if !r.IsError {
		t.Fatal("expected error for unknown document")
	}
	if !strings.HasPrefix(resultText(r), "remote_lookup: ") {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestRenderDocument(t *testing.T) {
	srv, vaultDir := testServer(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "note.md"), []byte("a\nsee paperless-ngx 42\n"), 0o644)

	r := callTool(t, srv, "render_document", map[string]interface{}{"note": "note.md", "line": 1})
	if r.IsError {
		t.Fatalf("render failed: %s", resultText(r))
	}
	data, _ := os.ReadFile(filepath.Join(vaultDir, "note.md"))
	if string(data) != "a\nsee ![[invoice.pdf]]\n" {
		t.Errorf("note = %q", data)
	}

	r = callTool(t, srv, "get_embeds", map[string]interface{}{"filename": "invoice.pdf"})
	if resultText(r) != "note.md" {
		t.Errorf("embeds = %q, want note.md", resultText(r))
	}
}

func TestRenderDocument_NoToken(t *testing.T) {
	srv, vaultDir := testServer(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "note.md"), []byte("nothing\n"), 0o644)

	r := callTool(t, srv, "render_document", map[string]interface{}{"note": "note.md", "line": 0})
	if !r.IsError {
		t.Fatal("expected error without token")
	}
	if resultText(r) != "validation: Please provide a valid document ID." {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestInsertDocument(t *testing.T) {
	srv, vaultDir := testServer(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "note.md"), []byte("ab\n"), 0o644)

	r := callTool(t, srv, "insert_document", map[string]interface{}{
		"note": "note.md", "line": 0, "column": 1, "id": "42",
	})
	if r.IsError {
		t.Fatalf("insert failed: %s", resultText(r))
	}
	data, _ := os.ReadFile(filepath.Join(vaultDir, "note.md"))
	if string(data) != "a![[invoice.pdf]]b\n" {
		t.Errorf("note = %q", data)
	}
}

func TestInsertDocument_MissingArgs(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "insert_document", map[string]interface{}{"note": "note.md"})
	if !r.IsError {
		t.Error("expected error for missing arguments")
	}
}

func TestListPlaceholders(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "upsert_placeholder", map[string]interface{}{"id": "42"})

	r := callTool(t, srv, "list_placeholders", map[string]interface{}{})
	var list []models.Placeholder
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].DocumentID != "42" {
		t.Errorf("list = %+v", list)
	}
}

func TestSettingsTools(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "update_settings", map[string]interface{}{"dummyFolder": "docs"})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	r = callTool(t, srv, "get_settings", map[string]interface{}{})
	var cfg models.Configuration
	_ = json.Unmarshal([]byte(resultText(r)), &cfg)
	if cfg.PlaceholderFolder != "docs" {
		t.Errorf("settings = %+v", cfg)
	}

	r = callTool(t, srv, "update_settings", map[string]interface{}{"apiUrl": "nope"})
	if !r.IsError {
		t.Error("expected error for invalid api url")
	}
}

func TestEmbedContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_embed_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "![[") {
		t.Error("contract should describe the embed reference")
	}

	contents, err := srv.readEmbedFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != embedFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
