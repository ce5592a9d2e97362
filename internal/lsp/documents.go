package lsp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/editor"
	"github.com/starford/paperlink/internal/models"
)

// documents tracks the text of every open document, keyed by URI.
type documents struct {
	mu    sync.RWMutex
	texts map[protocol.DocumentUri]string
}

func newDocuments() *documents {
	return &documents{texts: make(map[protocol.DocumentUri]string)}
}

func (d *documents) open(uri protocol.DocumentUri, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts[uri] = text
}

func (d *documents) close(uri protocol.DocumentUri) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.texts, uri)
}

func (d *documents) text(uri protocol.DocumentUri) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	text, ok := d.texts[uri]
	return text, ok
}

// line returns line n of uri, or "" when the document or line is missing.
func (d *documents) line(uri protocol.DocumentUri, n int) string {
	text, ok := d.text(uri)
	if !ok {
		return ""
	}
	return editor.NewBuffer(text, models.Position{}).Line(n)
}

// change applies a ranged content change. A nil range replaces the text.
func (d *documents) change(uri protocol.DocumentUri, rng *protocol.Range, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.texts[uri]
	if !ok {
		return fmt.Errorf("lsp: change to unopened document %s", uri)
	}
	if rng == nil {
		d.texts[uri] = text
		return nil
	}
	buf := editor.NewBuffer(current, models.Position{})
	if err := buf.ReplaceRange(toModel(buf, rng.Start), toModel(buf, rng.End), text); err != nil {
		return err
	}
	d.texts[uri] = buf.String()
	return nil
}

// toModel converts an LSP position to a rune position within buf.
func toModel(buf *editor.Buffer, pos protocol.Position) models.Position {
	line := int(pos.Line)
	return models.Position{Line: line, Column: runeColumn(buf.Line(line), pos.Character)}
}

// documentEditor is the linker's view of one open document. Reads come
// from the tracked text; edits are sent to the client with
// workspace/applyEdit and come back as didChange notifications.
type documentEditor struct {
	docs   *documents
	uri    protocol.DocumentUri
	cursor models.Position
	call   glsp.CallFunc
}

func (e *documentEditor) Cursor() models.Position {
	return e.cursor
}

func (e *documentEditor) Line(n int) string {
	return e.docs.line(e.uri, n)
}

func (e *documentEditor) ReplaceRange(from, to models.Position, text string) error {
	current, ok := e.docs.text(e.uri)
	if !ok {
		return fmt.Errorf("lsp: document %s closed: %w", e.uri, apperr.ErrEditor)
	}
	lines := strings.Count(current, "\n") + 1
	if from.Line < 0 || to.Line < 0 || from.Line >= lines || to.Line >= lines {
		return fmt.Errorf("lsp: range %v-%v outside %s: %w", from, to, e.uri, apperr.ErrEditor)
	}

	edit := protocol.TextEdit{
		Range: protocol.Range{
			Start: e.toProtocol(from),
			End:   e.toProtocol(to),
		},
		NewText: text,
	}
	label := "Paperless-ngx document"
	params := protocol.ApplyWorkspaceEditParams{
		Label: &label,
		Edit: protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{e.uri: {edit}},
		},
	}

	var resp protocol.ApplyWorkspaceEditResponse
	e.call("workspace/applyEdit", params, &resp)
	if !resp.Applied {
		reason := "rejected by client"
		if resp.FailureReason != nil {
			reason = *resp.FailureReason
		}
		return fmt.Errorf("lsp: apply edit to %s: %s: %w", e.uri, reason, apperr.ErrEditor)
	}
	return nil
}

func (e *documentEditor) InsertAt(pos models.Position, text string) error {
	return e.ReplaceRange(pos, pos, text)
}

func (e *documentEditor) toProtocol(pos models.Position) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(pos.Line),
		Character: utf16Column(e.Line(pos.Line), pos.Column),
	}
}
