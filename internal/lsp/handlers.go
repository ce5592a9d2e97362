package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/linker"
	"github.com/starford/paperlink/internal/models"
	"github.com/starford/paperlink/internal/parser"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.notifier.bind(context.Notify)

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
	}
	capabilities.CodeActionProvider = true
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandRender, CommandInsert},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	s.logger.Info("lsp: client initialized")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	s.logger.Info("lsp: shutting down")
	s.cancel()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.docs.open(params.TextDocument.URI, params.TextDocument.Text)
	s.logger.Debug("lsp: opened", slog.String("uri", params.TextDocument.URI))
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			if err := s.docs.change(uri, nil, c.Text); err != nil {
				return err
			}
		case protocol.TextDocumentContentChangeEvent:
			if err := s.docs.change(uri, c.Range, c.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.docs.close(params.TextDocument.URI)
	s.logger.Debug("lsp: closed", slog.String("uri", params.TextDocument.URI))
	return nil
}

// textDocumentCodeAction offers the render command on lines holding a
// document token.
func (s *Server) textDocumentCodeAction(
	context *glsp.Context,
	params *protocol.CodeActionParams,
) (any, error) {
	uri := params.TextDocument.URI
	line := int(params.Range.Start.Line)
	text := s.docs.line(uri, line)
	m, ok := parser.FindDocument(text)
	if !ok {
		return []protocol.CodeAction{}, nil
	}

	kind := protocol.CodeActionKindRefactorRewrite
	title := "Render Paperless-ngx Document"
	return []protocol.CodeAction{{
		Title: title,
		Kind:  &kind,
		Command: &protocol.Command{
			Title:     title,
			Command:   CommandRender,
			Arguments: []any{uri, line, utf16Column(text, m.StartColumn)},
		},
	}}, nil
}

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	s.notifier.bind(context.Notify)

	inv, err := parseCommand(params)
	if err != nil {
		return nil, err
	}
	// The linker waits on the network and on workspace/applyEdit, so it
	// must not block the request loop that delivers didChange.
	go func() {
		_, _ = s.invoke(s.ctx, context.Call, inv)
	}()
	return nil, nil
}

// invocation is a parsed editor command.
type invocation struct {
	command string
	uri     protocol.DocumentUri
	pos     protocol.Position
	id      string
}

// invoke runs one editor command against an open document.
func (s *Server) invoke(ctx context.Context, call glsp.CallFunc, inv invocation) (*linker.Result, error) {
	if _, ok := s.docs.text(inv.uri); !ok {
		s.logger.Warn("lsp: command on unopened document", slog.String("uri", inv.uri))
		s.notifier.Notify(NoticeNotOpen)
		return nil, fmt.Errorf("lsp: document %s is not open: %w", inv.uri, apperr.ErrNotFound)
	}
	line := int(inv.pos.Line)
	ed := &documentEditor{
		docs:   s.docs,
		uri:    inv.uri,
		cursor: models.Position{Line: line, Column: runeColumn(s.docs.line(inv.uri, line), inv.pos.Character)},
		call:   call,
	}

	var (
		res *linker.Result
		err error
	)
	switch inv.command {
	case CommandRender:
		res, err = s.linker.ResolveAndRender(ctx, ed)
	case CommandInsert:
		res, err = s.linker.ResolveAndInsert(ctx, ed, inv.id)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("lsp: command applied",
		slog.String("command", inv.command),
		slog.String("uri", inv.uri),
		slog.String("filename", res.Filename))
	return res, nil
}

// parseCommand validates executeCommand arguments:
// [uri, line, character] for render and [uri, line, character, id] for insert.
func parseCommand(params *protocol.ExecuteCommandParams) (invocation, error) {
	inv := invocation{command: params.Command}
	want := 3
	switch params.Command {
	case CommandRender:
	case CommandInsert:
		want = 4
	default:
		return inv, fmt.Errorf("%w: unknown command %q", apperr.ErrValidation, params.Command)
	}
	args := params.Arguments
	if len(args) < want {
		return inv, fmt.Errorf("%w: %s takes %d arguments, got %d", apperr.ErrValidation, params.Command, want, len(args))
	}

	uri, ok := args[0].(string)
	if !ok || uri == "" {
		return inv, fmt.Errorf("%w: %s: uri must be a string", apperr.ErrValidation, params.Command)
	}
	line, err := uintArg(args[1])
	if err != nil {
		return inv, fmt.Errorf("%w: %s: line: %w", apperr.ErrValidation, params.Command, err)
	}
	character, err := uintArg(args[2])
	if err != nil {
		return inv, fmt.Errorf("%w: %s: character: %w", apperr.ErrValidation, params.Command, err)
	}
	inv.uri = uri
	inv.pos = protocol.Position{Line: line, Character: character}

	if want == 4 {
		switch id := args[3].(type) {
		case string:
			inv.id = id
		case float64:
			if id < 0 || id != math.Trunc(id) {
				return inv, fmt.Errorf("%w: %s: id must be a whole number, got %v", apperr.ErrValidation, params.Command, id)
			}
			inv.id = strconv.FormatFloat(id, 'f', -1, 64)
		default:
			inv.id = fmt.Sprint(id)
		}
	}
	return inv, nil
}

// uintArg reads a non-negative integer from a decoded JSON argument.
func uintArg(v any) (protocol.UInteger, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case uint32:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, err
		}
		f = x
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
	if f < 0 || f != float64(uint32(f)) {
		return 0, fmt.Errorf("not a non-negative integer: %v", v)
	}
	return protocol.UInteger(f), nil
}
