// Package lsp exposes the document linker to editors as a Language Server.
package lsp

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/starford/paperlink/internal/linker"
)

// Name is the server name reported to clients.
const Name = "paperlink"

var version = "1.0.0"

// Command identifiers accepted by workspace/executeCommand.
const (
	CommandRender = "paperlink.renderDocument"
	CommandInsert = "paperlink.insertDocument"
)

// NoticeNotOpen is shown when a command names a document the client has
// not opened.
const NoticeNotOpen = "Document is not open in the editor."

// Linker is the part of the document linker the server drives.
type Linker interface {
	ResolveAndRender(ctx context.Context, ed linker.Editor) (*linker.Result, error)
	ResolveAndInsert(ctx context.Context, ed linker.Editor, id string) (*linker.Result, error)
}

// Notifier delivers linker notices to the connected client as
// window/showMessage notifications. It is bound to the client once a
// request arrives; notices before that are dropped.
type Notifier struct {
	notify atomic.Value // glsp.NotifyFunc
}

// NewNotifier creates an unbound notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) bind(fn glsp.NotifyFunc) {
	if fn != nil {
		n.notify.Store(fn)
	}
}

// Notify implements linker.Notifier.
func (n *Notifier) Notify(message string) {
	fn, _ := n.notify.Load().(glsp.NotifyFunc)
	if fn == nil {
		return
	}
	fn("window/showMessage", protocol.ShowMessageParams{
		Type:    protocol.MessageTypeWarning,
		Message: message,
	})
}

// Server handles LSP requests for open Markdown documents.
type Server struct {
	handler  *protocol.Handler
	linker   Linker
	notifier *Notifier
	docs     *documents
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a Language Server over lk. Notices go through n, which
// should be the notifier lk was built with.
func NewServer(lk Linker, n *Notifier, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		linker:   lk,
		notifier: n,
		docs:     newDocuments(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.handler = &protocol.Handler{
		Initialize:              s.initialize,
		Initialized:             s.initialized,
		Shutdown:                s.shutdown,
		SetTrace:                s.setTrace,
		TextDocumentDidOpen:     s.textDocumentDidOpen,
		TextDocumentDidChange:   s.textDocumentDidChange,
		TextDocumentDidClose:    s.textDocumentDidClose,
		TextDocumentCodeAction:  s.textDocumentCodeAction,
		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
	}
	return s
}

// RunStdio serves the protocol on stdin/stdout until the client exits.
func (s *Server) RunStdio() error {
	defer s.cancel()
	return server.NewServer(s.handler, Name, false).RunStdio()
}
