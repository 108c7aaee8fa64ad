// Package server exposes the index over the Language Server Protocol:
// lifecycle, document synchronization with an unsaved-edit overlay, and the
// read-only feature handlers (definition, hover, completion, signature
// help, symbols).
package server

import (
	"context"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"rubyscope/internal/config"
	"rubyscope/internal/index"
	"rubyscope/internal/location"
	"rubyscope/internal/watcher"
)

// Server wires the index into a glsp language server. The index is built in
// the background after initialization; requests arriving earlier see a
// partial index and degrade to fewer results.
type Server struct {
	name    string
	version string
	watch   bool

	handler *protocol.Handler
	glspSrv *glspserver.Server
	logger  commonlog.Logger

	cfg  *config.Configuration
	ix   *index.Index
	docs *documentStore

	// Cancels background indexing and the watcher on shutdown.
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New creates the server. watch additionally keeps the index in sync with
// file-system changes outside the editor.
func New(name, version string, watch bool) *Server {
	s := &Server{
		name:    name,
		version: version,
		watch:   watch,
		logger:  commonlog.GetLogger(name),
		docs:    newDocumentStore(),
	}

	s.handler = &protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		Exit:        s.exit,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentSignatureHelp:  s.textDocumentSignatureHelp,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
		WorkspaceSymbol:            s.workspaceSymbol,

		WorkspaceDidChangeWatchedFiles: s.workspaceDidChangeWatchedFiles,
	}
	s.glspSrv = glspserver.NewServer(s.handler, name, false)
	return s
}

// RunStdio serves LSP over stdin/stdout until the client disconnects.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

// Index exposes the underlying index, for the one-shot CLI mode and tests.
func (s *Server) Index() *index.Index { return s.ix }

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	workspace := ""
	if params.RootURI != nil {
		workspace = location.ParseURI(string(*params.RootURI)).FullPath()
	}
	if workspace == "" && params.RootPath != nil {
		workspace = *params.RootPath
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.ix = index.New(cfg)

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: ptr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: ptr(false)},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{":", ".", "/", "\""},
	}
	capabilities.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters: []string{"(", ","},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    s.name,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	go func() {
		if err := s.ix.IndexAll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("workspace indexing failed", "err", err)
			return
		}
		s.logger.Info("workspace indexed", "names", s.ix.Len())
	}()

	if s.watch {
		w, err := watcher.New(s.ix, s.cfg, watcher.DefaultDebounce)
		if err != nil {
			s.logger.Error("watcher unavailable", "err", err)
			return nil
		}
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("watcher stopped", "err", err)
			}
		}()
	}
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelMu.Unlock()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) exit(_ *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// workspaceDidChangeWatchedFiles keeps the index in sync with edits made
// outside the editor when the client watches for us.
func (s *Server) workspaceDidChangeWatchedFiles(_ *glsp.Context, params *protocol.DidChangeWatchedFilesParams) error {
	for _, change := range params.Changes {
		uri := location.ParseURI(string(change.URI))
		switch change.Type {
		case protocol.FileChangeTypeDeleted:
			s.ix.Delete(uri)
		default:
			s.reindexFromDisk(uri)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
