package server

import (
	"context"
	"os"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"rubyscope/internal/location"
)

// documentStore is the overlay of unsaved editor buffers. Open documents
// are indexed from the overlay text, not from disk.
type documentStore struct {
	mu   sync.RWMutex
	text map[location.URI]string
}

func newDocumentStore() *documentStore {
	return &documentStore{text: map[location.URI]string{}}
}

func (d *documentStore) open(uri location.URI, text string) {
	d.mu.Lock()
	d.text[uri] = text
	d.mu.Unlock()
}

func (d *documentStore) close(uri location.URI) {
	d.mu.Lock()
	delete(d.text, uri)
	d.mu.Unlock()
}

func (d *documentStore) get(uri location.URI) (string, bool) {
	d.mu.RLock()
	text, ok := d.text[uri]
	d.mu.RUnlock()
	return text, ok
}

// applyChanges folds content changes into the overlay, handling both whole
// document replacements and incremental range edits.
func (d *documentStore) applyChanges(uri location.URI, changes []any) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.text[uri]
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			current = change.Text
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				current = change.Text
				continue
			}
			start, okStart := offsetAt(current, change.Range.Start)
			end, okEnd := offsetAt(current, change.Range.End)
			if !okStart || !okEnd || start > end {
				current = change.Text
				continue
			}
			current = current[:start] + change.Text + current[end:]
		}
	}
	d.text[uri] = current
	return current
}

// offsetAt converts a protocol position (0-based line) into a byte offset.
func offsetAt(text string, pos protocol.Position) (int, bool) {
	line := 0
	offset := 0
	for offset < len(text) && line < int(pos.Line) {
		if text[offset] == '\n' {
			line++
		}
		offset++
	}
	if line != int(pos.Line) {
		return 0, false
	}
	end := offset
	for end < len(text) && text[end] != '\n' {
		end++
	}
	column := int(pos.Character)
	if offset+column > end {
		return end, true
	}
	return offset + column, true
}

// sourceFor returns the current text of a document: the overlay when the
// document is open, the file on disk otherwise.
func (s *Server) sourceFor(uri location.URI) ([]byte, bool) {
	if text, ok := s.docs.get(uri); ok {
		return []byte(text), true
	}
	path := uri.FullPath()
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Server) reindexFromDisk(uri location.URI) {
	path := uri.FullPath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.ix.Delete(uri)
		return
	}
	_ = s.ix.IndexFile(context.Background(), uri, data)
}

func (s *Server) textDocumentDidOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := location.ParseURI(string(params.TextDocument.URI))
	s.docs.open(uri, params.TextDocument.Text)
	return s.ix.IndexFile(context.Background(), uri, []byte(params.TextDocument.Text))
}

func (s *Server) textDocumentDidChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := location.ParseURI(string(params.TextDocument.URI))
	text := s.docs.applyChanges(uri, params.ContentChanges)
	return s.ix.IndexFile(context.Background(), uri, []byte(text))
}

func (s *Server) textDocumentDidSave(_ *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text != nil {
		uri := location.ParseURI(string(params.TextDocument.URI))
		s.docs.open(uri, *params.Text)
		return s.ix.IndexFile(context.Background(), uri, []byte(*params.Text))
	}
	return nil
}

func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := location.ParseURI(string(params.TextDocument.URI))
	s.docs.close(uri)
	// Closed documents fall back to their on-disk contents.
	s.reindexFromDisk(uri)
	return nil
}
