// Package location provides source positions, ranges, and document URIs
// shared by every indexed declaration.
package location

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Position is a point in a source document. Line is 1-based, Column is a
// 0-based byte offset within the line, matching tree-sitter's row/column
// convention shifted to editor-friendly line numbering.
type Position struct {
	Line   int
	Column int
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Column, r.End.Line, r.End.Column)
}

// Contains reports whether pos falls inside the range.
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Column < r.Start.Column {
		return false
	}
	if pos.Line == r.End.Line && pos.Column > r.End.Column {
		return false
	}
	return true
}

// URI identifies a document: either a file on disk (file://) or an in-memory
// buffer that has never been saved (untitled:).
type URI string

// NewFileURI builds a file:// URI from an absolute or relative path.
func NewFileURI(path string) URI {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return URI("file://" + filepath.ToSlash(abs))
}

// NewUntitledURI builds a URI for an unsaved editor buffer.
func NewUntitledURI(name string) URI {
	return URI("untitled:" + name)
}

// ParseURI normalizes a raw URI string received from an editor. Unknown
// schemes are kept as-is.
func ParseURI(raw string) URI {
	if strings.HasPrefix(raw, "file://") {
		if decoded, err := url.PathUnescape(strings.TrimPrefix(raw, "file://")); err == nil {
			return URI("file://" + filepath.ToSlash(decoded))
		}
	}
	return URI(raw)
}

// FullPath returns the filesystem path for file-backed URIs and "" for
// untitled or foreign schemes.
func (u URI) FullPath() string {
	s := string(u)
	if !strings.HasPrefix(s, "file://") {
		return ""
	}
	return filepath.FromSlash(strings.TrimPrefix(s, "file://"))
}

// IsUntitled reports whether the URI refers to an unsaved buffer.
func (u URI) IsUntitled() bool {
	return strings.HasPrefix(string(u), "untitled:")
}

func (u URI) String() string {
	return string(u)
}
