// Package entry defines the declaration records stored in the index:
// namespaces (classes, modules, singleton classes), members (methods,
// accessors, aliases), constants, and variables.
package entry

import (
	"regexp"
	"strings"
	"sync"

	"rubyscope/internal/location"
)

// Visibility is a method's access level at its declaration site.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityProtected:
		return "protected"
	case VisibilityPrivate:
		return "private"
	default:
		return "public"
	}
}

// Entry is a single declaration site recorded by the index. Entries are
// created by the visitor and bulk-removed when their file is deindexed.
// They never own each other: owner and alias targets are names resolved by
// lookup, not pointers, because entries are replaced wholesale on file edits.
type Entry interface {
	Name() string
	URI() location.URI
	Location() location.Range
	NameLocation() location.Range
	Visibility() Visibility
	Comments() string
}

// Base carries the fields shared by every declaration record.
type Base struct {
	name         string
	uri          location.URI
	location     location.Range
	nameLocation location.Range
	visibility   Visibility

	// Raw leading comment block captured at visit time. Filtering is
	// deferred: most entries never have their documentation requested.
	rawComments string
	magic       []*regexp.Regexp

	// Pointer so Base stays copyable when embedded by value.
	commentsOnce *sync.Once
	comments     *string
}

// NewBase builds the shared portion of an entry. rawComments is the
// unprocessed comment block found immediately above the declaration and
// magic is the configured set of magic-comment patterns to strip from it.
func NewBase(name string, uri location.URI, loc, nameLoc location.Range, rawComments string, magic []*regexp.Regexp) Base {
	return Base{
		name:         name,
		uri:          uri,
		location:     loc,
		nameLocation: nameLoc,
		rawComments:  rawComments,
		magic:        magic,
		commentsOnce: new(sync.Once),
		comments:     new(string),
	}
}

func (b *Base) Name() string                 { return b.name }
func (b *Base) URI() location.URI            { return b.uri }
func (b *Base) Location() location.Range     { return b.location }
func (b *Base) NameLocation() location.Range { return b.nameLocation }
func (b *Base) Visibility() Visibility       { return b.visibility }

// SetVisibility is used by the visitor when a bare visibility modifier or a
// `private :name` call retroactively changes a declaration's access level.
func (b *Base) SetVisibility(v Visibility) { b.visibility = v }

// Comments returns the documentation attached to the declaration: the
// leading comment block with comment markers stripped and magic comments
// (encoding pragmas, type-checker directives) filtered out. Computed once.
func (b *Base) Comments() string {
	b.commentsOnce.Do(func() {
		*b.comments = filterComments(b.rawComments, b.magic)
	})
	return *b.comments
}

func filterComments(raw string, magic []*regexp.Regexp) string {
	if raw == "" {
		return ""
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimPrefix(line, " ")
		skip := false
		for _, re := range magic {
			if re.MatchString(line) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
