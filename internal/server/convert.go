package server

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"rubyscope/internal/entry"
	"rubyscope/internal/location"
)

func fromProtocolPosition(pos protocol.Position) location.Position {
	return location.Position{Line: int(pos.Line) + 1, Column: int(pos.Character)}
}

func toProtocolRange(r location.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{
			Line:      protocol.UInteger(r.Start.Line - 1),
			Character: protocol.UInteger(r.Start.Column),
		},
		End: protocol.Position{
			Line:      protocol.UInteger(r.End.Line - 1),
			Character: protocol.UInteger(r.End.Column),
		},
	}
}

func entryLocation(e entry.Entry) protocol.Location {
	return protocol.Location{
		URI:   protocol.DocumentUri(e.URI()),
		Range: toProtocolRange(e.NameLocation()),
	}
}

func symbolKind(e entry.Entry) protocol.SymbolKind {
	switch v := e.(type) {
	case *entry.Namespace:
		switch v.Kind() {
		case entry.KindModule:
			return protocol.SymbolKindModule
		default:
			return protocol.SymbolKindClass
		}
	case *entry.Method, *entry.MethodAlias, *entry.UnresolvedMethodAlias:
		return protocol.SymbolKindMethod
	case *entry.Accessor:
		return protocol.SymbolKindProperty
	case *entry.Constant, *entry.Alias, *entry.UnresolvedAlias:
		return protocol.SymbolKindConstant
	default:
		return protocol.SymbolKindVariable
	}
}

func completionKind(e entry.Entry) protocol.CompletionItemKind {
	switch v := e.(type) {
	case *entry.Namespace:
		if v.Kind() == entry.KindModule {
			return protocol.CompletionItemKindModule
		}
		return protocol.CompletionItemKindClass
	case *entry.Constant, *entry.Alias, *entry.UnresolvedAlias:
		return protocol.CompletionItemKindConstant
	default:
		return protocol.CompletionItemKindMethod
	}
}

// lastSegment trims the qualifying prefix: "A::B::C" -> "C".
func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

// hoverMarkdown renders the documentation block shown for an entry.
func hoverMarkdown(title string, e entry.Entry) string {
	out := "```ruby\n" + title + "\n```"
	if comments := e.Comments(); comments != "" {
		out += "\n\n" + comments
	}
	return out
}

func entryTitle(fqn string, e entry.Entry) string {
	switch v := e.(type) {
	case *entry.Namespace:
		return v.Kind().String() + " " + fqn
	case entry.Member:
		title := "def " + v.Name()
		if sigs := v.Signatures(); len(sigs) > 0 && len(sigs[0].Parameters) > 0 {
			title += sigs[0].Label()
		}
		return title
	default:
		return fqn
	}
}
