// Package rules implements NML's concrete rule families: the structural,
// inline-style, math, graph, media/reference, variable, import, style and
// script-invocation recognizers. Every rule is stateless
// w.r.t. the parser driver; whatever state a rule needs across Search calls
// (a compiled pattern, mostly) lives on the rule value itself, set up once
// at registration time.
package rules

import (
	"bytes"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// indexFrom returns the offset of the first occurrence of needle in the
// cursor's source at or after from, or -1.
func indexFrom(c *cursor.Cursor, needle string, from int) int {
	if from >= c.Len() {
		return -1
	}
	rel := bytes.Index(c.PeekAt(from, c.Len()-from), []byte(needle))
	if rel < 0 {
		return -1
	}
	return from + rel
}

// lineEnd returns the offset of the next '\n' at or after from, or the
// source length if there is none.
func lineEnd(c *cursor.Cursor, from int) int {
	idx := indexFrom(c, "\n", from)
	if idx < 0 {
		return c.Len()
	}
	return idx
}

// atLineStart reports whether offset is at the very start of the source or
// immediately follows a '\n'.
func atLineStart(c *cursor.Cursor, offset int) bool {
	if offset == 0 {
		return true
	}
	return string(c.PeekAt(offset-1, 1)) == "\n"
}

// popUntilKind closes frames (via CloseParagraphIfOpen first, then Pop)
// until the stack top is one of the given kinds or only the document
// root remains. It's the shared "close implicit/inline containers back
// to the nearest legal structural scope" step every block-level rule
// needs before opening its own container.
func popUntilKind(stack *tree.Stack, kinds ...tree.Kind) {
	stack.CloseParagraphIfOpen()
	for stack.Depth() > 1 {
		top := stack.Top()
		for _, k := range kinds {
			if top.Kind == k {
				return
			}
		}
		stack.Pop()
	}
}

// openParagraph auto-opens a paragraph at loc if none is currently open,
// the entry point every inline-content rule uses before attaching a
// styled run, code span, reference, or other inline element.
func openParagraph(stack *tree.Stack, loc source.Span) *tree.Element {
	return stack.OpenParagraph(func() tree.Element { return tree.Element{Location: loc} })
}

// countLeading counts consecutive occurrences of b starting at offset.
func countLeading(c *cursor.Cursor, offset int, b byte) int {
	n := 0
	for {
		peek := c.PeekAt(offset+n, 1)
		if len(peek) == 0 || peek[0] != b {
			break
		}
		n++
	}
	return n
}

// readDottedIdentifier reads an identifier, then any further `.identifier`
// segments immediately following it, joining them with '.'. Variable names
// reserved by the compiler (`compiler.output`, `nav.title`, `nav.previous`,
// `nav.category`, `nav.subcategory`) are dotted; `cursor.Identifier` alone
// stops at the first '.'.
func readDottedIdentifier(c *cursor.Cursor) (string, bool) {
	name, ok := c.Identifier()
	if !ok {
		return "", false
	}
	for {
		if b := c.PeekAt(c.Pos(), 1); len(b) == 0 || b[0] != '.' {
			break
		}
		probe := cursor.AtOffset(c.Source(), c.Pos()+1)
		seg, ok := probe.Identifier()
		if !ok {
			break
		}
		c.Advance(1 + len(seg))
		name += "." + seg
	}
	return name, true
}
