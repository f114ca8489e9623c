package rules

import (
	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/tree"
)

// BlankLine recognizes a blank line — two consecutive newlines — and
// closes whatever paragraph is currently open, per the scope rule ("a
// paragraph is ... auto-closed by a blank line or any block-level
// element"). It produces no element of its own; the blank line itself is
// consumed and never appears as text. Eligible everywhere but inside
// literal content (a code fence or inline code span never reaches here
// since those kinds are leaves, not containers, but the guard matches
// every other rule's convention): a blank line right after a block
// element that hasn't opened a paragraph yet (e.g. directly under a
// fresh section heading) must still be consumed as structural
// whitespace, not leaked into the next paragraph's text as leading
// newlines.
type BlankLine struct{}

func (BlankLine) Name() string  { return "blank_line" }
func (BlankLine) Priority() int { return 4 }

func (BlankLine) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock && containerKind != tree.KindInlineCode
}

func (BlankLine) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len()-1; offset++ {
		if c.HasPrefixAt(offset, "\n\n") {
			return offset, true
		}
	}
	return 0, false
}

func (BlankLine) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	c.Advance(1) // consume the newline ending the paragraph's last line
	ctx.Stack().CloseParagraphIfOpen()
	for c.HasPrefixAt(c.Pos(), "\n") {
		c.Advance(1)
	}
	return nil, nil
}
