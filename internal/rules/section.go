package rules

import (
	"strconv"
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

const sectionNumberingKey = "rules.section.numbering"

// Section recognizes `#{ref}+* Title` at the start of a line. depth is the
// count of leading '#'; '*' marks the section unnumbered, '+' omits it
// from the table of contents; the optional {ref} names it for §{ref}
// lookups.
type Section struct{}

func (Section) Name() string  { return "section" }
func (Section) Priority() int { return 5 }

func (Section) Eligible(containerKind tree.Kind) bool {
	// A section always closes back out to document (or layout pane)
	// scope first; it's legal to start one from inside a paragraph or
	// styled run too — Build handles unwinding.
	return true
}

func (Section) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.PeekAt(offset, 1)[0] != '#' {
			continue
		}
		if !atLineStart(c, offset) {
			continue
		}
		if looksLikeSection(c, offset) {
			return offset, true
		}
	}
	return 0, false
}

func looksLikeSection(c *cursor.Cursor, offset int) bool {
	n := countLeading(c, offset, '#')
	if n == 0 {
		return false
	}
	// Reject "#+LAYOUT_..." lines, which the layout rule owns.
	rest := c.PeekAt(offset+n, 9)
	return string(rest) != "+LAYOUT_B" && string(rest) != "+LAYOUT_N" && string(rest) != "+LAYOUT_E"
}

func (Section) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	depth := countLeading(c, start, '#')
	c.Advance(depth)

	ref := ""
	unnumbered := false
	omitFromTOC := false
loop:
	for {
		peek := c.PeekAt(c.Pos(), 1)
		if len(peek) == 0 {
			break
		}
		switch peek[0] {
		case '{':
			c.Advance(1)
			body, _ := c.BalancedSpan('{', '}')
			ref = body
		case '*':
			unnumbered = true
			c.Advance(1)
		case '+':
			omitFromTOC = true
			c.Advance(1)
		case ' ':
			break loop
		default:
			break loop
		}
	}
	// Skip the single separating space, then take the rest of the line as title.
	if len(c.PeekAt(c.Pos(), 1)) > 0 && c.PeekAt(c.Pos(), 1)[0] == ' ' {
		c.Advance(1)
	}
	titleStart := c.Pos()
	end := lineEnd(c, titleStart)
	title := strings.TrimSpace(string(c.PeekAt(titleStart, end-titleStart)))
	c.SeekTo(end)

	// Unwind to the nearest scope that can legally hold a section at this
	// depth: close any open styled run / paragraph / list / blockquote,
	// and close sibling-or-deeper sections so a depth-2 section nests
	// under the still-open depth-1 section instead of under document.
	ctx.Stack().CloseParagraphIfOpen()
	for {
		top := ctx.Stack().Top()
		if top.Kind == tree.KindDocument || top.Kind == tree.KindLayoutPane {
			break
		}
		if top.Kind == tree.KindSection && tree.Attr[int](top, "depth") < depth {
			break
		}
		ctx.Stack().Pop()
	}

	numeral := ""
	if !unnumbered {
		numeral = nextNumeral(ctx.Stack().Root(), depth)
	}

	span := source.Span{Source: c.Source(), Start: start, End: end}
	el := tree.NewElement(tree.KindSection, span, tree.ContainBlock)
	el.SetAttr("depth", depth)
	el.SetAttr("title", title)
	el.SetAttr("ref", ref)
	el.SetAttr("unnumbered", unnumbered)
	el.SetAttr("omit_from_toc", omitFromTOC)
	el.SetAttr("numeral", numeral)

	// A section element has no explicit close marker; Push leaves it open
	// as the container for whatever paragraphs/lists follow until the next
	// section of the same or shallower depth, a layout boundary, or end of
	// source closes it via PopUntil/FinalizeAtEOF; a deeper section nests
	// inside it.
	ctx.Stack().Push(el)
	return []*tree.Element{el}, nil
}

// nextNumeral advances (and returns the display numeral for) the section
// numbering stack kept on the document root, keyed by depth: entering a
// new section at depth d increments the counter at d and resets every
// deeper counter.
func nextNumeral(root *tree.Element, depth int) string {
	stack, _ := root.Attrs[sectionNumberingKey].([]int)
	for len(stack) < depth {
		stack = append(stack, 0)
	}
	stack = stack[:depth]
	stack[depth-1]++
	root.Attrs[sectionNumberingKey] = stack

	parts := make([]string, len(stack))
	for i, n := range stack {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
