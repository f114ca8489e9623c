package rules

import (
	"strconv"
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// InlineBacktick recognizes a single-backtick span. Content containing a
// top-level comma is inline code (`` `Lang, code` ``, split on the first
// comma); anything else is the `emphasis` inline style. The shared
// delimiter is disambiguated from mini code (``` `` ```, two backticks)
// and fenced code (```` ``` ````, three) purely by exact run length,
// same trick Toggled uses for `*` vs `**`.
type InlineBacktick struct{}

func (InlineBacktick) Name() string  { return "inline_backtick" }
func (InlineBacktick) Priority() int { return 15 }

func (InlineBacktick) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (InlineBacktick) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !backtickRunIs(c, offset, 1) {
			continue
		}
		if _, ok := findBacktickClose(c, offset+1, 1); ok {
			return offset, true
		}
	}
	return 0, false
}

func backtickRunIs(c *cursor.Cursor, offset, n int) bool {
	b := c.PeekAt(offset, 1)
	if len(b) == 0 || b[0] != '`' {
		return false
	}
	return countLeading(c, offset, '`') == n
}

func findBacktickClose(c *cursor.Cursor, from, n int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if backtickRunIs(c, offset, n) {
			return offset, true
		}
	}
	return 0, false
}

func (InlineBacktick) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(1)
	contentStart := c.Pos()
	closeOffset, ok := findBacktickClose(c, contentStart, 1)
	if !ok {
		return nil, nil
	}
	text := string(c.PeekAt(contentStart, closeOffset-contentStart))
	c.SeekTo(closeOffset)
	c.Advance(1)
	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)

	if idx := strings.Index(text, ","); idx >= 0 {
		el := tree.NewElement(tree.KindInlineCode, span, tree.ContainLeaf)
		el.SetAttr("lang", strings.TrimSpace(text[:idx]))
		el.SetAttr("code", strings.TrimSpace(text[idx+1:]))
		ctx.Stack().Top().AppendChild(el)
		return []*tree.Element{el}, nil
	}

	el := tree.NewElement(tree.KindStyledRun, span, tree.ContainLeaf)
	el.SetAttr("style", "emphasis")
	el.Text = text
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}

// MiniCode recognizes a double-backtick span, which may cross multiple
// lines; its content is stored verbatim (no nested inline parsing — code
// content is never re-interpreted as markup).
type MiniCode struct{}

func (MiniCode) Name() string  { return "mini_code" }
func (MiniCode) Priority() int { return 8 }

func (MiniCode) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (MiniCode) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !backtickRunIs(c, offset, 2) {
			continue
		}
		if _, ok := findBacktickClose(c, offset+2, 2); ok {
			return offset, true
		}
	}
	return 0, false
}

func (MiniCode) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(2)
	contentStart := c.Pos()
	closeOffset, ok := findBacktickClose(c, contentStart, 2)
	if !ok {
		return nil, nil
	}
	text := string(c.PeekAt(contentStart, closeOffset-contentStart))
	c.SeekTo(closeOffset)
	c.Advance(2)

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)
	el := tree.NewElement(tree.KindCodeBlock, span, tree.ContainLeaf)
	el.SetAttr("mini", true)
	el.Text = text
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}

// FencedCode recognizes a ``` fence at line start, with an optional
// `[line_offset=n]` property block and an optional `Lang, Title` header
// on the fence's opening line, running until a matching closing fence or
// end of source (diagnostic + implicit close on the latter).
type FencedCode struct{}

func (FencedCode) Name() string  { return "fenced_code" }
func (FencedCode) Priority() int { return 2 } // beats inline emphasis on a tie

func (FencedCode) Eligible(containerKind tree.Kind) bool { return true }

func (FencedCode) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !atLineStart(c, offset) {
			continue
		}
		if backtickRunIs(c, offset, 3) {
			return offset, true
		}
	}
	return 0, false
}

func (FencedCode) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(3)

	var lineOffset int
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if props, ok := c.PropertyList(); ok {
			if v, err := strconv.Atoi(props["line_offset"]); err == nil {
				lineOffset = v
			}
		}
	}

	headerEnd := lineEnd(c, c.Pos())
	header := strings.TrimSpace(string(c.PeekAt(c.Pos(), headerEnd-c.Pos())))
	lang, title := "", ""
	if idx := strings.Index(header, ","); idx >= 0 {
		lang = strings.TrimSpace(header[:idx])
		title = strings.TrimSpace(header[idx+1:])
	} else {
		lang = header
	}
	bodyStart := headerEnd
	if bodyStart < c.Len() {
		bodyStart++ // skip the newline ending the header line
	}

	closeOffset := indexFromLineStart(c, "```", bodyStart)
	var body string
	var bodyEnd int
	terminated := closeOffset >= 0
	if terminated {
		bodyEnd = closeOffset
		if bodyEnd > bodyStart && c.PeekAt(bodyEnd-1, 1)[0] == '\n' {
			bodyEnd--
		}
		body = string(c.PeekAt(bodyStart, bodyEnd-bodyStart))
		c.SeekTo(closeOffset + 3)
	} else {
		bodyEnd = c.Len()
		body = string(c.PeekAt(bodyStart, bodyEnd-bodyStart))
		c.SeekTo(c.Len())
	}

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	if !terminated {
		ctx.Diagnostics().Errorf(span, "code.unterminated-fence", "fenced code block starting here is never closed")
	}

	popUntilKind(ctx.Stack(), tree.KindDocument, tree.KindSection, tree.KindLayoutPane, tree.KindLayout, tree.KindBlockquote, tree.KindListItem)

	el := tree.NewElement(tree.KindCodeBlock, span, tree.ContainLeaf)
	el.SetAttr("fenced", true)
	el.SetAttr("lang", lang)
	el.SetAttr("title", title)
	el.SetAttr("line_offset", lineOffset)
	el.Text = body
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}

// indexFromLineStart finds the next occurrence of needle that itself
// begins at a line start, at or after from — so a closing fence embedded
// mid-line in the code body (rare, but possible in a pasted snippet)
// doesn't falsely terminate the block.
func indexFromLineStart(c *cursor.Cursor, needle string, from int) int {
	for offset := from; offset < c.Len(); offset++ {
		if !atLineStart(c, offset) {
			continue
		}
		if c.HasPrefixAt(offset, needle) {
			return offset
		}
	}
	return -1
}
