package rules

import (
	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Blockquote recognizes a leading run of '>' at line start; the run's
// length is the nesting depth for that line. An optional property block
// (author/cite/url, consumed by style.block.quote's format strings) may
// follow the first '>' of the quote's opening line, directly or after one
// space. Depth is tracked per
// line, so quoting more or fewer levels than the currently open quote
// rebuilds the nesting to match.
type Blockquote struct{}

func (Blockquote) Name() string  { return "blockquote" }
func (Blockquote) Priority() int { return 5 }

func (Blockquote) Eligible(containerKind tree.Kind) bool { return true }

func (Blockquote) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		b := c.PeekAt(offset, 1)
		if len(b) == 0 || b[0] != '>' {
			continue
		}
		if !atLineStart(c, offset) {
			continue
		}
		return offset, true
	}
	return 0, false
}

func (Blockquote) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	ctx.Stack().CloseParagraphIfOpen()

	start := c.Pos()
	depth := countLeading(c, start, '>')
	c.Advance(depth)

	// One space may separate the '>' run from the property block.
	if c.HasPrefixAt(c.Pos(), " [") {
		c.Advance(1)
	}
	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == ' ' {
		c.Advance(1)
	}

	quote := unwindOrOpenBlockquotes(ctx, c, depth, start)
	if props != nil {
		for k, v := range props {
			quote.SetAttr("prop."+k, v)
		}
	}
	return []*tree.Element{quote}, nil
}

func quoteDepth(e *tree.Element) int {
	if e == nil || e.Kind != tree.KindBlockquote {
		return 0
	}
	return tree.Attr[int](e, "depth")
}

// unwindOrOpenBlockquotes closes any open blockquote deeper than depth,
// reuses one already open at exactly depth, and otherwise opens however
// many nested frames are needed to reach depth from whatever quote (if
// any) is left open.
func unwindOrOpenBlockquotes(ctx registry.Context, c *cursor.Cursor, depth, at int) *tree.Element {
	for {
		top := ctx.Stack().Top()
		if top.Kind != tree.KindBlockquote {
			break
		}
		d := quoteDepth(top)
		if d == depth {
			return top
		}
		if d < depth {
			break
		}
		ctx.Stack().Pop()
	}

	cur := quoteDepth(ctx.Stack().Top())
	for l := cur + 1; l <= depth; l++ {
		bq := tree.NewElement(tree.KindBlockquote, source.Span{Source: c.Source(), Start: at, End: at}, tree.ContainBlock)
		bq.SetAttr("depth", l)
		ctx.Stack().Push(bq)
	}
	return ctx.Stack().Top()
}
