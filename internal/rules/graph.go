package rules

import (
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Graph recognizes `[graph][props] dot-source [/graph]` blocks. The body
// between the tags is raw DOT source, stored verbatim; a missing
// `[/graph]` is diagnosed and the block runs implicitly to end of source.
type Graph struct{}

func (Graph) Name() string  { return "graph" }
func (Graph) Priority() int { return 3 }

func (Graph) Eligible(containerKind tree.Kind) bool { return containerKind != tree.KindCodeBlock }

func (Graph) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.HasPrefixAt(offset, "[graph]") {
			return offset, true
		}
	}
	return 0, false
}

func (Graph) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len("[graph]"))

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}

	bodyStart := c.Pos()
	closeOffset := indexFrom(c, "[/graph]", bodyStart)
	terminated := closeOffset >= 0

	var body string
	if terminated {
		body = string(c.PeekAt(bodyStart, closeOffset-bodyStart))
		c.SeekTo(closeOffset + len("[/graph]"))
	} else {
		body = string(c.PeekAt(bodyStart, c.Len()-bodyStart))
		c.SeekTo(c.Len())
	}

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	if !terminated {
		ctx.Diagnostics().Errorf(span, "graph.unterminated", "graph block starting here is never closed with [/graph]")
	}

	el := tree.NewElement(tree.KindGraph, span, tree.ContainLeaf)
	el.Text = strings.TrimSpace(body)
	for k, v := range props {
		el.SetAttr("prop."+k, v)
	}
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}
