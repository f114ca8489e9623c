package rules

import (
	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Math recognizes the three LaTeX span forms: `$…$` (math, inline by
// default), `$[props]…$` (math, `kind` property overrides the default),
// and `$|…|$` (non-math LaTeX, block by default). `env` selects the
// LaTeX environment; `caption` supplies accessibility text for the
// rendered image.
type Math struct{}

func (Math) Name() string  { return "math" }
func (Math) Priority() int { return 6 }

func (Math) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (Math) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.PeekAt(offset, 1)[0] != '$' {
			continue
		}
		nonMath := c.HasPrefixAt(offset+1, "|")
		closeDelim := "$"
		contentStart := offset + 1
		if nonMath {
			closeDelim = "|$"
			contentStart = offset + 2
		}
		if indexFrom(c, closeDelim, contentStart) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (Math) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(1)

	nonMath := false
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '|' {
		nonMath = true
		c.Advance(1)
	}

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}

	contentStart := c.Pos()
	closeDelim := "$"
	if nonMath {
		closeDelim = "|$"
	}
	closeOffset := indexFrom(c, closeDelim, contentStart)
	body := string(c.PeekAt(contentStart, closeOffset-contentStart))
	c.SeekTo(closeOffset + len(closeDelim))

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)

	kind := "inline"
	if nonMath {
		kind = "block"
	}
	if v, ok := props["kind"]; ok {
		kind = v
	}

	el := tree.NewElement(tree.KindMath, span, tree.ContainLeaf)
	el.SetAttr("math", !nonMath)
	el.SetAttr("kind", kind)
	el.SetAttr("body", body)
	el.SetAttr("env", props["env"])
	el.SetAttr("caption", props["caption"])
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}
