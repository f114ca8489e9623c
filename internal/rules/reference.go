package rules

import (
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Media recognizes `![alt](url)[props]`.
type Media struct{}

func (Media) Name() string  { return "media" }
func (Media) Priority() int { return 7 }

func (Media) Eligible(containerKind tree.Kind) bool { return containerKind != tree.KindCodeBlock }

func (Media) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !c.HasPrefixAt(offset, "![") {
			continue
		}
		closeBracket := indexFrom(c, "]", offset+2)
		if closeBracket < 0 || !c.HasPrefixAt(closeBracket+1, "(") {
			continue
		}
		if indexFrom(c, ")", closeBracket+2) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (Media) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(2) // "!["

	altStart := c.Pos()
	closeBracket := indexFrom(c, "]", altStart)
	alt := string(c.PeekAt(altStart, closeBracket-altStart))
	c.SeekTo(closeBracket + 1)
	c.Advance(1) // "("

	urlStart := c.Pos()
	closeParen := indexFrom(c, ")", urlStart)
	url := string(c.PeekAt(urlStart, closeParen-urlStart))
	c.SeekTo(closeParen + 1)

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)

	el := tree.NewElement(tree.KindMedia, span, tree.ContainLeaf)
	el.SetAttr("alt", alt)
	el.SetAttr("url", url)
	for k, v := range props {
		el.SetAttr("prop."+k, v)
	}
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}

// SectionRef recognizes the three `§{…}` reference forms: `§{ref}` (same
// document), `§{doc#ref}` (a named other document) and `§{#ref}` (any
// document, resolved by ref alone). An optional `[caption=…]` overrides
// the displayed text.
type SectionRef struct{}

func (SectionRef) Name() string  { return "section_ref" }
func (SectionRef) Priority() int { return 7 }

func (SectionRef) Eligible(containerKind tree.Kind) bool { return containerKind != tree.KindCodeBlock }

func (SectionRef) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !c.HasPrefixAt(offset, "§{") {
			continue
		}
		if indexFrom(c, "}", offset+2) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (SectionRef) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len("§{"))

	bodyStart := c.Pos()
	closeBrace := indexFrom(c, "}", bodyStart)
	body := string(c.PeekAt(bodyStart, closeBrace-bodyStart))
	c.SeekTo(closeBrace + 1)

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}

	doc, ref, anyDoc := "", body, false
	if strings.HasPrefix(body, "#") {
		anyDoc = true
		ref = body[1:]
	} else if idx := strings.Index(body, "#"); idx >= 0 {
		doc = body[:idx]
		ref = body[idx+1:]
	}

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)

	el := tree.NewElement(tree.KindReference, span, tree.ContainLeaf)
	el.SetAttr("target_kind", "section")
	el.SetAttr("doc", doc)
	el.SetAttr("ref", ref)
	el.SetAttr("any_doc", anyDoc)
	el.SetAttr("caption", props["caption"])
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}

// MediaRef recognizes `&{ref}[caption=…]`, a reference to a previously
// defined media element rather than a section.
type MediaRef struct{}

func (MediaRef) Name() string  { return "media_ref" }
func (MediaRef) Priority() int { return 7 }

func (MediaRef) Eligible(containerKind tree.Kind) bool { return containerKind != tree.KindCodeBlock }

func (MediaRef) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !c.HasPrefixAt(offset, "&{") {
			continue
		}
		if indexFrom(c, "}", offset+2) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (MediaRef) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len("&{"))

	bodyStart := c.Pos()
	closeBrace := indexFrom(c, "}", bodyStart)
	ref := string(c.PeekAt(bodyStart, closeBrace-bodyStart))
	c.SeekTo(closeBrace + 1)

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)

	el := tree.NewElement(tree.KindReference, span, tree.ContainLeaf)
	el.SetAttr("target_kind", "media")
	el.SetAttr("ref", ref)
	el.SetAttr("caption", props["caption"])
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}

// RawPassthrough recognizes `{?[kind=…] raw ?}`, content emitted verbatim
// to the chosen output kind without any markup interpretation.
type RawPassthrough struct{}

func (RawPassthrough) Name() string  { return "raw_passthrough" }
func (RawPassthrough) Priority() int { return 3 }

func (RawPassthrough) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (RawPassthrough) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !c.HasPrefixAt(offset, "{?") {
			continue
		}
		if indexFrom(c, "?}", offset+2) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (RawPassthrough) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len("{?"))

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}

	bodyStart := c.Pos()
	closeOffset := indexFrom(c, "?}", bodyStart)
	body := string(c.PeekAt(bodyStart, closeOffset-bodyStart))
	c.SeekTo(closeOffset + len("?}"))

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	openParagraph(ctx.Stack(), span)

	el := tree.NewElement(tree.KindRaw, span, tree.ContainLeaf)
	el.SetAttr("kind", props["kind"])
	el.Text = strings.TrimSpace(body)
	ctx.Stack().Top().AppendChild(el)
	return []*tree.Element{el}, nil
}
