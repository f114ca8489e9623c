package rules

import (
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Layout recognizes the `#+LAYOUT_BEGIN name` / `#+LAYOUT_NEXT` /
// `#+LAYOUT_END` trio. BEGIN opens a Layout and its first Pane; NEXT
// closes the current pane and opens the next, valid only with an open
// Layout on the stack; END closes the current pane and the Layout
// itself. Both NEXT and END outside an open layout are unrecoverable
// syntactic faults: diagnose and ignore the marker (local recovery).
type Layout struct{}

func (Layout) Name() string  { return "layout" }
func (Layout) Priority() int { return 4 }

func (Layout) Eligible(containerKind tree.Kind) bool { return true }

var layoutKeywords = []string{"#+LAYOUT_BEGIN", "#+LAYOUT_NEXT", "#+LAYOUT_END"}

func (Layout) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.PeekAt(offset, 1)[0] != '#' {
			continue
		}
		if !atLineStart(c, offset) {
			continue
		}
		for _, kw := range layoutKeywords {
			if string(c.PeekAt(offset, len(kw))) == kw {
				return offset, true
			}
		}
	}
	return 0, false
}

func (Layout) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	var keyword string
	for _, kw := range layoutKeywords {
		if string(c.PeekAt(start, len(kw))) == kw {
			keyword = kw
			break
		}
	}
	c.Advance(len(keyword))

	switch keyword {
	case "#+LAYOUT_BEGIN":
		return buildLayoutBegin(c, ctx, start)
	case "#+LAYOUT_NEXT":
		return buildLayoutNext(c, ctx, start)
	default:
		return buildLayoutEnd(c, ctx, start)
	}
}

func buildLayoutBegin(c *cursor.Cursor, ctx registry.Context, start int) ([]*tree.Element, error) {
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == ' ' {
		c.Advance(1)
	}
	nameStart := c.Pos()
	end := lineEnd(c, nameStart)
	name := strings.TrimSpace(string(c.PeekAt(nameStart, end-nameStart)))
	c.SeekTo(end)

	popUntilKind(ctx.Stack(), tree.KindDocument, tree.KindSection, tree.KindLayout, tree.KindLayoutPane)

	span := source.Span{Source: c.Source(), Start: start, End: end}
	layout := tree.NewElement(tree.KindLayout, span, tree.ContainBlock)
	layout.SetAttr("name", name)
	layout.SetAttr("pane_count", 1)
	ctx.Stack().Push(layout)

	pane := tree.NewElement(tree.KindLayoutPane, span, tree.ContainBlock)
	pane.SetAttr("index", 1)
	ctx.Stack().Push(pane)

	return []*tree.Element{layout, pane}, nil
}

func buildLayoutNext(c *cursor.Cursor, ctx registry.Context, start int) ([]*tree.Element, error) {
	layout, ok := closeCurrentPane(ctx)
	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	if !ok {
		ctx.Diagnostics().Errorf(span, "layout.next-without-layout", "#+LAYOUT_NEXT outside an open layout")
		return nil, nil
	}

	count := tree.Attr[int](layout, "pane_count") + 1
	layout.SetAttr("pane_count", count)

	pane := tree.NewElement(tree.KindLayoutPane, span, tree.ContainBlock)
	pane.SetAttr("index", count)
	ctx.Stack().Push(pane)

	return []*tree.Element{layout, pane}, nil
}

func buildLayoutEnd(c *cursor.Cursor, ctx registry.Context, start int) ([]*tree.Element, error) {
	layout, ok := closeCurrentPane(ctx)
	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	if !ok {
		ctx.Diagnostics().Errorf(span, "layout.end-without-layout", "#+LAYOUT_END outside an open layout")
		return nil, nil
	}
	ctx.Stack().Pop()
	return []*tree.Element{layout}, nil
}

// closeCurrentPane unwinds to the innermost Layout frame, closing any
// inline content and the current pane along the way, and reports
// whether a Layout was actually found.
func closeCurrentPane(ctx registry.Context) (*tree.Element, bool) {
	popUntilKind(ctx.Stack(), tree.KindLayoutPane, tree.KindLayout, tree.KindDocument)
	if ctx.Stack().Top().Kind == tree.KindLayoutPane {
		ctx.Stack().Pop()
	}
	top := ctx.Stack().Top()
	if top.Kind != tree.KindLayout {
		return nil, false
	}
	return top, true
}
