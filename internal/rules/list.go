package rules

import (
	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// ListItem recognizes a list marker at line start: a run of the same
// marker byte gives the nesting depth ('*' bulleted, '-' numbered),
// followed by an optional checkbox (`[ ]`, `[-]`, `[x]`) or property
// block (`[offset=…]`) and the item's inline content. Depth changes
// rebuild the List/ListItem nesting the way Section rebuilds section
// nesting: close back to the nearest list frame that still fits, then
// open whatever's missing.
type ListItem struct{}

func (ListItem) Name() string  { return "list_item" }
func (ListItem) Priority() int { return 5 }

func (ListItem) Eligible(containerKind tree.Kind) bool { return true }

func (ListItem) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		b := c.PeekAt(offset, 1)
		if len(b) == 0 || (b[0] != '*' && b[0] != '-') {
			continue
		}
		if !atLineStart(c, offset) {
			continue
		}
		if looksLikeListMarker(c, offset) {
			return offset, true
		}
	}
	return 0, false
}

// looksLikeListMarker requires the marker run to be followed by exactly
// one space and non-space content, disambiguating "* item" from a bare
// "*" used mid-document, and "**" list nesting from "**bold**" (which
// never starts a line immediately followed by a single space).
func looksLikeListMarker(c *cursor.Cursor, offset int) bool {
	marker := c.PeekAt(offset, 1)[0]
	n := countLeading(c, offset, marker)
	rest := c.PeekAt(offset+n, 1)
	if len(rest) == 0 || rest[0] != ' ' {
		return false
	}
	after := c.PeekAt(offset+n+1, 1)
	return len(after) > 0 && after[0] != ' ' && after[0] != '\n'
}

func (ListItem) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	ctx.Stack().CloseParagraphIfOpen()

	start := c.Pos()
	marker, _ := c.Byte()
	depth := countLeading(c, start, marker)
	c.Advance(depth)
	c.Advance(1) // separating space, guaranteed by Search

	checkbox := "none"
	if b := c.PeekAt(c.Pos(), 3); len(b) == 3 && b[0] == '[' && b[2] == ']' {
		switch b[1] {
		case ' ':
			checkbox = "unchecked"
			c.Advance(3)
		case '-':
			checkbox = "indeterminate"
			c.Advance(3)
		case 'x':
			checkbox = "checked"
			c.Advance(3)
		}
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

	for shouldPopForListDepth(ctx.Stack().Top(), depth, marker) {
		ctx.Stack().Pop()
	}

	top := ctx.Stack().Top()
	var list *tree.Element
	if top.Kind == tree.KindList && listDepth(top) == depth && listMarker(top) == marker {
		list = top
	} else {
		if top.Kind == tree.KindListItem && depth > listDepth(top.Parent)+1 {
			ctx.Diagnostics().Warningf(source.Span{Source: c.Source(), Start: start, End: c.Pos()},
				"list.indent-jump", "list item jumps from depth %d to depth %d", listDepth(top.Parent), depth)
		}
		list = tree.NewElement(tree.KindList, source.Span{Source: c.Source(), Start: start, End: start}, tree.ContainBlock)
		list.SetAttr("depth", depth)
		list.SetAttr("marker", string(marker))
		list.SetAttr("ordered", marker == '-')
		ctx.Stack().Push(list)
	}

	ordinal := 0
	if marker == '-' {
		ordinal = tree.Attr[int](list, "next_ordinal") + 1
		list.SetAttr("next_ordinal", ordinal)
	}

	item := tree.NewElement(tree.KindListItem, source.Span{Source: c.Source(), Start: start, End: c.Pos()}, tree.ContainInline)
	item.SetAttr("checkbox", checkbox)
	item.SetAttr("ordinal", ordinal)
	if props != nil {
		item.SetAttr("props", props)
	}
	ctx.Stack().Push(item)

	return []*tree.Element{list, item}, nil
}

func listDepth(e *tree.Element) int {
	if e == nil {
		return -1
	}
	return tree.Attr[int](e, "depth")
}

func listMarker(e *tree.Element) byte {
	if e == nil {
		return 0
	}
	s := tree.Attr[string](e, "marker")
	if s == "" {
		return 0
	}
	return s[0]
}

// shouldPopForListDepth decides, given the current stack top, whether it
// must be closed before a list item at depth/marker can be placed:
// deeper or mismatched-marker frames close; a shallower frame (or any
// non-list frame) is where the new item nests.
func shouldPopForListDepth(top *tree.Element, depth int, marker byte) bool {
	switch top.Kind {
	case tree.KindListItem:
		// A shallower enclosing list means this item is exactly where a
		// new, deeper nested list belongs — keep it open as the parent.
		// Otherwise (same depth or deeper) it must close: same depth
		// means a new sibling item is starting, deeper means we're
		// dedenting out of it.
		return listDepth(top.Parent) >= depth
	case tree.KindList:
		d := listDepth(top)
		if d > depth {
			return true
		}
		if d == depth {
			return listMarker(top) != marker
		}
		return false
	default:
		return false
	}
}
