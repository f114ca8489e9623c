package rules

import (
	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Toggled recognizes a symmetric inline delimiter that both opens and
// closes a styled run — `**bold**`, `*italic*`, `__underline__` — the
// same shape `define_toggled` lets a script kernel register at runtime
// for a custom style. A delimiter only matches where a same-length
// closing occurrence exists later in the source; otherwise the bytes are
// left as plain text (an unmatched `*` is just an asterisk).
type Toggled struct {
	StyleName     string
	Delim         string
	PriorityValue int
}

func (t Toggled) Name() string  { return "style:" + t.StyleName }
func (t Toggled) Priority() int { return t.PriorityValue }

func (Toggled) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock && containerKind != tree.KindInlineCode
}

func (t Toggled) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !t.runMatchesHere(c, offset) {
			continue
		}
		if _, ok := t.findClose(c, offset+len(t.Delim)); ok {
			return offset, true
		}
	}
	return 0, false
}

// runMatchesHere reports whether Delim occurs at offset as an exact-length
// run of its (necessarily single, repeated) first byte — so a lone '*'
// never matches the two-byte bold delimiter and vice versa.
func (t Toggled) runMatchesHere(c *cursor.Cursor, offset int) bool {
	if !c.HasPrefixAt(offset, t.Delim) {
		return false
	}
	return countLeading(c, offset, t.Delim[0]) == len(t.Delim)
}

// findClose returns the offset of the next exact-length occurrence of
// Delim at or after from.
func (t Toggled) findClose(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if t.runMatchesHere(c, offset) {
			return offset, true
		}
	}
	return 0, false
}

func (t Toggled) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len(t.Delim))

	closeOffset, ok := t.findClose(c, c.Pos())
	if !ok {
		// Search guarantees a close exists; if the source mutated
		// between Search and Build (it never should), fail soft.
		return nil, nil
	}

	span := source.Span{Source: c.Source(), Start: start, End: closeOffset + len(t.Delim)}
	openParagraph(ctx.Stack(), span)
	el := tree.NewElement(tree.KindStyledRun, span, tree.ContainInline)
	el.SetAttr("style", t.StyleName)
	ctx.Stack().Push(el)
	ctx.Recurse(c, closeOffset)
	ctx.Stack().Pop()

	c.SeekTo(closeOffset)
	c.Advance(len(t.Delim))
	return []*tree.Element{el}, nil
}

// BuiltinToggled are the styles recognized without a script registering
// them; script-defined custom styles (define_toggled) register
// additional Toggled values with the same Rule shape at runtime.
var BuiltinToggled = []Toggled{
	{StyleName: "bold", Delim: "**", PriorityValue: 10},
	{StyleName: "italic", Delim: "*", PriorityValue: 12},
	{StyleName: "underline", Delim: "__", PriorityValue: 11},
}
