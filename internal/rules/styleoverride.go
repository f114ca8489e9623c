package rules

import (
	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// StyleOverride recognizes `@@style.key = { ...json... }` at the start of
// a line, installing a document-wide style override. Unknown keys (per
// the schema registered for that style key) produce warnings, not errors;
// invalid JSON is an error.
type StyleOverride struct{}

func (StyleOverride) Name() string  { return "style_override" }
func (StyleOverride) Priority() int { return 4 }

func (StyleOverride) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (StyleOverride) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !atLineStart(c, offset) {
			continue
		}
		if c.HasPrefixAt(offset, "@@") {
			return offset, true
		}
	}
	return 0, false
}

func (StyleOverride) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(2) // "@@"

	keyStart := c.Pos()
	for {
		b := c.PeekAt(c.Pos(), 1)
		if len(b) == 0 || b[0] == ' ' || b[0] == '\t' || b[0] == '=' {
			break
		}
		c.Advance(1)
	}
	styleKey := string(c.PeekAt(keyStart, c.Pos()-keyStart))
	skipHorizontalSpace(c)
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '=' {
		c.Advance(1)
	}
	skipHorizontalSpace(c)

	if b := c.PeekAt(c.Pos(), 1); len(b) == 0 || b[0] != '{' {
		span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
		ctx.Diagnostics().Errorf(span, "style.invalid-json", "style override for %q is missing its JSON body", styleKey)
		c.SeekTo(lineEnd(c, c.Pos()))
		return nil, nil
	}
	c.Advance(1) // '{'
	body, ok := c.BalancedSpan('{', '}')
	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	if !ok {
		ctx.Diagnostics().Errorf(span, "style.invalid-json", "style override for %q has an unterminated JSON body", styleKey)
		return nil, nil
	}

	warnings, err := ctx.Styles().Set(styleKey, "{"+body+"}")
	if err != nil {
		ctx.Diagnostics().Errorf(span, "style.invalid-json", "%s", err)
		return nil, nil
	}
	for _, w := range warnings {
		ctx.Diagnostics().Warningf(span, "style.unknown-key", "%s", w)
	}
	return nil, nil
}
