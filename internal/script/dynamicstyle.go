package script

import (
	"bytes"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// scriptRulePriority puts every scripted style behind the builtin inline
// styles, so a builtin always wins a same-offset tie against a
// script-defined one with the same delimiter.
const scriptRulePriority = 20

// ScriptedToggled is the Rule a define_toggled call registers: a
// symmetric delimiter, arbitrary string (not limited to a single repeated
// byte the way builtin styles are), that opens and closes a styled run.
type ScriptedToggled struct {
	StyleName string
	Delim     string
}

func (s *ScriptedToggled) Name() string  { return "script:toggled:" + s.StyleName }
func (s *ScriptedToggled) Priority() int { return scriptRulePriority }

func (s *ScriptedToggled) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (s *ScriptedToggled) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !c.HasPrefixAt(offset, s.Delim) {
			continue
		}
		if findLiteral(c, s.Delim, offset+len(s.Delim)) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (s *ScriptedToggled) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len(s.Delim))
	closeOffset := findLiteral(c, s.Delim, c.Pos())
	if closeOffset < 0 {
		return nil, nil
	}
	span := source.Span{Source: c.Source(), Start: start, End: closeOffset + len(s.Delim)}
	ctx.Stack().OpenParagraph(func() tree.Element { return tree.Element{Location: span} })
	el := tree.NewElement(tree.KindStyledRun, span, tree.ContainInline)
	el.SetAttr("style", s.StyleName)
	ctx.Stack().Push(el)
	ctx.Recurse(c, closeOffset)
	ctx.Stack().Pop()

	c.SeekTo(closeOffset)
	c.Advance(len(s.Delim))
	return []*tree.Element{el}, nil
}

// ScriptedPaired is the Rule a define_paired call registers: distinct
// open/close delimiter strings bracketing a styled run.
type ScriptedPaired struct {
	StyleName   string
	Open, Close string
}

func (s *ScriptedPaired) Name() string  { return "script:paired:" + s.StyleName }
func (s *ScriptedPaired) Priority() int { return scriptRulePriority }

func (s *ScriptedPaired) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (s *ScriptedPaired) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !c.HasPrefixAt(offset, s.Open) {
			continue
		}
		if findLiteral(c, s.Close, offset+len(s.Open)) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (s *ScriptedPaired) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len(s.Open))
	closeOffset := findLiteral(c, s.Close, c.Pos())
	if closeOffset < 0 {
		return nil, nil
	}
	span := source.Span{Source: c.Source(), Start: start, End: closeOffset + len(s.Close)}
	ctx.Stack().OpenParagraph(func() tree.Element { return tree.Element{Location: span} })
	el := tree.NewElement(tree.KindStyledRun, span, tree.ContainInline)
	el.SetAttr("style", s.StyleName)
	ctx.Stack().Push(el)
	ctx.Recurse(c, closeOffset)
	ctx.Stack().Pop()

	c.SeekTo(closeOffset)
	c.Advance(len(s.Close))
	return []*tree.Element{el}, nil
}

func findLiteral(c *cursor.Cursor, needle string, from int) int {
	if from >= c.Len() {
		return -1
	}
	rel := bytes.Index(c.PeekAt(from, c.Len()-from), []byte(needle))
	if rel < 0 {
		return -1
	}
	return from + rel
}
