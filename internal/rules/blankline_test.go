package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

func TestBlankLine_ClosesOpenParagraphAndConsumesNewlines(t *testing.T) {
	ctx := newDriverStub()
	c := sectionCursor(t, "A\n\n\nB")
	openParagraph(ctx.Stack(), source.Span{Source: c.Source()})
	c.Advance(1) // position at first '\n', as the driver would after emitting "A" text

	require.Equal(t, tree.KindParagraph, ctx.Stack().Top().Kind)
	_, err := BlankLine{}.Build(c, ctx)
	require.NoError(t, err)

	assert.Equal(t, tree.KindDocument, ctx.Stack().Top().Kind, "paragraph must be closed")
	assert.Equal(t, 4, c.Pos(), "all three newlines must be consumed")
}

func TestBlankLine_Search_FindsDoubleNewline(t *testing.T) {
	c := sectionCursor(t, "A\n\nB")
	offset, ok := BlankLine{}.Search(c, 0)
	require.True(t, ok)
	assert.Equal(t, 1, offset)
}

func TestBlankLine_Eligible_ExceptLiteralContent(t *testing.T) {
	assert.True(t, BlankLine{}.Eligible(tree.KindParagraph))
	assert.True(t, BlankLine{}.Eligible(tree.KindDocument))
	assert.True(t, BlankLine{}.Eligible(tree.KindSection))
	assert.False(t, BlankLine{}.Eligible(tree.KindCodeBlock))
	assert.False(t, BlankLine{}.Eligible(tree.KindInlineCode))
}
