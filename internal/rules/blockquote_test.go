package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/tree"
)

func buildBlockquote(t *testing.T, ctx *driverStub, line string) []*tree.Element {
	t.Helper()
	els, err := Blockquote{}.Build(sectionCursor(t, line), ctx)
	require.NoError(t, err)
	return els
}

func TestBlockquote_SameDepthLinesShareOneFrame(t *testing.T) {
	ctx := newDriverStub()
	first := buildBlockquote(t, ctx, "> line one")
	second := buildBlockquote(t, ctx, "> line two")
	assert.Same(t, first[0], second[0])
}

func TestBlockquote_DeeperPrefixNests(t *testing.T) {
	ctx := newDriverStub()
	outer := buildBlockquote(t, ctx, "> outer")
	inner := buildBlockquote(t, ctx, ">> inner")

	require.Len(t, outer[0].Children, 1)
	assert.Same(t, inner[0], outer[0].Children[0])
	assert.Equal(t, 2, tree.Attr[int](inner[0], "depth"))
}

func TestBlockquote_ShallowerPrefixReturnsToOuter(t *testing.T) {
	ctx := newDriverStub()
	outer := buildBlockquote(t, ctx, "> outer")
	buildBlockquote(t, ctx, ">> inner")
	back := buildBlockquote(t, ctx, "> outer again")
	assert.Same(t, outer[0], back[0])
}

func TestBlockquote_PropertyBlockSetsAttrs(t *testing.T) {
	ctx := newDriverStub()
	els := buildBlockquote(t, ctx, "> [author=Ada,cite=Letters] quoted")
	assert.Equal(t, "Ada", tree.Attr[string](els[0], "prop.author"))
	assert.Equal(t, "Letters", tree.Attr[string](els[0], "prop.cite"))
}

func TestBlockquote_DepthJumpOpensIntermediateFrames(t *testing.T) {
	ctx := newDriverStub()
	els := buildBlockquote(t, ctx, ">>> deep")
	assert.Equal(t, 3, tree.Attr[int](els[0], "depth"))
	assert.Equal(t, tree.KindBlockquote, els[0].Parent.Kind)
	assert.Equal(t, 2, tree.Attr[int](els[0].Parent, "depth"))
}
