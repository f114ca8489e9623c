package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/tree"
)

func buildLayout(t *testing.T, ctx *driverStub, line string) []*tree.Element {
	t.Helper()
	els, err := Layout{}.Build(sectionCursor(t, line), ctx)
	require.NoError(t, err)
	return els
}

func TestLayout_BeginOpensLayoutAndFirstPane(t *testing.T) {
	ctx := newDriverStub()
	els := buildLayout(t, ctx, "#+LAYOUT_BEGIN Split")
	require.Len(t, els, 2)
	assert.Equal(t, "Split", tree.Attr[string](els[0], "name"))
	assert.Equal(t, 1, tree.Attr[int](els[1], "index"))
	assert.Equal(t, tree.KindLayoutPane, ctx.Stack().Top().Kind)
}

func TestLayout_NextClosesPaneAndOpensNewOne(t *testing.T) {
	ctx := newDriverStub()
	buildLayout(t, ctx, "#+LAYOUT_BEGIN Split")
	els := buildLayout(t, ctx, "#+LAYOUT_NEXT")
	require.Len(t, els, 2)
	assert.Equal(t, 2, tree.Attr[int](els[1], "index"))
}

func TestLayout_EndClosesLayout(t *testing.T) {
	ctx := newDriverStub()
	buildLayout(t, ctx, "#+LAYOUT_BEGIN Split")
	buildLayout(t, ctx, "#+LAYOUT_NEXT")
	buildLayout(t, ctx, "#+LAYOUT_END")
	assert.Equal(t, tree.KindDocument, ctx.Stack().Top().Kind)
}

func TestLayout_NextWithoutOpenLayoutDiagnoses(t *testing.T) {
	ctx := newDriverStub()
	els, err := Layout{}.Build(sectionCursor(t, "#+LAYOUT_NEXT"), ctx)
	require.NoError(t, err)
	assert.Nil(t, els)
	require.Len(t, ctx.Diagnostics().All(), 1)
	assert.Equal(t, "layout.next-without-layout", ctx.Diagnostics().All()[0].Code)
}

func TestLayout_EndWithoutOpenLayoutDiagnoses(t *testing.T) {
	ctx := newDriverStub()
	_, err := Layout{}.Build(sectionCursor(t, "#+LAYOUT_END"), ctx)
	require.NoError(t, err)
	require.Len(t, ctx.Diagnostics().All(), 1)
	assert.Equal(t, "layout.end-without-layout", ctx.Diagnostics().All()[0].Code)
}
