package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/tree"
)

func buildListItem(t *testing.T, ctx *driverStub, line string) []*tree.Element {
	t.Helper()
	els, err := ListItem{}.Build(sectionCursor(t, line), ctx)
	require.NoError(t, err)
	return els
}

func TestListItem_BulletedSiblingsShareOneList(t *testing.T) {
	ctx := newDriverStub()
	first := buildListItem(t, ctx, "* one")
	second := buildListItem(t, ctx, "* two")

	assert.Same(t, first[0], second[0], "same depth+marker reuses the list")
	assert.Len(t, first[0].Children, 2)
}

func TestListItem_NumberedItemsGetIncreasingOrdinals(t *testing.T) {
	ctx := newDriverStub()
	a := buildListItem(t, ctx, "- first")
	b := buildListItem(t, ctx, "- second")

	assert.Equal(t, 1, tree.Attr[int](a[1], "ordinal"))
	assert.Equal(t, 2, tree.Attr[int](b[1], "ordinal"))
}

func TestListItem_DeeperMarkerRunNests(t *testing.T) {
	ctx := newDriverStub()
	outer := buildListItem(t, ctx, "* parent")
	inner := buildListItem(t, ctx, "** child")

	require.Len(t, outer[1].Children, 1, "nested list is a child of the parent item")
	assert.Same(t, inner[0], outer[1].Children[0])
	assert.Equal(t, 2, tree.Attr[int](inner[0], "depth"))
}

func TestListItem_DedentReturnsToOuterList(t *testing.T) {
	ctx := newDriverStub()
	outer := buildListItem(t, ctx, "* parent")
	buildListItem(t, ctx, "** child")
	sibling := buildListItem(t, ctx, "* sibling")

	assert.Same(t, outer[0], sibling[0])
	assert.Len(t, outer[0].Children, 2)
}

func TestListItem_CheckboxPrefixesParse(t *testing.T) {
	ctx := newDriverStub()
	els := buildListItem(t, ctx, "* [x] done")
	assert.Equal(t, "checked", tree.Attr[string](els[1], "checkbox"))
}

func TestListItem_PropertyBlockParses(t *testing.T) {
	ctx := newDriverStub()
	els := buildListItem(t, ctx, "* [offset=3] text")
	props := tree.Attr[map[string]string](els[1], "props")
	require.NotNil(t, props)
	assert.Equal(t, "3", props["offset"])
}

func TestListItem_Search_RejectsBoldDelimiterAtLineStart(t *testing.T) {
	c := sectionCursor(t, "**bold** not a list\n* real item")
	r := registry.New()
	require.NoError(t, r.Register(ListItem{}))
	_, offset, ok := r.NextMatch(c, 0, tree.KindDocument)
	require.True(t, ok)
	assert.Equal(t, 20, offset)
}
