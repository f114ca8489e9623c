package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// driverStub is a minimal registry.Context for single-rule Build tests: it
// owns a containment stack and diagnostics bag but never recurses.
type driverStub struct {
	stack   *tree.Stack
	diags   *diag.Bag
	vars    *env.Variables
	styls   *env.Styles
	sources *source.Stack
}

func newDriverStub() *driverStub {
	doc := tree.NewElement(tree.KindDocument, source.Span{}, tree.ContainBlock)
	return &driverStub{
		stack:   tree.NewStack(doc),
		diags:   &diag.Bag{},
		vars:    env.NewVariables(),
		styls:   env.NewStyles(),
		sources: source.NewStack(),
	}
}

func (d *driverStub) Stack() *tree.Stack        { return d.stack }
func (d *driverStub) Diagnostics() *diag.Bag    { return d.diags }
func (d *driverStub) Variables() *env.Variables { return d.vars }
func (d *driverStub) Styles() *env.Styles       { return d.styls }
func (d *driverStub) Sources() *source.Stack    { return d.sources }
func (d *driverStub) RegisterRule(registry.Rule) error { return nil }
func (d *driverStub) Recurse(*cursor.Cursor, int)      {}

func sectionCursor(t *testing.T, text string) *cursor.Cursor {
	t.Helper()
	st := source.NewStack()
	return cursor.New(st.PushFile("t.nml", []byte(text)))
}

func TestSection_ParsesDepthRefAndModifiers(t *testing.T) {
	c := sectionCursor(t, "##{intro}* Getting Started")
	ctx := newDriverStub()

	els, err := Section{}.Build(c, ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)

	el := els[0]
	assert.Equal(t, tree.KindSection, el.Kind)
	assert.Equal(t, 2, tree.Attr[int](el, "depth"))
	assert.Equal(t, "intro", tree.Attr[string](el, "ref"))
	assert.True(t, tree.Attr[bool](el, "unnumbered"))
	assert.Equal(t, "Getting Started", tree.Attr[string](el, "title"))
	assert.Equal(t, "", tree.Attr[string](el, "numeral"), "unnumbered sections get no numeral")
}

func TestSection_NumeralsIncrementPerDepthAndResetDeeper(t *testing.T) {
	ctx := newDriverStub()

	first, err := Section{}.Build(sectionCursor(t, "# One"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", tree.Attr[string](first[0], "numeral"))

	second, err := Section{}.Build(sectionCursor(t, "## Two"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.1", tree.Attr[string](second[0], "numeral"))

	third, err := Section{}.Build(sectionCursor(t, "# Three"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", tree.Attr[string](third[0], "numeral"), "a new depth-1 section resets the depth-2 counter")
}

func TestSection_DeeperSectionNestsUnderShallower(t *testing.T) {
	ctx := newDriverStub()

	top, err := Section{}.Build(sectionCursor(t, "# Parent"), ctx)
	require.NoError(t, err)

	sub, err := Section{}.Build(sectionCursor(t, "## Child"), ctx)
	require.NoError(t, err)

	require.Len(t, top[0].Children, 1)
	assert.Same(t, sub[0], top[0].Children[0])
}

func TestSection_SameDepthSiblingClosesPrevious(t *testing.T) {
	ctx := newDriverStub()

	_, err := Section{}.Build(sectionCursor(t, "# One"), ctx)
	require.NoError(t, err)
	_, err = Section{}.Build(sectionCursor(t, "## Sub"), ctx)
	require.NoError(t, err)
	_, err = Section{}.Build(sectionCursor(t, "## Sibling"), ctx)
	require.NoError(t, err)

	assert.Equal(t, tree.KindSection, ctx.Stack().Top().Kind)
	assert.Equal(t, 2, tree.Attr[int](ctx.Stack().Top(), "depth"))
}

func TestSection_Search_SkipsLayoutMarkerLines(t *testing.T) {
	c := sectionCursor(t, "#+LAYOUT_BEGIN split\n# Real Section")
	_, offset, ok := findSectionMatch(t, c)
	require.True(t, ok)
	assert.Equal(t, 21, offset)
}

func findSectionMatch(t *testing.T, c *cursor.Cursor) (registry.Rule, int, bool) {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Register(Section{}))
	rule, offset, ok := r.NextMatch(c, 0, tree.KindDocument)
	return rule, offset, ok
}
