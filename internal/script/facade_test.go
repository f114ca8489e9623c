package script

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

// fakeContext is a minimal registry.Context for facade tests, local to
// this package to avoid a dependency on the rules package's test helpers.
type fakeContext struct {
	stack   *tree.Stack
	diags   *diag.Bag
	vars    *env.Variables
	styles  *env.Styles
	sources *source.Stack
	rules   []registry.Rule
}

func newFakeContext() *fakeContext {
	doc := tree.NewElement(tree.KindDocument, source.Span{}, tree.ContainBlock)
	return &fakeContext{
		stack:   tree.NewStack(doc),
		diags:   &diag.Bag{},
		vars:    env.NewVariables(),
		styles:  env.NewStyles(),
		sources: source.NewStack(),
	}
}

func (f *fakeContext) Stack() *tree.Stack        { return f.stack }
func (f *fakeContext) Diagnostics() *diag.Bag    { return f.diags }
func (f *fakeContext) Variables() *env.Variables { return f.vars }
func (f *fakeContext) Styles() *env.Styles       { return f.styles }
func (f *fakeContext) Sources() *source.Stack    { return f.sources }
func (f *fakeContext) RegisterRule(r registry.Rule) error {
	f.rules = append(f.rules, r)
	return nil
}
func (f *fakeContext) Recurse(*cursor.Cursor, int) {}

func TestFacade_PushElementAppendsToOpenContainer(t *testing.T) {
	ctx := newFakeContext()
	f := NewFacade()
	f.Bind(ctx)

	require.NoError(t, f.PushElement("raw", map[string]string{"kind": "html"}, "<hr/>"))
	require.Len(t, ctx.Stack().Top().Children, 1)
	child := ctx.Stack().Top().Children[0]
	assert.Equal(t, tree.KindRaw, child.Kind)
	assert.Equal(t, "<hr/>", child.Text)
	assert.Equal(t, "html", tree.Attr[string](child, "kind"))
}

func TestFacade_PushElementRejectsUnknownKind(t *testing.T) {
	ctx := newFakeContext()
	f := NewFacade()
	f.Bind(ctx)
	assert.Error(t, f.PushElement("nonsense", nil, ""))
}

func TestFacade_VariableRoundTrip(t *testing.T) {
	ctx := newFakeContext()
	f := NewFacade()
	f.Bind(ctx)

	f.SetVariable("greeting", "hi")
	v, ok := f.Variable("greeting")
	require.True(t, ok)
	assert.Equal(t, "hi", v)
}

func TestFacade_DefineToggledRegistersRule(t *testing.T) {
	ctx := newFakeContext()
	f := NewFacade()
	f.Bind(ctx)

	require.NoError(t, f.DefineToggled("highlight", "==", nil, nil))
	require.Len(t, ctx.rules, 1)
	assert.Equal(t, "script:toggled:highlight", ctx.rules[0].Name())
}
