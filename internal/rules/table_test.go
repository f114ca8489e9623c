package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/tree"
)

func buildTable(t *testing.T, ctx *driverStub, line string) []*tree.Element {
	t.Helper()
	els, err := Table{}.Build(sectionCursor(t, line), ctx)
	require.NoError(t, err)
	return els
}

func TestTable_CaptionOpensTableWithRefAndCaption(t *testing.T) {
	ctx := newDriverStub()
	els := buildTable(t, ctx, ":TABLE[export_as=prices] {tbl} Unit Prices")
	assert.Equal(t, "tbl", tree.Attr[string](els[0], "ref"))
	assert.Equal(t, "Unit Prices", tree.Attr[string](els[0], "caption"))
	assert.Equal(t, "prices", tree.Attr[string](els[0], "export_as"))
}

func TestTable_RowsAccumulateUnderOneTable(t *testing.T) {
	ctx := newDriverStub()
	buildTable(t, ctx, ":TABLE Caption")
	buildTable(t, ctx, "|a|b|")
	buildTable(t, ctx, "|c|d|")

	table := ctx.Stack().Root().Children[0]
	require.Len(t, table.Children, 2)
	assert.Equal(t, tree.KindTableRow, table.Children[0].Kind)
}

func TestTable_CellPropertyPrefixParses(t *testing.T) {
	ctx := newDriverStub()
	buildTable(t, ctx, "|:hspan=2: wide cell|normal|")

	table := ctx.Stack().Root().Children[0]
	row := table.Children[0]
	require.Len(t, row.Children, 2)
	assert.Equal(t, 2, tree.Attr[int](row.Children[0], "hspan"))
	assert.Equal(t, "wide cell", tree.Attr[string](row.Children[0], "text"))
}

func TestTable_HspanOverflowDiagnosesWithoutCrashing(t *testing.T) {
	ctx := newDriverStub()
	buildTable(t, ctx, "|a|b|") // establishes 2 columns
	buildTable(t, ctx, "|:hspan=5: too wide|")

	require.NotEmpty(t, ctx.Diagnostics().All())
	assert.Equal(t, "table.hspan-overflow", ctx.Diagnostics().All()[len(ctx.Diagnostics().All())-1].Code)
}

func TestTable_BareRowWithoutCaptionOpensItsOwnTable(t *testing.T) {
	ctx := newDriverStub()
	els := buildTable(t, ctx, "|x|y|")
	assert.Equal(t, tree.KindTable, els[0].Kind)
	assert.Equal(t, "", tree.Attr[string](els[0], "caption"))
}
