package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/tree"
)

func TestInlineBacktick_PlainContentIsEmphasis(t *testing.T) {
	ctx := newDriverStub()
	els, err := InlineBacktick{}.Build(sectionCursor(t, "`emphasis` text"), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, tree.KindStyledRun, els[0].Kind)
	assert.Equal(t, "emphasis", tree.Attr[string](els[0], "style"))
	assert.Equal(t, "emphasis", els[0].Text)
}

func TestInlineBacktick_CommaContentIsInlineCode(t *testing.T) {
	ctx := newDriverStub()
	els, err := InlineBacktick{}.Build(sectionCursor(t, "`go, fmt.Println()`"), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, tree.KindInlineCode, els[0].Kind)
	assert.Equal(t, "go", tree.Attr[string](els[0], "lang"))
	assert.Equal(t, "fmt.Println()", tree.Attr[string](els[0], "code"))
}

func TestMiniCode_SpansMultipleLinesVerbatim(t *testing.T) {
	ctx := newDriverStub()
	els, err := MiniCode{}.Build(sectionCursor(t, "``line one\nline two``"), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "line one\nline two", els[0].Text)
	assert.True(t, tree.Attr[bool](els[0], "mini"))
}

func TestFencedCode_ParsesLangTitleAndLineOffset(t *testing.T) {
	ctx := newDriverStub()
	src := "```[line_offset=5] go, Example\nfunc main() {}\n```"
	els, err := FencedCode{}.Build(sectionCursor(t, src), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "go", tree.Attr[string](els[0], "lang"))
	assert.Equal(t, "Example", tree.Attr[string](els[0], "title"))
	assert.Equal(t, 5, tree.Attr[int](els[0], "line_offset"))
	assert.Equal(t, "func main() {}", els[0].Text)
}

func TestFencedCode_UnterminatedEmitsDiagnosticAndClosesImplicitly(t *testing.T) {
	ctx := newDriverStub()
	els, err := FencedCode{}.Build(sectionCursor(t, "```go\nfunc main() {}"), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "func main() {}", els[0].Text)
	require.Len(t, ctx.Diagnostics().All(), 1)
	assert.Equal(t, "code.unterminated-fence", ctx.Diagnostics().All()[0].Code)
}

func TestFencedCode_BeatsInlineEmphasisOnPriorityTie(t *testing.T) {
	assert.Less(t, FencedCode{}.Priority(), InlineBacktick{}.Priority())
}
