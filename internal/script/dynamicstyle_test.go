package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

func textCursor(t *testing.T, text string) *cursor.Cursor {
	t.Helper()
	st := source.NewStack()
	return cursor.New(st.PushFile("t.nml", []byte(text)))
}

func TestScriptedToggled_SearchAndBuild(t *testing.T) {
	c := textCursor(t, "==highlighted== rest")
	rule := &ScriptedToggled{StyleName: "highlight", Delim: "=="}
	offset, ok := rule.Search(c, 0)
	require.True(t, ok)
	assert.Equal(t, 0, offset)

	ctx := newFakeContext()
	els, err := rule.Build(c, ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "highlight", tree.Attr[string](els[0], "style"))
	assert.Equal(t, len("==highlighted=="), c.Pos())
}

func TestScriptedPaired_SearchAndBuild(t *testing.T) {
	c := textCursor(t, "<<note>> rest")
	rule := &ScriptedPaired{StyleName: "note", Open: "<<", Close: ">>"}
	offset, ok := rule.Search(c, 0)
	require.True(t, ok)
	assert.Equal(t, 0, offset)

	ctx := newFakeContext()
	els, err := rule.Build(c, ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "note", tree.Attr[string](els[0], "style"))
}
