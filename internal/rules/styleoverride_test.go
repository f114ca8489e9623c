package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/env"
)

func TestStyleOverride_SetsResolvableOverride(t *testing.T) {
	ctx := newDriverStub()
	ctx.Styles().RegisterSchema("style.section", env.Schema{Keys: map[string]bool{"link_pos": true}})

	_, err := StyleOverride{}.Build(sectionCursor(t, `@@style.section = {"link_pos":"Before"}`), ctx)
	require.NoError(t, err)
	assert.Empty(t, ctx.Diagnostics().All())
	assert.Equal(t, "Before", ctx.Styles().Resolve("style.section")["link_pos"])
}

func TestStyleOverride_UnknownKeyWarns(t *testing.T) {
	ctx := newDriverStub()
	ctx.Styles().RegisterSchema("style.section", env.Schema{Keys: map[string]bool{"link_pos": true}})

	_, err := StyleOverride{}.Build(sectionCursor(t, `@@style.section = {"bogus":1}`), ctx)
	require.NoError(t, err)
	require.Len(t, ctx.Diagnostics().All(), 1)
	assert.Equal(t, "style.unknown-key", ctx.Diagnostics().All()[0].Code)
}

func TestStyleOverride_MissingBodyIsError(t *testing.T) {
	ctx := newDriverStub()
	_, err := StyleOverride{}.Build(sectionCursor(t, "@@style.section = oops"), ctx)
	require.NoError(t, err)
	require.Len(t, ctx.Diagnostics().All(), 1)
	assert.Equal(t, "style.invalid-json", ctx.Diagnostics().All()[0].Code)
}
