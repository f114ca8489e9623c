package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/script"
	"github.com/oxhq/nml/internal/tree"
)

func TestKernelDefinition_AppendsCodeToNamedKernel(t *testing.T) {
	ctx := newDriverStub()
	host := script.NewHost(script.NewFacade())
	rule := KernelDefinition{Host: host}

	_, err := rule.Build(sectionCursor(t, "@<budget var total = 10 >@"), ctx)
	require.NoError(t, err)
	assert.Empty(t, ctx.Diagnostics().All())

	s, evalErr := host.EvalToString("budget", "total + 5")
	require.NoError(t, evalErr)
	assert.Equal(t, "15", s)
}

func TestKernelDefinition_DefaultsToMainKernel(t *testing.T) {
	ctx := newDriverStub()
	host := script.NewHost(script.NewFacade())
	rule := KernelDefinition{Host: host}

	_, err := rule.Build(sectionCursor(t, "@< var x = 9 >@"), ctx)
	require.NoError(t, err)

	s, evalErr := host.EvalToString("main", "x")
	require.NoError(t, evalErr)
	assert.Equal(t, "9", s)
}

func TestScriptEval_IgnoreModeDiscardsResult(t *testing.T) {
	ctx := newDriverStub()
	host := script.NewHost(script.NewFacade())
	rule := ScriptEval{Host: host}

	els, err := rule.Build(sectionCursor(t, `%< 1 + 1 >%`), ctx)
	require.NoError(t, err)
	assert.Nil(t, els)
	assert.Empty(t, ctx.Stack().Root().Children)
}

func TestScriptEval_EvalToTextEmitsLiteralText(t *testing.T) {
	ctx := newDriverStub()
	host := script.NewHost(script.NewFacade())
	rule := ScriptEval{Host: host}

	els, err := rule.Build(sectionCursor(t, `%<" "answer: " + "42" >%`), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, tree.KindText, els[0].Kind)
	assert.Equal(t, "answer: 42", els[0].Text)
}

func TestScriptEval_EvalToParseRecursesIntoResult(t *testing.T) {
	ctx := &recurseSpy{driverStub: newDriverStub()}
	host := script.NewHost(script.NewFacade())
	rule := ScriptEval{Host: host}

	_, err := rule.Build(sectionCursor(t, `%<! "**bold**" >%`), ctx)
	require.NoError(t, err)
	require.NotNil(t, ctx.recursedSrc)
	assert.Equal(t, "**bold**", string(ctx.recursedSrc.Bytes))
}

func TestScriptEval_KernelSelectionUsesNamedKernel(t *testing.T) {
	ctx := newDriverStub()
	host := script.NewHost(script.NewFacade())
	require.NoError(t, host.Define("report", "var label = \"Q1\""))
	rule := ScriptEval{Host: host}

	els, err := rule.Build(sectionCursor(t, `%<[report]" label >%`), ctx)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "Q1", els[0].Text)
}

func TestScriptEval_ErrorBecomesDiagnosticNotPanic(t *testing.T) {
	ctx := newDriverStub()
	host := script.NewHost(script.NewFacade())
	rule := ScriptEval{Host: host}

	els, err := rule.Build(sectionCursor(t, `%<" this is not valid go >%`), ctx)
	require.NoError(t, err)
	assert.Nil(t, els)
	require.Len(t, ctx.Diagnostics().All(), 1)
	assert.Equal(t, "script.error", ctx.Diagnostics().All()[0].Code)
}
