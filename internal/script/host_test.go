package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_EvalToStringCoercesResult(t *testing.T) {
	h := NewHost(NewFacade())
	s, err := h.EvalToString("main", `"hello " + "world"`)
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)
}

func TestHost_DefineThenEvalSharesKernelState(t *testing.T) {
	h := NewHost(NewFacade())
	require.NoError(t, h.Define("main", "var counter = 41"))
	s, err := h.EvalToString("main", "counter + 1")
	require.NoError(t, err)
	assert.Equal(t, "42", s)
}

func TestHost_DistinctKernelsDoNotShareState(t *testing.T) {
	h := NewHost(NewFacade())
	require.NoError(t, h.Define("a", "var x = 1"))
	require.NoError(t, h.Define("b", "var x = 2"))

	va, err := h.EvalToString("a", "x")
	require.NoError(t, err)
	vb, err := h.EvalToString("b", "x")
	require.NoError(t, err)
	assert.Equal(t, "1", va)
	assert.Equal(t, "2", vb)
}

func TestHost_ExportedTableIsReadableBack(t *testing.T) {
	h := NewHost(NewFacade())
	h.ExportTable("budget", []map[string]string{{"item": "rent", "cost": "1200"}})
	rows := h.Table("budget")
	require.Len(t, rows, 1)
	assert.Equal(t, "rent", rows[0]["item"])
}
