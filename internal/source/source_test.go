package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealPosition_RootFile(t *testing.T) {
	st := NewStack()
	f := st.PushFile("doc.nml", []byte("hello world"))

	rp := RealPosition(Position{Source: f, Offset: 6})
	assert.Equal(t, f, rp.Source)
	assert.Equal(t, 6, rp.Offset)
}

func TestRealPosition_VariableExpansion(t *testing.T) {
	st := NewStack()
	f := st.PushFile("doc.nml", []byte("@var = Hello\n%var%"))
	expansion := st.PushVariableExpansion(f, 13, "var", []byte("Hello"))

	rp := RealPosition(Position{Source: expansion, Offset: 2})
	assert.Same(t, f, rp.Source)
	assert.Equal(t, 13, rp.Offset, "every byte of a synthetic expansion anchors back to the substitution site")
}

func TestRealPosition_NestedImport(t *testing.T) {
	st := NewStack()
	a := st.PushFile("a.nml", []byte("@import b.nml\n"))
	b := st.PushImport(a, 0, "b.nml", []byte("#{k} Title\n"))
	// b's content is itself partially re-expanded by a variable inside b.
	expansion := st.PushVariableExpansion(b, 4, "x", []byte("Title"))

	rp := RealPosition(Position{Source: expansion, Offset: 0})
	assert.Same(t, a, rp.Source, "real_position must bottom out at the original file")
	assert.Equal(t, 0, rp.Offset)
}

func TestOffsetMap_IdentityRoundTrips(t *testing.T) {
	m := Identity(5, 10)
	assert.Equal(t, 10, m.Map(0))
	assert.Equal(t, 14, m.Map(4))
	assert.Equal(t, 15, m.MapEnd(5))
}

func TestOffsetMap_SyntheticAnchorsEverywhere(t *testing.T) {
	m := Synthetic(3, 7)
	assert.Equal(t, 7, m.Map(0))
	assert.Equal(t, 7, m.Map(2))
	assert.Equal(t, 8, m.MapEnd(3))
}

func TestStack_PushDerived_RejectsLengthMismatch(t *testing.T) {
	st := NewStack()
	f := st.PushFile("doc.nml", []byte("x"))
	_, err := st.PushDerived(f, KindScript, "kernel:main", []byte("abc"), OffsetMap{0})
	require.Error(t, err)
}

func TestRealSpan_WalksNestedDerivation(t *testing.T) {
	st := NewStack()
	f := st.PushFile("doc.nml", []byte("0123456789"))
	imp := st.PushImport(f, 3, "inc.nml", []byte("abcdef"))
	span := Span{Source: imp, Start: 1, End: 4}

	real := RealSpan(span)
	assert.Same(t, f, real.Source)
	assert.Equal(t, 3, real.Start)
	assert.Equal(t, 4, real.End)
}
