package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// stubRule is a minimal Rule for registry-level tests; its Search just
// reports a fixed offset if present, without consuming anything in Build.
type stubRule struct {
	name     string
	priority int
	offset   int
	has      bool
	eligible func(tree.Kind) bool
	built    int
}

func (s *stubRule) Name() string     { return s.name }
func (s *stubRule) Priority() int    { return s.priority }
func (s *stubRule) Eligible(k tree.Kind) bool {
	if s.eligible == nil {
		return true
	}
	return s.eligible(k)
}
func (s *stubRule) Search(c *cursor.Cursor, from int) (int, bool) {
	if !s.has || s.offset < from {
		return 0, false
	}
	return s.offset, true
}
func (s *stubRule) Build(c *cursor.Cursor, ctx Context) ([]*tree.Element, error) {
	s.built++
	return nil, nil
}

type stubContext struct{}

func (stubContext) Stack() *tree.Stack                { return nil }
func (stubContext) Diagnostics() *diag.Bag            { return nil }
func (stubContext) RegisterRule(Rule) error            { return nil }
func (stubContext) Recurse(c *cursor.Cursor, end int) {}

func newCursor() *cursor.Cursor {
	st := source.NewStack()
	return cursor.New(st.PushFile("t.nml", []byte("0123456789")))
}

func TestRegister_RejectsNilAndDuplicateNames(t *testing.T) {
	r := New()
	require.Error(t, r.Register(nil))

	rule := &stubRule{name: "bold", has: true, offset: 0}
	require.NoError(t, r.Register(rule))
	require.Error(t, r.Register(rule), "duplicate name must be rejected")
}

func TestRegister_RejectsEmptyName(t *testing.T) {
	r := New()
	require.Error(t, r.Register(&stubRule{name: ""}))
}

func TestNextMatch_PicksEarliestOffset(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&stubRule{name: "a", has: true, offset: 5}))
	require.NoError(t, r.Register(&stubRule{name: "b", has: true, offset: 2}))

	rule, offset, ok := r.NextMatch(newCursor(), 0, tree.KindParagraph)
	require.True(t, ok)
	assert.Equal(t, "b", rule.Name())
	assert.Equal(t, 2, offset)
}

func TestNextMatch_TiesBrokenByPriority(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&stubRule{name: "emphasis", priority: 10, has: true, offset: 3}))
	require.NoError(t, r.Register(&stubRule{name: "fence", priority: 1, has: true, offset: 3}))

	rule, _, ok := r.NextMatch(newCursor(), 0, tree.KindParagraph)
	require.True(t, ok)
	assert.Equal(t, "fence", rule.Name(), "lower Priority value must win a tie")
}

func TestNextMatch_SkipsIneligibleRules(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&stubRule{
		name: "section", has: true, offset: 0,
		eligible: func(k tree.Kind) bool { return k == tree.KindDocument },
	}))

	_, _, ok := r.NextMatch(newCursor(), 0, tree.KindStyledRun)
	assert.False(t, ok)
}

func TestUnregister_RemovesAndReindexes(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&stubRule{name: "a"}))
	require.NoError(t, r.Register(&stubRule{name: "b"}))
	require.NoError(t, r.Unregister("a"))

	assert.False(t, r.HasRule("a"))
	assert.True(t, r.HasRule("b"))
	assert.Len(t, r.List(), 1)
}

func TestUnregister_MissingNameErrors(t *testing.T) {
	r := New()
	err := r.Unregister("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegisterDuringParse_TakesEffectImmediately(t *testing.T) {
	// Simulates a scripted custom style registering mid-parse: the new
	// rule must be visible to NextMatch without any separate "commit" step.
	r := New()
	require.NoError(t, r.Register(&stubRule{name: "builtin", has: true, offset: 9}))

	scripted := &stubRule{name: "custom:glow", has: true, offset: 1}
	require.NoError(t, r.Register(scripted))

	rule, offset, ok := r.NextMatch(newCursor(), 0, tree.KindParagraph)
	require.True(t, ok)
	assert.Equal(t, "custom:glow", rule.Name())
	assert.Equal(t, 1, offset)
}

func TestClear_RemovesAllRules(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Register(&stubRule{name: fmt.Sprintf("r%d", i)}))
	}
	r.Clear()
	assert.Empty(t, r.List())
}
