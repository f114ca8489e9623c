// Package registry implements NML's rule registry: an ordered collection
// of syntactic rules, each owning a matcher and a builder, that the parser
// driver consults every time it needs the next element.
//
// The lookup key is a *position*, not a name: the driver asks every
// eligible rule for its next match and picks the earliest one, ties
// broken by Priority. Rules keep an evaluation order rather than a
// unique lookup name, so the registry is a mutex-guarded ordered slice
// plus an id index.
package registry

import (
	"fmt"
	"sync"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Context is the narrow surface a Rule's Build step gets to mutate parser
// state through. The parser driver implements it; rules never see the
// driver's other internals. Dynamic registration (scripted custom styles)
// goes through RegisterRule, the same entry point built-ins use at
// startup — new rules take effect immediately for subsequent positions in
// the same document.
type Context interface {
	Stack() *tree.Stack
	Diagnostics() *diag.Bag
	// Variables returns the document's variable environment, mutated by
	// @name=/@'name= definitions and read by %name% substitution.
	Variables() *env.Variables
	// Styles returns the document's style environment, mutated by
	// @@style.key = {...} overrides and read at render time.
	Styles() *env.Styles
	// Sources returns the source stack backing this document's parse, the
	// entry point for derived sources (imports, variable expansions,
	// script output) that need their own position-preserving OffsetMap.
	Sources() *source.Stack
	RegisterRule(Rule) error
	// Recurse parses the sub-range [start,end) of src as a nested body
	// (used by blocks whose content must itself be scanned for rules,
	// e.g. a layout pane or a blockquote body), returning once src is
	// exhausted or end is reached.
	Recurse(c *cursor.Cursor, end int)
}

// Rule is a single registered syntactic recognizer.
type Rule interface {
	// Name identifies the rule for diagnostics and priority tie-break logging.
	Name() string

	// Priority gives the total order used to break ties when two rules
	// match at the same offset. Lower values win (e.g. a code fence rule
	// is given a lower Priority value than inline emphasis, so fences win
	// ties).
	Priority() int

	// Eligible reports whether this rule may fire given the currently
	// open container kind.
	Eligible(containerKind tree.Kind) bool

	// Search returns the offset of this rule's next match at or after
	// from, within the cursor's current source, or ok=false if there is
	// none. Rules that compile a pattern should cache the compiled form
	// on themselves (they are registered once, not per call).
	Search(c *cursor.Cursor, from int) (offset int, ok bool)

	// Build consumes the matched span starting at the cursor's current
	// position (the driver has already advanced the cursor to the match
	// offset and emitted the preceding plain-text run), producing zero or
	// more elements and mutating the containment stack via ctx. It
	// returns the elements it produced directly (for callers that want
	// them, e.g. tests); most rules push onto ctx.Stack() instead of
	// returning anything meaningful.
	Build(c *cursor.Cursor, ctx Context) ([]*tree.Element, error)
}

// Registry is an ordered collection of rules, safe for concurrent
// registration and iteration. Removal mid-document is intentionally
// unsupported: only Register, never Unregister, is exposed once a
// document's parse has begun; Clear/Unregister exist for registry setup
// and tests.
type Registry struct {
	mu     sync.RWMutex
	rules  []Rule
	byName map[string]int // name -> index into rules, for Unregister/HasRule
}

// New creates an empty rule registry.
func New() *Registry {
	return &Registry{byName: map[string]int{}}
}

// Register adds a rule to the registry. Rules are stateless w.r.t. the
// parser driver — only Search's internal pattern cache may be mutated
// across calls — so registering the same *value* twice under different
// names is fine; registering the same name twice is rejected.
func (r *Registry) Register(rule Rule) error {
	if rule == nil {
		return fmt.Errorf("registry: rule cannot be nil")
	}
	name := rule.Name()
	if name == "" {
		return fmt.Errorf("registry: rule must have a non-empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("registry: rule %q already registered", name)
	}
	r.byName[name] = len(r.rules)
	r.rules = append(r.rules, rule)
	return nil
}

// Unregister removes a rule by name. Used for registry setup/teardown in
// tests, never mid-document.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, exists := r.byName[name]
	if !exists {
		return fmt.Errorf("registry: rule %q not found", name)
	}
	r.rules = append(r.rules[:idx], r.rules[idx+1:]...)
	delete(r.byName, name)
	for n, i := range r.byName {
		if i > idx {
			r.byName[n] = i - 1
		}
	}
	return nil
}

// HasRule reports whether a rule with the given name is registered.
func (r *Registry) HasRule(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// List returns every registered rule, in registration order.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Clear removes every rule. Used for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = nil
	r.byName = map[string]int{}
}

// NextMatch asks every rule eligible for containerKind for its next match
// at or after from, and returns the rule with the smallest match offset,
// ties broken by Priority (lower wins), then by registration order for a
// fully deterministic result.
func (r *Registry) NextMatch(c *cursor.Cursor, from int, containerKind tree.Kind) (Rule, int, bool) {
	r.mu.RLock()
	candidates := make([]Rule, len(r.rules))
	copy(candidates, r.rules)
	r.mu.RUnlock()

	var (
		best       Rule
		bestOffset int
		found      bool
	)
	for _, rule := range candidates {
		if !rule.Eligible(containerKind) {
			continue
		}
		offset, ok := rule.Search(c, from)
		if !ok {
			continue
		}
		switch {
		case !found:
			best, bestOffset, found = rule, offset, true
		case offset < bestOffset:
			best, bestOffset = rule, offset
		case offset == bestOffset && rule.Priority() < best.Priority():
			best = rule
		}
	}
	return best, bestOffset, found
}
