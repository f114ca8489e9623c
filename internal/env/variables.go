// Package env implements NML's variable and style environments: named
// values and style overrides, scoped per document with prefixed import.
package env

import (
	"fmt"

	"github.com/oxhq/nml/internal/source"
)

// VarKind distinguishes the two variable flavors NML supports.
type VarKind int

const (
	// VarText is a plain @name = value text variable.
	VarText VarKind = iota
	// VarPath is an @'name = path variable, resolved and validated at
	// definition time relative to the defining source's directory.
	VarPath
)

// Variable is a single (name, kind, value) binding.
type Variable struct {
	Name       string
	Kind       VarKind
	Value      string
	DefinedAt  source.Span
	Definition *source.Source
}

// Variables is a document's variable environment: a mapping name -> binding.
type Variables struct {
	byName map[string]*Variable
}

// NewVariables creates an empty variable environment.
func NewVariables() *Variables {
	return &Variables{byName: map[string]*Variable{}}
}

// Set defines or overwrites a variable. Later @name= definitions for the
// same name shadow earlier ones, matching ordinary imperative assignment.
func (v *Variables) Set(variable *Variable) {
	v.byName[variable.Name] = variable
}

// Get looks up a variable by name.
func (v *Variables) Get(name string) (*Variable, bool) {
	val, ok := v.byName[name]
	return val, ok
}

// Rename moves the binding at oldName to newName, updating its Name field
// to match. Used to apply an `@import[as=alias]` prefix after the
// imported content has already bound its own variable names.
func (v *Variables) Rename(oldName, newName string) {
	val, ok := v.byName[oldName]
	if !ok {
		return
	}
	delete(v.byName, oldName)
	renamed := *val
	renamed.Name = newName
	v.byName[newName] = &renamed
}

// Names returns every defined variable name.
func (v *Variables) Names() []string {
	out := make([]string, 0, len(v.byName))
	for n := range v.byName {
		out = append(out, n)
	}
	return out
}

// Import merges other's bindings into v, optionally prefixing every
// imported name with "alias.". Conflicts are not an error: the imported
// document's own @import graph already resolved its bindings, and a
// prefixed import is precisely how callers avoid collisions.
func (v *Variables) Import(other *Variables, alias string) {
	for name, val := range other.byName {
		newName := name
		if alias != "" {
			newName = fmt.Sprintf("%s.%s", alias, name)
		}
		imported := *val
		imported.Name = newName
		v.byName[newName] = &imported
	}
}
