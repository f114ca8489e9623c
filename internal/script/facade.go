package script

import (
	"fmt"

	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Facade is the only surface a kernel script may use to mutate or read
// the document under compilation — push element-of-kind X, read/insert
// variables, and register custom inline styles. It holds a weak
// back-reference to the current parse (set once per document, via Bind)
// rather than owning any tree state itself.
type Facade struct {
	ctx registry.Context
}

// NewFacade creates an unbound facade; Bind must be called once the
// parser driver has a Context for the document being compiled.
func NewFacade() *Facade { return &Facade{} }

// Bind attaches the facade to the document currently being parsed.
func (f *Facade) Bind(ctx registry.Context) { f.ctx = ctx }

var kindByName = map[string]tree.Kind{
	"section":  tree.KindSection,
	"raw":      tree.KindRaw,
	"graph":    tree.KindGraph,
	"graphviz": tree.KindGraph,
	"tex":      tree.KindMath,
	"math":     tree.KindMath,
	"media":    tree.KindMedia,
	"code":     tree.KindCodeBlock,
	"text":     tree.KindText,
}

// PushElement appends a new leaf element of the named kind to whatever
// container is currently open, the "push element-of-kind X" primitive
// every kernel gets.
func (f *Facade) PushElement(kindName string, attrs map[string]string, text string) error {
	kind, ok := kindByName[kindName]
	if !ok {
		return fmt.Errorf("script: unknown element kind %q", kindName)
	}
	el := tree.NewElement(kind, source.Span{}, tree.ContainLeaf)
	el.Text = text
	for k, v := range attrs {
		el.SetAttr(k, v)
	}
	f.ctx.Stack().Top().AppendChild(el)
	return nil
}

// Variable reads a bound variable's value.
func (f *Facade) Variable(name string) (string, bool) {
	v, ok := f.ctx.Variables().Get(name)
	if !ok {
		return "", false
	}
	return v.Value, true
}

// SetVariable binds (or rebinds) a text variable from script.
func (f *Facade) SetVariable(name, value string) {
	f.ctx.Variables().Set(&env.Variable{Name: name, Kind: env.VarText, Value: value})
}

// DefineToggled registers a new symmetric-delimiter inline style rule,
// effective immediately for subsequent positions in the same document
//. startFn/endFn are accepted for signature compatibility with
// NML's kernel API but are not invoked — a scripted toggled style gets
// exactly the same styled-run push/pop behavior a builtin one does.
func (f *Facade) DefineToggled(name, delim string, startFn, endFn func()) error {
	return f.ctx.RegisterRule(&ScriptedToggled{StyleName: name, Delim: delim})
}

// DefinePaired registers a new asymmetric open/close delimiter inline
// style rule. See DefineToggled for the startFn/endFn caveat.
func (f *Facade) DefinePaired(name, open, close string, startFn, endFn func()) error {
	return f.ctx.RegisterRule(&ScriptedPaired{StyleName: name, Open: open, Close: close})
}
