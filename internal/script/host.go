// Package script implements NML's embedded script kernel host: named,
// persistent yaegi interpreters that a document's `@<kernel …>@` and
// `%<…>%` forms evaluate against, each exposing a narrow facade onto the
// document under compilation rather than raw tree mutability. Kernels
// live in a thread-safe map keyed by kernel name, populated on first
// reference.
package script

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/oxhq/nml/internal/registry"
)

// Host owns every kernel created while compiling one document. Kernels are
// never shared across documents: each document
// gets its own fresh Host.
type Host struct {
	mu      sync.Mutex
	kernels map[string]*interp.Interpreter
	facade  *Facade
	tables  map[string][]map[string]string
}

// NewHost creates a script host bound to facade, the object every kernel's
// "nml" package resolves to.
func NewHost(facade *Facade) *Host {
	return &Host{
		kernels: map[string]*interp.Interpreter{},
		facade:  facade,
		tables:  map[string][]map[string]string{},
	}
}

// Bind attaches the host's facade to the document currently being parsed,
// called by the kernel-definition and script-eval rules before each
// script invocation.
func (h *Host) Bind(ctx registry.Context) { h.facade.Bind(ctx) }

const defaultKernel = "main"

// kernel returns (creating if necessary) the named interpreter, with the
// facade's symbols (package nml, exports key "nmlfacade/nml") and the Go
// standard library already exposed.
func (h *Host) kernel(name string) *interp.Interpreter {
	if name == "" {
		name = defaultKernel
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if k, ok := h.kernels[name]; ok {
		return k
	}
	i := interp.New(interp.Options{})
	_ = i.Use(stdlib.Symbols)
	_ = i.Use(h.facadeExports())
	h.kernels[name] = i
	return i
}

// facadeExports builds the yaegi Exports map binding the "nmlfacade/nml"
// key to the Facade's methods, the only surface a kernel script can use to
// mutate or read document state.
func (h *Host) facadeExports() interp.Exports {
	f := reflect.ValueOf(h.facade)
	return interp.Exports{
		"nmlfacade/nml": map[string]reflect.Value{
			"PushElement":   f.MethodByName("PushElement"),
			"Variable":      f.MethodByName("Variable"),
			"SetVariable":   f.MethodByName("SetVariable"),
			"DefineToggled": f.MethodByName("DefineToggled"),
			"DefinePaired":  f.MethodByName("DefinePaired"),
			"Table":         reflect.ValueOf(h.Table),
		},
	}
}

// Define appends code as a definition block to the named kernel: it runs
// for any top-level declarations/state it establishes, and its return
// value (if any) is discarded — `@<kernel … >@` never produces text.
func (h *Host) Define(kernelName, code string) error {
	_, err := h.kernel(kernelName).Eval(code)
	return err
}

// Eval runs code in the named kernel and returns its result value,
// discarding it is the caller's choice — this backs all three `%<…>%`
// forms, which differ only in what the calling rule does with the result.
func (h *Host) Eval(kernelName, code string) (reflect.Value, error) {
	return h.kernel(kernelName).Eval(code)
}

// EvalToString runs code and coerces its result to a string via fmt, the
// shared step eval-to-text and eval-to-parse both need.
func (h *Host) EvalToString(kernelName, code string) (string, error) {
	v, err := h.Eval(kernelName, code)
	if err != nil {
		return "", err
	}
	if !v.IsValid() {
		return "", nil
	}
	return fmt.Sprint(v.Interface()), nil
}

// ExportTable records rows under name, made available to kernels as
// nml.Table(name) — the backing store for `:TABLE[export_as=…]` rows.
func (h *Host) ExportTable(name string, rows []map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tables[name] = rows
}

// Table returns a previously exported table's rows by name.
func (h *Host) Table(name string) []map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tables[name]
}
