// Package resolve implements NML's cross-document resolver: the
// global reference map over a compiled document set, the `§{doc#ref}` /
// `§{#ref}` / `§{ref}` binding rules, and navigation linkage built from
// `nav.*` variables. A resolver pass never mutates an element tree — it
// produces a side table keyed by (document, element id) that the
// renderer consumes alongside the sealed trees.
package resolve

import (
	"sort"

	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/tree"
)

// Binding is one resolved reference usage: the element that used `§{…}`
// or `&{…}`, and the (document, element) it was bound to.
type Binding struct {
	Document        string
	ElementID       int
	TargetDocument  string
	TargetElementID int
}

// Result is the resolver's output side table: every successfully bound
// reference, the navigation total order, and category groupings, all
// keyed by document output name (never by element pointer, so the
// renderer can consume it without holding the compiled trees open).
type Result struct {
	Bindings   []Binding
	Order      []string            // document output names, previous-edge total order
	Categories map[string][]string // nav.category -> output names, in Order's relative sequence
}

type globalEntry struct {
	doc string
	id  int
}

// Resolve runs the two-phase algorithm over a set of already-compiled,
// sealed documents: build the global name map, then resolve every
// reference usage against it, then derive navigation linkage. It always
// terminates; every failure becomes a diagnostic on the returned bag,
// never an error return.
func Resolve(docs []*tree.Document) (*Result, *diag.Bag) {
	diags := &diag.Bag{}
	byName := make(map[string]*tree.Document, len(docs))
	global := map[string][]globalEntry{}
	for _, d := range docs {
		byName[d.OutputName] = d
		for name, ref := range d.References {
			global[name] = append(global[name], globalEntry{doc: d.OutputName, id: ref.ElementID})
		}
	}

	result := &Result{Categories: map[string][]string{}}
	for _, d := range docs {
		tree.Walk(d.Root, func(e *tree.Element) {
			if e.Kind != tree.KindReference {
				return
			}
			if b, ok := resolveUsage(d, e, byName, global, diags); ok {
				result.Bindings = append(result.Bindings, b)
			}
		})
	}

	buildNavigation(docs, result, diags)
	return result, diags
}

func resolveUsage(d *tree.Document, usage *tree.Element, byName map[string]*tree.Document, global map[string][]globalEntry, diags *diag.Bag) (Binding, bool) {
	name := tree.Attr[string](usage, "ref")
	explicitDoc := tree.Attr[string](usage, "doc") // only section-kind usages ever set this
	anyDoc := tree.Attr[bool](usage, "any_doc")

	bind := func(targetDoc string, targetID int) Binding {
		return Binding{Document: d.OutputName, ElementID: usage.ID, TargetDocument: targetDoc, TargetElementID: targetID}
	}

	switch {
	case explicitDoc != "":
		target, ok := byName[explicitDoc]
		if !ok {
			diags.Errorf(usage.Location, "reference.unresolved", "reference %q: document %q not found", name, explicitDoc)
			return Binding{}, false
		}
		ref, ok := target.References[name]
		if !ok {
			diags.Errorf(usage.Location, "reference.unresolved", "reference %q not defined in document %q", name, explicitDoc)
			return Binding{}, false
		}
		return bind(explicitDoc, ref.ElementID), true

	case anyDoc:
		entries := global[name]
		switch len(entries) {
		case 0:
			diags.Errorf(usage.Location, "reference.unresolved", "no definition found for %q", name)
			return Binding{}, false
		case 1:
			return bind(entries[0].doc, entries[0].id), true
		default:
			diags.Errorf(usage.Location, "reference.ambiguous", "multiple definitions found for %q", name)
			return Binding{}, false
		}

	default: // §{ref} and &{ref}: document-local only, no global fallback
		ref, ok := d.References[name]
		if !ok {
			diags.Errorf(usage.Location, "reference.unresolved", "reference %q not defined in this document", name)
			return Binding{}, false
		}
		return bind(d.OutputName, ref.ElementID), true
	}
}

// buildNavigation links documents via their nav.previous edges into a
// total order (roots — documents with no previous, or an unresolved one
// — sorted for determinism, then each chain followed forward) and groups
// by nav.category.
func buildNavigation(docs []*tree.Document, result *Result, diags *diag.Bag) {
	byName := make(map[string]*tree.Document, len(docs))
	nextOf := map[string]string{} // previous's output name -> the document declaring it
	for _, d := range docs {
		byName[d.OutputName] = d
	}
	for _, d := range docs {
		prev := d.Navigation.Previous
		if prev == "" {
			continue
		}
		if existing, ok := nextOf[prev]; ok && existing != d.OutputName {
			diags.Errorf(d.Root.Location, "navigation.ambiguous-previous", "documents %q and %q both declare %q as their previous", existing, d.OutputName, prev)
			continue
		}
		nextOf[prev] = d.OutputName
	}

	var roots []string
	for _, d := range docs {
		prev := d.Navigation.Previous
		if prev == "" {
			roots = append(roots, d.OutputName)
			continue
		}
		if _, ok := byName[prev]; !ok {
			diags.Errorf(d.Root.Location, "navigation.unresolved-previous", "document %q's previous %q does not exist", d.OutputName, prev)
			roots = append(roots, d.OutputName)
		}
	}
	sort.Strings(roots)

	visited := map[string]bool{}
	for _, root := range roots {
		for name := root; name != "" && !visited[name]; name = nextOf[name] {
			visited[name] = true
			result.Order = append(result.Order, name)
		}
	}
	// Documents only reachable through a previous-edge cycle never hit a
	// root; append them in input order so every document still appears.
	for _, d := range docs {
		if !visited[d.OutputName] {
			visited[d.OutputName] = true
			result.Order = append(result.Order, d.OutputName)
		}
	}

	for _, name := range result.Order {
		d := byName[name]
		if d.Navigation.Category == "" {
			continue
		}
		result.Categories[d.Navigation.Category] = append(result.Categories[d.Navigation.Category], d.OutputName)
	}
}
