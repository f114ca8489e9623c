// Package render defines the narrow boundary between the compiled-and-
// resolved document model and the concrete HTML/CSS output format. Per
// contract, the real renderer is an external collaborator — this package
// only fixes the interface it must satisfy, plus a byte-dump
// implementation exercising that interface for tests and the thin CLI.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/oxhq/nml/internal/resolve"
	"github.com/oxhq/nml/internal/tree"
)

// Renderer turns a compiled, sealed document plus its cross-document
// resolution result into output bytes. A concrete HTML/CSS
// implementation lives outside this module; Renderer exists so the
// core can be driven end to end (parse, cache, resolve, render)
// without depending on one.
type Renderer interface {
	Render(doc *tree.Document, result *resolve.Result) ([]byte, error)
}

// Sink is a no-op/byte-dump Renderer: it walks the element tree and
// emits a plain-text debug trace (kind, key attributes, resolved
// reference targets) rather than HTML. It exists so callers that only
// need "did this compile and resolve to *something*" — the thin CLI's
// smoke path and this package's own tests — have a Renderer to drive
// without pulling in a template engine the core has no other use for.
type Sink struct {
	// Prerendered, when set, is the Steps.Prerender side table; elements
	// with an entry report the rendered payload size inline.
	Prerendered map[int][]byte
}

// Render errors only on a nil document: every failure in reaching a referenced element
// is represented inline as "unresolved" text rather than aborting, so
// Sink stays usable even over a document set with diagnostics still
// pending.
func (s Sink) Render(doc *tree.Document, result *resolve.Result) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	bindings := map[int]resolve.Binding{}
	if result != nil {
		for _, b := range result.Bindings {
			if b.Document == doc.OutputName {
				bindings[b.ElementID] = b
			}
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "document %s\n", doc.OutputName)
	var walk func(e *tree.Element, depth int)
	walk = func(e *tree.Element, depth int) {
		indent := strings.Repeat("  ", depth)
		switch e.Kind {
		case tree.KindText:
			fmt.Fprintf(&buf, "%s%s %q\n", indent, e.Kind, e.Text)
		case tree.KindReference:
			if b, ok := bindings[e.ID]; ok {
				fmt.Fprintf(&buf, "%s%s -> %s#%d\n", indent, e.Kind, b.TargetDocument, b.TargetElementID)
			} else {
				fmt.Fprintf(&buf, "%s%s -> unresolved\n", indent, e.Kind)
			}
		default:
			if b, ok := s.Prerendered[e.ID]; ok {
				fmt.Fprintf(&buf, "%s%s rendered(%d bytes)\n", indent, e.Kind, len(b))
			} else {
				fmt.Fprintf(&buf, "%s%s\n", indent, e.Kind)
			}
		}
		for _, c := range e.Children {
			walk(c, depth+1)
		}
	}
	walk(doc.Root, 0)
	return buf.Bytes(), nil
}
