package tree

import (
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/source"
)

// Reference is a named anchor defined somewhere in a document: a (name,
// kind, owning document, element id) tuple. name is unique within its
// owning document; §{#ref} usage sites look across every document's
// reference set instead of just the local one.
type Reference struct {
	Name       string
	Kind       Kind
	Document   string // owning document's identity (its output name)
	ElementID  int
	Definition source.Span
}

// Navigation captures the nav.* variables a document sets, consumed by the
// resolver to build a linear previous/next order and category groupings.
type Navigation struct {
	Title       string
	Previous    string
	Category    string
	Subcategory string
}

// Document is the result of compiling one source: its root element, the
// variable/style state accumulated while parsing it, every reference it
// defines, and the navigation hints it declared. Documents are mutated
// only during their own parse pass and become immutable before the
// resolver runs.
type Document struct {
	Source     *source.Source
	OutputName string // compiler.output with its extension stripped; the cross-document identity
	Root       *Element

	References map[string]*Reference // name -> definition, local to this document
	Navigation Navigation

	// Vars and StyleEnv are the environments the parse pass accumulated;
	// the render-step layer reads the semantic variables (tex.<env>.*,
	// code.theme) through them after the document is sealed.
	Vars     *env.Variables
	StyleEnv *env.Styles

	// Media and Sections index elements of those kinds by id for the
	// resolver and renderer, in document order.
	Media    []*Element
	Sections []*Element

	sealed bool
}

// NewDocument creates an empty document rooted at a fresh document element.
func NewDocument(src *source.Source) *Document {
	root := NewElement(KindDocument, source.Span{Source: src, Start: 0, End: len(src.Bytes)}, ContainBlock)
	return &Document{
		Source:     src,
		Root:       root,
		References: map[string]*Reference{},
	}
}

// DefineReference registers a reference and enforces the reference
// uniqueness invariant: no two definitions within a document may share a
// name. Returns false if name is already taken.
func (d *Document) DefineReference(ref *Reference) bool {
	if d.sealed {
		return false
	}
	if _, exists := d.References[ref.Name]; exists {
		return false
	}
	ref.Document = d.OutputName
	d.References[ref.Name] = ref
	return true
}

// IndexSection records a section element for ToC/reference bookkeeping.
func (d *Document) IndexSection(e *Element) { d.Sections = append(d.Sections, e) }

// IndexMedia records a media element for reference bookkeeping.
func (d *Document) IndexMedia(e *Element) { d.Media = append(d.Media, e) }

// Seal marks the document immutable, as required before the resolver runs
// on a completed compilation set.
func (d *Document) Seal() { d.sealed = true }

// Sealed reports whether the document has been sealed.
func (d *Document) Sealed() bool { return d.sealed }
