// Package tree implements the typed document tree NML's parser builds
// append-only during a single parse pass, and the scope/containment
// discipline rules must respect while building it.
package tree

import (
	"sync/atomic"

	"github.com/oxhq/nml/internal/source"
)

var nextElementID int64

// Element is a single node in the document tree.
type Element struct {
	ID          int
	Kind        Kind
	Location    source.Span
	Containment Containment

	// Text holds the literal content for KindText and KindRaw leaves.
	Text string

	// Attrs holds kind-specific typed attributes. Using a single open map
	// (rather than one Go type per Kind) keeps the tree append-only and
	// lets scripted rules (custom styles) attach attributes the built-in
	// kinds never needed, without widening this struct.
	Attrs map[string]any

	Children []*Element

	// Parent is nil only for the document root.
	Parent *Element
}

// NewElement allocates an Element with a fresh, stable id.
func NewElement(kind Kind, loc source.Span, containment Containment) *Element {
	return &Element{
		ID:          int(atomic.AddInt64(&nextElementID, 1)),
		Kind:        kind,
		Location:    loc,
		Containment: containment,
		Attrs:       map[string]any{},
	}
}

// AppendChild appends a child element, wiring its Parent back-pointer.
func (e *Element) AppendChild(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// Attr fetches a typed attribute, returning the zero value if absent or of
// the wrong type.
func Attr[T any](e *Element, key string) T {
	var zero T
	if e == nil || e.Attrs == nil {
		return zero
	}
	v, ok := e.Attrs[key]
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

// SetAttr sets a typed attribute.
func (e *Element) SetAttr(key string, value any) {
	if e.Attrs == nil {
		e.Attrs = map[string]any{}
	}
	e.Attrs[key] = value
}

// Walk visits e and every descendant, depth-first, in document order.
func Walk(e *Element, visit func(*Element)) {
	if e == nil {
		return
	}
	visit(e)
	for _, c := range e.Children {
		Walk(c, visit)
	}
}

// Find returns the first descendant (or e itself) matching pred, in
// document order, or nil.
func Find(e *Element, pred func(*Element) bool) *Element {
	var found *Element
	Walk(e, func(el *Element) {
		if found == nil && pred(el) {
			found = el
		}
	})
	return found
}

// ByID returns the element with the given stable id within e's subtree, or nil.
func ByID(e *Element, id int) *Element {
	return Find(e, func(el *Element) bool { return el.ID == id })
}
