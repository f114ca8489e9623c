package source

import (
	"fmt"
	"sync/atomic"
)

var nextID int64

// Stack owns every Source created while compiling one document by strong
// reference. Derivation forms a tree, never a cycle: each derived Source
// holds a strong reference to its parent, and the Stack only ever appends.
type Stack struct {
	sources []*Source
}

// NewStack creates an empty source stack.
func NewStack() *Stack {
	return &Stack{}
}

// PushFile registers an original, parentless source (a file read from disk,
// or any other externally supplied root document).
func (s *Stack) PushFile(name string, content []byte) *Source {
	src := &Source{
		ID:    int(atomic.AddInt64(&nextID, 1)),
		Name:  name,
		Kind:  KindFile,
		Bytes: content,
	}
	s.sources = append(s.sources, src)
	return src
}

// PushDerived registers a source derived from parent, with an explicit
// offset map translating the new source's bytes back into the parent's.
func (s *Stack) PushDerived(parent *Source, kind Kind, name string, content []byte, offset OffsetMap) (*Source, error) {
	if parent == nil {
		return nil, fmt.Errorf("source: derived source %q requires a parent", name)
	}
	if len(offset) != len(content) {
		return nil, fmt.Errorf("source: offset map length %d does not match content length %d for %q", len(offset), len(content), name)
	}
	src := &Source{
		ID:     int(atomic.AddInt64(&nextID, 1)),
		Name:   name,
		Kind:   kind,
		Bytes:  content,
		Parent: parent,
		Offset: offset,
	}
	s.sources = append(s.sources, src)
	return src, nil
}

// PushImport derives a source that is a verbatim copy of an included file's
// bytes; its offset map is synthetic (there's no byte-for-byte parent span
// to point into — the import directive itself is the anchor).
func (s *Stack) PushImport(parent *Source, anchor int, name string, content []byte) *Source {
	src, _ := s.PushDerived(parent, KindImport, name, content, Synthetic(len(content), anchor))
	return src
}

// PushVariableExpansion derives a source for a %name% substitution, anchored
// at the offset of the substitution site in the parent.
func (s *Stack) PushVariableExpansion(parent *Source, anchor int, name string, content []byte) *Source {
	src, _ := s.PushDerived(parent, KindVariable, "var:"+name, content, Synthetic(len(content), anchor))
	return src
}

// PushScriptOutput derives a source for text a kernel produced via
// eval-to-parse, anchored at the invocation's position in the parent.
func (s *Stack) PushScriptOutput(parent *Source, anchor int, kernel string, content []byte) *Source {
	src, _ := s.PushDerived(parent, KindScript, "kernel:"+kernel, content, Synthetic(len(content), anchor))
	return src
}

// All returns every source registered on this stack, in creation order.
func (s *Stack) All() []*Source { return s.sources }

// AncestorChain walks from src up through parents to the root, inclusive.
func AncestorChain(src *Source) []*Source {
	var chain []*Source
	for cur := src; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	return chain
}
