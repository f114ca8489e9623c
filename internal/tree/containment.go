package tree

import "fmt"

// Stack tracks the containment chain the parser driver is currently inside:
// document → (optional layout) → (optional paragraph) → (optional styled
// run). Rules declare which containers they're legal inside (via a context
// predicate) and which ones they auto-open/close; the stack is the single
// source of truth both consult.
type Stack struct {
	frames []*Element
}

// NewStack creates a containment stack rooted at doc.
func NewStack(doc *Element) *Stack {
	return &Stack{frames: []*Element{doc}}
}

// Top returns the innermost currently open container.
func (s *Stack) Top() *Element { return s.frames[len(s.frames)-1] }

// Root returns the document root frame. Rules use its Attrs map to park
// per-document state that must outlive any single Build call but isn't
// itself part of the tree — a section numbering stack, list nesting
// state, blockquote prefix depth, the open layout stack — since "per-
// document state lives in the document under construction" and the
// root element is the one piece of document state every rule can reach
// through Context without the registry widening its interface per rule.
func (s *Stack) Root() *Element { return s.frames[0] }

// Depth returns the number of open frames, including the document root.
func (s *Stack) Depth() int { return len(s.frames) }

// Push opens a new container as a child of the current top, and makes it
// the new top.
func (s *Stack) Push(e *Element) {
	s.Top().AppendChild(e)
	s.frames = append(s.frames, e)
}

// Pop closes the innermost container. It is a no-op (and returns false) if
// only the document root remains, since the root is never popped — the
// parser driver finalizes it (closing every still-open container) at
// end-of-document instead.
func (s *Stack) Pop() (*Element, bool) {
	if len(s.frames) <= 1 {
		return nil, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// PopUntil pops frames until the top is of one of the given kinds, or until
// only the document root remains. It implements the local-recovery
// strategy for unrecoverable syntactic faults: close implicit
// containers up to the nearest legal scope and continue.
func (s *Stack) PopUntil(kinds ...Kind) {
	for len(s.frames) > 1 {
		top := s.Top()
		for _, k := range kinds {
			if top.Kind == k {
				return
			}
		}
		s.Pop()
	}
}

// InKind reports whether any open frame (innermost first) has the given kind.
func (s *Stack) InKind(kind Kind) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == kind {
			return true
		}
	}
	return false
}

// OpenParagraph returns the currently open paragraph, auto-opening one as a
// child of the current top if none is open. A paragraph is auto-opened on
// the first inline content and auto-closed by a blank line or any
// block-level element (call CloseParagraphIfOpen for the latter two).
func (s *Stack) OpenParagraph(loc func() Element) *Element {
	if s.Top().Kind == KindParagraph {
		return s.Top()
	}
	p := NewElement(KindParagraph, loc().Location, ContainInline)
	s.Push(p)
	return p
}

// CloseParagraphIfOpen closes an auto-opened paragraph, if the current top
// is one.
func (s *Stack) CloseParagraphIfOpen() {
	if s.Top().Kind == KindParagraph {
		s.Pop()
	}
}

// FinalizeAtEOF closes every remaining open container (besides the
// document root) at end of source, implementing the scope-balance
// invariant: the parser never leaves the containment stack non-empty at
// document end.
func (s *Stack) FinalizeAtEOF() []*Element {
	var closed []*Element
	for len(s.frames) > 1 {
		e, _ := s.Pop()
		closed = append(closed, e)
	}
	return closed
}

func (s *Stack) String() string {
	out := "["
	for i, f := range s.frames {
		if i > 0 {
			out += ">"
		}
		out += fmt.Sprint(f.Kind)
	}
	return out + "]"
}
