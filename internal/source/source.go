// Package source implements the layered, position-preserving text buffers
// the NML parser reads through. A Source is created for every original
// file, every @import, every variable expansion and every piece of text a
// script kernel hands back to the parser; derived sources hold a strong
// reference to their parent and an OffsetMap translating their own byte
// positions back into the parent's.
package source

import "fmt"

// Kind identifies why a Source was created, for diagnostics and tracing.
type Kind int

const (
	// KindFile is an original on-disk (or otherwise externally supplied) document.
	KindFile Kind = iota
	// KindImport is the content of an @import target.
	KindImport
	// KindVariable is the expansion of a %name% substitution.
	KindVariable
	// KindScript is text produced by a script kernel's eval-to-parse form.
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindImport:
		return "import"
	case KindVariable:
		return "variable"
	case KindScript:
		return "script"
	default:
		return "unknown"
	}
}

// Source is a single input buffer: identity, bytes, and optionally a parent
// plus the map translating this source's offsets into the parent's.
type Source struct {
	ID     int
	Name   string // origin path, or a synthetic name for derived sources
	Kind   Kind
	Bytes  []byte
	Parent *Source
	Offset OffsetMap // nil for root (KindFile) sources
}

// Len returns the byte length of the source content.
func (s *Source) Len() int { return len(s.Bytes) }

// IsRoot reports whether this source has no parent (an original file).
func (s *Source) IsRoot() bool { return s.Parent == nil }

// Position is a location within a single source: a source identity plus a
// byte offset into that source's content.
type Position struct {
	Source *Source
	Offset int
}

func (p Position) String() string {
	if p.Source == nil {
		return fmt.Sprintf("<nil>:%d", p.Offset)
	}
	return fmt.Sprintf("%s:%d", p.Source.Name, p.Offset)
}

// Span is a half-open byte range within a single source.
type Span struct {
	Source     *Source
	Start, End int
}

func (s Span) Len() int { return s.End - s.Start }

// Bytes returns the raw bytes covered by the span.
func (s Span) Bytes() []byte {
	if s.Source == nil {
		return nil
	}
	return s.Source.Bytes[s.Start:s.End]
}

// Text returns the span's bytes as a string.
func (s Span) Text() string { return string(s.Bytes()) }

// RealPosition walks a position's source chain through every OffsetMap up
// to the deepest root (original file) source, honoring the invariant that a
// position in a derived source always maps to *some* position in its
// ultimate parent. Diagnostics always report positions this way, so errors
// in script-generated or variable-expanded content point back at the byte
// range in the .nml file that produced them.
func RealPosition(p Position) Position {
	cur := p
	for cur.Source != nil && cur.Source.Parent != nil {
		parentOffset := cur.Source.Offset.Map(cur.Offset)
		cur = Position{Source: cur.Source.Parent, Offset: parentOffset}
	}
	return cur
}

// RealSpan walks both ends of a span back to their root source.
func RealSpan(s Span) Span {
	cur := s
	for cur.Source != nil && cur.Source.Parent != nil {
		start := cur.Source.Offset.Map(cur.Start)
		end := cur.Source.Offset.MapEnd(cur.End)
		cur = Span{Source: cur.Source.Parent, Start: start, End: end}
	}
	return cur
}
