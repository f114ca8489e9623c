// Package diag defines the structured diagnostic record every rule, script
// invocation and resolver pass reduces its failures to. Diagnostics never
// abort compilation on their own; only I/O and cache-open failures do (see
// the Fatal severity below, which callers must check for explicitly).
package diag

import (
	"fmt"
	"sort"

	"github.com/oxhq/nml/internal/source"
)

// Severity classifies a diagnostic along the taxonomy of Lexical/Semantic/
// External/Fatal faults.
type Severity int

const (
	// SeverityWarning flags a recoverable, non-fatal issue (unknown style key, etc).
	SeverityWarning Severity = iota
	// SeverityError flags a recovered syntactic or semantic fault.
	SeverityError
	// SeverityFatal flags an I/O or cache-open failure that aborts the affected document.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic is a single reported fault with its originating source range.
type Diagnostic struct {
	Severity Severity
	Message  string
	Code     string
	Range    source.Span
}

func (d Diagnostic) String() string {
	pos := source.RealPosition(source.Position{Source: d.Range.Source, Offset: d.Range.Start})
	if d.Code != "" {
		return fmt.Sprintf("%s: %s [%s] %s", pos, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s %s", pos, d.Severity, d.Message)
}

// Bag accumulates diagnostics for one document's compilation.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Warningf appends a warning-severity diagnostic at the given range.
func (b *Bag) Warningf(rng source.Span, code, format string, args ...any) {
	b.Add(Diagnostic{Severity: SeverityWarning, Code: code, Range: rng, Message: fmt.Sprintf(format, args...)})
}

// Errorf appends an error-severity diagnostic at the given range.
func (b *Bag) Errorf(rng source.Span, code, format string, args ...any) {
	b.Add(Diagnostic{Severity: SeverityError, Code: code, Range: rng, Message: fmt.Sprintf(format, args...)})
}

// Fatalf appends a fatal-severity diagnostic at the given range.
func (b *Bag) Fatalf(rng source.Span, code, format string, args ...any) {
	b.Add(Diagnostic{Severity: SeverityFatal, Code: code, Range: rng, Message: fmt.Sprintf(format, args...)})
}

// HasFatal reports whether any accumulated diagnostic is fatal.
func (b *Bag) HasFatal() bool {
	for _, d := range b.items {
		if d.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// HasErrors reports whether any accumulated diagnostic is error or worse.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Sorted returns diagnostics ordered ascending by (source, real offset), the
// order user-visible diagnostic lists and the LSP both consume.
func (b *Bag) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		pi := source.RealPosition(source.Position{Source: out[i].Range.Source, Offset: out[i].Range.Start})
		pj := source.RealPosition(source.Position{Source: out[j].Range.Source, Offset: out[j].Range.Start})
		if pi.Source != pj.Source {
			// Diagnostics raised before any source exists (a failed stat
			// or read) sort ahead of positioned ones.
			if pi.Source == nil || pj.Source == nil {
				return pj.Source != nil
			}
			return pi.Source.Name < pj.Source.Name
		}
		return pi.Offset < pj.Offset
	})
	return out
}

// All returns the accumulated diagnostics in insertion order.
func (b *Bag) All() []Diagnostic { return b.items }
