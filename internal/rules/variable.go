package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// VariableDef recognizes `@name = value` at the start of a line, a text
// variable definition. A trailing `\` continues the value onto the next
// line (the backslash and newline are dropped); a trailing `\\` keeps a
// literal newline in the value and also continues. Later definitions of
// the same name shadow earlier ones.
type VariableDef struct{}

func (VariableDef) Name() string  { return "variable_def" }
func (VariableDef) Priority() int { return 4 }

func (VariableDef) Eligible(containerKind tree.Kind) bool { return containerKind != tree.KindCodeBlock }

func (VariableDef) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.PeekAt(offset, 1)[0] != '@' || !atLineStart(c, offset) {
			continue
		}
		if isReservedAtForm(c, offset) {
			continue
		}
		save := cursor.AtOffset(c.Source(), offset+1)
		if _, ok := save.Identifier(); !ok {
			continue
		}
		return offset, true
	}
	return 0, false
}

// isReservedAtForm reports whether the '@' at offset begins a form owned
// by another rule: `@'name` (path variable), `@import`, or `@@` (style
// override).
func isReservedAtForm(c *cursor.Cursor, offset int) bool {
	if c.HasPrefixAt(offset+1, "'") || c.HasPrefixAt(offset+1, "@") {
		return true
	}
	return c.HasPrefixAt(offset, "@import")
}

func (VariableDef) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(1) // '@'
	name, _ := readDottedIdentifier(c)
	skipHorizontalSpace(c)
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '=' {
		c.Advance(1)
	}
	skipHorizontalSpace(c)

	value := readVariableValue(c)

	ctx.Variables().Set(&env.Variable{
		Name:       name,
		Kind:       env.VarText,
		Value:      value,
		DefinedAt:  source.Span{Source: c.Source(), Start: start, End: c.Pos()},
		Definition: c.Source(),
	})
	return nil, nil
}

// readVariableValue reads a definition's value starting at the cursor's
// current position through the end of its (possibly continued) line.
// A line ending in a lone '\' continues onto the next line, dropping both
// the backslash and the newline; a line ending in '\\' keeps a literal
// newline in the value and also continues.
func readVariableValue(c *cursor.Cursor) string {
	var b strings.Builder
	for {
		end := lineEnd(c, c.Pos())
		line := string(c.PeekAt(c.Pos(), end-c.Pos()))
		switch {
		case strings.HasSuffix(line, `\\`):
			b.WriteString(line[:len(line)-2])
			b.WriteByte('\n')
			c.SeekTo(end)
		case strings.HasSuffix(line, `\`):
			b.WriteString(line[:len(line)-1])
			c.SeekTo(end)
		default:
			b.WriteString(line)
			c.SeekTo(end)
			return b.String()
		}
		if c.AtEnd() {
			return b.String()
		}
		c.Advance(1) // consume the newline just scanned past
	}
}

func skipHorizontalSpace(c *cursor.Cursor) {
	for {
		b := c.PeekAt(c.Pos(), 1)
		if len(b) == 0 || (b[0] != ' ' && b[0] != '\t') {
			return
		}
		c.Advance(1)
	}
}

// PathVariableDef recognizes `@'name = path`, a variable bound to a
// filesystem path, resolved relative to the defining source's directory
// and validated to exist at definition time.
type PathVariableDef struct{}

func (PathVariableDef) Name() string  { return "path_variable_def" }
func (PathVariableDef) Priority() int { return 4 }

func (PathVariableDef) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (PathVariableDef) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !atLineStart(c, offset) {
			continue
		}
		if !c.HasPrefixAt(offset, "@'") {
			continue
		}
		return offset, true
	}
	return 0, false
}

func (PathVariableDef) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(2) // "@'"
	name, _ := c.Identifier()
	skipHorizontalSpace(c)
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '=' {
		c.Advance(1)
	}
	skipHorizontalSpace(c)

	end := lineEnd(c, c.Pos())
	rawPath := strings.TrimSpace(string(c.PeekAt(c.Pos(), end-c.Pos())))
	c.SeekTo(end)

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	resolved := rawPath
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(c.Source().Name), resolved)
	}
	if _, err := os.Stat(resolved); err != nil {
		ctx.Diagnostics().Errorf(span, "variable.path-not-found", "path variable %q target %q does not exist: %v", name, resolved, err)
	}

	ctx.Variables().Set(&env.Variable{
		Name:       name,
		Kind:       env.VarPath,
		Value:      resolved,
		DefinedAt:  span,
		Definition: c.Source(),
	})
	return nil, nil
}

// VariableSubst recognizes `%name%`, replacing it with the named
// variable's value and re-parsing that value as NML content in place —
// a substitution naming an undefined variable is diagnosed and left as
// literal text.
type VariableSubst struct{}

func (VariableSubst) Name() string  { return "variable_subst" }
func (VariableSubst) Priority() int { return 9 }

func (VariableSubst) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (VariableSubst) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.PeekAt(offset, 1)[0] != '%' {
			continue
		}
		probe := cursor.AtOffset(c.Source(), offset+1)
		if _, ok := readDottedIdentifier(probe); !ok {
			continue
		}
		if b := probe.PeekAt(probe.Pos(), 1); len(b) > 0 && b[0] == '%' {
			return offset, true
		}
	}
	return 0, false
}

func (VariableSubst) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(1)
	name, _ := readDottedIdentifier(c)
	c.Advance(1) // closing '%'
	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}

	v, ok := ctx.Variables().Get(name)
	if !ok {
		ctx.Diagnostics().Errorf(span, "variable.undefined", "undefined variable %q", name)
		openParagraph(ctx.Stack(), span)
		text := tree.NewElement(tree.KindText, span, tree.ContainLeaf)
		text.Text = "%" + name + "%"
		ctx.Stack().Top().AppendChild(text)
		return []*tree.Element{text}, nil
	}

	openParagraph(ctx.Stack(), span)
	expanded := ctx.Sources().PushVariableExpansion(c.Source(), start, name, []byte(v.Value))
	ctx.Recurse(cursor.New(expanded), len(v.Value))
	return nil, nil
}
