package rules

import (
	"strconv"
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Table recognizes pipe-delimited rows (`|cell|cell|`, each cell
// optionally prefixed with a `:k=v,…:` property block) and the optional
// preceding caption line `:TABLE[props] {ref} Caption`. Consecutive row
// lines accumulate into the table opened by the most recent caption (or,
// lacking one, a table opened by the first row line itself).
type Table struct{}

func (Table) Name() string  { return "table" }
func (Table) Priority() int { return 5 }

func (Table) Eligible(containerKind tree.Kind) bool { return true }

func (Table) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !atLineStart(c, offset) {
			continue
		}
		b := c.PeekAt(offset, 1)
		if len(b) == 0 {
			continue
		}
		if b[0] == '|' {
			return offset, true
		}
		if string(c.PeekAt(offset, 6)) == ":TABLE" {
			return offset, true
		}
	}
	return 0, false
}

func (Table) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	if string(c.PeekAt(start, 6)) == ":TABLE" {
		return buildTableCaption(c, ctx, start)
	}
	return buildTableRow(c, ctx, start)
}

func buildTableCaption(c *cursor.Cursor, ctx registry.Context, start int) ([]*tree.Element, error) {
	c.Advance(6)

	var props map[string]string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if p, ok := c.PropertyList(); ok {
			props = p
		}
	}
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == ' ' {
		c.Advance(1)
	}

	ref := ""
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '{' {
		c.Advance(1)
		ref, _ = c.BalancedSpan('{', '}')
		if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == ' ' {
			c.Advance(1)
		}
	}

	end := lineEnd(c, c.Pos())
	caption := strings.TrimSpace(string(c.PeekAt(c.Pos(), end-c.Pos())))
	c.SeekTo(end)

	popUntilKind(ctx.Stack(), tree.KindDocument, tree.KindSection, tree.KindLayoutPane, tree.KindLayout, tree.KindBlockquote)

	span := source.Span{Source: c.Source(), Start: start, End: end}
	table := tree.NewElement(tree.KindTable, span, tree.ContainBlock)
	table.SetAttr("ref", ref)
	table.SetAttr("caption", caption)
	if exportAs, ok := props["export_as"]; ok {
		table.SetAttr("export_as", exportAs)
	}
	ctx.Stack().Push(table)
	return []*tree.Element{table}, nil
}

func buildTableRow(c *cursor.Cursor, ctx registry.Context, start int) ([]*tree.Element, error) {
	c.Advance(1) // leading '|'

	end := lineEnd(c, c.Pos())
	lineBytes := c.PeekAt(c.Pos(), end-c.Pos())
	c.SeekTo(end)

	if ctx.Stack().Top().Kind != tree.KindTable {
		popUntilKind(ctx.Stack(), tree.KindDocument, tree.KindSection, tree.KindLayoutPane, tree.KindLayout, tree.KindBlockquote)
		table := tree.NewElement(tree.KindTable, source.Span{Source: c.Source(), Start: start, End: start}, tree.ContainBlock)
		table.SetAttr("caption", "")
		ctx.Stack().Push(table)
	}
	table := ctx.Stack().Top()
	rowIndex := len(table.Children)

	row := tree.NewElement(tree.KindTableRow, source.Span{Source: c.Source(), Start: start, End: end}, tree.ContainBlock)
	row.SetAttr("index", rowIndex)
	table.AppendChild(row)

	cols := splitTableCells(string(lineBytes))
	remaining := tree.Attr[int](table, "columns")
	if remaining == 0 {
		remaining = len(cols)
	}
	used := 0
	for i, raw := range cols {
		props, text := parseCellProps(raw)
		hspan := 1
		if v, ok := props["hspan"]; ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				hspan = n
			}
		}
		if used+hspan > remaining {
			ctx.Diagnostics().Errorf(source.Span{Source: c.Source(), Start: start, End: end},
				"table.hspan-overflow", "cell %d hspan %d exceeds remaining columns", i, hspan)
			hspan = remaining - used
			if hspan < 1 {
				hspan = 1
			}
		}
		used += hspan

		cell := tree.NewElement(tree.KindTableCell, source.Span{Source: c.Source(), Start: start, End: end}, tree.ContainInline)
		cell.SetAttr("hspan", hspan)
		cell.SetAttr("text", strings.TrimSpace(text))
		for k, v := range props {
			if k != "hspan" {
				cell.SetAttr("prop."+k, v)
			}
		}
		row.AppendChild(cell)
	}
	if tree.Attr[int](table, "columns") == 0 {
		table.SetAttr("columns", used)
	}

	return []*tree.Element{table, row}, nil
}

// splitTableCells splits a row's content on every '|' separator (a
// backslash does not escape a pipe), dropping a trailing empty segment
// left by an optional closing pipe.
func splitTableCells(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// parseCellProps strips a leading `:k=v,…:` property block from a cell's
// raw text, if present, returning the parsed properties and the
// remaining content.
func parseCellProps(raw string) (map[string]string, string) {
	if !strings.HasPrefix(raw, ":") {
		return nil, raw
	}
	closeIdx := strings.Index(raw[1:], ":")
	if closeIdx < 0 {
		return nil, raw
	}
	body := raw[1 : 1+closeIdx]
	rest := raw[1+closeIdx+1:]
	props := map[string]string{}
	for _, kv := range strings.Split(body, ",") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			props[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return props, rest
}
