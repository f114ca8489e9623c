// Package parser implements NML's parser driver: the loop that
// scans the rule registry for the earliest match, emits plain-text spans
// between matches into the currently open paragraph, and invokes the
// winning rule's builder — recursively, for nested bodies, imports,
// variable expansions and script output alike.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/script"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Driver implements registry.Context and owns the parse loop: pick the
// earliest rule match, emit the text before it, build it, repeat. Rules
// never hold a Driver across calls; it's handed to Build fresh each
// time.
type Driver struct {
	reg     *registry.Registry
	stack   *tree.Stack
	diags   *diag.Bag
	vars    *env.Variables
	styles  *env.Styles
	sources *source.Stack
	log     *logrus.Entry
}

// NewDriver creates a Driver rooted at doc's root element.
func NewDriver(reg *registry.Registry, doc *tree.Document, sources *source.Stack, vars *env.Variables, styles *env.Styles, diags *diag.Bag, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Driver{
		reg:     reg,
		stack:   tree.NewStack(doc.Root),
		diags:   diags,
		vars:    vars,
		styles:  styles,
		sources: sources,
		log:     log,
	}
}

func (d *Driver) Stack() *tree.Stack        { return d.stack }
func (d *Driver) Diagnostics() *diag.Bag    { return d.diags }
func (d *Driver) Variables() *env.Variables { return d.vars }
func (d *Driver) Styles() *env.Styles       { return d.styles }
func (d *Driver) Sources() *source.Stack    { return d.sources }

func (d *Driver) RegisterRule(r registry.Rule) error { return d.reg.Register(r) }

// Recurse re-enters the driver loop over c, bounded to end, sharing this
// Driver's containment stack, variables and style environment — the
// mechanism every rule that opens a nested body (a styled run, a
// blockquote, an import, a variable expansion, a script's eval-to-parse
// output) uses to have its content scanned by the same rule set.
func (d *Driver) Recurse(c *cursor.Cursor, end int) { d.run(c, end) }

// run is the driver loop proper.
func (d *Driver) run(c *cursor.Cursor, end int) {
	for c.Pos() < end {
		containerKind := d.stack.Top().Kind
		rule, offset, ok := d.reg.NextMatch(c, c.Pos(), containerKind)
		if !ok || offset >= end {
			d.emitText(c, end)
			c.SeekTo(end)
			return
		}

		d.emitText(c, offset)
		c.SeekTo(offset)
		before := c.Pos()

		d.log.WithFields(logrus.Fields{"rule": rule.Name(), "offset": offset}).Trace("rule match")
		if _, err := rule.Build(c, d); err != nil {
			span := source.Span{Source: c.Source(), Start: offset, End: offset}
			d.diags.Errorf(span, "parser.rule-error", "rule %q failed: %v", rule.Name(), err)
		}
		if c.Pos() <= before {
			// A rule that matched but consumed nothing would spin the
			// loop forever; force one byte of progress instead. A single
			// element's failure never aborts the parse.
			c.Advance(1)
		}
	}
}

// emitText appends the bytes in [cursor position, end) as a plain-text
// run inside the currently open paragraph, auto-opening one if needed.
func (d *Driver) emitText(c *cursor.Cursor, end int) {
	if end <= c.Pos() {
		return
	}
	text := c.PeekAt(c.Pos(), end-c.Pos())
	if len(text) == 0 {
		return
	}
	span := source.Span{Source: c.Source(), Start: c.Pos(), End: end}
	d.stack.OpenParagraph(func() tree.Element { return tree.Element{Location: span} })
	el := tree.NewElement(tree.KindText, span, tree.ContainLeaf)
	el.Text = string(text)
	d.stack.Top().AppendChild(el)
}

// Compile parses src into a fresh Document using reg, the shared
// registry of builtin (and already-scripted) rules, and host, the
// kernel host that backs the document's script invocations. Each call
// gets its own Variables/Styles environment and containment stack;
// per the scheduling model, kernels are never shared across
// documents, so callers must pass a fresh *script.Host per document.
// The returned bag collects every diagnostic raised while parsing and
// finalizing src, fatal or not (a single element's failure never
// aborts the parse, but the caller still needs to see it).
func Compile(reg *registry.Registry, host *script.Host, src *source.Source, sources *source.Stack, log *logrus.Entry) (*tree.Document, *diag.Bag) {
	doc := tree.NewDocument(src)
	vars := env.NewVariables()
	styles := NewStyleEnvironment()
	diags := &diag.Bag{}

	d := NewDriver(reg, doc, sources, vars, styles, diags, log)
	c := cursor.New(src)
	d.run(c, c.Len())
	d.stack.FinalizeAtEOF()

	doc.Vars = vars
	doc.StyleEnv = styles

	finalize(doc, diags, vars, host)
	return doc, diags
}

// finalize runs the bookkeeping the driver owes the document once its
// tree is complete and immutable: indexing sections/media, registering
// named references (enforcing the reference-uniqueness invariant),
// exporting `:TABLE[export_as=…]` rows to the script host, and reading
// the semantic variables that become the document's identity and
// navigation hints.
func finalize(doc *tree.Document, diags *diag.Bag, vars *env.Variables, host *script.Host) {
	// OutputName must be set before any DefineReference call below: it
	// stamps each Reference.Document at definition time, so a reference
	// registered against an empty OutputName would carry the wrong
	// cross-document identity for the rest of the document's lifetime.
	doc.OutputName = outputName(doc.Source, vars)

	tree.Walk(doc.Root, func(e *tree.Element) {
		switch e.Kind {
		case tree.KindSection:
			doc.IndexSection(e)
			defineIfRefd(doc, diags, e, tree.Attr[string](e, "ref"), tree.KindSection)
		case tree.KindMedia:
			doc.IndexMedia(e)
			defineIfRefd(doc, diags, e, tree.Attr[string](e, "prop.ref"), tree.KindMedia)
		case tree.KindTable:
			defineIfRefd(doc, diags, e, tree.Attr[string](e, "ref"), tree.KindTable)
			if exportAs := tree.Attr[string](e, "export_as"); exportAs != "" && host != nil {
				host.ExportTable(exportAs, tableRows(e))
			}
		}
	})

	doc.Navigation = tree.Navigation{
		Title:       varValue(vars, "nav.title"),
		Previous:    varValue(vars, "nav.previous"),
		Category:    varValue(vars, "nav.category"),
		Subcategory: varValue(vars, "nav.subcategory"),
	}
	doc.Seal()
}

func defineIfRefd(doc *tree.Document, diags *diag.Bag, e *tree.Element, name string, kind tree.Kind) {
	if name == "" {
		return
	}
	ref := &tree.Reference{Name: name, Kind: kind, ElementID: e.ID, Definition: e.Location}
	if !doc.DefineReference(ref) {
		diags.Errorf(e.Location, "reference.duplicate", "duplicate reference name %q", name)
	}
}

func outputName(src *source.Source, vars *env.Variables) string {
	if v, ok := vars.Get("compiler.output"); ok && v.Value != "" {
		return strings.TrimSuffix(v.Value, filepath.Ext(v.Value))
	}
	base := filepath.Base(src.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func varValue(vars *env.Variables, name string) string {
	if v, ok := vars.Get(name); ok {
		return v.Value
	}
	return ""
}

// tableRows builds the nml.tables.<name> row set a `:TABLE[export_as=…]`
// table exposes to script kernels: the first row supplies column names,
// every subsequent row a map from column name (falling back to "colN"
// for an unnamed column) to that row's cell text.
func tableRows(table *tree.Element) []map[string]string {
	var headers []string
	var rows []map[string]string
	for i, rowEl := range table.Children {
		if rowEl.Kind != tree.KindTableRow {
			continue
		}
		texts := make([]string, 0, len(rowEl.Children))
		for _, cell := range rowEl.Children {
			texts = append(texts, tree.Attr[string](cell, "text"))
		}
		if i == 0 {
			headers = texts
			continue
		}
		row := make(map[string]string, len(texts))
		for j, v := range texts {
			key := fmt.Sprintf("col%d", j)
			if j < len(headers) && headers[j] != "" {
				key = headers[j]
			}
			row[key] = v
		}
		rows = append(rows, row)
	}
	return rows
}
