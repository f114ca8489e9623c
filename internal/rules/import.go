package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// Import recognizes `@import path.nml` and `@import[as=alias] path.nml`.
// The target is read relative to the importing source's directory and
// recursed into as nested content; a read failure is a fatal diagnostic,
// since it leaves the document's structure genuinely incomplete rather
// than just visually wrong. With `as=alias`, every variable the imported
// content bound during that recursion is renamed under an "alias." prefix
// afterward, so importer and imported variables never collide.
//
// An import chain never revisits a file: the importing source's ancestor
// chain is the visiting set, and a target already on it is diagnosed
// before the cycle's closing edge is ever parsed.
type Import struct{}

func (Import) Name() string  { return "import" }
func (Import) Priority() int { return 4 }

func (Import) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (Import) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if !atLineStart(c, offset) {
			continue
		}
		if c.HasPrefixAt(offset, "@import") {
			return offset, true
		}
	}
	return 0, false
}

func (Import) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(len("@import"))

	var alias string
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if props, ok := c.PropertyList(); ok {
			alias = props["as"]
		}
	}
	skipHorizontalSpace(c)

	end := lineEnd(c, c.Pos())
	rawPath := strings.TrimSpace(string(c.PeekAt(c.Pos(), end-c.Pos())))
	c.SeekTo(end)

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}

	target := rawPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(c.Source().Name), target)
	}
	if onImportChain(c.Source(), target) {
		ctx.Diagnostics().Errorf(span, "import.cycle", "import of %q would revisit a file already on the import chain", target)
		return nil, nil
	}
	content, err := os.ReadFile(target)
	if err != nil {
		ctx.Diagnostics().Fatalf(span, "import.read-failed", "cannot read import target %q: %v", target, err)
		return nil, nil
	}

	before := map[string]bool{}
	for _, n := range ctx.Variables().Names() {
		before[n] = true
	}

	imported := ctx.Sources().PushImport(c.Source(), start, target, content)
	ctx.Recurse(cursor.New(imported), len(content))

	if alias != "" {
		for _, n := range ctx.Variables().Names() {
			if before[n] {
				continue
			}
			ctx.Variables().Rename(n, alias+"."+n)
		}
	}
	return nil, nil
}

// onImportChain reports whether target names a file already on src's
// ancestor chain — the original document or any import between it and
// src. Only file-backed ancestors count; derived sources for variable
// expansions and script output carry synthetic names, not paths.
func onImportChain(src *source.Source, target string) bool {
	cleaned := filepath.Clean(target)
	for _, anc := range source.AncestorChain(src) {
		if anc.Kind != source.KindFile && anc.Kind != source.KindImport {
			continue
		}
		if filepath.Clean(anc.Name) == cleaned {
			return true
		}
	}
	return false
}
