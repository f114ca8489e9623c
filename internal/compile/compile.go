// Package compile implements directory-mode compilation: a worker pool
// compiling one document per task, a skip check against the cache's
// per-document manifest, and the cross-document resolver run as a
// barrier after every worker completes. Filesystem walking stays an
// external collaborator — callers hand Run an explicit path list.
package compile

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oxhq/nml/internal/cache"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/parser"
	"github.com/oxhq/nml/internal/resolve"
	"github.com/oxhq/nml/internal/script"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// DocumentResult is one document's outcome within a batch: its compiled
// (or manifest-reconstructed) document, its diagnostics, and whether the
// skip check let it bypass compilation entirely.
type DocumentResult struct {
	Path        string
	Document    *tree.Document
	Diagnostics *diag.Bag
	Skipped     bool
}

// Set is a completed batch: per-document results in input order, plus
// the resolver's output over the whole set.
type Set struct {
	Documents   []*DocumentResult
	Resolution  *resolve.Result
	ResolveDiag *diag.Bag
}

// Option configures a Batch.
type Option func(*Batch)

// WithWorkers caps the number of documents compiling concurrently.
func WithWorkers(n int) Option { return func(b *Batch) { b.workers = n } }

// WithStore attaches the shared cache store; without one every document
// is always recompiled and no manifest is recorded.
func WithStore(store *cache.Store) Option { return func(b *Batch) { b.store = store } }

// WithForceRebuild disables the manifest skip check.
func WithForceRebuild(force bool) Option { return func(b *Batch) { b.force = force } }

// WithLogger sets the trace logger shared across workers.
func WithLogger(log *logrus.Entry) Option { return func(b *Batch) { b.log = log } }

// WithPostCompile runs fn inside each worker right after a document
// compiles, before the resolver barrier. This is where callers hang the
// cached render steps, so the cache stays the only mutable resource the
// workers share.
func WithPostCompile(fn func(context.Context, *tree.Document, *diag.Bag)) Option {
	return func(b *Batch) { b.post = fn }
}

// Batch compiles a set of documents in parallel and resolves them.
type Batch struct {
	workers int
	store   *cache.Store
	force   bool
	post    func(context.Context, *tree.Document, *diag.Bag)
	log     *logrus.Entry
}

// New creates a Batch; the default worker count matches GOMAXPROCS.
func New(opts ...Option) *Batch {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	b := &Batch{
		workers: runtime.GOMAXPROCS(0),
		log:     logrus.NewEntry(discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = 1
	}
	return b
}

// Run compiles every path (skipping those the manifest check clears),
// waits for all workers, then resolves the full set. A document whose
// source cannot be read is marked failed with a fatal diagnostic and the
// batch proceeds with the others; the only error Run itself returns is
// context cancellation.
func (b *Batch) Run(ctx context.Context, paths []string) (*Set, error) {
	results := make([]*DocumentResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.compileOne(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docs []*tree.Document
	for _, r := range results {
		if r.Document != nil {
			docs = append(docs, r.Document)
		}
	}
	resolution, resolveDiag := resolve.Resolve(docs)
	return &Set{Documents: results, Resolution: resolution, ResolveDiag: resolveDiag}, nil
}

func (b *Batch) compileOne(ctx context.Context, path string) *DocumentResult {
	res := &DocumentResult{Path: path, Diagnostics: &diag.Bag{}}
	log := b.log.WithField("document", path)

	info, err := os.Stat(path)
	if err != nil {
		res.Diagnostics.Fatalf(source.Span{}, "compile.stat-failed", "cannot stat %q: %v", path, err)
		return res
	}

	if doc, ok := b.trySkip(path, info.ModTime()); ok {
		log.Debug("skipped: source and direct imports unchanged")
		res.Document = doc
		res.Skipped = true
		return res
	}

	content, err := os.ReadFile(path)
	if err != nil {
		res.Diagnostics.Fatalf(source.Span{}, "compile.read-failed", "cannot read %q: %v", path, err)
		return res
	}

	sources := source.NewStack()
	src := sources.PushFile(path, content)

	// Kernels are never shared across documents; every worker builds its
	// own host and rule registry.
	host := script.NewHost(script.NewFacade())
	reg := parser.BuildRegistry(host)

	doc, diags := parser.Compile(reg, host, src, sources, log)
	res.Document = doc
	res.Diagnostics = diags
	if diags.HasFatal() {
		return res
	}

	if b.post != nil {
		b.post(ctx, doc, diags)
	}

	if b.store != nil {
		if err := b.store.PutManifest(path, time.Now(), buildManifest(doc, sources)); err != nil {
			diags.Warningf(source.Span{Source: src}, "cache.manifest-failed", "recording compile manifest: %v", err)
		}
	}
	return res
}

// trySkip applies the directory-mode skip rule: the document may be skipped when
// its mtime and every direct import's mtime are at or before the
// manifest's compile time. A skipped document is reconstructed from the
// manifest as a reference/navigation stub so the resolver still sees its
// definitions without the compile.
func (b *Batch) trySkip(path string, mtime time.Time) (*tree.Document, bool) {
	if b.store == nil || b.force {
		return nil, false
	}
	m, compiledAt, ok, err := b.store.GetManifest(path)
	if err != nil || !ok {
		return nil, false
	}
	if mtime.After(compiledAt) {
		return nil, false
	}
	for _, imp := range m.Imports {
		info, err := os.Stat(imp)
		if err != nil || info.ModTime().After(compiledAt) {
			return nil, false
		}
	}
	return stubDocument(path, m), true
}

func buildManifest(doc *tree.Document, sources *source.Stack) *cache.DocumentManifest {
	m := &cache.DocumentManifest{
		OutputName: doc.OutputName,
		References: map[string]cache.ManifestRef{},
		Navigation: map[string]string{
			"title":       doc.Navigation.Title,
			"previous":    doc.Navigation.Previous,
			"category":    doc.Navigation.Category,
			"subcategory": doc.Navigation.Subcategory,
		},
	}
	for name, ref := range doc.References {
		m.References[name] = cache.ManifestRef{ElementID: ref.ElementID, Kind: int(ref.Kind)}
	}
	tree.Walk(doc.Root, func(e *tree.Element) {
		if e.Kind != tree.KindReference {
			return
		}
		m.Usages = append(m.Usages, cache.ManifestUsage{
			Ref:    tree.Attr[string](e, "ref"),
			Doc:    tree.Attr[string](e, "doc"),
			AnyDoc: tree.Attr[bool](e, "any_doc"),
		})
	})
	for _, src := range sources.All() {
		if src.Kind == source.KindImport {
			m.Imports = append(m.Imports, src.Name)
		}
	}
	return m
}

// stubDocument rebuilds just enough of a skipped document for the
// resolver: its identity, reference definitions, recorded usage sites
// and navigation hints. Rebuilding the usage sites means a definition
// removed elsewhere in the set is still diagnosed against this document
// without recompiling it.
func stubDocument(path string, m *cache.DocumentManifest) *tree.Document {
	sources := source.NewStack()
	src := sources.PushFile(path, nil)
	doc := tree.NewDocument(src)
	doc.OutputName = m.OutputName
	for name, ref := range m.References {
		doc.DefineReference(&tree.Reference{
			Name:      name,
			Kind:      tree.Kind(ref.Kind),
			ElementID: ref.ElementID,
		})
	}
	for _, u := range m.Usages {
		el := tree.NewElement(tree.KindReference, source.Span{Source: src}, tree.ContainLeaf)
		el.SetAttr("ref", u.Ref)
		if u.Doc != "" {
			el.SetAttr("doc", u.Doc)
		}
		if u.AnyDoc {
			el.SetAttr("any_doc", true)
		}
		doc.Root.AppendChild(el)
	}
	doc.Navigation = tree.Navigation{
		Title:       m.Navigation["title"],
		Previous:    m.Navigation["previous"],
		Category:    m.Navigation["category"],
		Subcategory: m.Navigation["subcategory"],
	}
	doc.Seal()
	return doc
}
