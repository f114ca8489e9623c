package render

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oxhq/nml/internal/cache"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/tree"
)

// Runner is the opaque byte-in/byte-out subprocess contract for a render
// step: input on stdin, rendered bytes on stdout, parameters passed
// per-invocation. The actual shelling-out to latex2svg and dot lives
// outside this module; callers inject it here.
type Runner func(ctx context.Context, input []byte, params map[string]string) ([]byte, error)

// Steps runs the expensive render steps (LaTeX, Graphviz, code
// highlighting) through the content-addressed cache: fingerprint the
// canonical input, return the cached bytes on a hit, invoke the injected
// subprocess runner on a miss, store the result. An environment change
// (any tex.<env>.* variable) alters every downstream fingerprint, so
// stale entries simply become unreachable.
type Steps struct {
	store     *cache.Store
	tex       Runner
	dot       Runner
	highlight Runner
	timeout   time.Duration
	force     bool
	log       *logrus.Entry
}

// StepOption configures a Steps pipeline.
type StepOption func(*Steps)

// WithTexRunner injects the LaTeX subprocess runner.
func WithTexRunner(r Runner) StepOption { return func(s *Steps) { s.tex = r } }

// WithDotRunner injects the Graphviz subprocess runner.
func WithDotRunner(r Runner) StepOption { return func(s *Steps) { s.dot = r } }

// WithHighlighter injects the code-highlight runner.
func WithHighlighter(r Runner) StepOption { return func(s *Steps) { s.highlight = r } }

// WithTimeout bounds each subprocess invocation; exceeding it yields a
// diagnostic on the affected element, never an abort.
func WithTimeout(d time.Duration) StepOption { return func(s *Steps) { s.timeout = d } }

// WithForceRebuild ignores existing cache entries and recomputes every
// step (the CLI's --force-rebuild). Results are still written back.
func WithForceRebuild(force bool) StepOption { return func(s *Steps) { s.force = force } }

// WithStepLogger sets the trace logger.
func WithStepLogger(log *logrus.Entry) StepOption { return func(s *Steps) { s.log = log } }

// NewSteps creates a render-step pipeline over store. store may be nil
// (single-file mode without -d), in which case every step runs uncached.
func NewSteps(store *cache.Store, opts ...StepOption) *Steps {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Steps{
		store:   store,
		timeout: 30 * time.Second,
		log:     logrus.NewEntry(discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// placeholder is what a failed external step contributes to the output in
// place of its rendered bytes; the failure itself is on the diagnostic bag.
var placeholder = []byte("<!-- render step failed -->")

// RenderMath renders a math/non-math LaTeX element through the cache. The
// fingerprint covers the canonical tuple: (kind, env fontsize, env preamble,
// env block_prepend, env exec, tex body).
func (s *Steps) RenderMath(ctx context.Context, vars *env.Variables, el *tree.Element, diags *diag.Bag) ([]byte, bool) {
	envName := tree.Attr[string](el, "env")
	if envName == "" {
		envName = "main"
	}
	kind := tree.Attr[string](el, "kind")
	body := tree.Attr[string](el, "body")
	params := map[string]string{
		"kind":          kind,
		"fontsize":      varValue(vars, "tex."+envName+".fontsize"),
		"preamble":      varValue(vars, "tex."+envName+".preamble"),
		"block_prepend": varValue(vars, "tex."+envName+".block_prepend"),
		"exec":          varValue(vars, "tex."+envName+".exec"),
	}
	fp := cache.FingerprintTex(kind, params["fontsize"], params["preamble"], params["block_prepend"], params["exec"], body)
	return s.run(ctx, cache.KindTex, fp, s.tex, []byte(body), params, el, diags, "tex")
}

// RenderGraph renders a Graphviz element through the cache. The
// fingerprint covers (layout, width, dot body).
func (s *Steps) RenderGraph(ctx context.Context, el *tree.Element, diags *diag.Bag) ([]byte, bool) {
	layout := tree.Attr[string](el, "prop.layout")
	if layout == "" {
		layout = "dot"
	}
	width := tree.Attr[string](el, "prop.width")
	fp := cache.FingerprintDot(layout, width, el.Text)
	params := map[string]string{"layout": layout, "width": width}
	return s.run(ctx, cache.KindDot, fp, s.dot, []byte(el.Text), params, el, diags, "dot")
}

// RenderCode highlights a fenced code block through the cache. The
// fingerprint covers (language, theme, body, line offset). With no
// highlighter injected the step is a silent no-op — highlighting and its
// theme loading are an external collaborator, not a required step.
func (s *Steps) RenderCode(ctx context.Context, vars *env.Variables, el *tree.Element, diags *diag.Bag) ([]byte, bool) {
	if s.highlight == nil {
		return nil, false
	}
	lang := tree.Attr[string](el, "lang")
	theme := varValue(vars, "code.theme")
	lineOffset := tree.Attr[int](el, "line_offset")
	fp := cache.FingerprintCode(lang, theme, el.Text, lineOffset)
	params := map[string]string{"language": lang, "theme": theme}
	return s.run(ctx, cache.KindCode, fp, s.highlight, []byte(el.Text), params, el, diags, "code")
}

// run is the shared hit/miss/store path: consult the cache, invoke the
// runner under the configured timeout on a miss, write the result back.
// Cache I/O failures and subprocess failures both reduce to diagnostics
// on the element; the second return is false when the bytes are the
// failure placeholder rather than a rendered result.
func (s *Steps) run(ctx context.Context, kind cache.Kind, fp string, runner Runner, input []byte, params map[string]string, el *tree.Element, diags *diag.Bag, step string) ([]byte, bool) {
	if s.store != nil && !s.force {
		b, ok, err := s.store.Get(kind, fp)
		if err != nil {
			diags.Warningf(el.Location, "cache.read-failed", "%s cache read failed: %v", step, err)
		} else if ok {
			s.log.WithFields(logrus.Fields{"step": step, "fingerprint": fp}).Trace("cache hit")
			return b, true
		}
	}

	if runner == nil {
		diags.Errorf(el.Location, step+".unavailable", "no %s renderer configured for this element", step)
		return placeholder, false
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := runner(runCtx, input, params)
	if err != nil {
		diags.Errorf(el.Location, step+".render-failed", "%s render step failed: %v", step, err)
		return placeholder, false
	}

	if s.store != nil {
		if err := s.store.Put(kind, fp, out); err != nil {
			diags.Warningf(el.Location, "cache.write-failed", "%s cache write failed: %v", step, err)
		}
	}
	return out, true
}

// Prerender walks a sealed document and runs every expensive render step
// it contains, returning a side table element id -> rendered bytes for
// the renderer to consume. Elements whose step failed map to the failure
// placeholder; the failures themselves are on diags.
func (s *Steps) Prerender(ctx context.Context, doc *tree.Document, diags *diag.Bag) map[int][]byte {
	out := map[int][]byte{}
	tree.Walk(doc.Root, func(e *tree.Element) {
		switch e.Kind {
		case tree.KindMath:
			b, _ := s.RenderMath(ctx, doc.Vars, e, diags)
			out[e.ID] = b
		case tree.KindGraph:
			b, _ := s.RenderGraph(ctx, e, diags)
			out[e.ID] = b
		case tree.KindCodeBlock:
			if b, ok := s.RenderCode(ctx, doc.Vars, e, diags); ok {
				out[e.ID] = b
			}
		}
	})
	return out
}

func varValue(vars *env.Variables, name string) string {
	if vars == nil {
		return ""
	}
	if v, ok := vars.Get(name); ok {
		return v.Value
	}
	return ""
}
