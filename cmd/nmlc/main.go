// Command nmlc is the thin command-line entry point exercising the NML
// compilation core end to end (parse, cache, resolve, render) without
// the external collaborators kept out of scope (LSP transport,
// recursive directory walking, the real HTML/CSS renderer). Given a
// file it compiles one document; given a directory it compiles that
// directory's .nml files as a batch with a shared cache. The subprocess
// runners for latex2svg and dot live here, outside the core, wired into
// the cached render steps by contract only.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sirupsen/logrus"

	"github.com/oxhq/nml/internal/cache"
	"github.com/oxhq/nml/internal/compile"
	"github.com/oxhq/nml/internal/diag"
	"github.com/oxhq/nml/internal/parser"
	"github.com/oxhq/nml/internal/render"
	"github.com/oxhq/nml/internal/resolve"
	"github.com/oxhq/nml/internal/script"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

type config struct {
	input        string
	output       string
	cachePath    string
	forceRebuild bool
	verbose      bool
}

func main() {
	cfg, err := buildConfigFromFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "nmlc: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(cfg))
}

// buildConfigFromFlags parses the CLI surface: -i input, -o
// output, -d cache_path, --force-rebuild.
func buildConfigFromFlags(args []string) (*config, error) {
	fs := pflag.NewFlagSet("nmlc", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: nmlc -i input.nml|dir [-o output] [-d cache.db] [--force-rebuild]")
		fs.PrintDefaults()
	}

	input := fs.StringP("input", "i", "", "input .nml source or directory (required)")
	output := fs.StringP("output", "o", "", "output path (file mode: default stdout; directory mode: output directory)")
	cachePath := fs.StringP("cache", "d", "", "render cache database path (required in directory mode)")
	forceRebuild := fs.Bool("force-rebuild", false, "ignore any cache entries and recompute every render step")
	verbose := fs.BoolP("verbose", "v", false, "enable debug-level trace logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *input == "" {
		fs.Usage()
		return nil, fmt.Errorf("-i/--input is required")
	}
	return &config{
		input:        *input,
		output:       *output,
		cachePath:    *cachePath,
		forceRebuild: *forceRebuild,
		verbose:      *verbose,
	}, nil
}

func run(cfg *config) int {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.verbose {
		log.SetLevel(logrus.TraceLevel)
	}
	entry := logrus.NewEntry(log)

	info, err := os.Stat(cfg.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: %v\n", err)
		return 1
	}
	if info.IsDir() {
		return runDirectory(cfg, entry)
	}
	return runFile(cfg, entry)
}

// runFile compiles cfg.input, resolves it against itself as a
// single-document set, renders it, and returns the process exit code: 0
// on success, nonzero on fatal I/O or an unresolvable reference (the
// documented exit-code contract).
func runFile(cfg *config, entry *logrus.Entry) int {
	ctx := context.Background()

	var store *cache.Store
	if cfg.cachePath != "" {
		var err error
		store, err = cache.Open(cfg.cachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nmlc: fatal: opening cache: %v\n", err)
			return 1
		}
	}

	content, err := os.ReadFile(cfg.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: reading %q: %v\n", cfg.input, err)
		return 1
	}

	sources := source.NewStack()
	src := sources.PushFile(cfg.input, content)

	host := script.NewHost(script.NewFacade())
	reg := parser.BuildRegistry(host)

	doc, diags := parser.Compile(reg, host, src, sources, entry)
	prerendered := newSteps(store, cfg, entry).Prerender(ctx, doc, diags)
	printDiagnostics(diags)
	if diags.HasFatal() {
		return 1
	}

	result, resolveDiags := resolve.Resolve([]*tree.Document{doc})
	printDiagnostics(resolveDiags)
	if resolveDiags.HasErrors() {
		return 1
	}

	out, err := render.Sink{Prerendered: prerendered}.Render(doc, result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: rendering: %v\n", err)
		return 1
	}

	if cfg.output == "" {
		os.Stdout.Write(out)
		return 0
	}
	if err := os.WriteFile(cfg.output, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: writing %q: %v\n", cfg.output, err)
		return 1
	}
	return 0
}

// runDirectory compiles every .nml file directly under cfg.input as one
// batch over the shared cache, then resolves and renders the set. Only
// one directory level is read here; real recursive walking belongs to
// the external directory-mode driver.
func runDirectory(cfg *config, entry *logrus.Entry) int {
	if cfg.cachePath == "" {
		fmt.Fprintln(os.Stderr, "nmlc: fatal: directory mode requires a cache (-d)")
		return 1
	}
	store, err := cache.Open(cfg.cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: opening cache: %v\n", err)
		return 1
	}

	entries, err := os.ReadDir(cfg.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: reading %q: %v\n", cfg.input, err)
		return 1
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".nml") {
			paths = append(paths, filepath.Join(cfg.input, e.Name()))
		}
	}
	sort.Strings(paths)

	steps := newSteps(store, cfg, entry)
	batch := compile.New(
		compile.WithStore(store),
		compile.WithForceRebuild(cfg.forceRebuild),
		compile.WithLogger(entry),
		compile.WithPostCompile(func(ctx context.Context, doc *tree.Document, diags *diag.Bag) {
			steps.Prerender(ctx, doc, diags)
		}),
	)
	set, err := batch.Run(context.Background(), paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmlc: fatal: %v\n", err)
		return 1
	}

	outDir := cfg.output
	if outDir == "" {
		outDir = cfg.input
	}

	exit := 0
	for _, r := range set.Documents {
		printDiagnostics(r.Diagnostics)
		if r.Diagnostics.HasFatal() {
			exit = 1
		}
		if r.Document == nil || r.Skipped {
			continue
		}
		out, err := render.Sink{}.Render(r.Document, set.Resolution)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nmlc: fatal: rendering %q: %v\n", r.Path, err)
			exit = 1
			continue
		}
		target := filepath.Join(outDir, r.Document.OutputName+".html")
		if err := os.WriteFile(target, out, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "nmlc: fatal: writing %q: %v\n", target, err)
			exit = 1
		}
	}
	printDiagnostics(set.ResolveDiag)
	if set.ResolveDiag.HasErrors() {
		exit = 1
	}
	return exit
}

func newSteps(store *cache.Store, cfg *config, entry *logrus.Entry) *render.Steps {
	return render.NewSteps(store,
		render.WithTexRunner(texRunner()),
		render.WithDotRunner(dotRunner()),
		render.WithForceRebuild(cfg.forceRebuild),
		render.WithStepLogger(entry),
	)
}

// texRunner shells out per the LaTeX contract: TeX on stdin, SVG on
// stdout, parameters passed per-invocation, stderr carried into the
// error on nonzero exit. The tool itself comes from the document's
// tex.<env>.exec variable, defaulting to latex2svg on PATH.
func texRunner() render.Runner {
	return func(ctx context.Context, input []byte, params map[string]string) ([]byte, error) {
		tool := params["exec"]
		if tool == "" {
			tool = "latex2svg"
		}
		var args []string
		if v := params["fontsize"]; v != "" {
			args = append(args, "--fontsize="+v)
		}
		if v := params["preamble"]; v != "" {
			args = append(args, "--preamble="+v)
		}
		body := params["block_prepend"] + string(input)
		return runSubprocess(ctx, tool, args, []byte(body))
	}
}

// dotRunner shells out per the Graphviz contract: DOT on stdin, SVG on
// stdout, the layout engine selected per-invocation.
func dotRunner() render.Runner {
	return func(ctx context.Context, input []byte, params map[string]string) ([]byte, error) {
		args := []string{"-Tsvg"}
		if layout := params["layout"]; layout != "" && layout != "dot" {
			args = append(args, "-K"+layout)
		}
		return runSubprocess(ctx, "dot", args, input)
	}
}

func runSubprocess(ctx context.Context, tool string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", tool, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	return stdout.Bytes(), nil
}

func printDiagnostics(diags *diag.Bag) {
	for _, d := range diags.Sorted() {
		fmt.Fprintln(os.Stderr, d.String())
	}
}
