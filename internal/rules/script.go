package rules

import (
	"fmt"
	"strings"

	"github.com/oxhq/nml/internal/cursor"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/script"
	"github.com/oxhq/nml/internal/source"
	"github.com/oxhq/nml/internal/tree"
)

// KernelDefinition recognizes `@<kernel … >@`: an optional kernel name
// identifier immediately after `@<`, then source text appended to that
// kernel (default "main") as a definition block. It produces no text or
// elements; only side effects on the kernel's persistent state.
type KernelDefinition struct {
	Host *script.Host
}

func (KernelDefinition) Name() string  { return "kernel_definition" }
func (KernelDefinition) Priority() int { return 4 }

func (KernelDefinition) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (KernelDefinition) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.HasPrefixAt(offset, "@<") && indexFrom(c, ">@", offset+2) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (d KernelDefinition) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(2) // "@<"

	kernelName, code := readKernelNameAndBody(c, ">@")
	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}

	d.Host.Bind(ctx)
	if err := safeScriptCall(func() error { return d.Host.Define(kernelName, code) }); err != nil {
		ctx.Diagnostics().Errorf(span, "script.error", "kernel %q definition failed: %v", kernelName, err)
	}
	return nil, nil
}

// readKernelNameAndBody reads an optional leading identifier (the kernel
// name) on the block's opening line, then the remaining source up to
// closeDelim as the code body, consuming through closeDelim.
func readKernelNameAndBody(c *cursor.Cursor, closeDelim string) (name, code string) {
	probe := cursor.AtOffset(c.Source(), c.Pos())
	if n, ok := probe.Identifier(); ok {
		if b := probe.PeekAt(probe.Pos(), 1); len(b) > 0 && (b[0] == ' ' || b[0] == '\n') {
			name = n
			c.SeekTo(probe.Pos())
		}
	}
	bodyStart := c.Pos()
	closeOffset := indexFrom(c, closeDelim, bodyStart)
	if closeOffset < 0 {
		code = strings.TrimSpace(string(c.PeekAt(bodyStart, c.Len()-bodyStart)))
		c.SeekTo(c.Len())
		return name, code
	}
	code = strings.TrimSpace(string(c.PeekAt(bodyStart, closeOffset-bodyStart)))
	c.SeekTo(closeOffset + len(closeDelim))
	return name, code
}

// safeScriptCall recovers a panicking script call into an error, the
// boundary every script invocation crosses so a misbehaving kernel script
// never aborts the parse.
func safeScriptCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panic: %v", r)
		}
	}()
	return fn()
}

// ScriptEval recognizes the three `%<…>%` evaluation forms: plain
// `%< code >%` (ignore result), `%<" code >%` (eval-to-text, result
// emitted as literal text) and `%<! code >%` (eval-to-parse, result
// pushed as a new derived source for the parser to scan immediately). An
// optional `[kernel]` selects a non-default kernel: `%<[name]! code >%`.
type ScriptEval struct {
	Host *script.Host
}

func (ScriptEval) Name() string  { return "script_eval" }
func (ScriptEval) Priority() int { return 4 }

func (ScriptEval) Eligible(containerKind tree.Kind) bool {
	return containerKind != tree.KindCodeBlock
}

func (ScriptEval) Search(c *cursor.Cursor, from int) (int, bool) {
	for offset := from; offset < c.Len(); offset++ {
		if c.HasPrefixAt(offset, "%<") && indexFrom(c, ">%", offset+2) >= 0 {
			return offset, true
		}
	}
	return 0, false
}

func (e ScriptEval) Build(c *cursor.Cursor, ctx registry.Context) ([]*tree.Element, error) {
	start := c.Pos()
	c.Advance(2) // "%<"

	kernelName := ""
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 && b[0] == '[' {
		if closeBracket := indexFrom(c, "]", c.Pos()+1); closeBracket >= 0 {
			kernelName = string(c.PeekAt(c.Pos()+1, closeBracket-(c.Pos()+1)))
			c.SeekTo(closeBracket + 1)
		}
	}

	mode := "ignore"
	if b := c.PeekAt(c.Pos(), 1); len(b) > 0 {
		switch b[0] {
		case '"':
			mode = "text"
			c.Advance(1)
		case '!':
			mode = "parse"
			c.Advance(1)
		}
	}

	bodyStart := c.Pos()
	closeOffset := indexFrom(c, ">%", bodyStart)
	code := strings.TrimSpace(string(c.PeekAt(bodyStart, closeOffset-bodyStart)))
	c.SeekTo(closeOffset + 2)

	span := source.Span{Source: c.Source(), Start: start, End: c.Pos()}
	e.Host.Bind(ctx)

	switch mode {
	case "ignore":
		if err := safeScriptCall(func() error {
			_, err := e.Host.Eval(kernelName, code)
			return err
		}); err != nil {
			ctx.Diagnostics().Errorf(span, "script.error", "eval failed: %v", err)
		}
		return nil, nil

	case "text":
		var result string
		err := safeScriptCall(func() error {
			r, err := e.Host.EvalToString(kernelName, code)
			result = r
			return err
		})
		if err != nil {
			ctx.Diagnostics().Errorf(span, "script.error", "eval-to-text failed: %v", err)
			return nil, nil
		}
		openParagraph(ctx.Stack(), span)
		el := tree.NewElement(tree.KindText, span, tree.ContainLeaf)
		el.Text = result
		ctx.Stack().Top().AppendChild(el)
		return []*tree.Element{el}, nil

	default: // "parse"
		var result string
		err := safeScriptCall(func() error {
			r, err := e.Host.EvalToString(kernelName, code)
			result = r
			return err
		})
		if err != nil {
			ctx.Diagnostics().Errorf(span, "script.error", "eval-to-parse failed: %v", err)
			return nil, nil
		}
		openParagraph(ctx.Stack(), span)
		derived := ctx.Sources().PushScriptOutput(c.Source(), start, kernelName, []byte(result))
		ctx.Recurse(cursor.New(derived), len(result))
		return nil, nil
	}
}
