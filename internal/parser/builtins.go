package parser

import (
	"github.com/oxhq/nml/internal/env"
	"github.com/oxhq/nml/internal/registry"
	"github.com/oxhq/nml/internal/rules"
	"github.com/oxhq/nml/internal/script"
)

// BuildRegistry populates a fresh rule registry with every built-in rule
// family, plus the two script-invocation rules bound
// to host (nil host disables script forms entirely, used by tests that
// don't need kernels). Scripted custom styles register themselves
// into this same registry mid-parse via Driver.RegisterRule — nothing
// else needs to be added here for that to work.
func BuildRegistry(host *script.Host) *registry.Registry {
	reg := registry.New()

	builtins := []registry.Rule{
		rules.FencedCode{},
		rules.Section{},
		rules.ListItem{},
		rules.Table{},
		rules.Blockquote{},
		rules.Layout{},
		rules.InlineBacktick{},
		rules.MiniCode{},
		rules.Math{},
		rules.Graph{},
		rules.Media{},
		rules.SectionRef{},
		rules.MediaRef{},
		rules.RawPassthrough{},
		rules.VariableDef{},
		rules.PathVariableDef{},
		rules.VariableSubst{},
		rules.Import{},
		rules.StyleOverride{},
		rules.BlankLine{},
	}
	for _, r := range builtins {
		_ = reg.Register(r)
	}
	for _, t := range rules.BuiltinToggled {
		_ = reg.Register(t)
	}
	if host != nil {
		_ = reg.Register(rules.KernelDefinition{Host: host})
		_ = reg.Register(rules.ScriptEval{Host: host})
	}
	return reg
}

// NewStyleEnvironment creates a fresh per-document style environment with
// the built-in schemas and defaults pre-registered: style.section and
// style.block.quote (aliased as style.blockquote — two names for the
// same shape).
func NewStyleEnvironment() *env.Styles {
	s := env.NewStyles()

	sectionSchema := env.Schema{Keys: map[string]bool{"link_pos": true, "link": true}}
	s.RegisterSchema("style.section", sectionSchema)
	s.SetDefault("style.section", env.StyleValue{
		"link_pos": "After",
		"link":     []any{"", "", ""},
	})

	quoteSchema := env.Schema{Keys: map[string]bool{"author_pos": true, "format": true}}
	quoteDefault := env.StyleValue{
		"author_pos": "After",
		"format":     []any{"{author}", "{cite}", "{url}"},
	}
	s.RegisterSchema("style.block.quote", quoteSchema)
	s.SetDefault("style.block.quote", quoteDefault)
	s.RegisterSchema("style.blockquote", quoteSchema)
	s.SetDefault("style.blockquote", quoteDefault)

	return s
}
