package env

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StyleValue is a JSON-typed record: the parsed body of an
// `@@style.key = { ...json... }` override.
type StyleValue map[string]any

// Schema describes the keys a given element kind's style record supports.
// Unknown keys in a StyleValue produce warnings, not errors — style.section
// and style.block.quote (aka style.blockquote) are declared via
// RegisterSchema by parser.NewStyleEnvironment.
type Schema struct {
	Keys map[string]bool
}

// Styles is a document's style environment: a mapping from dotted style key
// (e.g. "style.section") to its JSON-typed record, layered over defaults.
type Styles struct {
	defaults map[string]StyleValue
	override map[string]StyleValue
	schemas  map[string]Schema
}

// NewStyles creates a style environment with no overrides and no schemas
// registered; parser.NewStyleEnvironment registers the built-in schemas
// on each document's style environment.
func NewStyles() *Styles {
	return &Styles{
		defaults: map[string]StyleValue{},
		override: map[string]StyleValue{},
		schemas:  map[string]Schema{},
	}
}

// RegisterSchema declares the valid keys for a dotted style path. Called
// once per style key when a document's style environment is created.
func (s *Styles) RegisterSchema(styleKey string, schema Schema) {
	s.schemas[styleKey] = schema
}

// SetDefault installs a built-in default for a style key, used when no
// @@style override has been applied.
func (s *Styles) SetDefault(styleKey string, value StyleValue) {
	s.defaults[styleKey] = value
}

// Set applies an @@style.key = { ... } override, parsed from raw JSON text.
// Keys absent from the registered schema (if any) produce a warning,
// returned to the caller to attach to a diagnostic; parsing failure
// returns an error.
func (s *Styles) Set(styleKey, rawJSON string) ([]string, error) {
	var value StyleValue
	if err := json.Unmarshal([]byte(rawJSON), &value); err != nil {
		return nil, fmt.Errorf("env: invalid style JSON for %q: %w", styleKey, err)
	}
	var warnings []string
	if schema, ok := s.schemas[styleKey]; ok {
		for k := range value {
			if !schema.Keys[k] {
				warnings = append(warnings, fmt.Sprintf("unknown style key %q for %q", k, styleKey))
			}
		}
	}
	s.override[styleKey] = value
	return warnings, nil
}

// Resolve returns the effective style record for a key: the default,
// overlaid with any override fields (shallow merge — override wins per key).
func (s *Styles) Resolve(styleKey string) StyleValue {
	out := StyleValue{}
	for k, v := range s.defaults[styleKey] {
		out[k] = v
	}
	for k, v := range s.override[styleKey] {
		out[k] = v
	}
	return out
}

// Canonical produces a deterministic JSON encoding of a StyleValue (keys
// sorted), used both for stable test output and as an input to cache
// fingerprinting when a style record feeds a cached render step.
func Canonical(v StyleValue) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b, _ := json.Marshal(orderedMap{keys: keys, values: v})
	return string(b)
}

// orderedMap marshals a StyleValue with keys in a fixed order, since Go's
// map iteration order is randomized and fingerprints must be stable.
type orderedMap struct {
	keys   []string
	values StyleValue
}

func (o orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}
