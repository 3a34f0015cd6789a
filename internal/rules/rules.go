// Package rules holds the operator rewrite table: the fixed mapping from
// source-vocabulary operator identifiers to target-vocabulary identifiers.
//
// A Table is built once and never changes afterwards, so the prompt builder
// and the verifier can share one instance without locking.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/graphtran/internal"
)

//go:embed default.yaml
var defaultRules []byte

// Rule is one source → target pair.
type Rule struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

type document struct {
	Version int    `yaml:"version"`
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	Rules   []Rule `yaml:"rules"`
}

// Table is an immutable source → target operator mapping.
type Table struct {
	version int
	source  string
	target  string
	m       map[string]string
}

// Default returns the table embedded in the binary.
func Default() (*Table, error) {
	return Parse(defaultRules)
}

// Load reads a rule file in the same YAML layout as the embedded table.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &internal.NotFoundError{Kind: "rules", Path: path}
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse builds a table from YAML. Empty identifiers and duplicate sources
// are rejected.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return New(doc.Version, doc.Source, doc.Target, doc.Rules)
}

// New builds a table from an explicit list of pairs.
func New(version int, source, target string, pairs []Rule) (*Table, error) {
	m := make(map[string]string, len(pairs))
	for i, r := range pairs {
		src, tgt := strings.TrimSpace(r.Source), strings.TrimSpace(r.Target)
		if src == "" || tgt == "" {
			return nil, fmt.Errorf("rule %d: source and target are required", i)
		}
		if prev, dup := m[src]; dup {
			return nil, fmt.Errorf("rule %d: duplicate source %q (already mapped to %q)", i, src, prev)
		}
		m[src] = tgt
	}
	return &Table{version: version, source: source, target: target, m: m}, nil
}

// Lookup returns the target operator for src.
func (t *Table) Lookup(src string) (string, bool) {
	tgt, ok := t.m[src]
	return tgt, ok
}

// Contains reports whether src has a mapping.
func (t *Table) Contains(src string) bool {
	_, ok := t.m[src]
	return ok
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.m)
}

// Version is the data version declared by the rule file.
func (t *Table) Version() int {
	return t.version
}

// SourceVocabulary names the vocabulary of the rule keys, e.g. "PyTorch".
func (t *Table) SourceVocabulary() string {
	return t.source
}

// TargetVocabulary names the vocabulary of the rule values, e.g. "TTNN".
func (t *Table) TargetVocabulary() string {
	return t.target
}

// Pairs returns a copy of all rules sorted by source identifier.
func (t *Table) Pairs() []Rule {
	out := make([]Rule, 0, len(t.m))
	for src, tgt := range t.m {
		out = append(out, Rule{Source: src, Target: tgt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Reference renders the table as plain text for use as prompt context.
func (t *Table) Reference() string {
	var sb strings.Builder
	sb.WriteString("Required operator mappings (source -> target):\n")
	for _, r := range t.Pairs() {
		fmt.Fprintf(&sb, "%s -> %s\n", r.Source, r.Target)
	}
	return sb.String()
}
