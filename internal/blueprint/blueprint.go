// Package blueprint holds the canonical workflow graphs shipped with the
// binary. Each graph is a YAML document under definitions/ and is validated
// when loaded; an invalid graph never reaches the provisioner.
package blueprint

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// Default is the blueprint provisioned when configuration names none.
const Default = "v2"

var files = map[string]string{
	"v1": "definitions/request_standard_v1.yaml",
	"v2": "definitions/request_standard_v2.yaml",
}

// Blueprint is the static shape of one workflow graph.
type Blueprint struct {
	Key         string       `yaml:"key"`
	Name        string       `yaml:"name"`
	TargetType  string       `yaml:"target_type"`
	States      []State      `yaml:"states"`
	Transitions []Transition `yaml:"transitions"`
}

// State is a blueprint state. Status is empty when entering the state leaves
// the request status untouched.
type State struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Order    int    `yaml:"order"`
	Initial  bool   `yaml:"initial"`
	Terminal bool   `yaml:"terminal"`
	Status   string `yaml:"status"`
}

// Transition is a blueprint edge.
type Transition struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Action     string `yaml:"action"`
	Permission string `yaml:"permission"`
}

// ValidationError lists every problem found in a blueprint.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid blueprint: %s", strings.Join(e.Problems, "; "))
}

// Names returns the embedded blueprint names in sorted order.
func Names() []string {
	out := make([]string, 0, len(files))
	for name := range files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load decodes and validates the embedded blueprint with the given name.
func Load(name string) (*Blueprint, error) {
	path, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("unknown blueprint %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	data, err := definitions.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint %q: %w", name, err)
	}
	bp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("blueprint %q: %w", name, err)
	}
	return bp, nil
}

// Parse decodes a blueprint document, rejecting unknown fields, and validates it.
func Parse(data []byte) (*Blueprint, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var bp Blueprint
	if err := dec.Decode(&bp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty blueprint document")
		}
		return nil, fmt.Errorf("decoding blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Validate checks the structural invariants of the graph: transition
// endpoints exist, exactly one initial state, terminal states have no
// outgoing transitions and (from, action) pairs are unique.
func (b *Blueprint) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if b.Key == "" {
		addf("key is required")
	}
	if b.TargetType == "" {
		addf("target_type is required")
	}
	if len(b.States) == 0 {
		addf("at least one state is required")
	}

	states := make(map[string]State, len(b.States))
	initial := 0
	for _, s := range b.States {
		if s.Code == "" {
			addf("state with empty code")
			continue
		}
		if _, dup := states[s.Code]; dup {
			addf("duplicate state %q", s.Code)
		}
		states[s.Code] = s
		if s.Initial {
			initial++
		}
	}
	if len(b.States) > 0 && initial != 1 {
		addf("expected exactly one initial state, found %d", initial)
	}

	type edge struct{ from, action string }
	seen := make(map[edge]bool, len(b.Transitions))
	for i, t := range b.Transitions {
		if t.Action == "" {
			addf("transition %d has no action", i)
		}
		from, ok := states[t.From]
		if !ok {
			addf("transition %s references unknown state %q", t.Action, t.From)
		}
		if _, ok := states[t.To]; !ok {
			addf("transition %s references unknown state %q", t.Action, t.To)
		}
		if ok && from.Terminal {
			addf("terminal state %q has outgoing transition %s", t.From, t.Action)
		}
		k := edge{from: t.From, action: t.Action}
		if seen[k] {
			addf("duplicate transition %s from %q", t.Action, t.From)
		}
		seen[k] = true
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Outgoing returns the transitions leaving the given state, in blueprint order.
func (b *Blueprint) Outgoing(code string) []Transition {
	var out []Transition
	for _, t := range b.Transitions {
		if t.From == code {
			out = append(out, t)
		}
	}
	return out
}
