package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

// Pseudo-action kinds that step through history instead of recording an action
const (
	ActionUndo = "undo"
	ActionRedo = "redo"
)

// Script is an edit script: a document, the actions to apply to it in
// order, and where to write the result.
//
//	input: in.pdf
//	output: out.pdf
//	mode: flatten
//	actions:
//	  - kind: fill name
//	    operations:
//	      - {kind: text_box, page: 0, rect: {x: 72, y: 72, w: 200, h: 20}, payload: {text: "Hi"}}
//	  - kind: undo
type Script struct {
	Input   string   `yaml:"input"`
	Output  string   `yaml:"output"`
	Mode    string   `yaml:"mode"`
	Scale   float64  `yaml:"scale"`
	Font    string   `yaml:"font"`
	Actions []Action `yaml:"actions"`
}

// Action is one step of a script
type Action struct {
	Kind string
	Edit oplog.Edit
}

// IsUndo reports whether the step is an undo pseudo-action
func (a Action) IsUndo() bool { return a.Kind == ActionUndo }

// IsRedo reports whether the step is a redo pseudo-action
func (a Action) IsRedo() bool { return a.Kind == ActionRedo }

type actionYAML struct {
	Kind       string           `yaml:"kind"`
	Operations []map[string]any `yaml:"operations"`
	Mutations  []oplog.Mutation `yaml:"mutations"`
}

// UnmarshalYAML decodes operations through the JSON record codec so a
// script accepts exactly the records the MCP tools accept.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	var raw actionYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}

	a.Kind = raw.Kind
	a.Edit = oplog.Edit{Kind: raw.Kind, Mutations: raw.Mutations}
	for i, m := range raw.Operations {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("line %d: operation %d: %w", node.Line, i, err)
		}
		op, err := oplog.DecodeRecord(data)
		if err != nil {
			return fmt.Errorf("line %d: operation %d: %w", node.Line, i, err)
		}
		a.Edit.Operations = append(a.Edit.Operations, op)
	}
	return nil
}

// LoadScript reads and validates a script. Relative input and output paths
// are resolved against the script's directory; an output of "-" is kept.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read script: %w", err)
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cannot parse script %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", path, err)
	}

	base := filepath.Dir(path)
	s.Input = resolve(base, s.Input)
	if s.Output != "-" {
		s.Output = resolve(base, s.Output)
	}
	return &s, nil
}

// Validate checks the script without touching the files it names
func (s *Script) Validate() error {
	if s.Input == "" {
		return fmt.Errorf("input cannot be empty")
	}
	if s.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	if _, err := export.ParseMode(s.Mode); err != nil {
		return err
	}
	if s.Scale < 0 {
		return fmt.Errorf("scale must be positive, got %v", s.Scale)
	}

	for i, a := range s.Actions {
		switch {
		case a.IsUndo(), a.IsRedo():
			if len(a.Edit.Operations) > 0 || len(a.Edit.Mutations) > 0 {
				return fmt.Errorf("action %d: %s takes no operations or mutations", i, a.Kind)
			}
		case len(a.Edit.Operations) == 0 && len(a.Edit.Mutations) == 0:
			return fmt.Errorf("action %d (%q): nothing to do", i, a.Kind)
		}
	}
	return nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
