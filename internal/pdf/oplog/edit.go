package oplog

import "fmt"

// Mutation changes an existing operation in place. Only the fields that are
// set are applied.
type Mutation struct {
	ID      ID      `json:"id" yaml:"id"`
	Checked *bool   `json:"checked,omitempty" yaml:"checked,omitempty"`
	Rect    *Rect   `json:"rect,omitempty" yaml:"rect,omitempty"`
	Text    *string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Edit is a whole scripted action: new operations followed by mutations.
// A Delete operation removes its targets.
type Edit struct {
	Kind       string      `json:"kind"`
	Operations []Operation `json:"operations,omitempty"`
	Mutations  []Mutation  `json:"mutations,omitempty"`
}

// Apply runs e as one action. Either every step succeeds and the action is
// committed, or the action is aborted and the log is left as it was.
// It returns the IDs of the operations the action added.
func (l *Log) Apply(e Edit) ([]ID, error) {
	kind := e.Kind
	if kind == "" {
		kind = "edit"
	}
	if err := l.Begin(kind); err != nil {
		return nil, err
	}

	added, err := l.applySteps(e)
	if err != nil {
		l.Abort()
		return nil, err
	}
	if !l.Commit() {
		return nil, ErrEmptyAction
	}
	return added, nil
}

func (l *Log) applySteps(e Edit) ([]ID, error) {
	var added []ID
	for i, op := range e.Operations {
		if del, ok := op.Payload.(Delete); ok {
			if err := l.Remove(del.TargetIDs...); err != nil {
				return nil, fmt.Errorf("operation %d: %w", i, err)
			}
			continue
		}
		id, err := l.Add(op.Page, op.Rect, op.Payload)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		added = append(added, id)
	}

	for i, m := range e.Mutations {
		if m.Checked == nil && m.Rect == nil && m.Text == nil {
			return nil, fmt.Errorf("mutation %d: %w: nothing to change", i, ErrInvalidPayload)
		}
		if m.Checked != nil {
			if err := l.SetCheckboxState(m.ID, *m.Checked); err != nil {
				return nil, fmt.Errorf("mutation %d: %w", i, err)
			}
		}
		if m.Rect != nil {
			if err := l.UpdateGeometry(m.ID, *m.Rect); err != nil {
				return nil, fmt.Errorf("mutation %d: %w", i, err)
			}
		}
		if m.Text != nil {
			if err := l.UpdateText(m.ID, *m.Text); err != nil {
				return nil, fmt.Errorf("mutation %d: %w", i, err)
			}
		}
	}
	return added, nil
}
