package oplog

import (
	"fmt"
	"slices"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// State errors. They are expected during normal interaction and leave the log unchanged.
var (
	ErrActionPending   = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidState, "an action is already pending")
	ErrNoPendingAction = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidState, "no action is pending")
	ErrNothingToUndo   = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidState, "nothing to undo")
	ErrNothingToRedo   = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidState, "nothing to redo")
	ErrEmptyAction     = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidState, "action recorded no changes")
)

// Reference errors, for requests naming something that does not exist or does not fit.
var (
	ErrUnknownOperation = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "no such operation")
	ErrWrongKind        = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "operation has the wrong kind")
	ErrInvalidGeometry  = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "invalid geometry")
	ErrInvalidPayload   = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "invalid payload")
)

// ActionState is the life cycle position of an action
type ActionState int

const (
	Pending ActionState = iota
	Committed
	Aborted
)

func (s ActionState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type changeKind int

const (
	changeInsert changeKind = iota
	changeRemove
	changeMutate
)

// change is one reversible step. index is the position in the operation
// list at the moment the change was made.
type change struct {
	kind   changeKind
	index  int
	before Operation // removed or pre-mutation value
	after  Operation // inserted or post-mutation value
}

// Action is a named group of changes that become visible together
type Action struct {
	Kind    string
	State   ActionState
	changes []change
}

// Len returns the number of recorded changes
func (a *Action) Len() int {
	return len(a.changes)
}

// Affected returns the IDs the action touches, in first-touched order
func (a *Action) Affected() []ID {
	var ids []ID
	for _, c := range a.changes {
		id := c.after.ID
		if c.kind == changeRemove {
			id = c.before.ID
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Log holds the committed operations in z-order together with the undo and
// redo stacks. While an action is pending its changes go to a staged copy
// of the operations, which replaces the committed list only on Commit.
// A Log is not safe for concurrent use.
type Log struct {
	ops     []Operation
	staged  []Operation
	pending *Action
	undo    []*Action
	redo    []*Action
	lastID  ID
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{}
}

// Begin opens a pending action. Actions do not nest.
func (l *Log) Begin(kind string) error {
	if l.pending != nil {
		return ErrActionPending
	}
	l.pending = &Action{Kind: kind, State: Pending}
	l.staged = cloneOps(l.ops)
	return nil
}

// Add records a new operation under the pending action and returns its ID
func (l *Log) Add(page int, rect Rect, payload Payload) (ID, error) {
	if l.pending == nil {
		return 0, ErrNoPendingAction
	}
	if page < 0 {
		return 0, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage, "page index %d is negative", page).WithPage(page + 1)
	}
	if err := rect.Validate(); err != nil {
		return 0, err
	}
	if payload == nil {
		return 0, fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if _, ok := payload.(Delete); ok {
		return 0, fmt.Errorf("%w: delete is recorded with Remove", ErrWrongKind)
	}
	if err := payload.validate(); err != nil {
		return 0, err
	}
	op := Operation{Page: page, Rect: rect, Payload: payload}
	if target, ok := op.Target(); ok {
		if l.indexOf(l.staged, target) < 0 {
			return 0, fmt.Errorf("%w: %s target %d", ErrUnknownOperation, payload.Kind(), target)
		}
	}

	l.lastID++
	op.ID = l.lastID
	op = op.clone()
	l.staged = append(l.staged, op)
	l.record(change{kind: changeInsert, index: len(l.staged) - 1, after: op})
	return op.ID, nil
}

// Remove deletes operations under the pending action. Each removal keeps its
// z-order position so undo puts the operation back where it was.
func (l *Log) Remove(ids ...ID) error {
	if l.pending == nil {
		return ErrNoPendingAction
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: no operations named", ErrInvalidPayload)
	}
	for _, id := range ids {
		if l.indexOf(l.staged, id) < 0 {
			return fmt.Errorf("%w: %d", ErrUnknownOperation, id)
		}
	}

	for _, id := range ids {
		i := l.indexOf(l.staged, id)
		if i < 0 {
			continue // named twice
		}
		l.record(change{kind: changeRemove, index: i, before: l.staged[i]})
		l.staged = slices.Delete(l.staged, i, i+1)
	}
	return nil
}

// SetCheckboxState changes a checkbox in place
func (l *Log) SetCheckboxState(id ID, checked bool) error {
	return l.mutate(id, func(op *Operation) error {
		if _, ok := op.Payload.(Checkbox); !ok {
			return fmt.Errorf("%w: %s is not a checkbox", ErrWrongKind, op)
		}
		op.Payload = Checkbox{Checked: checked}
		return nil
	})
}

// UpdateGeometry changes an operation's rectangle in place
func (l *Log) UpdateGeometry(id ID, rect Rect) error {
	if err := rect.Validate(); err != nil {
		return err
	}
	return l.mutate(id, func(op *Operation) error {
		op.Rect = rect
		return nil
	})
}

// UpdateText changes the text of a text box or text replacement in place
func (l *Log) UpdateText(id ID, text string) error {
	return l.mutate(id, func(op *Operation) error {
		switch p := op.Payload.(type) {
		case TextBox:
			p.Text = text
			op.Payload = p
		case ReplaceText:
			p.Text = text
			op.Payload = p
		default:
			return fmt.Errorf("%w: %s carries no text", ErrWrongKind, op)
		}
		return nil
	})
}

func (l *Log) mutate(id ID, fn func(op *Operation) error) error {
	if l.pending == nil {
		return ErrNoPendingAction
	}
	i := l.indexOf(l.staged, id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownOperation, id)
	}

	before := l.staged[i]
	after := before.clone()
	if err := fn(&after); err != nil {
		return err
	}
	l.staged[i] = after
	l.record(change{kind: changeMutate, index: i, before: before, after: after})
	return nil
}

func (l *Log) record(c change) {
	l.pending.changes = append(l.pending.changes, c)
}

// Commit makes the pending action visible, pushes it on the undo stack and
// clears the redo stack. It returns false when nothing is pending or the
// pending action recorded no changes; an empty action is discarded.
func (l *Log) Commit() bool {
	if l.pending == nil {
		return false
	}
	action := l.pending
	staged := l.staged
	l.pending, l.staged = nil, nil
	if len(action.changes) == 0 {
		action.State = Aborted
		return false
	}

	action.State = Committed
	l.ops = staged
	l.undo = append(l.undo, action)
	l.redo = nil
	return true
}

// Abort discards the pending action. Nothing it recorded ever becomes visible.
func (l *Log) Abort() bool {
	if l.pending == nil {
		return false
	}
	l.pending.State = Aborted
	l.pending, l.staged = nil, nil
	return true
}

// Undo reverses the most recent committed action and returns the IDs it touched
func (l *Log) Undo() ([]ID, error) {
	if l.pending != nil {
		return nil, ErrActionPending
	}
	if len(l.undo) == 0 {
		return nil, ErrNothingToUndo
	}

	action := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]
	for i := len(action.changes) - 1; i >= 0; i-- {
		l.ops = revert(l.ops, action.changes[i])
	}
	l.redo = append(l.redo, action)
	return action.Affected(), nil
}

// Redo re-applies the most recently undone action and returns the IDs it touched
func (l *Log) Redo() ([]ID, error) {
	if l.pending != nil {
		return nil, ErrActionPending
	}
	if len(l.redo) == 0 {
		return nil, ErrNothingToRedo
	}

	action := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	for _, c := range action.changes {
		l.ops = apply(l.ops, c)
	}
	l.undo = append(l.undo, action)
	return action.Affected(), nil
}

func apply(ops []Operation, c change) []Operation {
	switch c.kind {
	case changeInsert:
		return slices.Insert(ops, c.index, c.after.clone())
	case changeRemove:
		return slices.Delete(ops, c.index, c.index+1)
	default:
		ops[c.index] = c.after.clone()
		return ops
	}
}

func revert(ops []Operation, c change) []Operation {
	switch c.kind {
	case changeInsert:
		return slices.Delete(ops, c.index, c.index+1)
	case changeRemove:
		return slices.Insert(ops, c.index, c.before.clone())
	default:
		ops[c.index] = c.before.clone()
		return ops
	}
}

// Visible returns the committed operations in z-order. Pending changes are not included.
func (l *Log) Visible() []Operation {
	return cloneOps(l.ops)
}

// Get returns a committed operation
func (l *Log) Get(id ID) (Operation, bool) {
	i := l.indexOf(l.ops, id)
	if i < 0 {
		return Operation{}, false
	}
	return l.ops[i].clone(), true
}

// CanUndo reports whether Undo would succeed
func (l *Log) CanUndo() bool { return l.pending == nil && len(l.undo) > 0 }

// CanRedo reports whether Redo would succeed
func (l *Log) CanRedo() bool { return l.pending == nil && len(l.redo) > 0 }

// Pending reports whether an action is open
func (l *Log) Pending() bool { return l.pending != nil }

// Snapshot summarizes the log state
type Snapshot struct {
	Operations    []Operation `json:"operations"`
	UndoDepth     int         `json:"undo_depth"`
	RedoDepth     int         `json:"redo_depth"`
	PendingAction string      `json:"pending_action,omitempty"`
	LastID        ID          `json:"last_id"`
}

// Snapshot returns the visible operations and stack depths
func (l *Log) Snapshot() Snapshot {
	s := Snapshot{
		Operations: l.Visible(),
		UndoDepth:  len(l.undo),
		RedoDepth:  len(l.redo),
		LastID:     l.lastID,
	}
	if l.pending != nil {
		s.PendingAction = l.pending.Kind
	}
	return s
}

func (l *Log) indexOf(ops []Operation, id ID) int {
	return slices.IndexFunc(ops, func(op Operation) bool { return op.ID == id })
}

func cloneOps(ops []Operation) []Operation {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op.clone()
	}
	return out
}
