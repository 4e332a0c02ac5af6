// Package oplog records edits to a document as operations grouped into
// atomic actions, with linear undo and redo.
package oplog

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// ID identifies an operation. IDs are assigned once and never reused within a log.
type ID uint64

// Kind names an operation variant on the wire
type Kind string

const (
	KindTextBox     Kind = "text_box"
	KindWhiteout    Kind = "whiteout"
	KindCheckbox    Kind = "checkbox"
	KindHighlight   Kind = "highlight"
	KindUnderline   Kind = "underline"
	KindReplaceText Kind = "replace_text"
	KindMove        Kind = "move"
	KindResize      Kind = "resize"
	KindDelete      Kind = "delete"
)

// Rect is a rectangle in authoring space: origin at the top-left of the
// page, y growing downward
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// rectWire also accepts width and height as spellings of w and h
type rectWire struct {
	X      float64  `json:"x" yaml:"x"`
	Y      float64  `json:"y" yaml:"y"`
	W      *float64 `json:"w" yaml:"w"`
	H      *float64 `json:"h" yaml:"h"`
	Width  *float64 `json:"width" yaml:"width"`
	Height *float64 `json:"height" yaml:"height"`
}

func (w rectWire) rect() (Rect, error) {
	width, err := eitherOf("w", w.W, "width", w.Width)
	if err != nil {
		return Rect{}, err
	}
	height, err := eitherOf("h", w.H, "height", w.Height)
	if err != nil {
		return Rect{}, err
	}
	return Rect{X: w.X, Y: w.Y, W: width, H: height}, nil
}

func eitherOf(short string, a *float64, long string, b *float64) (float64, error) {
	switch {
	case a != nil && b != nil:
		return 0, fmt.Errorf("%w: both %s and %s given", ErrInvalidGeometry, short, long)
	case a != nil:
		return *a, nil
	case b != nil:
		return *b, nil
	}
	return 0, nil
}

func (r *Rect) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var w rectWire
	if err := strictUnmarshal(data, &w); err != nil {
		return err
	}
	rect, err := w.rect()
	if err != nil {
		return err
	}
	*r = rect
	return nil
}

func (r *Rect) UnmarshalYAML(node *yaml.Node) error {
	var w rectWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	rect, err := w.rect()
	if err != nil {
		return err
	}
	*r = rect
	return nil
}

// Validate rejects non-finite coordinates and negative sizes
func (r Rect) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate in %v", ErrInvalidGeometry, r)
		}
	}
	if r.W < 0 || r.H < 0 {
		return fmt.Errorf("%w: negative size in %v", ErrInvalidGeometry, r)
	}
	return nil
}

// Color is an RGB triple with components in [0, 1]
type Color [3]float64

var (
	Black  = Color{0, 0, 0}
	White  = Color{1, 1, 1}
	Yellow = Color{1, 1, 0}
)

func (c Color) validate() error {
	for _, v := range c {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("%w: color component %v outside [0, 1]", ErrInvalidPayload, v)
		}
	}
	return nil
}

// Style is the text appearance of text-bearing operations. A zero FontSize
// means the export default.
type Style struct {
	FontSize float64
	Color    Color
}

func (s Style) validate() error {
	if s.FontSize < 0 || math.IsNaN(s.FontSize) || math.IsInf(s.FontSize, 0) {
		return fmt.Errorf("%w: font size %v", ErrInvalidPayload, s.FontSize)
	}
	return s.Color.validate()
}

// Payload is the kind-specific part of an operation. The set of
// implementations is closed.
type Payload interface {
	Kind() Kind
	validate() error
}

// TextBox draws text inside the rectangle, one line per '\n'
type TextBox struct {
	Text  string
	Style Style
}

// Whiteout covers the rectangle with an opaque fill
type Whiteout struct {
	Color Color
}

// Checkbox marks the rectangle with a check glyph when Checked
type Checkbox struct {
	Checked bool
}

// Highlight tints the rectangle with a translucent fill
type Highlight struct {
	Color   Color
	Opacity float64
}

// Underline draws a bar along the bottom edge of the rectangle
type Underline struct {
	Color     Color
	Thickness float64
}

// ReplaceText covers Original with a whiteout and draws Text over it
type ReplaceText struct {
	Original string
	Text     string
	Style    Style
}

// Move relocates the target operation to To
type Move struct {
	TargetID ID
	From, To Rect
}

// Resize changes the target operation's rectangle to To
type Resize struct {
	TargetID ID
	From, To Rect
}

// Delete removes the target operations. On a log it is carried out by Remove.
type Delete struct {
	TargetIDs []ID
}

func (TextBox) Kind() Kind     { return KindTextBox }
func (Whiteout) Kind() Kind    { return KindWhiteout }
func (Checkbox) Kind() Kind    { return KindCheckbox }
func (Highlight) Kind() Kind   { return KindHighlight }
func (Underline) Kind() Kind   { return KindUnderline }
func (ReplaceText) Kind() Kind { return KindReplaceText }
func (Move) Kind() Kind        { return KindMove }
func (Resize) Kind() Kind      { return KindResize }
func (Delete) Kind() Kind      { return KindDelete }

func (p TextBox) validate() error  { return p.Style.validate() }
func (p Whiteout) validate() error { return p.Color.validate() }
func (Checkbox) validate() error   { return nil }

func (p Highlight) validate() error {
	if !(p.Opacity >= 0 && p.Opacity <= 1) {
		return fmt.Errorf("%w: opacity %v outside [0, 1]", ErrInvalidPayload, p.Opacity)
	}
	return p.Color.validate()
}

func (p Underline) validate() error {
	if !(p.Thickness >= 0) || math.IsInf(p.Thickness, 0) {
		return fmt.Errorf("%w: thickness %v", ErrInvalidPayload, p.Thickness)
	}
	return p.Color.validate()
}

func (p ReplaceText) validate() error { return p.Style.validate() }

func (p Move) validate() error {
	if err := p.From.Validate(); err != nil {
		return err
	}
	return p.To.Validate()
}

func (p Resize) validate() error {
	if err := p.From.Validate(); err != nil {
		return err
	}
	return p.To.Validate()
}

func (p Delete) validate() error {
	if len(p.TargetIDs) == 0 {
		return fmt.Errorf("%w: delete names no operations", ErrInvalidPayload)
	}
	return nil
}

// Operation is one edit on one page
type Operation struct {
	ID      ID
	Page    int // 0-based
	Rect    Rect
	Payload Payload
}

// Kind returns the payload's kind
func (o Operation) Kind() Kind {
	if o.Payload == nil {
		return ""
	}
	return o.Payload.Kind()
}

// Target returns the operation a Move or Resize refers to
func (o Operation) Target() (ID, bool) {
	switch p := o.Payload.(type) {
	case Move:
		return p.TargetID, true
	case Resize:
		return p.TargetID, true
	}
	return 0, false
}

// Text returns the text drawn by a text-bearing operation
func (o Operation) Text() (string, bool) {
	switch p := o.Payload.(type) {
	case TextBox:
		return p.Text, true
	case ReplaceText:
		return p.Text, true
	}
	return "", false
}

// clone returns a copy that shares no slices with o
func (o Operation) clone() Operation {
	if d, ok := o.Payload.(Delete); ok {
		o.Payload = Delete{TargetIDs: append([]ID(nil), d.TargetIDs...)}
	}
	return o
}

func (o Operation) String() string {
	return fmt.Sprintf("%s#%d(page %d)", o.Kind(), o.ID, o.Page)
}
