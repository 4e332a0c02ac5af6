package oplog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is the wire form of an operation:
//
//	{"id": 3, "kind": "text_box", "page": 0, "rect": {"x": 72, "y": 72, "w": 200, "h": 20},
//	 "payload": {"text": "Hi", "font_size": 12, "color": [0, 0, 0]}}
type Record struct {
	ID      ID              `json:"id,omitempty"`
	Kind    Kind            `json:"kind"`
	Page    int             `json:"page"`
	Rect    Rect            `json:"rect"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type textWire struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size,omitempty"`
	Color    *Color  `json:"color,omitempty"`
}

type replaceWire struct {
	Original string  `json:"original,omitempty"`
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size,omitempty"`
	Color    *Color  `json:"color,omitempty"`
}

type fillWire struct {
	Color *Color `json:"color,omitempty"`
}

type checkboxWire struct {
	Checked bool `json:"checked"`
}

type highlightWire struct {
	Color   *Color   `json:"color,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
}

type underlineWire struct {
	Color     *Color  `json:"color,omitempty"`
	Thickness float64 `json:"thickness,omitempty"`
}

type geometryWire struct {
	Target ID    `json:"target"`
	From   *Rect `json:"from,omitempty"`
	To     Rect  `json:"to"`
}

type deleteWire struct {
	Targets []ID `json:"targets"`
}

// Defaults applied when a record leaves a field out
const (
	DefaultHighlightOpacity = 0.35
	DefaultUnderlineWidth   = 1.0
)

// DecodeRecord parses one wire record. Fields that do not belong to the
// record's kind are rejected.
func DecodeRecord(data []byte) (Operation, error) {
	var rec Record
	if err := strictUnmarshal(data, &rec); err != nil {
		return Operation{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return rec.Operation()
}

// Operation converts the record into an operation
func (rec Record) Operation() (Operation, error) {
	op := Operation{ID: rec.ID, Page: rec.Page, Rect: rec.Rect}
	payload := rec.Payload
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}

	decode := func(v any) error {
		if err := strictUnmarshal(payload, v); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidPayload, rec.Kind, err)
		}
		return nil
	}
	colorOr := func(c *Color, def Color) Color {
		if c == nil {
			return def
		}
		return *c
	}

	switch rec.Kind {
	case KindTextBox:
		var w textWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		op.Payload = TextBox{Text: w.Text, Style: Style{FontSize: w.FontSize, Color: colorOr(w.Color, Black)}}
	case KindReplaceText:
		var w replaceWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		op.Payload = ReplaceText{Original: w.Original, Text: w.Text,
			Style: Style{FontSize: w.FontSize, Color: colorOr(w.Color, Black)}}
	case KindWhiteout:
		var w fillWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		op.Payload = Whiteout{Color: colorOr(w.Color, White)}
	case KindCheckbox:
		var w checkboxWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		op.Payload = Checkbox{Checked: w.Checked}
	case KindHighlight:
		var w highlightWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		p := Highlight{Color: colorOr(w.Color, Yellow), Opacity: DefaultHighlightOpacity}
		if w.Opacity != nil {
			p.Opacity = *w.Opacity
		}
		op.Payload = p
	case KindUnderline:
		var w underlineWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		p := Underline{Color: colorOr(w.Color, Black), Thickness: w.Thickness}
		if p.Thickness == 0 {
			p.Thickness = DefaultUnderlineWidth
		}
		op.Payload = p
	case KindMove, KindResize:
		var w geometryWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		from := rec.Rect
		if w.From != nil {
			from = *w.From
		}
		if rec.Kind == KindMove {
			op.Payload = Move{TargetID: w.Target, From: from, To: w.To}
		} else {
			op.Payload = Resize{TargetID: w.Target, From: from, To: w.To}
		}
	case KindDelete:
		var w deleteWire
		if err := decode(&w); err != nil {
			return Operation{}, err
		}
		op.Payload = Delete{TargetIDs: w.Targets}
	default:
		return Operation{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, rec.Kind)
	}

	if err := op.Payload.validate(); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// EncodeRecord returns the wire form of op
func EncodeRecord(op Operation) ([]byte, error) {
	rec, err := ToRecord(op)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// ToRecord converts op into its wire record
func ToRecord(op Operation) (Record, error) {
	rec := Record{ID: op.ID, Kind: op.Kind(), Page: op.Page, Rect: op.Rect}

	var w any
	switch p := op.Payload.(type) {
	case TextBox:
		w = textWire{Text: p.Text, FontSize: p.Style.FontSize, Color: &p.Style.Color}
	case ReplaceText:
		w = replaceWire{Original: p.Original, Text: p.Text, FontSize: p.Style.FontSize, Color: &p.Style.Color}
	case Whiteout:
		w = fillWire{Color: &p.Color}
	case Checkbox:
		w = checkboxWire{Checked: p.Checked}
	case Highlight:
		w = highlightWire{Color: &p.Color, Opacity: &p.Opacity}
	case Underline:
		w = underlineWire{Color: &p.Color, Thickness: p.Thickness}
	case Move:
		w = geometryWire{Target: p.TargetID, From: &p.From, To: p.To}
	case Resize:
		w = geometryWire{Target: p.TargetID, From: &p.From, To: p.To}
	case Delete:
		w = deleteWire{Targets: p.TargetIDs}
	default:
		return Record{}, fmt.Errorf("%w: operation %d has no payload", ErrInvalidPayload, op.ID)
	}

	payload, err := json.Marshal(w)
	if err != nil {
		return Record{}, err
	}
	rec.Payload = payload
	return rec, nil
}

// MarshalJSON encodes the operation as a wire record
func (o Operation) MarshalJSON() ([]byte, error) {
	return EncodeRecord(o)
}

// UnmarshalJSON decodes a wire record
func (o *Operation) UnmarshalJSON(data []byte) error {
	op, err := DecodeRecord(data)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// DecodeRecords parses a JSON array of wire records
func DecodeRecords(data []byte) ([]Operation, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	ops := make([]Operation, 0, len(raw))
	for i, r := range raw {
		op, err := DecodeRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
