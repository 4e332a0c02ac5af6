package oplog

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Operation
	}{
		{
			name: "text box with defaults",
			json: `{"id": 3, "kind": "text_box", "page": 1, "rect": {"x": 1, "y": 2, "w": 3, "h": 4}, "payload": {"text": "Hi"}}`,
			want: Operation{ID: 3, Page: 1, Rect: Rect{X: 1, Y: 2, W: 3, H: 4}, Payload: TextBox{Text: "Hi", Style: Style{Color: Black}}},
		},
		{
			name: "styled text",
			json: `{"kind": "text_box", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}, "payload": {"text": "a(b)", "font_size": 12, "color": [1, 0, 0]}}`,
			want: Operation{Rect: Rect{W: 1, H: 1}, Payload: TextBox{Text: "a(b)", Style: Style{FontSize: 12, Color: Color{1, 0, 0}}}},
		},
		{
			name: "whiteout without payload",
			json: `{"kind": "whiteout", "page": 0, "rect": {"x": 0, "y": 0, "w": 5, "h": 5}}`,
			want: Operation{Rect: Rect{W: 5, H: 5}, Payload: Whiteout{Color: White}},
		},
		{
			name: "checkbox",
			json: `{"kind": "checkbox", "page": 2, "rect": {"x": 0, "y": 0, "w": 10, "h": 10}, "payload": {"checked": true}}`,
			want: Operation{Page: 2, Rect: Rect{W: 10, H: 10}, Payload: Checkbox{Checked: true}},
		},
		{
			name: "highlight default opacity",
			json: `{"kind": "highlight", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}, "payload": {}}`,
			want: Operation{Rect: Rect{W: 1, H: 1}, Payload: Highlight{Color: Yellow, Opacity: DefaultHighlightOpacity}},
		},
		{
			name: "underline default thickness",
			json: `{"kind": "underline", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}}`,
			want: Operation{Rect: Rect{W: 1, H: 1}, Payload: Underline{Color: Black, Thickness: DefaultUnderlineWidth}},
		},
		{
			name: "move takes from the record rect",
			json: `{"kind": "move", "page": 0, "rect": {"x": 1, "y": 1, "w": 1, "h": 1}, "payload": {"target": 7, "to": {"x": 5, "y": 5, "w": 1, "h": 1}}}`,
			want: Operation{Rect: Rect{X: 1, Y: 1, W: 1, H: 1}, Payload: Move{TargetID: 7, From: Rect{X: 1, Y: 1, W: 1, H: 1}, To: Rect{X: 5, Y: 5, W: 1, H: 1}}},
		},
		{
			name: "width and height spelled out",
			json: `{"kind": "whiteout", "page": 0, "rect": {"x": 1, "y": 2, "width": 30, "height": 40}}`,
			want: Operation{Rect: Rect{X: 1, Y: 2, W: 30, H: 40}, Payload: Whiteout{Color: White}},
		},
		{
			name: "delete",
			json: `{"kind": "delete", "page": 0, "rect": {"x": 0, "y": 0, "w": 0, "h": 0}, "payload": {"targets": [1, 2]}}`,
			want: Operation{Payload: Delete{TargetIDs: []ID{1, 2}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord([]byte(tt.json))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeRecord mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRecord_RejectsForeignFields(t *testing.T) {
	inputs := map[string]string{
		"checkbox with font size": `{"kind": "checkbox", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}, "payload": {"checked": true, "font_size": 12}}`,
		"whiteout with text":      `{"kind": "whiteout", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}, "payload": {"text": "x"}}`,
		"unknown envelope field":  `{"kind": "checkbox", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}, "style": {}}`,
		"unknown kind":            `{"kind": "stamp", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}}`,
		"bad color":               `{"kind": "whiteout", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1}, "payload": {"color": [2, 0, 0]}}`,
		"empty delete":            `{"kind": "delete", "page": 0, "rect": {"x": 0, "y": 0, "w": 0, "h": 0}, "payload": {"targets": []}}`,
		"not json":                `{"kind": `,
		"w and width together":    `{"kind": "whiteout", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "width": 1, "h": 1}}`,
		"unknown rect field":      `{"kind": "whiteout", "page": 0, "rect": {"x": 0, "y": 0, "w": 1, "h": 1, "depth": 1}}`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(input))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestEncodeRecord_RoundTrip(t *testing.T) {
	ops := []Operation{
		{ID: 1, Page: 0, Rect: box, Payload: TextBox{Text: "x", Style: Style{FontSize: 9, Color: Color{0, 0, 1}}}},
		{ID: 2, Page: 1, Rect: box, Payload: ReplaceText{Original: "old", Text: "new", Style: Style{Color: Black}}},
		{ID: 3, Page: 0, Rect: box, Payload: Checkbox{Checked: true}},
		{ID: 4, Page: 0, Rect: box, Payload: Highlight{Color: Yellow, Opacity: 0.5}},
		{ID: 5, Page: 0, Rect: box, Payload: Resize{TargetID: 1, From: box, To: Rect{W: 1, H: 1}}},
	}

	data, err := json.Marshal(ops)
	require.NoError(t, err)

	decoded, err := DecodeRecords(data)
	require.NoError(t, err)
	if diff := cmp.Diff(ops, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	var viaUnmarshal []Operation
	require.NoError(t, json.Unmarshal(data, &viaUnmarshal))
	assert.Equal(t, decoded, viaUnmarshal)
}

func TestRect_YAMLSpellings(t *testing.T) {
	var m Mutation
	require.NoError(t, yaml.Unmarshal([]byte("id: 4\nrect: {x: 1, y: 2, width: 3, height: 4}\n"), &m))
	require.NotNil(t, m.Rect)
	assert.Equal(t, Rect{X: 1, Y: 2, W: 3, H: 4}, *m.Rect)

	var r Rect
	require.NoError(t, yaml.Unmarshal([]byte("{x: 1, y: 2, w: 3, h: 4}"), &r))
	assert.Equal(t, Rect{X: 1, Y: 2, W: 3, H: 4}, r)

	err := yaml.Unmarshal([]byte("{h: 1, height: 2}"), &r)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}
