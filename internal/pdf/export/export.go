// Package export writes a document together with its committed operations,
// either as annotations layered over the pages or burned into the page content.
package export

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
)

// Mode selects how operations reach the output
type Mode int

const (
	// ModeOverlay adds one annotation per operation; the page content is untouched
	ModeOverlay Mode = iota
	// ModeFlatten draws the operations into the page content and drops their annotations
	ModeFlatten
)

func (m Mode) String() string {
	if m == ModeFlatten {
		return "flatten"
	}
	return "overlay"
}

// ParseMode maps "overlay" or "flatten" to a mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "overlay":
		return ModeOverlay, nil
	case "flatten":
		return ModeFlatten, nil
	}
	return ModeOverlay, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidOperation, "unknown export mode %q", s)
}

// Options controls an export
type Options struct {
	Mode Mode
	// Scale is the number of authoring units per PDF point; 0 means 1
	Scale float64
	// Font is the standard font used for text; empty means Helvetica
	Font string
	// Tag goes into every annotation name, so a later export only replaces
	// annotations written for the same log. Empty names them op-<ID>.
	Tag string
}

const defaultFont = "Helvetica"

// textFonts are the standard fonts that can draw WinAnsi text
var textFonts = map[string]bool{
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
}

func (o Options) withDefaults() (Options, error) {
	if o.Scale == 0 {
		o.Scale = 1
	}
	if !(o.Scale > 0) || math.IsInf(o.Scale, 0) {
		return o, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidOperation, "scale %v must be positive", o.Scale)
	}
	if o.Font == "" {
		o.Font = defaultFont
	}
	if !textFonts[o.Font] {
		return o, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidOperation, "font %q is not a standard text font", o.Font)
	}
	return o, nil
}

// Export applies ops to a copy of g and serializes it. Any error leaves
// no output; g is never modified.
func Export(g *custom.Graph, ops []oplog.Operation, opts Options) ([]byte, error) {
	out, err := ExportGraph(g, ops, opts)
	if err != nil {
		return nil, err
	}
	return custom.Serialize(out)
}

// ExportGraph applies ops to a copy of g and returns the copy
func ExportGraph(g *custom.Graph, ops []oplog.Operation, opts Options) (*custom.Graph, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	out := g.Clone()
	pages, err := out.Pages()
	if err != nil {
		return nil, err
	}

	placed, err := prepare(Effective(ops), pages, opts)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(ops))
	for _, op := range ops {
		names[annotationName(opts.Tag, op.ID)] = true
	}

	e := &exporter{graph: out, opts: opts}
	byPage := make(map[int][]placedOp)
	for _, p := range placed {
		byPage[p.op.Page] = append(byPage[p.op.Page], p)
	}

	for i, page := range pages {
		e.removeAnnotations(page, names)
		if len(byPage[i]) == 0 {
			continue
		}
		var err error
		if opts.Mode == ModeFlatten {
			err = e.flattenPage(page, byPage[i])
		} else {
			err = e.overlayPage(page, byPage[i])
		}
		if err != nil {
			return nil, err
		}
	}

	out.Prune()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Transform maps an authoring-space rectangle on page to PDF user space.
// Authoring space has its origin at the top-left of the media box with y
// growing downward, in units of 1/scale points.
func Transform(page custom.PageInfo, r oplog.Rect, scale float64) rect.Rect {
	if scale == 0 {
		scale = 1
	}
	m := matrix.Scale(1/scale, -1/scale).Mul(matrix.Translate(page.MediaBox.LLx, page.MediaBox.URy))
	ax, ay := m.Apply(r.X, r.Y)
	bx, by := m.Apply(r.X+r.W, r.Y+r.H)
	return rect.Rect{
		LLx: min(ax, bx),
		LLy: min(ay, by),
		URx: max(ax, bx),
		URy: max(ay, by),
	}
}

// Effective folds Move and Resize operations into their targets and returns
// the operations that draw something, in z-order. A Move or Resize whose
// target is gone has no effect.
func Effective(ops []oplog.Operation) []oplog.Operation {
	index := make(map[oplog.ID]int)
	var drawn []oplog.Operation
	for _, op := range ops {
		switch p := op.Payload.(type) {
		case oplog.Move:
			if i, ok := index[p.TargetID]; ok {
				drawn[i].Rect = p.To
			}
		case oplog.Resize:
			if i, ok := index[p.TargetID]; ok {
				drawn[i].Rect = p.To
			}
		case oplog.Delete:
		default:
			index[op.ID] = len(drawn)
			drawn = append(drawn, op)
		}
	}
	return drawn
}

// placedOp is an operation with its rectangle in PDF space and its text encoded
type placedOp struct {
	op   oplog.Operation
	rect rect.Rect
	text []string // WinAnsi encoded lines
}

// prepare checks every operation against the document before anything is written
func prepare(ops []oplog.Operation, pages []custom.PageInfo, opts Options) ([]placedOp, error) {
	placed := make([]placedOp, 0, len(ops))
	for _, op := range ops {
		if op.Page < 0 || op.Page >= len(pages) {
			return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage,
				"operation %d targets page %d of a %d page document", op.ID, op.Page+1, len(pages)).WithPage(op.Page + 1)
		}
		if err := op.Rect.Validate(); err != nil {
			return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidOperation,
				"operation %d: %v", op.ID, err).WithPage(op.Page + 1).WithCause(err)
		}

		p := placedOp{op: op, rect: Transform(pages[op.Page], op.Rect, opts.Scale)}
		if text, ok := op.Text(); ok {
			lines, err := encodeLines(text)
			if err != nil {
				return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidEncoding,
					"operation %d: %v", op.ID, err).WithPage(op.Page + 1).WithCause(err)
			}
			p.text = lines
		}
		placed = append(placed, p)
	}
	return placed, nil
}

func annotationName(tag string, id oplog.ID) string {
	if tag == "" {
		return fmt.Sprintf("op-%d", id)
	}
	return fmt.Sprintf("op-%s-%d", tag, id)
}
