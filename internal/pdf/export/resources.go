package export

import (
	"bytes"
	"sort"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// exporter carries the objects shared by every page of one export
type exporter struct {
	graph *custom.Graph
	opts  Options

	fonts   map[string]custom.ObjectID
	gstates map[string]custom.ObjectID
	prefix  custom.ObjectID // "q" stream that opens a flattened page
}

// font returns the indirect font dictionary for a standard font, creating it on first use
func (e *exporter) font(baseFont string) custom.ObjectID {
	if id, ok := e.fonts[baseFont]; ok {
		return id
	}
	dict := custom.NewDictionary()
	dict.Set("Type", custom.NewName("Font"))
	dict.Set("Subtype", custom.NewName("Type1"))
	dict.Set("BaseFont", custom.NewName(baseFont))
	if baseFont != checkFont {
		dict.Set("Encoding", custom.NewName("WinAnsiEncoding"))
	}
	id := e.graph.Add(dict)
	if e.fonts == nil {
		e.fonts = make(map[string]custom.ObjectID)
	}
	e.fonts[baseFont] = id
	return id
}

// gstate returns the ExtGState object for a name produced by opacityState
func (e *exporter) gstate(name string, alpha float64) custom.ObjectID {
	if id, ok := e.gstates[name]; ok {
		return id
	}
	dict := custom.NewDictionary()
	dict.Set("Type", custom.NewName("ExtGState"))
	dict.Set("CA", custom.NewReal(alpha))
	dict.Set("ca", custom.NewReal(alpha))
	id := e.graph.Add(dict)
	if e.gstates == nil {
		e.gstates = make(map[string]custom.ObjectID)
	}
	e.gstates[name] = id
	return id
}

// addResources binds everything b refers to into res
func (e *exporter) addResources(res *custom.Dictionary, b *contentBuilder) error {
	if len(b.fonts) > 0 {
		fonts := directSubdict(e.graph, res, "Font")
		for _, baseFont := range sortedKeys(b.fonts) {
			if err := e.bind(fonts, fontResource(baseFont), e.font(baseFont)); err != nil {
				return err
			}
		}
	}
	if len(b.opacities) > 0 {
		states := directSubdict(e.graph, res, "ExtGState")
		for _, name := range sortedKeys(b.opacities) {
			if err := e.bind(states, name, e.gstate(name, b.opacities[name])); err != nil {
				return err
			}
		}
	}
	return nil
}

// bind sets sub[name] to a reference to id. An existing entry is kept when it
// describes the same object, as it does after an earlier export.
func (e *exporter) bind(sub *custom.Dictionary, name string, id custom.ObjectID) error {
	if !sub.Has(name) {
		sub.Set(name, custom.NewRef(id))
		return nil
	}
	have, err := e.graph.Resolve(sub.Get(name))
	if err != nil {
		sub.Set(name, custom.NewRef(id))
		return nil
	}
	want, _ := e.graph.Object(id)
	if !bytes.Equal(custom.Encode(have), custom.Encode(want)) {
		return pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure,
			"resource name /%s is already used for a different object", name)
	}
	return nil
}

// pageResources gives the page its own direct /Resources dictionary and returns it
func (e *exporter) pageResources(page custom.PageInfo) *custom.Dictionary {
	res := custom.NewDictionary()
	if existing, ok := e.graph.ResolveDict(page.Dict.Get("Resources")); ok {
		res = custom.DeepCopy(existing).(*custom.Dictionary)
	} else if existing, ok := e.graph.ResolveDict(page.Resources); ok {
		res = custom.DeepCopy(existing).(*custom.Dictionary)
	}
	page.Dict.Set("Resources", res)
	return res
}

// directSubdict replaces parent[key] with a direct copy and returns it
func directSubdict(g *custom.Graph, parent *custom.Dictionary, key string) *custom.Dictionary {
	sub := custom.NewDictionary()
	if existing, ok := g.ResolveDict(parent.Get(key)); ok {
		sub = custom.DeepCopy(existing).(*custom.Dictionary)
	}
	parent.Set(key, sub)
	return sub
}

// annotations returns a direct copy of the page's /Annots array
func (e *exporter) annotations(page custom.PageInfo) *custom.Array {
	resolved, err := e.graph.Resolve(page.Dict.Get("Annots"))
	if err == nil {
		if arr, ok := resolved.(*custom.Array); ok {
			return custom.DeepCopy(arr).(*custom.Array)
		}
	}
	return custom.NewArray()
}

// removeAnnotations drops the annotations an earlier overlay export added
// for the named operations
func (e *exporter) removeAnnotations(page custom.PageInfo, names map[string]bool) {
	if !page.Dict.Has("Annots") {
		return
	}
	annots := e.annotations(page)
	kept := custom.NewArray()
	for _, elem := range annots.Elements {
		if dict, ok := e.graph.ResolveDict(elem); ok && names[dict.GetString("NM")] {
			continue
		}
		kept.Add(elem)
	}
	if kept.Len() == annots.Len() {
		return
	}
	if kept.Len() == 0 {
		page.Dict.Remove("Annots")
		return
	}
	page.Dict.Set("Annots", kept)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
