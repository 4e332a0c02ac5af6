package merge

import (
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
)

// standardFonts are the base 14 fonts every reader provides without embedding
var standardFonts = map[string]bool{
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// dedupFonts folds standard Type1 font dictionaries with identical content
// onto the lowest numbered copy and rewrites every reference to the others.
// The orphaned copies are left for Prune. It returns the number folded.
func dedupFonts(g *custom.Graph) int {
	canonicalIDs := make(map[[blake2b.Size256]byte]custom.ObjectID)
	replace := make(map[custom.ObjectID]custom.ObjectID)

	for _, id := range g.IDs() {
		obj, _ := g.Object(id)
		font, ok := obj.(*custom.Dictionary)
		if !ok || !isStandardFont(font) {
			continue
		}
		sum := blake2b.Sum256(custom.Encode(canonical(font)))
		if first, seen := canonicalIDs[sum]; seen {
			replace[id] = first
			continue
		}
		canonicalIDs[sum] = id
	}
	if len(replace) == 0 {
		return 0
	}

	remap := func(id custom.ObjectID) (custom.ObjectID, bool) {
		if to, ok := replace[id]; ok {
			return to, true
		}
		return id, true
	}
	for _, id := range g.IDs() {
		obj, _ := g.Object(id)
		g.Set(id, custom.RewriteRefs(obj, remap))
	}
	g.Trailer = custom.RewriteRefs(g.Trailer, remap).(*custom.Dictionary)
	return len(replace)
}

func isStandardFont(d *custom.Dictionary) bool {
	return d.GetName("Type") == "Font" &&
		d.GetName("Subtype") == "Type1" &&
		standardFonts[d.GetName("BaseFont")] &&
		!d.Has("FontDescriptor")
}

// canonical returns a copy of obj with dictionary keys sorted, so equal
// content always encodes to the same bytes
func canonical(obj custom.PDFObject) custom.PDFObject {
	switch v := obj.(type) {
	case *custom.Dictionary:
		keys := make([]string, 0, len(v.Keys))
		for _, key := range v.Keys {
			keys = append(keys, key.Value)
		}
		sort.Strings(keys)
		d := custom.NewDictionary()
		for _, key := range keys {
			d.Set(key, canonical(v.Get(key)))
		}
		return d
	case *custom.Array:
		arr := custom.NewArray()
		for _, elem := range v.Elements {
			arr.Add(canonical(elem))
		}
		return arr
	default:
		return custom.DeepCopy(obj)
	}
}
