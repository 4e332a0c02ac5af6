// Package merge combines several document graphs into one.
package merge

import (
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// MaxObjectNumber is the largest object number a conforming reader must accept
const MaxObjectNumber = 8388607

// Options controls a merge
type Options struct {
	// DedupFonts folds identical standard Type1 font dictionaries onto one object
	DedupFonts bool
}

// input is one validated source document
type input struct {
	graph     *custom.Graph
	pagesRoot custom.ObjectID
	pageCount int
	offset    int64
}

// Merge concatenates the page trees of docs in order. Each input is renumbered
// by the running total of object numbers placed before it, and a new Catalog
// and /Pages root adopt the inputs' page-tree roots as kids. The inputs'
// catalogs, and everything reachable only from them, are not carried over.
// The inputs are not modified.
func Merge(docs []*custom.Graph, opts Options) (*custom.Graph, error) {
	if len(docs) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "no documents to merge")
	}

	inputs := make([]input, len(docs))
	var offset int64
	for i, doc := range docs {
		if doc == nil {
			return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "document is nil").WithDocument(i)
		}
		if err := doc.Validate(); err != nil {
			return nil, atDocument(err, i)
		}
		pagesRoot, err := doc.PagesRoot()
		if err != nil {
			return nil, atDocument(err, i)
		}
		pageCount, err := doc.PageCount()
		if err != nil {
			return nil, atDocument(err, i)
		}

		inputs[i] = input{graph: doc, pagesRoot: pagesRoot, pageCount: pageCount, offset: offset}
		offset += doc.MaxObjectNumber()
		// Two more numbers are needed for the new Catalog and /Pages root
		if offset+2 > MaxObjectNumber {
			return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeIdentifierSpaceExhausted,
				"merged document needs %d object numbers, limit is %d", offset+2, MaxObjectNumber).WithDocument(i)
		}
	}

	out := custom.NewGraph()
	out.Version = docs[0].Version
	rootID := custom.ObjectID{Number: offset + 1}
	catalogID := custom.ObjectID{Number: offset + 2}

	kids := custom.NewArray()
	total := 0
	for _, in := range inputs {
		if in.graph.Version > out.Version {
			out.Version = in.graph.Version
		}
		graft(out, in)

		subtree, _ := out.Object(renumber(in.pagesRoot, in.offset))
		subtree.(*custom.Dictionary).Set("Parent", custom.NewRef(rootID))
		kids.Add(custom.NewRef(renumber(in.pagesRoot, in.offset)))
		total += in.pageCount
	}

	root := custom.NewDictionary()
	root.Set("Type", custom.NewName("Pages"))
	root.Set("Kids", kids)
	root.Set("Count", custom.NewInt(int64(total)))
	out.Set(rootID, root)

	catalog := custom.NewDictionary()
	catalog.Set("Type", custom.NewName("Catalog"))
	catalog.Set("Pages", custom.NewRef(rootID))
	out.Set(catalogID, catalog)
	out.Trailer.Set("Root", custom.NewRef(catalogID))

	if opts.DedupFonts {
		dedupFonts(out)
	}
	out.Prune()

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// graft copies every object reachable from the input's page tree into out,
// shifting object numbers by the input's offset
func graft(out *custom.Graph, in input) {
	reachable := make(map[custom.ObjectID]bool)
	for _, id := range in.graph.Reachable([]custom.ObjectID{in.pagesRoot}) {
		reachable[id] = true
	}
	remap := func(id custom.ObjectID) (custom.ObjectID, bool) {
		if !reachable[id] {
			return custom.ObjectID{}, false
		}
		return renumber(id, in.offset), true
	}

	for id := range reachable {
		obj, _ := in.graph.Object(id)
		out.Set(renumber(id, in.offset), custom.RewriteRefs(obj, remap))
	}
}

func renumber(id custom.ObjectID, offset int64) custom.ObjectID {
	return custom.ObjectID{Number: id.Number + offset}
}

// MergeBytes parses each input and merges them. A parse failure aborts the
// whole merge and the error names the failing input's index.
func MergeBytes(inputs [][]byte, opts Options) ([]byte, error) {
	docs := make([]*custom.Graph, len(inputs))
	for i, data := range inputs {
		g, err := custom.Parse(data)
		if err != nil {
			return nil, atDocument(err, i)
		}
		docs[i] = g
	}

	out, err := Merge(docs, opts)
	if err != nil {
		return nil, err
	}
	return custom.Serialize(out)
}

// atDocument records the input index on err
func atDocument(err error, index int) error {
	return pdferrors.WrapError(pdferrors.ErrorTypeInvalidStructure, err).WithDocument(index)
}
