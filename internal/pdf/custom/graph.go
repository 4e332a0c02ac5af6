package custom

import (
	"fmt"
	"sort"

	"seehuhn.de/go/geom/rect"

	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// maxResolveDepth bounds reference-to-reference chains
const maxResolveDepth = 32

// inheritableKeys are the page attributes a page inherits from its ancestors
var inheritableKeys = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// defaultMediaBox is US Letter, used when no node in the chain defines one
var defaultMediaBox = rect.Rect{LLx: 0, LLy: 0, URx: 612, URy: 792}

// Graph is a parsed document: an arena of indirect objects addressed by ID.
// Objects refer to each other only through IndirectRef values, never by pointer.
type Graph struct {
	Version string
	Trailer *Dictionary
	objects map[ObjectID]PDFObject
	next    int64 // one above the highest number ever stored
}

// PageInfo describes one leaf of the page tree with its inherited attributes resolved
type PageInfo struct {
	ID        ObjectID
	Number    int // 1-based position in reading order
	MediaBox  rect.Rect
	CropBox   rect.Rect
	Rotate    int
	Resources PDFObject // as stored on the page or its nearest ancestor; nil if none
	Dict      *Dictionary
}

// NewGraph creates an empty graph with an empty trailer
func NewGraph() *Graph {
	return &Graph{
		Version: PDFVersion17,
		Trailer: NewDictionary(),
		objects: make(map[ObjectID]PDFObject),
	}
}

// Len returns the number of indirect objects
func (g *Graph) Len() int {
	return len(g.objects)
}

// Has reports whether id is defined
func (g *Graph) Has(id ObjectID) bool {
	_, ok := g.objects[id]
	return ok
}

// IDs returns every object ID in ascending order
func (g *Graph) IDs() []ObjectID {
	ids := make([]ObjectID, 0, len(g.objects))
	for id := range g.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Number != ids[j].Number {
			return ids[i].Number < ids[j].Number
		}
		return ids[i].Generation < ids[j].Generation
	})
	return ids
}

// MaxObjectNumber returns the highest object number in use, or 0 for an empty graph
func (g *Graph) MaxObjectNumber() int64 {
	var max int64
	for id := range g.objects {
		if id.Number > max {
			max = id.Number
		}
	}
	return max
}

// NextID returns the first object ID above every number the graph has
// held. Numbers freed by Delete or Prune are not handed out again.
func (g *Graph) NextID() ObjectID {
	return ObjectID{Number: max(g.next, 1)}
}

// Add stores obj under a fresh ID and returns it
func (g *Graph) Add(obj PDFObject) ObjectID {
	id := g.NextID()
	g.Set(id, obj)
	return id
}

// Set stores obj under id, replacing any previous value
func (g *Graph) Set(id ObjectID, obj PDFObject) {
	g.objects[id] = obj
	if id.Number >= g.next {
		g.next = id.Number + 1
	}
}

// Delete removes id from the graph
func (g *Graph) Delete(id ObjectID) {
	delete(g.objects, id)
}

// Object returns the object stored under id
func (g *Graph) Object(id ObjectID) (PDFObject, error) {
	obj, ok := g.objects[id]
	if !ok {
		return nil, pdferrors.NewPDFErrorWithLocation(pdferrors.ErrorTypeMissingObject,
			"unresolved reference", 0, id.Number, id.Generation)
	}
	return obj, nil
}

// Resolve follows indirect references until it reaches a direct object
func (g *Graph) Resolve(obj PDFObject) (PDFObject, error) {
	for depth := 0; depth < maxResolveDepth; depth++ {
		ref, ok := obj.(*IndirectRef)
		if !ok {
			return obj, nil
		}
		next, err := g.Object(ref.ObjectID)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeCircularReference, "reference chain too deep")
}

// ResolveDict resolves obj and returns it as a dictionary; a stream yields its dictionary
func (g *Graph) ResolveDict(obj PDFObject) (*Dictionary, bool) {
	resolved, err := g.Resolve(obj)
	if err != nil {
		return nil, false
	}
	switch v := resolved.(type) {
	case *Dictionary:
		return v, true
	case *Stream:
		return v.Dict, true
	}
	return nil, false
}

// Catalog returns the document catalog named by the trailer's /Root
func (g *Graph) Catalog() (ObjectID, *Dictionary, error) {
	rootID, ok := g.Trailer.GetRef("Root")
	if !ok {
		return ObjectID{}, nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "trailer has no /Root reference")
	}
	obj, ok := g.objects[rootID]
	if !ok {
		return ObjectID{}, nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "/Root object is missing").
			WithObject(rootID.Number, rootID.Generation)
	}
	catalog, ok := obj.(*Dictionary)
	if !ok || catalog.GetName("Type") != "Catalog" {
		return ObjectID{}, nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "/Root is not a Catalog dictionary").
			WithObject(rootID.Number, rootID.Generation)
	}
	return rootID, catalog, nil
}

// PagesRoot returns the ID of the root node of the page tree
func (g *Graph) PagesRoot() (ObjectID, error) {
	rootID, catalog, err := g.Catalog()
	if err != nil {
		return ObjectID{}, err
	}
	pagesID, ok := catalog.GetRef("Pages")
	if !ok || !g.Has(pagesID) {
		return ObjectID{}, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "catalog has no /Pages tree").
			WithObject(rootID.Number, rootID.Generation)
	}
	return pagesID, nil
}

// inherited carries the inheritable attributes down the page tree
type inherited map[string]PDFObject

// walkPages visits every leaf page in depth-first order. Cycles are detected
// with the set of nodes on the current path.
func (g *Graph) walkPages(visit func(id ObjectID, page *Dictionary, attrs inherited) error) error {
	rootID, err := g.PagesRoot()
	if err != nil {
		return err
	}

	onStack := make(map[ObjectID]bool)
	seen := make(map[ObjectID]bool)

	var walk func(id ObjectID, attrs inherited) error
	walk = func(id ObjectID, attrs inherited) error {
		if onStack[id] {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeCircularReference, "page tree contains a cycle").
				WithObject(id.Number, id.Generation)
		}
		if seen[id] {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "page tree node has more than one parent").
				WithObject(id.Number, id.Generation)
		}
		seen[id] = true

		obj, ok := g.objects[id]
		if !ok {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "page tree node is missing").
				WithObject(id.Number, id.Generation)
		}
		node, ok := obj.(*Dictionary)
		if !ok {
			return pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure, "page tree node is a %s, not a dictionary", obj.Type()).
				WithObject(id.Number, id.Generation)
		}

		local := make(inherited, len(inheritableKeys))
		for k, v := range attrs {
			local[k] = v
		}
		for _, key := range inheritableKeys {
			if node.Has(key) {
				local[key] = node.Get(key)
			}
		}

		nodeType := node.GetName("Type")
		if nodeType == "" {
			nodeType = "Page"
			if node.Has("Kids") {
				nodeType = "Pages"
			}
		}

		switch nodeType {
		case "Page":
			return visit(id, node, local)
		case "Pages":
			onStack[id] = true
			kids, _ := g.Resolve(node.Get("Kids"))
			kidArray, ok := kids.(*Array)
			if !ok {
				return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "/Pages node has no /Kids array").
					WithObject(id.Number, id.Generation)
			}
			for _, kid := range kidArray.Elements {
				ref, ok := kid.(*IndirectRef)
				if !ok {
					return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "page tree kid is not an indirect reference").
						WithObject(id.Number, id.Generation)
				}
				if err := walk(ref.ObjectID, local); err != nil {
					return err
				}
			}
			delete(onStack, id)
			return nil
		default:
			return pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure, "page tree node has unknown type /%s", nodeType).
				WithObject(id.Number, id.Generation)
		}
	}

	return walk(rootID, inherited{})
}

// TraversePageTree returns the page node IDs in reading order
func (g *Graph) TraversePageTree() ([]ObjectID, error) {
	var ids []ObjectID
	err := g.walkPages(func(id ObjectID, _ *Dictionary, _ inherited) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Pages returns every page with its inherited attributes resolved
func (g *Graph) Pages() ([]PageInfo, error) {
	var pages []PageInfo
	err := g.walkPages(func(id ObjectID, page *Dictionary, attrs inherited) error {
		info := PageInfo{
			ID:       id,
			Number:   len(pages) + 1,
			MediaBox: defaultMediaBox,
			Dict:     page,
		}
		if box, ok := g.rectangle(attrs["MediaBox"]); ok {
			info.MediaBox = box
		}
		info.CropBox = info.MediaBox
		if box, ok := g.rectangle(attrs["CropBox"]); ok {
			info.CropBox = box
		}
		if rot, err := g.Resolve(attrs["Rotate"]); err == nil {
			if num, ok := rot.(*Number); ok {
				info.Rotate = int(((num.Int() % 360) + 360) % 360)
			}
		}
		info.Resources = attrs["Resources"]
		pages = append(pages, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// PageCount returns the number of leaf pages
func (g *Graph) PageCount() (int, error) {
	ids, err := g.TraversePageTree()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Page returns the page with the given 0-based index
func (g *Graph) Page(index int) (PageInfo, error) {
	pages, err := g.Pages()
	if err != nil {
		return PageInfo{}, err
	}
	if index < 0 || index >= len(pages) {
		return PageInfo{}, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage,
			"page index %d outside document of %d pages", index, len(pages)).WithPage(index + 1)
	}
	return pages[index], nil
}

// rectangle reads a [llx lly urx ury] array, normalizing corner order
func (g *Graph) rectangle(obj PDFObject) (rect.Rect, bool) {
	if obj == nil {
		return rect.Rect{}, false
	}
	resolved, err := g.Resolve(obj)
	if err != nil {
		return rect.Rect{}, false
	}
	arr, ok := resolved.(*Array)
	if !ok || arr.Len() != 4 {
		return rect.Rect{}, false
	}
	values, ok := arr.Floats()
	if !ok {
		return rect.Rect{}, false
	}
	r := rect.Rect{
		LLx: min(values[0], values[2]),
		LLy: min(values[1], values[3]),
		URx: max(values[0], values[2]),
		URy: max(values[1], values[3]),
	}
	return r, true
}

// MaterializeInherited copies inherited attributes onto the page dictionary so
// the page no longer depends on its ancestors
func (g *Graph) MaterializeInherited(page PageInfo) {
	if !page.Dict.Has("MediaBox") {
		page.Dict.Set("MediaBox", NewRealArray(page.MediaBox.LLx, page.MediaBox.LLy, page.MediaBox.URx, page.MediaBox.URy))
	}
	if !page.Dict.Has("CropBox") && page.CropBox != page.MediaBox {
		page.Dict.Set("CropBox", NewRealArray(page.CropBox.LLx, page.CropBox.LLy, page.CropBox.URx, page.CropBox.URy))
	}
	if !page.Dict.Has("Rotate") && page.Rotate != 0 {
		page.Dict.Set("Rotate", NewInt(int64(page.Rotate)))
	}
	if !page.Dict.Has("Resources") && page.Resources != nil {
		page.Dict.Set("Resources", DeepCopy(page.Resources))
	}
}

// Validate checks the invariants every graph must hold: a Catalog root, an
// acyclic page tree, and no reference reachable from the trailer left unresolved.
func (g *Graph) Validate() error {
	ec := pdferrors.NewErrorCollection("")

	if g.Trailer == nil {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidStructure, "graph has no trailer")
	}
	if _, err := g.TraversePageTree(); err != nil {
		return err
	}

	seen := make(map[ObjectID]bool)
	queue := CollectRefs(g.Trailer)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		obj, err := g.Object(id)
		if err != nil {
			ec.Add(err.(*pdferrors.PDFError))
			continue
		}
		queue = append(queue, CollectRefs(obj)...)
	}

	if ec.HasErrors() {
		first := ec.Errors[0]
		if n, _ := ec.Count(); n > 1 {
			first.Context = fmt.Sprintf("%d unresolved references", n)
		}
		return first
	}
	return nil
}

// Reachable returns every object reachable from roots, in breadth-first order.
// Dictionary entries named in skipKeys are not followed.
func (g *Graph) Reachable(roots []ObjectID, skipKeys ...string) []ObjectID {
	seen := make(map[ObjectID]bool)
	var order []ObjectID
	queue := append([]ObjectID(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		obj, ok := g.objects[id]
		if !ok {
			continue
		}
		seen[id] = true
		order = append(order, id)
		queue = append(queue, CollectRefs(obj, skipKeys...)...)
	}
	return order
}

// Prune deletes every object not reachable from the trailer and returns how many were removed
func (g *Graph) Prune() int {
	keep := make(map[ObjectID]bool)
	for _, id := range g.Reachable(CollectRefs(g.Trailer)) {
		keep[id] = true
	}
	removed := 0
	for id := range g.objects {
		if !keep[id] {
			delete(g.objects, id)
			removed++
		}
	}
	return removed
}

// Clone returns a deep copy of the graph
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Version: g.Version,
		Trailer: DeepCopy(g.Trailer).(*Dictionary),
		objects: make(map[ObjectID]PDFObject, len(g.objects)),
		next:    g.next,
	}
	for id, obj := range g.objects {
		c.objects[id] = DeepCopy(obj)
	}
	return c
}
