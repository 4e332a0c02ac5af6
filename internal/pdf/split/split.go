// Package split extracts a selection of pages into a standalone document.
package split

import (
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/pagerange"
)

// DuplicateMode selects how a page selected more than once is emitted
type DuplicateMode int

const (
	// DuplicateCopy gives every occurrence its own page node, content streams
	// and annotations, so later edits to one do not show on the other
	DuplicateCopy DuplicateMode = iota
	// DuplicateShare gives every occurrence its own page node and annotations
	// but shares the content streams between them
	DuplicateShare
)

func (m DuplicateMode) String() string {
	if m == DuplicateShare {
		return "share"
	}
	return "copy"
}

// ParseDuplicateMode maps "copy" or "share" to a mode
func ParseDuplicateMode(s string) (DuplicateMode, bool) {
	switch s {
	case "", "copy":
		return DuplicateCopy, true
	case "share":
		return DuplicateShare, true
	}
	return DuplicateCopy, false
}

// Options controls a split
type Options struct {
	Duplicates DuplicateMode
	// MaxRatio, when positive, makes SplitBytes fail if the output is larger
	// than this fraction of the input
	MaxRatio float64
}

// splitter holds the state of one Split call
type splitter struct {
	src  *custom.Graph
	out  *custom.Graph
	opts Options

	selected map[custom.ObjectID]bool           // source page nodes in the selection
	newIDs   map[custom.ObjectID]custom.ObjectID // source ID -> output ID
	next     int64
}

// Split builds a new document holding the given 1-based pages of g, in the
// order listed. Only objects reachable from the selected pages are copied;
// /Parent links are not followed, so the rest of the source tree stays behind.
// Attributes the pages inherit are copied onto them first. g is not modified.
func Split(g *custom.Graph, pages []int, opts Options) (*custom.Graph, error) {
	if len(pages) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "empty page selection")
	}
	all, err := g.Pages()
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if p < 1 || p > len(all) {
			return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidPage,
				"page %d out of range (document has %d pages)", p, len(all)).WithPage(p)
		}
	}

	s := &splitter{
		src:      g,
		out:      custom.NewGraph(),
		opts:     opts,
		selected: make(map[custom.ObjectID]bool),
		newIDs:   make(map[custom.ObjectID]custom.ObjectID),
	}
	s.out.Version = g.Version

	catalogID := s.allocate()
	rootID := s.allocate()

	// Page copies get their output numbers first, in selection order
	copies := make([]*custom.Dictionary, len(pages))
	copyIDs := make([]custom.ObjectID, len(pages))
	for i, p := range pages {
		info := all[p-1]
		s.selected[info.ID] = true
		copyIDs[i] = s.allocate()
		if _, ok := s.newIDs[info.ID]; !ok {
			s.newIDs[info.ID] = copyIDs[i]
		}
	}
	for i, p := range pages {
		copies[i] = s.pageCopy(all[p-1])
	}

	// Whitelist: everything the page copies reach, never entering other page tree nodes
	var roots []custom.ObjectID
	for _, page := range copies {
		roots = append(roots, custom.CollectRefs(page, "Parent")...)
	}
	reachable := s.collect(roots)
	for _, id := range reachable {
		s.newIDs[id] = s.allocate()
	}
	for _, id := range reachable {
		obj, _ := g.Object(id)
		s.out.Set(s.newIDs[id], custom.RewriteRefs(obj, s.remap))
	}

	kids := custom.NewArray()
	seen := make(map[custom.ObjectID]bool)
	for i, p := range pages {
		srcID := all[p-1].ID
		page := custom.RewriteRefs(copies[i], s.remap).(*custom.Dictionary)
		page.Set("Parent", custom.NewRef(rootID))
		if seen[srcID] {
			s.privatize(page, copyIDs[i], opts.Duplicates == DuplicateCopy)
		}
		seen[srcID] = true
		s.out.Set(copyIDs[i], page)
		kids.Add(custom.NewRef(copyIDs[i]))
	}

	root := custom.NewDictionary()
	root.Set("Type", custom.NewName("Pages"))
	root.Set("Kids", kids)
	root.Set("Count", custom.NewInt(int64(len(pages))))
	s.out.Set(rootID, root)

	catalog := custom.NewDictionary()
	catalog.Set("Type", custom.NewName("Catalog"))
	catalog.Set("Pages", custom.NewRef(rootID))
	s.out.Set(catalogID, catalog)
	s.out.Trailer.Set("Root", custom.NewRef(catalogID))

	if err := s.out.Validate(); err != nil {
		return nil, err
	}
	return s.out, nil
}

func (s *splitter) allocate() custom.ObjectID {
	s.next++
	return custom.ObjectID{Number: s.next}
}

// remap translates source references; anything outside the whitelist becomes null
func (s *splitter) remap(id custom.ObjectID) (custom.ObjectID, bool) {
	to, ok := s.newIDs[id]
	return to, ok
}

// pageCopy returns a private copy of a page with its inherited attributes
// materialized and annotations that lead outside the selection removed
func (s *splitter) pageCopy(info custom.PageInfo) *custom.Dictionary {
	info.Dict = custom.DeepCopy(info.Dict).(*custom.Dictionary)
	s.src.MaterializeInherited(info)

	annots, err := s.src.Resolve(info.Dict.Get("Annots"))
	if err != nil {
		info.Dict.Remove("Annots")
		return info.Dict
	}
	arr, ok := annots.(*custom.Array)
	if !ok {
		info.Dict.Remove("Annots")
		return info.Dict
	}

	kept := custom.NewArray()
	for _, elem := range arr.Elements {
		annot, ok := s.src.ResolveDict(elem)
		if !ok || s.leavesSelection(annot) {
			continue
		}
		kept.Add(custom.DeepCopy(elem))
	}
	if kept.Len() == 0 {
		info.Dict.Remove("Annots")
	} else {
		info.Dict.Set("Annots", kept)
	}
	return info.Dict
}

// leavesSelection reports whether an annotation names a page that is not selected
func (s *splitter) leavesSelection(annot *custom.Dictionary) bool {
	if id, ok := annot.GetRef("P"); ok && !s.selected[id] {
		return true
	}
	dest := annot.Get("Dest")
	if action, ok := s.src.ResolveDict(annot.Get("A")); ok && action.GetName("S") == "GoTo" {
		dest = action.Get("D")
	}
	if resolved, err := s.src.Resolve(dest); err == nil {
		if arr, ok := resolved.(*custom.Array); ok && arr.Len() > 0 {
			if ref, ok := arr.Get(0).(*custom.IndirectRef); ok && !s.selected[ref.ObjectID] {
				return true
			}
		}
	}
	return false
}

// collect walks the graph breadth-first from roots without following /Parent
// and without entering page tree nodes
func (s *splitter) collect(roots []custom.ObjectID) []custom.ObjectID {
	seen := make(map[custom.ObjectID]bool)
	var order []custom.ObjectID
	queue := append([]custom.ObjectID(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		obj, err := s.src.Object(id)
		if err != nil {
			continue
		}
		if d, ok := obj.(*custom.Dictionary); ok {
			if t := d.GetName("Type"); t == "Page" || t == "Pages" {
				continue
			}
		}
		order = append(order, id)
		queue = append(queue, custom.CollectRefs(obj, "Parent")...)
	}
	return order
}

// privatize gives a repeated page its own annotations, and its own content
// streams when contents is set. An annotation belongs to exactly one page.
func (s *splitter) privatize(page *custom.Dictionary, pageID custom.ObjectID, contents bool) {
	clone := func(obj custom.PDFObject) custom.PDFObject {
		ref, ok := obj.(*custom.IndirectRef)
		if !ok {
			return obj
		}
		target, err := s.out.Object(ref.ObjectID)
		if err != nil {
			return obj
		}
		copied := custom.DeepCopy(target)
		if d, ok := copied.(*custom.Dictionary); ok && d.Has("P") {
			d.Set("P", custom.NewRef(pageID))
		}
		id := s.allocate()
		s.out.Set(id, copied)
		return custom.NewRef(id)
	}

	if contents {
		switch v := page.Get("Contents").(type) {
		case *custom.IndirectRef:
			page.Set("Contents", clone(v))
		case *custom.Array:
			for i, elem := range v.Elements {
				v.Elements[i] = clone(elem)
			}
		}
	}
	if annots, ok := page.Get("Annots").(*custom.Array); ok {
		for i, elem := range annots.Elements {
			annots.Elements[i] = clone(elem)
		}
	}
}

// SplitBytes parses data, selects pages with a range expression such as
// "1-3,5" and returns the serialized result
func SplitBytes(data []byte, expr string, opts Options) ([]byte, error) {
	g, err := custom.Parse(data)
	if err != nil {
		return nil, err
	}
	count, err := g.PageCount()
	if err != nil {
		return nil, err
	}
	pages, err := pagerange.ParseRange(expr, count)
	if err != nil {
		return nil, err
	}

	out, err := Split(g, pages, opts)
	if err != nil {
		return nil, err
	}
	result, err := custom.Serialize(out)
	if err != nil {
		return nil, err
	}

	if opts.MaxRatio > 0 && float64(len(result)) > opts.MaxRatio*float64(len(data)) {
		return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure,
			"split output is %d bytes, more than %.2f of the %d byte source", len(result), opts.MaxRatio, len(data))
	}
	return result, nil
}
