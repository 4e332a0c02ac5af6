package custom

import "slices"

// DeepCopy returns a copy of obj that shares no mutable state with it.
// References are copied as references; the objects they name are not followed.
func DeepCopy(obj PDFObject) PDFObject {
	return RewriteRefs(obj, func(id ObjectID) (ObjectID, bool) { return id, true })
}

// RewriteRefs deep-copies obj, passing every indirect reference through remap.
// A reference remap rejects becomes null.
func RewriteRefs(obj PDFObject, remap func(ObjectID) (ObjectID, bool)) PDFObject {
	switch v := obj.(type) {
	case nil:
		return nil
	case *Null:
		return &Null{}
	case *Bool:
		return &Bool{Value: v.Value}
	case *Number:
		return &Number{Value: v.Value}
	case *String:
		return &String{Value: v.Value, IsHex: v.IsHex}
	case *Name:
		return &Name{Value: v.Value}
	case *Keyword:
		return &Keyword{Value: v.Value}
	case *IndirectRef:
		id, ok := remap(v.ObjectID)
		if !ok {
			return &Null{}
		}
		return NewRef(id)
	case *Array:
		arr := &Array{Elements: make([]PDFObject, len(v.Elements))}
		for i, elem := range v.Elements {
			arr.Elements[i] = RewriteRefs(elem, remap)
		}
		return arr
	case *Dictionary:
		dict := &Dictionary{
			Keys:   make([]Name, 0, len(v.Keys)),
			Values: make(map[string]PDFObject, len(v.Values)),
		}
		for _, key := range v.Keys {
			value := RewriteRefs(v.Values[key.Value], remap)
			if value == nil || value.Type() == TypeNull {
				continue
			}
			dict.Keys = append(dict.Keys, key)
			dict.Values[key.Value] = value
		}
		return dict
	case *Stream:
		return &Stream{
			Dict:   RewriteRefs(v.Dict, remap).(*Dictionary),
			Data:   append([]byte(nil), v.Data...),
			Offset: v.Offset,
		}
	default:
		return obj
	}
}

// CollectRefs returns the IDs referenced directly from obj, in encounter order.
// Dictionary entries named in skipKeys are not descended into.
func CollectRefs(obj PDFObject, skipKeys ...string) []ObjectID {
	var refs []ObjectID
	var walk func(PDFObject)
	walk = func(o PDFObject) {
		switch v := o.(type) {
		case *IndirectRef:
			refs = append(refs, v.ObjectID)
		case *Array:
			for _, elem := range v.Elements {
				walk(elem)
			}
		case *Dictionary:
			for _, key := range v.Keys {
				if slices.Contains(skipKeys, key.Value) {
					continue
				}
				walk(v.Values[key.Value])
			}
		case *Stream:
			walk(v.Dict)
		}
	}
	walk(obj)
	return refs
}
