package mapper

import (
	"fmt"

	"github.com/okra-platform/cbind/internal/model"
)

var cPrimitives = map[model.PrimitiveKind]string{
	model.Bool:          "bool",
	model.Int8:          "int8_t",
	model.Int16:         "int16_t",
	model.Int32:         "int32_t",
	model.Int64:         "int64_t",
	model.Uint8:         "uint8_t",
	model.Uint16:        "uint16_t",
	model.Uint32:        "uint32_t",
	model.Uint64:        "uint64_t",
	model.Int:           "intptr_t",
	model.Uint:          "uintptr_t",
	model.Uintptr:       "uintptr_t",
	model.Float32:       "float",
	model.Float64:       "double",
	model.UnsafePointer: "void *",
}

var unsupportedDetail = map[model.Construct]string{
	model.ConstructGeneric:     "generic types must be instantiated with concrete types",
	model.ConstructTraitObject: "interfaces have no fixed C layout",
	model.ConstructClosure:     "function values cannot cross the C boundary",
	model.ConstructChannel:     "channels have no C representation",
	model.ConstructMap:         "maps have no C representation",
	model.ConstructComplex:     "complex numbers are not mapped",
	model.ConstructForeign:     "types from other packages cannot be inspected",
	model.ConstructVariadic:    "variadic parameters have no C calling convention here",
	model.ConstructAnonymous:   "anonymous structs have no C name",
}

// use describes where a type reference appears
type use struct {
	// byValue is false behind a pointer or a slice's data pointer
	byValue bool
	// arrays allows fixed arrays (struct fields and aliases)
	arrays bool
}

// typeOf maps one type reference. It is the single switch over the closed
// set of model.TypeRef implementations.
func (mp *mapper) typeOf(ctx *declCtx, t model.TypeRef, u use) (CType, *model.MappingError) {
	switch t := t.(type) {
	case model.Primitive:
		if t.Kind == model.String {
			h := mp.stringHelper()
			ctx.edge(h.Name, u.byValue)
			return CType{Spelling: h.Name}, nil
		}
		s, ok := cPrimitives[t.Kind]
		if !ok {
			return CType{}, ctx.fail(t.String(), "invalid primitive type")
		}
		return CType{Spelling: s}, nil

	case model.Named:
		target, ok := mp.byName[t.Name]
		if !ok {
			return CType{}, ctx.fail(t.Name, "undeclared type")
		}
		name := mp.cnames[t.Name]
		if u.byValue {
			switch {
			case target.Kind == model.KindOpaque:
				return CType{}, ctx.fail(t.Name, "opaque types can only be used behind a pointer")
			case target.Kind == model.KindStruct && len(target.Fields) == 0:
				return CType{}, ctx.fail(t.Name, "zero-sized types can only be used behind a pointer")
			}
		}
		if target.Kind == model.KindFunction || target.Kind == model.KindConstant {
			return CType{}, ctx.fail(t.Name, fmt.Sprintf("%s is a %s, not a type", t.Name, target.Kind))
		}
		tag, ok := mp.forwardTag(target)
		if e := ctx.edge(name, u.byValue || !ok); ok && tag != name {
			e.Tag = tag
		}
		return CType{Spelling: name}, nil

	case model.Pointer:
		elem := t.Elem
		if a, ok := elem.(model.Array); ok {
			// pointer to array decays to pointer to element
			if _, nested := a.Elem.(model.Array); nested {
				return CType{}, ctx.fail(t.String(), "pointers to multi-dimensional arrays are not supported")
			}
			elem = a.Elem
		}
		inner, err := mp.typeOf(ctx, elem, use{byValue: false})
		if err != nil {
			return CType{}, err
		}
		s := pointerTo(inner.Spelling)
		if t.Nullable {
			s += nullableMacro
		}
		return CType{Spelling: s}, nil

	case model.Array:
		if !u.arrays {
			return CType{}, ctx.fail(t.String(), "C cannot pass arrays by value; use a pointer")
		}
		if t.Len <= 0 {
			return CType{}, ctx.fail(t.String(), "zero-length arrays have no C representation")
		}
		inner, err := mp.typeOf(ctx, t.Elem, u)
		if err != nil {
			return CType{}, err
		}
		return CType{Spelling: inner.Spelling, Dims: append([]int64{t.Len}, inner.Dims...)}, nil

	case model.Slice:
		h, err := mp.sliceHelper(ctx, t)
		if err != nil {
			return CType{}, err
		}
		ctx.edge(h.Name, u.byValue)
		return CType{Spelling: h.Name}, nil

	case model.Optional:
		switch elem := t.Elem.(type) {
		case model.Pointer:
			elem.Nullable = true
			return mp.typeOf(ctx, elem, u)
		case model.Slice:
			return mp.typeOf(ctx, elem, u)
		case model.Array:
			return CType{}, ctx.fail(t.String(), "optional arrays are not supported")
		}
		h, err := mp.optionHelper(ctx, t)
		if err != nil {
			return CType{}, err
		}
		ctx.edge(h.Name, u.byValue)
		return CType{Spelling: h.Name}, nil

	case model.Unsupported:
		return CType{}, ctx.fail(t.String(), unsupportedDetail[t.Construct])
	}

	return CType{}, ctx.fail(fmt.Sprintf("%T", t), "unknown type reference")
}

// forwardTag returns the struct tag that lets d be used behind a pointer
// before its definition. Aliases of structs and sums resolve to the tag of
// the aliased type. Enums cannot be forward declared and opaque types are
// nothing but their forward declaration.
func (mp *mapper) forwardTag(d *model.Declaration) (string, bool) {
	seen := make(map[string]bool)
	for d.Kind == model.KindAlias && !seen[d.Name] {
		seen[d.Name] = true
		named, ok := d.Target.(model.Named)
		if !ok {
			return "", false
		}
		if d, ok = mp.byName[named.Name]; !ok {
			return "", false
		}
	}
	switch d.Kind {
	case model.KindStruct:
		return mp.cnames[d.Name], len(d.Fields) > 0
	case model.KindSum:
		return mp.cnames[d.Name], true
	}
	return "", false
}

func pointerTo(s string) string {
	if len(s) > 0 && s[len(s)-1] == '*' {
		return s + "*"
	}
	return s + " *"
}

// stringHelper returns the shared string view struct
func (mp *mapper) stringHelper() *Decl {
	name := mp.opts.Prefix + "String"
	if h, ok := mp.helpers[name]; ok {
		return h
	}
	h := &Decl{
		Name: name,
		Kind: model.KindStruct,
		Fields: []Field{
			{Name: "data", Type: CType{Spelling: "const char *"}},
			{Name: "len", Type: CType{Spelling: "ptrdiff_t"}},
		},
	}
	mp.register(h)
	return h
}

// sliceHelper returns the data/len/cap header struct for a slice
func (mp *mapper) sliceHelper(ctx *declCtx, s model.Slice) (*Decl, *model.MappingError) {
	if _, ok := s.Elem.(model.Array); ok {
		return nil, ctx.fail(s.String(), "slices of fixed arrays are not supported")
	}

	hctx := &declCtx{src: ctx.src, decl: &Decl{Kind: model.KindStruct}, path: ctx.path}
	data, err := mp.typeOf(hctx, model.Pointer{Elem: s.Elem, Nullable: true}, use{byValue: true})
	if err != nil {
		return nil, err
	}

	name := mp.opts.Prefix + "Slice_" + tagOf(elemSpelling(data.Spelling))
	if h, ok := mp.helpers[name]; ok {
		return h, nil
	}

	h := hctx.decl
	h.Name = name
	h.Fields = []Field{
		{Name: "data", Type: data},
		{Name: "len", Type: CType{Spelling: "ptrdiff_t"}},
		{Name: "cap", Type: CType{Spelling: "ptrdiff_t"}},
	}
	mp.register(h)
	return h, nil
}

// optionHelper returns the present/value struct for an optional by-value type
func (mp *mapper) optionHelper(ctx *declCtx, o model.Optional) (*Decl, *model.MappingError) {
	hctx := &declCtx{src: ctx.src, decl: &Decl{Kind: model.KindStruct}, path: ctx.path}
	value, err := mp.typeOf(hctx, o.Elem, use{byValue: true})
	if err != nil {
		return nil, err
	}

	name := mp.opts.Prefix + "Option_" + tagOf(value.Spelling)
	if h, ok := mp.helpers[name]; ok {
		return h, nil
	}

	h := hctx.decl
	h.Name = name
	h.Fields = []Field{
		{Name: "present", Type: CType{Spelling: "bool"}},
		{Name: "value", Type: value},
	}
	mp.register(h)
	return h, nil
}

// returnHelper returns the struct carrying a function's results
func (mp *mapper) returnHelper(ctx *declCtx) (*Decl, *model.MappingError) {
	h := &Decl{Name: ctx.decl.Name + "_Return", Kind: model.KindStruct}
	hctx := &declCtx{src: ctx.src, decl: h}
	for _, r := range ctx.src.Results {
		hctx.path = []string{r.Name}
		t, err := mp.typeOf(hctx, r.Type, use{byValue: true, arrays: true})
		if err != nil {
			return nil, err
		}
		h.Fields = append(h.Fields, Field{Name: sanitize(r.Name), Type: t})
	}
	mp.register(h)
	return h, nil
}

func (mp *mapper) register(h *Decl) {
	mp.helpers[h.Name] = h
	mp.created = append(mp.created, h)
}

// elemSpelling strips the outer pointer from a data pointer spelling
func elemSpelling(pointer string) string {
	s := pointer
	if n := len(nullableMacro); len(s) >= n && s[len(s)-n:] == nullableMacro {
		s = s[:len(s)-n]
	}
	if len(s) > 0 && s[len(s)-1] == '*' {
		s = s[:len(s)-1]
	}
	return s
}
