package model

import "fmt"

// TypeRef is a reference to a type from a field, parameter, alias or variant.
// The set of implementations is closed: Primitive, Named, Pointer, Array,
// Slice, Optional and Unsupported.
type TypeRef interface {
	String() string
	typeRef()
}

// PrimitiveKind enumerates the built-in scalar types
type PrimitiveKind int

const (
	Invalid PrimitiveKind = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Int
	Uint
	Uintptr
	Float32
	Float64
	String
	UnsafePointer
)

var primitiveNames = map[PrimitiveKind]string{
	Bool:          "bool",
	Int8:          "int8",
	Int16:         "int16",
	Int32:         "int32",
	Int64:         "int64",
	Uint8:         "uint8",
	Uint16:        "uint16",
	Uint32:        "uint32",
	Uint64:        "uint64",
	Int:           "int",
	Uint:          "uint",
	Uintptr:       "uintptr",
	Float32:       "float32",
	Float64:       "float64",
	String:        "string",
	UnsafePointer: "unsafe.Pointer",
}

func (k PrimitiveKind) String() string {
	if name, ok := primitiveNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsInteger reports whether k is an integer kind
func (k PrimitiveKind) IsInteger() bool {
	switch k {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Int, Uint, Uintptr:
		return true
	}
	return false
}

// Bits returns the width of a fixed-size numeric kind and 64 otherwise
func (k PrimitiveKind) Bits() int {
	switch k {
	case Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	}
	return 64
}

// Primitive is a built-in scalar
type Primitive struct {
	Kind PrimitiveKind
}

func (Primitive) typeRef()         {}
func (p Primitive) String() string { return p.Kind.String() }

// Named refers to another declaration by name
type Named struct {
	Name string
}

func (Named) typeRef()         {}
func (n Named) String() string { return n.Name }

// Pointer is one level of indirection
type Pointer struct {
	Elem     TypeRef
	Nullable bool
}

func (Pointer) typeRef() {}
func (p Pointer) String() string {
	if p.Nullable {
		return "*" + p.Elem.String()
	}
	return "&" + p.Elem.String()
}

// Array is a fixed-length array
type Array struct {
	Elem TypeRef
	Len  int64
}

func (Array) typeRef()         {}
func (a Array) String() string { return fmt.Sprintf("[%d]%s", a.Len, a.Elem) }

// Slice is a growable sequence passed as a data/len/cap header
type Slice struct {
	Elem TypeRef
}

func (Slice) typeRef()         {}
func (s Slice) String() string { return "[]" + s.Elem.String() }

// Optional is a by-value type that may be absent
type Optional struct {
	Elem TypeRef
}

func (Optional) typeRef()         {}
func (o Optional) String() string { return "?" + o.Elem.String() }

// Construct names a source construct with no C representation
type Construct string

const (
	ConstructGeneric     Construct = "generic"
	ConstructTraitObject Construct = "trait object"
	ConstructClosure     Construct = "closure"
	ConstructChannel     Construct = "channel"
	ConstructMap         Construct = "map"
	ConstructComplex     Construct = "complex number"
	ConstructForeign     Construct = "foreign type"
	ConstructVariadic    Construct = "variadic parameter"
	ConstructAnonymous   Construct = "anonymous struct"
)

// Unsupported marks a construct that cannot be mapped. It is terminal: no
// references are followed through it.
type Unsupported struct {
	Construct Construct
	Detail    string
}

func (Unsupported) typeRef() {}
func (u Unsupported) String() string {
	if u.Detail == "" {
		return "<" + string(u.Construct) + ">"
	}
	return "<" + string(u.Construct) + " " + u.Detail + ">"
}

// Ref is a named reference found inside a TypeRef
type Ref struct {
	Name    string
	ByValue bool
}

// References returns the named declarations t refers to, in order of
// appearance. A reference is by value unless it sits behind a pointer or
// inside a slice (whose elements live behind the data pointer).
func References(t TypeRef) []Ref {
	var refs []Ref
	collectRefs(t, true, &refs)
	return refs
}

func collectRefs(t TypeRef, byValue bool, refs *[]Ref) {
	switch t := t.(type) {
	case Named:
		*refs = append(*refs, Ref{Name: t.Name, ByValue: byValue})
	case Pointer:
		collectRefs(t.Elem, false, refs)
	case Slice:
		collectRefs(t.Elem, false, refs)
	case Array:
		collectRefs(t.Elem, byValue, refs)
	case Optional:
		collectRefs(t.Elem, byValue, refs)
	}
}

// FindUnsupported returns the first unsupported construct inside t
func FindUnsupported(t TypeRef) (Unsupported, bool) {
	switch t := t.(type) {
	case Unsupported:
		return t, true
	case Pointer:
		return FindUnsupported(t.Elem)
	case Slice:
		return FindUnsupported(t.Elem)
	case Array:
		return FindUnsupported(t.Elem)
	case Optional:
		return FindUnsupported(t.Elem)
	}
	return Unsupported{}, false
}
