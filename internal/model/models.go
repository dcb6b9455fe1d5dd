// Package model holds the in-memory description of a module's exported
// surface: declarations, their fields and the type references between them.
package model

import "fmt"

// Module is the ordered set of declarations extracted from one source module
type Module struct {
	Name         string         `json:"name"`
	Declarations []*Declaration `json:"declarations"`
}

// Kind identifies what a declaration declares
type Kind int

const (
	KindStruct Kind = iota
	KindEnum
	KindSum
	KindAlias
	KindConstant
	KindFunction
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindSum:
		return "sum"
	case KindAlias:
		return "alias"
	case KindConstant:
		return "constant"
	case KindFunction:
		return "function"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Declaration is a named item of the module surface.
// Which of the payload fields are populated depends on Kind.
type Declaration struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Exported bool   `json:"exported"`
	Doc      string `json:"doc,omitempty"`
	Pos      string `json:"pos,omitempty"`

	// struct
	Fields     []Field  `json:"fields,omitempty"`
	TypeParams []string `json:"typeParams,omitempty"`

	// enum and sum
	Variants []Variant     `json:"variants,omitempty"`
	Repr     PrimitiveKind `json:"repr,omitempty"`

	// alias target, constant type
	Target TypeRef `json:"-"`
	Value  Const   `json:"value,omitempty"`

	// function
	Params   []Field `json:"params,omitempty"`
	Results  []Field `json:"results,omitempty"`
	Symbol   string  `json:"symbol,omitempty"`
	Variadic bool    `json:"variadic,omitempty"`
}

// IsType reports whether the declaration introduces a C type name
func (d *Declaration) IsType() bool {
	switch d.Kind {
	case KindStruct, KindEnum, KindSum, KindAlias, KindOpaque:
		return true
	}
	return false
}

// Refs lists every type reference the declaration holds, in source order
func (d *Declaration) Refs() []TypeRef {
	var refs []TypeRef
	for _, f := range d.Fields {
		refs = append(refs, f.Type)
	}
	for _, v := range d.Variants {
		if v.Payload != nil {
			refs = append(refs, v.Payload)
		}
	}
	if d.Target != nil {
		refs = append(refs, d.Target)
	}
	for _, p := range d.Params {
		refs = append(refs, p.Type)
	}
	for _, r := range d.Results {
		refs = append(refs, r.Type)
	}
	return refs
}

// Field is a struct field or a function parameter/result
type Field struct {
	Name string  `json:"name"`
	Type TypeRef `json:"-"`
	Doc  string  `json:"doc,omitempty"`
}

// Variant is an enum value or a sum type alternative.
// Enum variants carry Value; sum variants carry an optional Payload and take
// their discriminant from their position.
type Variant struct {
	Name    string  `json:"name"`
	Value   Const   `json:"value,omitempty"`
	Payload TypeRef `json:"-"`
	Doc     string  `json:"doc,omitempty"`
}

// ConstKind is the kind of a constant value
type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstUint
	ConstFloat
	ConstString
	ConstBool
)

// Const is a constant value. Text holds the decimal form for numbers, the raw
// (unquoted) value for strings, and "true"/"false" for booleans.
type Const struct {
	Kind ConstKind `json:"kind"`
	Text string    `json:"text"`
}

// IntConst builds an integer constant
func IntConst(v int64) Const {
	return Const{Kind: ConstInt, Text: fmt.Sprintf("%d", v)}
}
