package schema

// Schema is the root of a parsed .okra.gql file
type Schema struct {
	Types      []ObjectType    `json:"types"`
	Enums      []EnumType      `json:"enums"`
	Unions     []UnionType     `json:"unions"`
	Scalars    []ScalarType    `json:"scalars"`
	Interfaces []InterfaceType `json:"interfaces"`
	Services   []Service       `json:"services"`
	Constants  []Constant      `json:"constants"`
	Meta       Metadata        `json:"meta"`
}

// Metadata represents global metadata for the IDL file
type Metadata struct {
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// ObjectType represents a top-level "type" or "input" block
type ObjectType struct {
	Name     string  `json:"name"`
	Doc      string  `json:"doc"`
	Input    bool    `json:"input"`
	Fields   []Field `json:"fields"`
	Position int     `json:"position"`
}

// Field represents a field inside a type or input object, or a method argument.
// Type is the GraphQL spelling without the outer non-null marker: "Point",
// "[Point!]", "[[Int]]".
type Field struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Required   bool        `json:"required"`
	Directives []Directive `json:"directives"`
	Doc        string      `json:"doc"`
}

// HasDirective reports whether the field carries the named directive
func (f Field) HasDirective(name string) bool {
	for _, d := range f.Directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// EnumType represents an enum definition
type EnumType struct {
	Name     string      `json:"name"`
	Doc      string      `json:"doc"`
	Values   []EnumValue `json:"values"`
	Position int         `json:"position"`
}

// EnumValue represents a single value inside an enum
type EnumValue struct {
	Name string `json:"name"`
	Doc  string `json:"doc"`
}

// UnionType represents a "union U = A | B" definition
type UnionType struct {
	Name     string   `json:"name"`
	Doc      string   `json:"doc"`
	Members  []string `json:"members"`
	Position int      `json:"position"`
}

// ScalarType represents a custom "scalar" definition
type ScalarType struct {
	Name       string      `json:"name"`
	Doc        string      `json:"doc"`
	Directives []Directive `json:"directives"`
	Position   int         `json:"position"`
}

// Repr returns the @repr(type: ...) argument, if any
func (s ScalarType) Repr() string {
	for _, d := range s.Directives {
		if d.Name == "repr" {
			return d.Args["type"]
		}
	}
	return ""
}

// InterfaceType represents an "interface" definition
type InterfaceType struct {
	Name     string `json:"name"`
	Doc      string `json:"doc"`
	Position int    `json:"position"`
}

// Service represents a "service" block (transformed from type Service_*)
type Service struct {
	Name      string   `json:"name"`
	Doc       string   `json:"doc"`
	Namespace string   `json:"namespace"`
	Version   string   `json:"version"`
	Methods   []Method `json:"methods"`
	Position  int      `json:"position"`
}

// Method represents a single service method
type Method struct {
	Name           string      `json:"name"`
	Args           []Field     `json:"args"`
	OutputType     string      `json:"outputType"`
	OutputRequired bool        `json:"outputRequired"`
	Directives     []Directive `json:"directives"`
	Doc            string      `json:"doc"`
}

// Constant represents a "const NAME: Type = value" line.
// Value holds the literal without quotes.
type Constant struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Doc      string `json:"doc"`
	Position int    `json:"position"`
}

// Directive represents an attached directive (e.g. @ref, @repr)
type Directive struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
	Doc  string            `json:"doc"`
}
