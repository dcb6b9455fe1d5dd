package extract

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okra-platform/cbind/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func names(m *model.Module) []string {
	out := make([]string, len(m.Declarations))
	for i, d := range m.Declarations {
		out[i] = d.Name
	}
	return out
}

func mustLookup(t *testing.T, m *model.Module, name string) *model.Declaration {
	t.Helper()
	for _, d := range m.Declarations {
		if d.Name == name {
			return d
		}
	}
	require.Failf(t, "missing declaration", "%s not in %v", name, names(m))
	return nil
}

const geometrySource = `package geometry

// Point is a 2D point.
type Point struct {
	X int32
	Y int32
}

type Color uint8

const (
	Red Color = iota
	Green
	Blue
)

type Shape interface{ isShape() }

type Circle struct{ Radius float64 }

type Empty struct{}

func (Circle) isShape() {}
func (*Empty) isShape() {}

//cbind:opaque
type Handle struct{ p uintptr }

type node struct {
	next  *node
	value int64
}

type unused struct{ m map[string]int }

type List struct {
	head *node ` + "`cbind:\"nonnull\"`" + `
	Tags []string
}

const MaxPoints = 64

const Name = "geo"

// Area computes an area.
//
//export geo_area
func Area(s Shape, scale float64) float64 { return 0 }

func Split(p Point) (x, y int32) { return p.X, p.Y }

func helper() {}
`

func TestExtractGo(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"geometry.go":      geometrySource,
		"geometry_test.go": "package geometry\n\ntype Ignored struct{}\n",
	})

	m, err := Extract(dir, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	// Test: module name falls back to the package name without go.mod
	assert.Equal(t, "geometry", m.Name)

	// Test: source order, unexported unreachable declarations omitted
	assert.Equal(t, []string{
		"Point", "Color", "Shape", "Circle", "Empty", "Handle", "node", "List",
		"MaxPoints", "Name", "Area", "Split",
	}, names(m))

	point := mustLookup(t, m, "Point")
	assert.Equal(t, model.KindStruct, point.Kind)
	assert.Equal(t, "Point is a 2D point.", point.Doc)
	assert.Equal(t, "geometry.go:4", point.Pos)
	require.Len(t, point.Fields, 2)
	assert.Equal(t, model.Field{Name: "X", Type: model.Primitive{Kind: model.Int32}}, point.Fields[0])

	// Test: typed constants make an enum with evaluated iota values
	color := mustLookup(t, m, "Color")
	assert.Equal(t, model.KindEnum, color.Kind)
	assert.Equal(t, model.Uint8, color.Repr)
	require.Len(t, color.Variants, 3)
	assert.Equal(t, "Blue", color.Variants[2].Name)
	assert.Equal(t, model.Const{Kind: model.ConstUint, Text: "2"}, color.Variants[2].Value)

	// Test: sealed interface becomes a sum type, empty structs carry no payload
	shape := mustLookup(t, m, "Shape")
	assert.Equal(t, model.KindSum, shape.Kind)
	require.Len(t, shape.Variants, 2)
	assert.Equal(t, model.Named{Name: "Circle"}, shape.Variants[0].Payload)
	assert.Equal(t, "Empty", shape.Variants[1].Name)
	assert.Nil(t, shape.Variants[1].Payload)

	assert.Equal(t, model.KindOpaque, mustLookup(t, m, "Handle").Kind)

	// Test: unexported node is kept because List reaches it
	node := mustLookup(t, m, "node")
	assert.False(t, node.Exported)
	assert.Equal(t, model.Pointer{Elem: model.Named{Name: "node"}, Nullable: true}, node.Fields[0].Type)

	// Test: nonnull tag clears nullability
	list := mustLookup(t, m, "List")
	assert.Equal(t, model.Pointer{Elem: model.Named{Name: "node"}}, list.Fields[0].Type)
	assert.Equal(t, model.Slice{Elem: model.Primitive{Kind: model.String}}, list.Fields[1].Type)

	maxPoints := mustLookup(t, m, "MaxPoints")
	assert.Equal(t, model.KindConstant, maxPoints.Kind)
	assert.Equal(t, model.Primitive{Kind: model.Int64}, maxPoints.Target)
	assert.Equal(t, model.Const{Kind: model.ConstInt, Text: "64"}, maxPoints.Value)
	assert.Equal(t, model.Const{Kind: model.ConstString, Text: "geo"}, mustLookup(t, m, "Name").Value)

	// Test: //export sets the symbol and is dropped from the doc
	area := mustLookup(t, m, "Area")
	assert.Equal(t, "geo_area", area.Symbol)
	assert.Equal(t, "Area computes an area.", area.Doc)
	require.Len(t, area.Params, 2)
	assert.Equal(t, "s", area.Params[0].Name)
	assert.Equal(t, model.Named{Name: "Shape"}, area.Params[0].Type)
	assert.Equal(t, []model.Field{{Name: "r0", Type: model.Primitive{Kind: model.Float64}}}, area.Results)

	split := mustLookup(t, m, "Split")
	require.Len(t, split.Results, 2)
	assert.Equal(t, "x", split.Results[0].Name)
	assert.Equal(t, "y", split.Results[1].Name)
}

func TestExtractGo_UnsupportedConstructs(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"lib.go": `package lib

import "unsafe"

type Box[T any] struct{ v T }

type Callbacks struct {
	OnDone func()
	Events chan int
	Raw    unsafe.Pointer
	Err    error
}

func Take(b Box[int]) {}

func Log(format string, args ...int) {}
`,
	})

	m, err := Extract(dir, Options{Frontend: FrontendGo, Logger: zerolog.Nop()})
	require.NoError(t, err)

	box := mustLookup(t, m, "Box")
	assert.Equal(t, []string{"T"}, box.TypeParams)
	assert.Equal(t, model.Unsupported{Construct: model.ConstructGeneric, Detail: "type parameter T"}, box.Fields[0].Type)

	cb := mustLookup(t, m, "Callbacks")
	assert.Equal(t, model.Unsupported{Construct: model.ConstructClosure, Detail: "func()"}, cb.Fields[0].Type)
	assert.Equal(t, model.Unsupported{Construct: model.ConstructChannel, Detail: "chan int"}, cb.Fields[1].Type)
	assert.Equal(t, model.Primitive{Kind: model.UnsafePointer}, cb.Fields[2].Type)
	assert.Equal(t, model.Unsupported{Construct: model.ConstructTraitObject, Detail: "error"}, cb.Fields[3].Type)

	take := mustLookup(t, m, "Take")
	assert.Equal(t, model.Unsupported{Construct: model.ConstructGeneric, Detail: "Box[int]"}, take.Params[0].Type)

	logFn := mustLookup(t, m, "Log")
	assert.True(t, logFn.Variadic)
	assert.Equal(t, model.ConstructVariadic, logFn.Params[1].Type.(model.Unsupported).Construct)
}

func TestExtractGo_ModuleName(t *testing.T) {
	tests := []struct {
		name  string
		gomod string
		want  string
	}{
		{name: "last path element", gomod: "module example.com/libs/geometry\n\ngo 1.24\n", want: "geometry"},
		{name: "major version suffix", gomod: "module example.com/libs/geometry/v2\n", want: "geometry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{
				"go.mod": tt.gomod,
				"lib.go": "package lib\n\ntype Point struct{ X int32 }\n",
			})

			m, err := Extract(dir, Options{Logger: zerolog.Nop()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Name)
		})
	}
}

func TestExtractGo_WideConstants(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod": "module example.com/wide\n",
		"lib.go": `package wide

const Huge = 1 << 70

const Negative = -(1 << 64)

const MaxU64 = 1<<64 - 1

const MinI64 = -1 << 63
`,
	})

	var buf bytes.Buffer
	m, err := Extract(dir, Options{Logger: zerolog.New(&buf)})
	require.NoError(t, err)

	// Test: constants wider than 64 bits are skipped with a warning
	assert.Equal(t, []string{"MaxU64", "MinI64"}, names(m))
	assert.Equal(t, model.Const{Kind: model.ConstUint, Text: "18446744073709551615"}, mustLookup(t, m, "MaxU64").Value)
	assert.Equal(t, model.Const{Kind: model.ConstInt, Text: "-9223372036854775808"}, mustLookup(t, m, "MinI64").Value)
	assert.Contains(t, buf.String(), `"constant":"Huge"`)
	assert.Contains(t, buf.String(), `"constant":"Negative"`)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		root     string
		wantDecl string
	}{
		{
			name: "duplicate names",
			files: map[string]string{
				"a.go": "package lib\n\ntype A struct{ X int32 }\n",
				"b.go": "package lib\n\ntype A struct{ Y int32 }\n",
			},
			wantDecl: "A",
		},
		{
			name:     "dangling reference",
			files:    map[string]string{"a.go": "package lib\n\ntype A struct{ B Missing }\n"},
			wantDecl: "A",
		},
		{
			name: "mixed packages",
			files: map[string]string{
				"a.go": "package one\n",
				"b.go": "package two\n",
			},
		},
		{
			name:  "syntax error",
			files: map[string]string{"a.go": "package lib\n\ntype A struct{\n"},
		},
		{
			name:  "no sources",
			files: map[string]string{"README.md": "nothing here"},
		},
		{
			name:  "missing root",
			files: map[string]string{},
			root:  "does-not-exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, tt.files)
			if tt.root != "" {
				dir = filepath.Join(dir, tt.root)
			}

			_, err := Extract(dir, Options{Frontend: FrontendGo, Logger: zerolog.Nop()})
			require.Error(t, err)

			var extractionErr *model.ExtractionError
			require.True(t, errors.As(err, &extractionErr))
			assert.Equal(t, tt.wantDecl, extractionErr.Decl)
		})
	}
}

const geometrySchema = `@okra(namespace: "geometry", version: "v1")

const MAX: Int = 8

"""A point"""
type Point {
  x: Int!
  y: Int!
}

enum Color {
  RED
  GREEN
}

union Shape = Point

scalar Handle
scalar Millis @repr(type: "Int64")

service Geo {
  move(p: Point! @ref, dx: Int): Point
  points: [Point!]!
}
`

func TestExtractGraphQL(t *testing.T) {
	dir := writeFiles(t, map[string]string{"geometry.okra.gql": geometrySchema})

	m, err := Extract(dir, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, "geometry", m.Name)
	assert.Equal(t, []string{
		"GEOMETRY_VERSION", "MAX", "Point", "Color", "Shape", "Handle", "Millis", "Geo_move", "Geo_points",
	}, names(m))

	version := mustLookup(t, m, "GEOMETRY_VERSION")
	assert.Equal(t, model.Const{Kind: model.ConstString, Text: "v1"}, version.Value)
	assert.Equal(t, model.Const{Kind: model.ConstInt, Text: "8"}, mustLookup(t, m, "MAX").Value)

	point := mustLookup(t, m, "Point")
	assert.Equal(t, "A point", point.Doc)
	assert.Equal(t, model.Primitive{Kind: model.Int32}, point.Fields[0].Type)

	color := mustLookup(t, m, "Color")
	assert.Equal(t, model.KindEnum, color.Kind)
	assert.Equal(t, model.Int32, color.Repr)
	assert.Equal(t, "Color_GREEN", color.Variants[1].Name)
	assert.Equal(t, model.IntConst(1), color.Variants[1].Value)

	shape := mustLookup(t, m, "Shape")
	assert.Equal(t, model.KindSum, shape.Kind)
	assert.Equal(t, model.Named{Name: "Point"}, shape.Variants[0].Payload)

	assert.Equal(t, model.KindOpaque, mustLookup(t, m, "Handle").Kind)
	millis := mustLookup(t, m, "Millis")
	assert.Equal(t, model.KindAlias, millis.Kind)
	assert.Equal(t, model.Primitive{Kind: model.Int64}, millis.Target)

	// Test: @ref makes a pointer, nullable scalars become optional
	move := mustLookup(t, m, "Geo_move")
	assert.Equal(t, model.Pointer{Elem: model.Named{Name: "Point"}}, move.Params[0].Type)
	assert.Equal(t, model.Optional{Elem: model.Primitive{Kind: model.Int32}}, move.Params[1].Type)
	assert.Equal(t, model.Optional{Elem: model.Named{Name: "Point"}}, move.Results[0].Type)

	points := mustLookup(t, m, "Geo_points")
	assert.Empty(t, points.Params)
	assert.Equal(t, model.Slice{Elem: model.Named{Name: "Point"}}, points.Results[0].Type)
}

func TestExtractGraphQL_Errors(t *testing.T) {
	t.Run("two schema files", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.graphql": "type A { x: Int! }", "b.gql": "type B { x: Int! }"})
		_, err := Extract(dir, Options{Frontend: FrontendGraphQL, Logger: zerolog.Nop()})
		var extractionErr *model.ExtractionError
		require.ErrorAs(t, err, &extractionErr)
		assert.Contains(t, extractionErr.Detail, "found 2")
	})

	t.Run("dangling type", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.graphql": "type A { b: Missing! }"})
		_, err := Extract(dir, Options{Logger: zerolog.Nop()})
		var extractionErr *model.ExtractionError
		require.ErrorAs(t, err, &extractionErr)
		assert.Equal(t, "A", extractionErr.Decl)
	})

	t.Run("bad constant", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.graphql": "const N: Int = many\n"})
		_, err := Extract(dir, Options{Logger: zerolog.Nop()})
		var extractionErr *model.ExtractionError
		require.ErrorAs(t, err, &extractionErr)
		assert.Equal(t, "N", extractionErr.Decl)
	})
}

func TestExtractGraphQL_ConstantLiterals(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    model.Const
		wantErr bool
	}{
		{name: "decimal int", line: "const N: Int = 1000", want: model.Const{Kind: model.ConstInt, Text: "1000"}},
		{name: "negative int", line: "const N: Int = -2147483648", want: model.Const{Kind: model.ConstInt, Text: "-2147483648"}},
		{name: "leading plus normalised", line: "const N: Int64 = +007", want: model.Const{Kind: model.ConstInt, Text: "7"}},
		{name: "int64 range", line: "const N: Int64 = 99999999999", want: model.Const{Kind: model.ConstInt, Text: "99999999999"}},
		{name: "float normalised", line: "const N: Float64 = 1.50", want: model.Const{Kind: model.ConstFloat, Text: "1.5"}},
		// Test: Go-only literal forms are not valid C and are rejected
		{name: "digit separators", line: "const N: Int = 1_000", wantErr: true},
		{name: "octal prefix", line: "const N: Int = 0o17", wantErr: true},
		{name: "hex prefix", line: "const N: Int = 0x1F", wantErr: true},
		{name: "hex float", line: "const N: Float64 = 0x1p-2", wantErr: true},
		{name: "infinity", line: "const N: Float64 = Inf", wantErr: true},
		// Test: values outside the declared width are rejected
		{name: "int overflow", line: "const N: Int = 99999999999", wantErr: true},
		{name: "int32 overflow", line: "const N: Int32 = 2147483648", wantErr: true},
		{name: "float32 overflow", line: "const N: Float = 1e39", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{"a.graphql": tt.line + "\n"})
			m, err := Extract(dir, Options{Logger: zerolog.Nop()})
			if tt.wantErr {
				var extractionErr *model.ExtractionError
				require.ErrorAs(t, err, &extractionErr)
				assert.Equal(t, "N", extractionErr.Decl)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mustLookup(t, m, "N").Value)
		})
	}
}

func TestDetectFrontend(t *testing.T) {
	goDir := writeFiles(t, map[string]string{"lib.go": "package lib\n"})
	gqlDir := writeFiles(t, map[string]string{"api.okra.gql": "type A { x: Int! }"})
	mixed := writeFiles(t, map[string]string{"lib.go": "package lib\n", "api.graphql": "type A { x: Int! }"})

	assert.Equal(t, FrontendGo, DetectFrontend(goDir))
	assert.Equal(t, FrontendGraphQL, DetectFrontend(gqlDir))
	assert.Equal(t, FrontendGraphQL, DetectFrontend(filepath.Join(gqlDir, "api.okra.gql")))
	assert.Equal(t, FrontendGo, DetectFrontend(mixed))
	assert.Equal(t, FrontendGo, DetectFrontend(filepath.Join(goDir, "missing")))
}
