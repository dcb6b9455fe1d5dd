package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema_BasicTypes(t *testing.T) {
	// Test plan:
	// - Parse object types and enums
	// - Verify field types, required flags and list spelling

	input := `
type Point {
  x: Float!
  y: Float!
}

enum Shape {
  CIRCLE
  SQUARE
}

type Path {
  points: [Point!]!
  label: String
}`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	require.Len(t, schema.Types, 2)
	require.Len(t, schema.Enums, 1)

	// Test: Point fields keep their order
	point := schema.Types[0]
	assert.Equal(t, "Point", point.Name)
	assert.Equal(t, []string{"x", "y"}, []string{point.Fields[0].Name, point.Fields[1].Name})
	assert.Equal(t, "Float", point.Fields[0].Type)
	assert.True(t, point.Fields[0].Required)

	// Test: list types keep inner non-null markers
	path := schema.Types[1]
	assert.Equal(t, "[Point!]", path.Fields[0].Type)
	assert.True(t, path.Fields[0].Required)
	assert.Equal(t, "String", path.Fields[1].Type)
	assert.False(t, path.Fields[1].Required)

	// Test: enum values in order
	assert.Equal(t, "Shape", schema.Enums[0].Name)
	assert.Equal(t, "CIRCLE", schema.Enums[0].Values[0].Name)
	assert.Equal(t, "SQUARE", schema.Enums[0].Values[1].Name)
}

func TestParseSchema_Positions(t *testing.T) {
	// Test: positions follow document order across definition kinds
	input := `
enum Color { RED }
type A { c: Color! }
union U = A
scalar Handle`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	assert.Equal(t, 0, schema.Enums[0].Position)
	assert.Equal(t, 1, schema.Types[0].Position)
	assert.Equal(t, 2, schema.Unions[0].Position)
	assert.Equal(t, 3, schema.Scalars[0].Position)
}

func TestParseSchema_WithOkraDirective(t *testing.T) {
	input := `@okra(namespace: "geometry", version: "v1")

type Point {
  x: Int!
}`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	assert.Equal(t, "geometry", schema.Meta.Namespace)
	assert.Equal(t, "v1", schema.Meta.Version)

	// Test: the synthetic _Schema type never shows up as a type
	for _, typ := range schema.Types {
		assert.NotEqual(t, "_Schema", typ.Name)
	}
}

func TestParseSchema_UnionsScalarsInputs(t *testing.T) {
	input := `
"""A circle"""
type Circle { radius: Float! }
type Square { side: Float! }

union Shape = Circle | Square

scalar Handle
scalar Millis @repr(type: "Int64")

input Query {
  limit: Int!
}

interface Named {
  name: String!
}`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	// Test: union members in declaration order
	require.Len(t, schema.Unions, 1)
	assert.Equal(t, "Shape", schema.Unions[0].Name)
	assert.Equal(t, []string{"Circle", "Square"}, schema.Unions[0].Members)

	// Test: scalars with and without @repr
	require.Len(t, schema.Scalars, 2)
	assert.Equal(t, "", schema.Scalars[0].Repr())
	assert.Equal(t, "Int64", schema.Scalars[1].Repr())

	// Test: input objects are flagged
	var query *ObjectType
	for i := range schema.Types {
		if schema.Types[i].Name == "Query" {
			query = &schema.Types[i]
		}
	}
	require.NotNil(t, query)
	assert.True(t, query.Input)

	// Test: descriptions are trimmed
	assert.Equal(t, "A circle", schema.Types[0].Doc)

	require.Len(t, schema.Interfaces, 1)
	assert.Equal(t, "Named", schema.Interfaces[0].Name)
}

func TestParseSchema_Services(t *testing.T) {
	input := `
type Point { x: Int! }

service Geometry {
  distance(a: Point!, b: Point!): Float!
  origin: Point
  nudge(p: Point! @ref, dx: Int!): Boolean!
}`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	require.Len(t, schema.Services, 1)
	svc := schema.Services[0]
	assert.Equal(t, "Geometry", svc.Name)
	require.Len(t, svc.Methods, 3)

	// Test: arguments are kept in order with their types
	distance := svc.Methods[0]
	assert.Equal(t, "distance", distance.Name)
	require.Len(t, distance.Args, 2)
	assert.Equal(t, "a", distance.Args[0].Name)
	assert.Equal(t, "Point", distance.Args[0].Type)
	assert.True(t, distance.Args[0].Required)
	assert.Equal(t, "Float", distance.OutputType)
	assert.True(t, distance.OutputRequired)

	// Test: methods without arguments and nullable outputs
	origin := svc.Methods[1]
	assert.Empty(t, origin.Args)
	assert.False(t, origin.OutputRequired)

	// Test: argument directives
	nudge := svc.Methods[2]
	assert.True(t, nudge.Args[0].HasDirective("ref"))
	assert.False(t, nudge.Args[1].HasDirective("ref"))

	// Test: services are not object types
	for _, typ := range schema.Types {
		assert.NotEqual(t, "Service_Geometry", typ.Name)
	}
}

func TestParseSchema_Constants(t *testing.T) {
	input := `
const MAX_POINTS: Int = 64
const GREETING: String = "hello"
const RATIO: Float = 0.5

type Point { x: Int! }`

	schema, err := ParseSchema(input)
	require.NoError(t, err)

	require.Len(t, schema.Constants, 3)
	assert.Equal(t, Constant{Name: "MAX_POINTS", Type: "Int", Value: "64", Position: 0}, schema.Constants[0])
	assert.Equal(t, "GREETING", schema.Constants[1].Name)
	assert.Equal(t, "String", schema.Constants[1].Type)
	assert.Equal(t, "hello", schema.Constants[1].Value)
	assert.Equal(t, "0.5", schema.Constants[2].Value)

	// Test: constant carriers are not object types
	require.Len(t, schema.Types, 1)
	assert.Equal(t, "Point", schema.Types[0].Name)
}

func TestParseSchema_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unclosed type", input: "type Point {\n  x: Int!\n"},
		{name: "missing field type", input: "type Point { x: }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseSchema_EmptySchema(t *testing.T) {
	schema, err := ParseSchema("")
	require.NoError(t, err)
	assert.Empty(t, schema.Types)
	assert.Empty(t, schema.Services)
	assert.Empty(t, schema.Constants)
}
