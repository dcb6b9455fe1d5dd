package c

import (
	"strings"
	"testing"

	"github.com/okra-platform/cbind/internal/mapper"
	"github.com/okra-platform/cbind/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctype(s string) mapper.CType { return mapper.CType{Spelling: s} }

func geometry() *mapper.Result {
	return &mapper.Result{
		Module:   "geo",
		Nullable: true,
		Decls: []*mapper.Decl{
			{
				Name: "Point", Source: "Point", Kind: model.KindStruct, Doc: "Point is a 2D point.",
				Fields: []mapper.Field{
					{Name: "x", Type: ctype("double")},
					{Name: "y", Type: ctype("double"), Doc: "Vertical."},
				},
			},
			{
				Name: "Color", Source: "Color", Kind: model.KindEnum, Repr: "uint8_t",
				Enumerators: []mapper.Enumerator{
					{Name: "Color_Red", Value: "0"},
					{Name: "Color_Green", Value: "1"},
				},
			},
			{
				Name: "Node", Source: "Node", Kind: model.KindStruct,
				Fields: []mapper.Field{
					{Name: "value", Type: ctype("int32_t")},
					{Name: "next", Type: ctype("Node *CBIND_NULLABLE")},
				},
				Edges: []mapper.Edge{{To: "Node", Via: "next"}},
			},
			{
				Name: "Shape", Source: "Shape", Kind: model.KindSum, Repr: "Shape_Tag",
				Enumerators: []mapper.Enumerator{
					{Name: "Shape_Circle", Value: "0"},
					{Name: "Shape_Empty", Value: "1"},
				},
				Fields: []mapper.Field{{Name: "circle", Type: ctype("Point")}},
				Edges:  []mapper.Edge{{To: "Point", Full: true, Via: "Circle"}},
			},
			{Name: "Handle", Source: "Handle", Kind: model.KindOpaque},
			{Name: "Millis", Source: "Millis", Kind: model.KindAlias, Target: ctype("int64_t")},
			{Name: "Grid", Source: "Grid", Kind: model.KindAlias, Target: mapper.CType{Spelling: "uint8_t", Dims: []int64{2, 3}}},
			{Name: "GEO_MAX", Source: "MaxPoints", Kind: model.KindConstant, Value: "((int32_t)4)"},
			{
				Name: "geo_area", Source: "Area", Kind: model.KindFunction, Doc: "Area of a shape.\nZero for points.",
				Target: ctype("double"),
				Params: []mapper.Field{{Name: "p", Type: ctype("const Point *")}, {Name: "n", Type: ctype("ptrdiff_t")}},
				Edges:  []mapper.Edge{{To: "Point", Via: "p"}},
			},
			{Name: "geo_reset", Source: "Reset", Kind: model.KindFunction, Target: ctype("void")},
		},
	}
}

const geometryHeader = `/* Code generated by cbind. DO NOT EDIT. */

#ifndef GEO_H
#define GEO_H

#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
#include "geo_extra.h"
#include <math.h>

#ifndef CBIND_NULLABLE
#if defined(__clang__)
#define CBIND_NULLABLE _Nullable
#else
#define CBIND_NULLABLE
#endif
#endif

#ifdef __cplusplus
extern "C" {
#endif

/* Point is a 2D point. */
typedef struct Point {
    double x;
    /* Vertical. */
    double y;
} Point;

enum {
    Color_Red = 0,
    Color_Green = 1
};
typedef uint8_t Color;

typedef struct Node Node;

struct Node {
    int32_t value;
    Node *CBIND_NULLABLE next;
};

typedef enum Shape_Tag {
    Shape_Circle = 0,
    Shape_Empty = 1
} Shape_Tag;

typedef struct Shape {
    Shape_Tag tag;
    union {
        Point circle;
    } payload;
} Shape;

typedef struct Handle Handle;

typedef int64_t Millis;

typedef uint8_t Grid[2][3];

#define GEO_MAX ((int32_t)4)

/*
 * Area of a shape.
 * Zero for points.
 */
double geo_area(const Point *p, ptrdiff_t n);

void geo_reset(void);

#ifdef __cplusplus
}
#endif

#endif /* GEO_H */
`

func TestGenerate_Golden(t *testing.T) {
	// Test: every declaration kind renders in order
	g := NewGenerator(Options{Comments: true, Includes: []string{"geo_extra.h", "<math.h>"}})

	out, err := g.Generate(geometry())
	require.NoError(t, err)
	assert.Equal(t, geometryHeader, string(out))
}

func TestGenerate_Deterministic(t *testing.T) {
	// Test: identical input gives byte-identical output
	g := NewGenerator(Options{Comments: true})

	first, err := g.Generate(geometry())
	require.NoError(t, err)
	second, err := g.Generate(geometry())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerate_WithoutComments(t *testing.T) {
	// Test: docs are dropped unless comments are enabled
	out, err := NewGenerator(Options{}).Generate(geometry())
	require.NoError(t, err)

	header := string(out)
	assert.NotContains(t, header, "Point is a 2D point.")
	assert.NotContains(t, header, "Vertical.")
	assert.True(t, strings.HasPrefix(header, Banner+"\n"))
}

func TestGenerate_NoNullableMacro(t *testing.T) {
	// Test: the nullable macro is only defined when used
	res := &mapper.Result{
		Module: "plain",
		Decls:  []*mapper.Decl{{Name: "plain_nop", Kind: model.KindFunction, Target: ctype("void")}},
	}

	out, err := NewGenerator(Options{}).Generate(res)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "CBIND_NULLABLE")
	assert.Contains(t, string(out), "#ifndef PLAIN_H\n#define PLAIN_H\n")
	assert.Contains(t, string(out), "void plain_nop(void);\n")
}

func TestGenerate_ModuleOverride(t *testing.T) {
	// Test: Options.Module replaces the result's module name in the guard
	out, err := NewGenerator(Options{Module: "shapes-v2"}).Generate(&mapper.Result{Module: "geo"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "#ifndef SHAPES_V2_H")
	assert.Contains(t, string(out), "#endif /* SHAPES_V2_H */")
}

func TestGenerate_MutualPointers(t *testing.T) {
	// Test: one forward declaration breaks a pointer cycle
	res := &mapper.Result{
		Module:   "tree",
		Nullable: true,
		Decls: []*mapper.Decl{
			{
				Name: "A", Source: "A", Kind: model.KindStruct,
				Fields: []mapper.Field{{Name: "b", Type: ctype("B *CBIND_NULLABLE")}},
				Edges:  []mapper.Edge{{To: "B", Via: "b"}},
			},
			{
				Name: "B", Source: "B", Kind: model.KindStruct,
				Fields: []mapper.Field{{Name: "a", Type: ctype("A")}},
				Edges:  []mapper.Edge{{To: "A", Full: true, Via: "a"}},
			},
		},
	}

	out, err := NewGenerator(Options{}).Generate(res)
	require.NoError(t, err)

	header := string(out)
	assert.Equal(t, 1, strings.Count(header, "typedef struct B B;"))
	assert.Equal(t, 0, strings.Count(header, "typedef struct A A;"))
	assert.Contains(t, header, "typedef struct B B;\n\ntypedef struct A {\n    B *CBIND_NULLABLE b;\n} A;\n")
	assert.Contains(t, header, "struct B {\n    A a;\n};\n")
	assert.Less(t, strings.Index(header, "typedef struct B B;"), strings.Index(header, "} A;"))
}

func TestGenerate_OpaqueAfterForward(t *testing.T) {
	// Test: an opaque type already forward declared is not repeated
	res := &mapper.Result{
		Module: "vault",
		Decls: []*mapper.Decl{
			{
				Name: "Holder", Source: "Holder", Kind: model.KindStruct,
				Fields: []mapper.Field{{Name: "secret", Type: ctype("Secret *")}},
				Edges:  []mapper.Edge{{To: "Secret", Via: "secret"}},
			},
			{Name: "Secret", Source: "Secret", Kind: model.KindOpaque},
		},
	}

	out, err := NewGenerator(Options{}).Generate(res)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "typedef struct Secret Secret;"))
}

func TestGenerate_AliasForwardDeclaration(t *testing.T) {
	// Test: a pointer to an alias of a struct forward declares the alias
	// with the struct tag, and the alias typedef is not repeated
	res := &mapper.Result{
		Module:   "list",
		Nullable: true,
		Decls: []*mapper.Decl{
			{
				Name: "Node", Source: "Node", Kind: model.KindStruct,
				Fields: []mapper.Field{
					{Name: "V", Type: ctype("int32_t")},
					{Name: "Next", Type: ctype("List *CBIND_NULLABLE")},
				},
				Edges: []mapper.Edge{{To: "List", Via: "Next", Tag: "Node"}},
			},
			{
				Name: "List", Source: "List", Kind: model.KindAlias, Target: ctype("Node"),
				Edges: []mapper.Edge{{To: "Node", Full: true}},
			},
		},
	}

	out, err := NewGenerator(Options{}).Generate(res)
	require.NoError(t, err)

	header := string(out)
	assert.Contains(t, header, "typedef struct Node List;\n\ntypedef struct Node {\n    int32_t V;\n    List *CBIND_NULLABLE Next;\n} Node;\n")
	assert.NotContains(t, header, "typedef Node List;")
	assert.Equal(t, 1, strings.Count(header, "List;"))
}

func TestGenerate_SumWithoutPayload(t *testing.T) {
	// Test: a sum with no payload variants has no union
	res := &mapper.Result{
		Module: "state",
		Decls: []*mapper.Decl{{
			Name: "State", Source: "State", Kind: model.KindSum, Repr: "State_Tag",
			Enumerators: []mapper.Enumerator{{Name: "State_On", Value: "0"}, {Name: "State_Off", Value: "1"}},
		}},
	}

	out, err := NewGenerator(Options{}).Generate(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), "typedef struct State {\n    State_Tag tag;\n} State;\n")
	assert.NotContains(t, string(out), "union")
}

func TestGenerate_FieldOrder(t *testing.T) {
	// Test: fields keep their declared order
	fields := []mapper.Field{
		{Name: "zeta", Type: ctype("int8_t")},
		{Name: "alpha", Type: ctype("int64_t")},
		{Name: "mid", Type: ctype("bool")},
	}
	res := &mapper.Result{
		Module: "layout",
		Decls:  []*mapper.Decl{{Name: "Packed", Source: "Packed", Kind: model.KindStruct, Fields: fields}},
	}

	out, err := NewGenerator(Options{}).Generate(res)
	require.NoError(t, err)
	assert.Contains(t, string(out), "    int8_t zeta;\n    int64_t alpha;\n    bool mid;\n")
}

func TestGenerate_UnknownKind(t *testing.T) {
	// Test: unknown declaration kinds are reported
	res := &mapper.Result{
		Module: "bad",
		Decls:  []*mapper.Decl{{Name: "Weird", Kind: model.Kind(99)}},
	}

	_, err := NewGenerator(Options{}).Generate(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Weird")
}

func TestGuard(t *testing.T) {
	tests := []struct {
		module   string
		expected string
	}{
		{"geo", "GEO_H"},
		{"my-lib.v2", "MY_LIB_V2_H"},
		{"Mixed_Case", "MIXED_CASE_H"},
		{"2d", "_2D_H"},
		{"naïve", "NA_VE_H"},
		{"", "_H"},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			assert.Equal(t, tt.expected, Guard(tt.module))
		})
	}
}

func TestGenerator_Metadata(t *testing.T) {
	g := NewGenerator(Options{})
	assert.Equal(t, "c", g.Language())
	assert.Equal(t, ".h", g.FileExtension())
}
