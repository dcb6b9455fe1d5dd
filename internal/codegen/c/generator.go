// Package c renders mapped declarations as a C header
package c

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/okra-platform/cbind/internal/codegen/writer"
	"github.com/okra-platform/cbind/internal/mapper"
	"github.com/okra-platform/cbind/internal/model"
)

// Banner is the first line of every generated header
const Banner = "/* Code generated by cbind. DO NOT EDIT. */"

var standardIncludes = []string{"stdbool.h", "stddef.h", "stdint.h"}

// Options configures the header
type Options struct {
	// Module overrides the module name used for the include guard
	Module string
	// Comments copies documentation into the header
	Comments bool
	// Includes are extra headers. Names in angle brackets or quotes are
	// written as given; bare names are quoted.
	Includes []string
}

// Generator writes C headers
type Generator struct {
	opts Options
}

// NewGenerator creates a C header generator
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Language returns the name of the target language
func (g *Generator) Language() string {
	return "c"
}

// FileExtension returns the file extension for generated files
func (g *Generator) FileExtension() string {
	return ".h"
}

// Generate writes the header for res. res.Decls must already be ordered so
// that every full edge points backwards.
func (g *Generator) Generate(res *mapper.Result) ([]byte, error) {
	module := g.opts.Module
	if module == "" {
		module = res.Module
	}
	guard := Guard(module)

	w := writer.NewWriter("    ")
	w.WriteLine(Banner)
	w.BlankLine()
	w.WriteLinef("#ifndef %s", guard)
	w.WriteLinef("#define %s", guard)
	w.BlankLine()

	for _, inc := range standardIncludes {
		w.WriteLinef("#include <%s>", inc)
	}
	for _, inc := range g.opts.Includes {
		w.WriteLinef("#include %s", includeSpelling(inc))
	}

	if res.Nullable {
		w.BlankLine()
		writeNullable(w)
	}

	w.BlankLine()
	w.WriteLine("#ifdef __cplusplus")
	w.WriteLine(`extern "C" {`)
	w.WriteLine("#endif")

	e := &emitter{
		w:        w,
		comments: g.opts.Comments,
		defined:  make(map[string]bool, len(res.Decls)),
		declared: make(map[string]bool),
	}
	for _, d := range res.Decls {
		if err := e.decl(d); err != nil {
			return nil, err
		}
	}

	w.BlankLine()
	w.WriteLine("#ifdef __cplusplus")
	w.WriteLine("}")
	w.WriteLine("#endif")
	w.BlankLine()
	w.WriteLinef("#endif /* %s */", guard)

	return w.Bytes(), nil
}

// Guard derives the include guard macro from a module name: uppercased,
// every other character replaced by an underscore and suffixed with _H.
func Guard(module string) string {
	var b strings.Builder
	for _, r := range module {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString("_H")

	guard := b.String()
	if guard[0] >= '0' && guard[0] <= '9' {
		guard = "_" + guard
	}
	return guard
}

func includeSpelling(inc string) string {
	if strings.HasPrefix(inc, "<") || strings.HasPrefix(inc, `"`) {
		return inc
	}
	return `"` + inc + `"`
}

func writeNullable(w *writer.Writer) {
	w.WriteLine("#ifndef CBIND_NULLABLE")
	w.WriteLine("#if defined(__clang__)")
	w.WriteLine("#define CBIND_NULLABLE _Nullable")
	w.WriteLine("#else")
	w.WriteLine("#define CBIND_NULLABLE")
	w.WriteLine("#endif")
	w.WriteLine("#endif")
}

// emitter tracks which tags are already visible while declarations are
// written in order
type emitter struct {
	w        *writer.Writer
	comments bool
	// defined holds every emitted declaration, declared the struct tags
	// written as forward declarations only
	defined  map[string]bool
	declared map[string]bool
}

func (e *emitter) decl(d *mapper.Decl) error {
	e.forward(d)

	switch d.Kind {
	case model.KindOpaque:
		if e.declared[d.Name] {
			// the forward declaration already is the whole type
			break
		}
		e.block(d.Doc)
		e.w.WriteLinef("typedef struct %s %s;", d.Name, d.Name)
	case model.KindStruct:
		e.block(d.Doc)
		e.structBody(d.Name, func() { e.fields(d.Fields) })
	case model.KindEnum:
		e.block(d.Doc)
		e.enumerators("enum {", "};", d.Enumerators)
		e.w.WriteLinef("typedef %s %s;", d.Repr, d.Name)
	case model.KindSum:
		e.block(d.Doc)
		e.enumerators(fmt.Sprintf("typedef enum %s {", d.Repr), fmt.Sprintf("} %s;", d.Repr), d.Enumerators)
		e.w.BlankLine()
		e.structBody(d.Name, func() {
			e.w.WriteLinef("%s tag;", d.Repr)
			if len(d.Fields) > 0 {
				e.w.WriteBlock("union {", "} payload;", func() { e.fields(d.Fields) })
			}
		})
	case model.KindAlias:
		if e.declared[d.Name] {
			// forward declared as the aliased struct tag
			break
		}
		e.block(d.Doc)
		e.w.WriteLinef("typedef %s;", d.Target.Declare(d.Name))
	case model.KindConstant:
		e.block(d.Doc)
		e.w.WriteLinef("#define %s %s", d.Name, d.Value)
	case model.KindFunction:
		e.block(d.Doc)
		e.w.WriteLinef("%s(%s);", d.Target.Declare(d.Name), params(d.Params))
	default:
		return fmt.Errorf("%s: cannot emit declaration of kind %s", d.Name, d.Kind)
	}

	e.defined[d.Name] = true
	return nil
}

// forward writes a typedef for every tag d points at before its definition
func (e *emitter) forward(d *mapper.Decl) {
	first := true
	for _, edge := range d.Edges {
		if edge.Full || e.defined[edge.To] || e.declared[edge.To] {
			continue
		}
		if first {
			e.w.BlankLine()
			first = false
		}
		tag := edge.To
		if edge.Tag != "" {
			tag = edge.Tag
		}
		e.w.WriteLinef("typedef struct %s %s;", tag, edge.To)
		e.declared[edge.To] = true
	}
}

func (e *emitter) block(doc string) {
	e.w.BlankLine()
	e.doc(doc)
}

func (e *emitter) doc(doc string) {
	if e.comments {
		e.w.WriteDocComment(doc)
	}
}

// structBody writes a struct definition. A tag already introduced by a
// forward typedef is completed without a second typedef.
func (e *emitter) structBody(name string, content func()) {
	if e.declared[name] {
		e.w.WriteBlock(fmt.Sprintf("struct %s {", name), "};", content)
		return
	}
	e.w.WriteBlock(fmt.Sprintf("typedef struct %s {", name), fmt.Sprintf("} %s;", name), content)
}

func (e *emitter) fields(fields []mapper.Field) {
	for _, f := range fields {
		e.doc(f.Doc)
		e.w.WriteLinef("%s;", f.Type.Declare(f.Name))
	}
}

func (e *emitter) enumerators(opener, closer string, list []mapper.Enumerator) {
	e.w.WriteBlock(opener, closer, func() {
		for i, en := range list {
			e.doc(en.Doc)
			sep := ","
			if i == len(list)-1 {
				sep = ""
			}
			e.w.WriteLinef("%s = %s%s", en.Name, en.Value, sep)
		}
	})
}

func params(ps []mapper.Field) string {
	if len(ps) == 0 {
		return "void"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Type.Declare(p.Name)
	}
	return strings.Join(parts, ", ")
}
