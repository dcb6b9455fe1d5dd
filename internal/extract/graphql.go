package extract

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/okra-platform/cbind/internal/model"
	"github.com/okra-platform/cbind/internal/schema"
)

// graphqlScalars maps the built-in IDL scalars. Scalars absent from the map
// and not declared in the schema are reported as foreign types.
var graphqlScalars = map[string]model.TypeRef{
	"Int":     model.Primitive{Kind: model.Int32},
	"Int32":   model.Primitive{Kind: model.Int32},
	"Int64":   model.Primitive{Kind: model.Int64},
	"Float":   model.Primitive{Kind: model.Float32},
	"Float64": model.Primitive{Kind: model.Float64},
	"Boolean": model.Primitive{Kind: model.Bool},
	"Bool":    model.Primitive{Kind: model.Bool},
	"String":  model.Primitive{Kind: model.String},
	"ID":      model.Primitive{Kind: model.String},
	"Bytes":   model.Slice{Elem: model.Primitive{Kind: model.Uint8}},
	"Time":    model.Unsupported{Construct: model.ConstructForeign, Detail: "Time"},
	"Any":     model.Unsupported{Construct: model.ConstructTraitObject, Detail: "Any"},
}

// positioned pairs declarations with their document position so the
// per-kind lists of the schema can be merged back into source order.
type positioned struct {
	pos   int
	decls []*model.Declaration
}

func extractGraphQL(root string) (*model.Module, error) {
	file, err := schemaFile(root)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, &model.ExtractionError{Root: root, Detail: "cannot read schema file", Cause: err}
	}

	s, err := schema.ParseSchema(string(content))
	if err != nil {
		return nil, &model.ExtractionError{Root: root, Detail: "cannot parse schema " + filepath.Base(file), Cause: err}
	}

	name := s.Meta.Namespace
	if name == "" {
		name = schemaStem(file)
	}

	declared := declaredNames(s)
	typeOf := func(spelling string, required, ref bool) model.TypeRef {
		return graphqlType(declared, spelling, required, ref)
	}

	var items []positioned
	add := func(pos int, decls ...*model.Declaration) {
		items = append(items, positioned{pos: pos, decls: decls})
	}

	for _, c := range s.Constants {
		d, err := graphqlConstant(c)
		if err != nil {
			return nil, &model.ExtractionError{Root: root, Decl: c.Name, Detail: err.Error()}
		}
		add(c.Position, d)
	}

	for _, t := range s.Types {
		d := &model.Declaration{Name: t.Name, Kind: model.KindStruct, Exported: true, Doc: t.Doc}
		for _, f := range t.Fields {
			d.Fields = append(d.Fields, model.Field{
				Name: f.Name,
				Type: typeOf(f.Type, f.Required, f.HasDirective("ref")),
				Doc:  f.Doc,
			})
		}
		add(t.Position, d)
	}

	for _, e := range s.Enums {
		d := &model.Declaration{Name: e.Name, Kind: model.KindEnum, Exported: true, Doc: e.Doc, Repr: model.Int32}
		for i, v := range e.Values {
			d.Variants = append(d.Variants, model.Variant{
				Name:  e.Name + "_" + v.Name,
				Value: model.IntConst(int64(i)),
				Doc:   v.Doc,
			})
		}
		add(e.Position, d)
	}

	for _, u := range s.Unions {
		d := &model.Declaration{Name: u.Name, Kind: model.KindSum, Exported: true, Doc: u.Doc}
		for _, m := range u.Members {
			d.Variants = append(d.Variants, model.Variant{Name: m, Payload: model.Named{Name: m}})
		}
		add(u.Position, d)
	}

	for _, sc := range s.Scalars {
		d := &model.Declaration{Name: sc.Name, Exported: true, Doc: sc.Doc, Kind: model.KindOpaque}
		if repr := sc.Repr(); repr != "" {
			target, ok := graphqlScalars[repr]
			if !ok {
				return nil, &model.ExtractionError{Root: root, Decl: sc.Name, Detail: "unknown @repr type " + repr}
			}
			d.Kind = model.KindAlias
			d.Target = target
		}
		add(sc.Position, d)
	}

	for _, i := range s.Interfaces {
		add(i.Position, &model.Declaration{
			Name:     i.Name,
			Kind:     model.KindAlias,
			Exported: true,
			Doc:      i.Doc,
			Target:   model.Unsupported{Construct: model.ConstructTraitObject, Detail: i.Name},
		})
	}

	for _, svc := range s.Services {
		var fns []*model.Declaration
		for _, m := range svc.Methods {
			fn := &model.Declaration{
				Name:     svc.Name + "_" + m.Name,
				Kind:     model.KindFunction,
				Exported: true,
				Doc:      m.Doc,
			}
			for _, a := range m.Args {
				fn.Params = append(fn.Params, model.Field{
					Name: a.Name,
					Type: typeOf(a.Type, a.Required, a.HasDirective("ref")),
				})
			}
			if m.OutputType != "" {
				fn.Results = []model.Field{{
					Name: "result",
					Type: typeOf(m.OutputType, m.OutputRequired, methodHasDirective(m.Directives, "ref")),
				}}
			}
			fns = append(fns, fn)
		}
		add(svc.Position, fns...)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].pos < items[j].pos })

	m := &model.Module{Name: name}
	if s.Meta.Version != "" {
		m.Declarations = append(m.Declarations, &model.Declaration{
			Name:     macroName(name) + "_VERSION",
			Kind:     model.KindConstant,
			Exported: true,
			Target:   model.Primitive{Kind: model.String},
			Value:    model.Const{Kind: model.ConstString, Text: s.Meta.Version},
		})
	}
	for _, item := range items {
		m.Declarations = append(m.Declarations, item.decls...)
	}

	return m, nil
}

// schemaFile resolves root to a single schema file
func schemaFile(root string) (string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return "", &model.ExtractionError{Root: root, Detail: "cannot resolve module root", Cause: err}
	}
	if !st.IsDir() {
		return root, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", &model.ExtractionError{Root: root, Detail: "cannot read module root", Cause: err}
	}

	var found []string
	for _, e := range entries {
		if !e.IsDir() && isSchemaFile(e.Name()) {
			found = append(found, filepath.Join(root, e.Name()))
		}
	}
	switch len(found) {
	case 0:
		return "", &model.ExtractionError{Root: root, Detail: "no schema file found"}
	case 1:
		return found[0], nil
	}
	return "", &model.ExtractionError{
		Root:   root,
		Detail: fmt.Sprintf("expected one schema file, found %d", len(found)),
	}
}

func schemaStem(file string) string {
	base := filepath.Base(file)
	for _, ext := range schemaExtensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// declaredNames lists the type names the schema declares. They shadow the
// built-in scalars of the same name.
func declaredNames(s *schema.Schema) map[string]bool {
	declared := make(map[string]bool)
	for _, t := range s.Types {
		declared[t.Name] = true
	}
	for _, e := range s.Enums {
		declared[e.Name] = true
	}
	for _, u := range s.Unions {
		declared[u.Name] = true
	}
	for _, sc := range s.Scalars {
		declared[sc.Name] = true
	}
	for _, i := range s.Interfaces {
		declared[i.Name] = true
	}
	return declared
}

// graphqlType converts a type spelling from the schema package ("Point",
// "[Point!]") into a type reference. Nullable named types become optional,
// @ref makes a pointer and lists become slices.
func graphqlType(declared map[string]bool, spelling string, required, ref bool) model.TypeRef {
	var base model.TypeRef
	if strings.HasPrefix(spelling, "[") && strings.HasSuffix(spelling, "]") {
		inner := spelling[1 : len(spelling)-1]
		innerRequired := strings.HasSuffix(inner, "!")
		base = model.Slice{Elem: graphqlType(declared, strings.TrimSuffix(inner, "!"), innerRequired, false)}
	} else if builtin, ok := graphqlScalars[spelling]; ok && !declared[spelling] {
		base = builtin
	} else {
		base = model.Named{Name: spelling}
	}

	if ref {
		return model.Pointer{Elem: base, Nullable: !required}
	}
	if !required {
		return model.Optional{Elem: base}
	}
	return base
}

func graphqlConstant(c schema.Constant) (*model.Declaration, error) {
	target, ok := graphqlScalars[c.Type]
	if !ok {
		return nil, fmt.Errorf("constant type %s is not a built-in scalar", c.Type)
	}
	prim, ok := target.(model.Primitive)
	if !ok {
		return nil, fmt.Errorf("constant type %s has no literal form", c.Type)
	}

	d := &model.Declaration{
		Name:     c.Name,
		Kind:     model.KindConstant,
		Exported: true,
		Doc:      c.Doc,
		Target:   prim,
	}

	switch {
	case prim.Kind.IsInteger():
		// GraphQL integer literals are decimal only
		n, err := strconv.ParseInt(c.Value, 10, prim.Kind.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", c.Type, c.Value)
		}
		d.Value = model.Const{Kind: model.ConstInt, Text: strconv.FormatInt(n, 10)}
	case prim.Kind == model.Float32 || prim.Kind == model.Float64:
		f, err := strconv.ParseFloat(c.Value, prim.Kind.Bits())
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(c.Value, "_xX") {
			return nil, fmt.Errorf("invalid %s %q", c.Type, c.Value)
		}
		d.Value = model.Const{Kind: model.ConstFloat, Text: strconv.FormatFloat(f, 'g', -1, prim.Kind.Bits())}
	case prim.Kind == model.Bool:
		b, err := strconv.ParseBool(c.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", c.Value)
		}
		d.Value = model.Const{Kind: model.ConstBool, Text: strconv.FormatBool(b)}
	default:
		d.Value = model.Const{Kind: model.ConstString, Text: c.Value}
	}
	return d, nil
}

func methodHasDirective(directives []schema.Directive, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// macroName upper-cases s and replaces everything but letters and digits
func macroName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
