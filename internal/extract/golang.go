package extract

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/okra-platform/cbind/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

const (
	opaqueDirective = "//cbind:opaque"
	exportDirective = "//export "
	tagKey          = "cbind"
	tagNonNull      = "nonnull"
)

var basicKinds = map[types.BasicKind]model.PrimitiveKind{
	types.Bool:          model.Bool,
	types.Int:           model.Int,
	types.Int8:          model.Int8,
	types.Int16:         model.Int16,
	types.Int32:         model.Int32,
	types.Int64:         model.Int64,
	types.Uint:          model.Uint,
	types.Uint8:         model.Uint8,
	types.Uint16:        model.Uint16,
	types.Uint32:        model.Uint32,
	types.Uint64:        model.Uint64,
	types.Uintptr:       model.Uintptr,
	types.Float32:       model.Float32,
	types.Float64:       model.Float64,
	types.String:        model.String,
	types.UnsafePointer: model.UnsafePointer,
}

var builtinTypes = map[string]model.PrimitiveKind{
	"bool":    model.Bool,
	"int":     model.Int,
	"int8":    model.Int8,
	"int16":   model.Int16,
	"int32":   model.Int32,
	"rune":    model.Int32,
	"int64":   model.Int64,
	"uint":    model.Uint,
	"uint8":   model.Uint8,
	"byte":    model.Uint8,
	"uint16":  model.Uint16,
	"uint32":  model.Uint32,
	"uint64":  model.Uint64,
	"uintptr": model.Uintptr,
	"float32": model.Float32,
	"float64": model.Float64,
	"string":  model.String,
}

// noImports resolves no packages. Declarations that depend on imported
// packages keep their syntactic form; constants built from them stay unknown.
type noImports struct{}

func (noImports) Import(path string) (*types.Package, error) {
	return nil, fmt.Errorf("import %q not resolved", path)
}

type goExtractor struct {
	root   string
	logger zerolog.Logger
	fset   *token.FileSet
	files  []*ast.File
	info   *types.Info

	localTypes map[string]bool
	typeSpecs  map[string]*ast.TypeSpec
	typeOrder  []string
	methods    map[string][]string
	enums      map[string][]model.Variant
	enumRepr   map[string]model.PrimitiveKind

	// type parameters in scope for the declaration being converted
	typeParams map[string]bool

	decls []*model.Declaration
}

func extractGo(root string, logger zerolog.Logger) (*model.Module, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, &model.ExtractionError{Root: root, Detail: "cannot resolve module root", Cause: err}
	}
	if !st.IsDir() {
		return nil, &model.ExtractionError{Root: root, Detail: "module root is not a directory"}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &model.ExtractionError{Root: root, Detail: "cannot read module root", Cause: err}
	}

	x := &goExtractor{
		root:       root,
		logger:     logger,
		fset:       token.NewFileSet(),
		localTypes: make(map[string]bool),
		typeSpecs:  make(map[string]*ast.TypeSpec),
		methods:    make(map[string][]string),
		enums:      make(map[string][]model.Variant),
		enumRepr:   make(map[string]model.PrimitiveKind),
	}

	// os.ReadDir returns entries sorted by name
	pkgName := ""
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}

		f, err := parser.ParseFile(x.fset, filepath.Join(root, name), nil, parser.ParseComments)
		if err != nil {
			return nil, &model.ExtractionError{Root: root, Detail: "cannot parse " + name, Cause: err}
		}
		if pkgName == "" {
			pkgName = f.Name.Name
		} else if f.Name.Name != pkgName {
			return nil, &model.ExtractionError{
				Root:   root,
				Detail: fmt.Sprintf("found packages %s and %s in %s", pkgName, f.Name.Name, name),
			}
		}
		x.files = append(x.files, f)
	}
	if len(x.files) == 0 {
		return nil, &model.ExtractionError{Root: root, Detail: "no Go source files"}
	}

	name, err := moduleName(root, pkgName)
	if err != nil {
		return nil, err
	}

	x.check(pkgName)
	x.scan()
	x.collect()

	return &model.Module{Name: name, Declarations: x.decls}, nil
}

// moduleName is the last element of the go.mod module path, ignoring a major
// version suffix, or the package name when there is no go.mod.
func moduleName(root, pkgName string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if errors.Is(err, fs.ErrNotExist) {
		return pkgName, nil
	}
	if err != nil {
		return "", &model.ExtractionError{Root: root, Detail: "cannot read go.mod", Cause: err}
	}

	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return "", &model.ExtractionError{Root: root, Detail: "go.mod has no module directive"}
	}
	if prefix, _, ok := module.SplitPathVersion(modPath); ok {
		modPath = prefix
	}
	return path.Base(modPath), nil
}

// check type-checks the package for constant values. Errors are expected
// (imports are never resolved) and ignored.
func (x *goExtractor) check(pkgName string) {
	x.info = &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
	}
	conf := types.Config{
		Importer:    noImports{},
		FakeImportC: true,
		Error:       func(error) {},
	}
	_, _ = conf.Check(pkgName, x.fset, x.files, x.info)
}

// scan records local type names, method sets and enum constants
func (x *goExtractor) scan() {
	for _, f := range x.files {
		for _, decl := range f.Decls {
			switch decl := decl.(type) {
			case *ast.GenDecl:
				if decl.Tok != token.TYPE {
					continue
				}
				for _, spec := range decl.Specs {
					ts := spec.(*ast.TypeSpec)
					x.localTypes[ts.Name.Name] = true
					x.typeSpecs[ts.Name.Name] = ts
					x.typeOrder = append(x.typeOrder, ts.Name.Name)
				}
			case *ast.FuncDecl:
				if decl.Recv == nil || len(decl.Recv.List) != 1 {
					continue
				}
				if recv := receiverName(decl.Recv.List[0].Type); recv != "" {
					x.methods[recv] = append(x.methods[recv], decl.Name.Name)
				}
			}
		}
	}

	for _, f := range x.files {
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.CONST {
				continue
			}
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				for _, n := range vs.Names {
					obj, ok := x.info.Defs[n].(*types.Const)
					if !ok {
						continue
					}
					typeName, basic, ok := x.enumType(obj)
					if !ok {
						continue
					}
					x.enumRepr[typeName] = basicKinds[basic.Kind()]
					x.enums[typeName] = append(x.enums[typeName], model.Variant{
						Name:  n.Name,
						Value: intValue(obj.Val(), basic),
						Doc:   docText(vs.Doc),
					})
				}
			}
		}
	}
}

// enumType reports whether c is a constant of a local defined integer type
func (x *goExtractor) enumType(c *types.Const) (string, *types.Basic, bool) {
	named, ok := c.Type().(*types.Named)
	if !ok || named.Obj().Pkg() != c.Pkg() || !x.localTypes[named.Obj().Name()] {
		return "", nil, false
	}
	basic, ok := named.Underlying().(*types.Basic)
	if !ok || basic.Info()&types.IsInteger == 0 {
		return "", nil, false
	}
	if c.Val().Kind() != constant.Int {
		return "", nil, false
	}
	return named.Obj().Name(), basic, true
}

// collect builds declarations in source order
func (x *goExtractor) collect() {
	for _, f := range x.files {
		for _, decl := range f.Decls {
			switch decl := decl.(type) {
			case *ast.GenDecl:
				switch decl.Tok {
				case token.TYPE:
					for _, spec := range decl.Specs {
						ts := spec.(*ast.TypeSpec)
						x.decls = append(x.decls, x.typeDecl(ts, specDoc(decl, ts.Doc)))
					}
				case token.CONST:
					for _, spec := range decl.Specs {
						vs := spec.(*ast.ValueSpec)
						for _, n := range vs.Names {
							if d, ok := x.constDecl(n, specDoc(decl, vs.Doc)); ok {
								x.decls = append(x.decls, d)
							}
						}
					}
				}
			case *ast.FuncDecl:
				if decl.Recv != nil || !ast.IsExported(decl.Name.Name) {
					continue
				}
				x.decls = append(x.decls, x.funcDecl(decl))
			}
		}
	}
}

func (x *goExtractor) typeDecl(ts *ast.TypeSpec, doc *ast.CommentGroup) *model.Declaration {
	name := ts.Name.Name
	d := &model.Declaration{
		Name:     name,
		Exported: ast.IsExported(name),
		Doc:      docText(doc),
		Pos:      x.pos(ts.Pos()),
	}
	d.TypeParams, x.typeParams = typeParams(ts.TypeParams)

	switch t := ts.Type.(type) {
	case *ast.StructType:
		if hasDirective(doc, opaqueDirective) {
			d.Kind = model.KindOpaque
			return d
		}
		d.Kind = model.KindStruct
		d.Fields = x.fields(t)
		return d

	case *ast.InterfaceType:
		if marker, ok := sealedMarker(t); ok && ts.Assign == 0 && d.TypeParams == nil {
			d.Kind = model.KindSum
			d.Variants = x.sumVariants(marker)
			return d
		}
	}

	if variants, ok := x.enums[name]; ok && ts.Assign == 0 && d.TypeParams == nil {
		d.Kind = model.KindEnum
		d.Repr = x.enumRepr[name]
		d.Variants = variants
		return d
	}

	d.Kind = model.KindAlias
	d.Target = x.typeRef(ts.Type)
	return d
}

// sumVariants lists the local types implementing marker, in declaration order.
// Empty structs carry no payload.
func (x *goExtractor) sumVariants(marker string) []model.Variant {
	var variants []model.Variant
	for _, name := range x.typeOrder {
		if !contains(x.methods[name], marker) {
			continue
		}
		v := model.Variant{Name: name, Doc: docText(x.typeSpecs[name].Doc)}
		if st, ok := x.typeSpecs[name].Type.(*ast.StructType); !ok || st.Fields.NumFields() > 0 {
			v.Payload = model.Named{Name: name}
		}
		variants = append(variants, v)
	}
	return variants
}

func (x *goExtractor) fields(st *ast.StructType) []model.Field {
	var out []model.Field
	for _, f := range st.Fields.List {
		t := x.typeRef(f.Type)
		if p, ok := t.(model.Pointer); ok && hasTag(f.Tag, tagNonNull) {
			p.Nullable = false
			t = p
		}

		doc := docText(f.Doc)
		if doc == "" {
			doc = docText(f.Comment)
		}

		if len(f.Names) == 0 {
			out = append(out, model.Field{Name: embeddedName(f.Type), Type: t, Doc: doc})
			continue
		}
		for _, n := range f.Names {
			name := n.Name
			if name == "_" {
				name = fmt.Sprintf("_pad%d", len(out))
			}
			out = append(out, model.Field{Name: name, Type: t, Doc: doc})
		}
	}
	return out
}

func (x *goExtractor) constDecl(n *ast.Ident, doc *ast.CommentGroup) (*model.Declaration, bool) {
	if !ast.IsExported(n.Name) {
		return nil, false
	}
	obj, ok := x.info.Defs[n].(*types.Const)
	if !ok {
		return nil, false
	}
	if _, _, isEnum := x.enumType(obj); isEnum {
		return nil, false
	}

	val := obj.Val()
	d := &model.Declaration{
		Name:     n.Name,
		Kind:     model.KindConstant,
		Exported: true,
		Doc:      docText(doc),
		Pos:      x.pos(n.Pos()),
	}

	switch t := obj.Type().(type) {
	case *types.Basic:
		kind, ok := basicKinds[t.Kind()]
		if t.Info()&types.IsUntyped != 0 {
			kind, ok = untypedKind(val)
		}
		if !ok {
			return nil, false
		}
		d.Target = model.Primitive{Kind: kind}
	case *types.Named:
		if t.Obj().Pkg() != obj.Pkg() {
			return nil, false
		}
		d.Target = model.Named{Name: t.Obj().Name()}
	default:
		return nil, false
	}

	switch val.Kind() {
	case constant.Int:
		if !fitsC(val) {
			x.logger.Warn().Str("constant", n.Name).Str("value", val.ExactString()).Msg("integer constant exceeds 64 bits, skipping")
			return nil, false
		}
		basic, _ := obj.Type().Underlying().(*types.Basic)
		d.Value = intValue(val, basic)
	case constant.Float:
		f, _ := constant.Float64Val(val)
		d.Value = model.Const{Kind: model.ConstFloat, Text: strconv.FormatFloat(f, 'g', -1, 64)}
	case constant.String:
		d.Value = model.Const{Kind: model.ConstString, Text: constant.StringVal(val)}
	case constant.Bool:
		d.Value = model.Const{Kind: model.ConstBool, Text: strconv.FormatBool(constant.BoolVal(val))}
	default:
		// complex or unresolved
		return nil, false
	}
	return d, true
}

func (x *goExtractor) funcDecl(fd *ast.FuncDecl) *model.Declaration {
	d := &model.Declaration{
		Name:     fd.Name.Name,
		Kind:     model.KindFunction,
		Exported: true,
		Doc:      docText(fd.Doc),
		Pos:      x.pos(fd.Pos()),
		Symbol:   exportSymbol(fd.Doc),
	}
	d.TypeParams, x.typeParams = typeParams(fd.Type.TypeParams)
	d.Params, d.Variadic = x.params(fd.Type.Params, "p")
	d.Results, _ = x.params(fd.Type.Results, "r")
	return d
}

func (x *goExtractor) params(list *ast.FieldList, prefix string) ([]model.Field, bool) {
	if list == nil {
		return nil, false
	}

	var (
		out      []model.Field
		variadic bool
	)
	for _, f := range list.List {
		t := x.typeRef(f.Type)
		if _, ok := f.Type.(*ast.Ellipsis); ok {
			variadic = true
		}
		if len(f.Names) == 0 {
			out = append(out, model.Field{Name: fmt.Sprintf("%s%d", prefix, len(out)), Type: t})
			continue
		}
		for _, n := range f.Names {
			name := n.Name
			if name == "_" {
				name = fmt.Sprintf("%s%d", prefix, len(out))
			}
			out = append(out, model.Field{Name: name, Type: t})
		}
	}
	return out, variadic
}

// typeRef converts a type expression. Anything without a C form becomes
// model.Unsupported naming the construct.
func (x *goExtractor) typeRef(expr ast.Expr) model.TypeRef {
	switch e := expr.(type) {
	case *ast.Ident:
		if x.typeParams[e.Name] {
			return model.Unsupported{Construct: model.ConstructGeneric, Detail: "type parameter " + e.Name}
		}
		if x.localTypes[e.Name] {
			return model.Named{Name: e.Name}
		}
		if kind, ok := builtinTypes[e.Name]; ok {
			return model.Primitive{Kind: kind}
		}
		switch e.Name {
		case "any", "error":
			return model.Unsupported{Construct: model.ConstructTraitObject, Detail: e.Name}
		case "complex64", "complex128":
			return model.Unsupported{Construct: model.ConstructComplex, Detail: e.Name}
		}
		return model.Named{Name: e.Name}

	case *ast.StarExpr:
		return model.Pointer{Elem: x.typeRef(e.X), Nullable: true}

	case *ast.ArrayType:
		if e.Len == nil {
			return model.Slice{Elem: x.typeRef(e.Elt)}
		}
		n, ok := x.arrayLen(e.Len)
		if !ok {
			return model.Unsupported{Construct: model.ConstructForeign, Detail: "array length " + types.ExprString(e.Len)}
		}
		return model.Array{Elem: x.typeRef(e.Elt), Len: n}

	case *ast.SelectorExpr:
		if pkg, ok := e.X.(*ast.Ident); ok && pkg.Name == "unsafe" && e.Sel.Name == "Pointer" {
			return model.Primitive{Kind: model.UnsafePointer}
		}
		return model.Unsupported{Construct: model.ConstructForeign, Detail: types.ExprString(e)}

	case *ast.MapType:
		return model.Unsupported{Construct: model.ConstructMap, Detail: types.ExprString(e)}
	case *ast.ChanType:
		return model.Unsupported{Construct: model.ConstructChannel, Detail: types.ExprString(e)}
	case *ast.FuncType:
		return model.Unsupported{Construct: model.ConstructClosure, Detail: types.ExprString(e)}
	case *ast.InterfaceType:
		return model.Unsupported{Construct: model.ConstructTraitObject, Detail: types.ExprString(e)}
	case *ast.StructType:
		return model.Unsupported{Construct: model.ConstructAnonymous, Detail: types.ExprString(e)}
	case *ast.IndexExpr, *ast.IndexListExpr:
		return model.Unsupported{Construct: model.ConstructGeneric, Detail: types.ExprString(e)}
	case *ast.Ellipsis:
		return model.Unsupported{Construct: model.ConstructVariadic, Detail: types.ExprString(e)}
	case *ast.ParenExpr:
		return x.typeRef(e.X)
	}

	return model.Unsupported{Construct: model.ConstructForeign, Detail: types.ExprString(expr)}
}

func (x *goExtractor) arrayLen(expr ast.Expr) (int64, bool) {
	if tv, ok := x.info.Types[expr]; ok && tv.Value != nil {
		return constant.Int64Val(constant.ToInt(tv.Value))
	}
	if lit, ok := expr.(*ast.BasicLit); ok && lit.Kind == token.INT {
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		return n, err == nil
	}
	return 0, false
}

func (x *goExtractor) pos(p token.Pos) string {
	position := x.fset.Position(p)
	return fmt.Sprintf("%s:%d", filepath.Base(position.Filename), position.Line)
}

func typeParams(list *ast.FieldList) ([]string, map[string]bool) {
	if list == nil {
		return nil, nil
	}
	var names []string
	scope := make(map[string]bool)
	for _, f := range list.List {
		for _, n := range f.Names {
			names = append(names, n.Name)
			scope[n.Name] = true
		}
	}
	return names, scope
}

// sealedMarker returns the method name of a sealed interface: exactly one
// unexported method with no parameters and no results.
func sealedMarker(it *ast.InterfaceType) (string, bool) {
	if it.Methods == nil || len(it.Methods.List) != 1 {
		return "", false
	}
	m := it.Methods.List[0]
	if len(m.Names) != 1 || ast.IsExported(m.Names[0].Name) {
		return "", false
	}
	ft, ok := m.Type.(*ast.FuncType)
	if !ok || ft.Params.NumFields() != 0 || ft.Results.NumFields() != 0 {
		return "", false
	}
	return m.Names[0].Name, true
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.IndexExpr:
		return receiverName(e.X)
	case *ast.IndexListExpr:
		return receiverName(e.X)
	case *ast.ParenExpr:
		return receiverName(e.X)
	}
	return ""
}

func embeddedName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return embeddedName(e.X)
	case *ast.SelectorExpr:
		return e.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(e.X)
	case *ast.IndexListExpr:
		return embeddedName(e.X)
	}
	return types.ExprString(expr)
}

func untypedKind(val constant.Value) (model.PrimitiveKind, bool) {
	switch val.Kind() {
	case constant.Int:
		return model.Int64, true
	case constant.Float:
		return model.Float64, true
	case constant.String:
		return model.String, true
	case constant.Bool:
		return model.Bool, true
	}
	return model.Invalid, false
}

// intValue renders an integer constant, marking values of unsigned types
// and values beyond the int64 range as unsigned.
func intValue(val constant.Value, basic *types.Basic) model.Const {
	kind := model.ConstInt
	if basic != nil && basic.Info()&types.IsUnsigned != 0 {
		kind = model.ConstUint
	} else if _, exact := constant.Int64Val(val); !exact && constant.Sign(val) > 0 {
		kind = model.ConstUint
	}
	return model.Const{Kind: kind, Text: val.ExactString()}
}

// fitsC reports whether an integer constant fits int64 or uint64
func fitsC(val constant.Value) bool {
	if _, exact := constant.Int64Val(val); exact {
		return true
	}
	_, exact := constant.Uint64Val(val)
	return exact
}

// specDoc prefers the spec's own doc comment and falls back to the
// declaration's when the declaration holds a single spec.
func specDoc(gd *ast.GenDecl, doc *ast.CommentGroup) *ast.CommentGroup {
	if doc != nil {
		return doc
	}
	if len(gd.Specs) == 1 {
		return gd.Doc
	}
	return nil
}

func docText(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	return strings.TrimSpace(cg.Text())
}

func hasDirective(cg *ast.CommentGroup, directive string) bool {
	if cg == nil {
		return false
	}
	for _, c := range cg.List {
		if strings.TrimSpace(c.Text) == directive {
			return true
		}
	}
	return false
}

func exportSymbol(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	for _, c := range cg.List {
		if strings.HasPrefix(c.Text, exportDirective) {
			return strings.TrimSpace(strings.TrimPrefix(c.Text, exportDirective))
		}
	}
	return ""
}

func hasTag(lit *ast.BasicLit, option string) bool {
	if lit == nil {
		return false
	}
	raw, err := strconv.Unquote(lit.Value)
	if err != nil {
		return false
	}
	for _, opt := range strings.Split(reflect.StructTag(raw).Get(tagKey), ",") {
		if strings.TrimSpace(opt) == option {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
