// Package mapper translates extracted declarations into C declarations.
//
// Every declaration is mapped on its own. A failure fails that declaration
// and every declaration using it by value; declarations that only point at
// it see an opaque type instead. Failures reaching an exported function
// signature abort the run.
package mapper

import (
	"fmt"
	"strings"

	"github.com/okra-platform/cbind/internal/model"
	"github.com/rs/zerolog"
)

// nullableMacro qualifies nullable pointers. The header defines it as
// _Nullable under clang and as nothing elsewhere.
const nullableMacro = "CBIND_NULLABLE"

// CType is a C type spelling. Dims are array dimensions that follow the
// declarator name.
type CType struct {
	Spelling string
	Dims     []int64
}

// Declare renders a declarator: Declare("next") on "Node *" is "Node *next"
func (t CType) Declare(name string) string {
	var b strings.Builder
	b.WriteString(t.Spelling)
	if name != "" {
		if !strings.HasSuffix(t.Spelling, "*") {
			b.WriteByte(' ')
		}
		b.WriteString(name)
	}
	for _, d := range t.Dims {
		fmt.Fprintf(&b, "[%d]", d)
	}
	return b.String()
}

// Decl is a mapped C declaration
type Decl struct {
	// Name is the C name. Source is the declaration it came from and is
	// empty for synthesized helpers.
	Name   string
	Source string
	Kind   model.Kind
	Doc    string

	// Fields holds struct fields, or the union members of a sum
	Fields []Field
	// Enumerators holds enum constants, or the tag constants of a sum
	Enumerators []Enumerator
	// Repr is the enum representation type, or the tag type name of a sum
	Repr string

	// Target is the alias target, the constant type or the function result
	Target CType
	// Value is the constant's C literal
	Value  string
	Params []Field

	Edges []Edge
}

// Field is a struct field, union member or function parameter
type Field struct {
	Name string
	Type CType
	Doc  string
}

// Enumerator is a named enum constant
type Enumerator struct {
	Name  string
	Value string
	Doc   string
}

// Edge records that a declaration refers to another one by C name. Full
// edges need the complete definition first; the others need only a forward
// declaration.
type Edge struct {
	To   string
	Full bool
	Via  string
	// Tag is the struct tag the forward declaration names when it differs
	// from To, as for an alias of a struct
	Tag string
}

// Options configures the mapping
type Options struct {
	// Prefix is prepended to every top-level C name except explicit
	// export symbols
	Prefix string
	// Strict turns every mapping failure into a fatal error
	Strict bool
	Logger zerolog.Logger
}

// Result is the mapped module. Decls keep source order, with synthesized
// helpers placed right before their first user.
type Result struct {
	Module   string
	Decls    []*Decl
	Nullable bool
	// Dropped lists the declarations skipped with a warning
	Dropped []*model.MappingError
}

// attempt is the outcome of mapping one source declaration
type attempt struct {
	src     *model.Declaration
	decl    *Decl
	helpers []*Decl
	err     *model.MappingError
	cascade bool
}

type mapper struct {
	opts   Options
	logger zerolog.Logger

	byName  map[string]*model.Declaration
	cnames  map[string]string
	helpers map[string]*Decl

	// helpers created by the attempt in progress
	created []*Decl
}

// Map maps every declaration of m
func Map(m *model.Module, opts Options) (*Result, error) {
	mp := &mapper{
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "mapper").Logger(),
		byName:  make(map[string]*model.Declaration, len(m.Declarations)),
		cnames:  make(map[string]string, len(m.Declarations)),
		helpers: make(map[string]*Decl),
	}
	for _, d := range m.Declarations {
		mp.byName[d.Name] = d
		mp.cnames[d.Name] = mp.cName(d)
	}

	attempts := make([]*attempt, 0, len(m.Declarations))
	for _, d := range m.Declarations {
		mp.created = nil
		decl, err := mp.mapDecl(d)
		attempts = append(attempts, &attempt{src: d, decl: decl, helpers: mp.created, err: err})
	}

	failed := mp.cascade(attempts)

	if err := mp.fatal(attempts); err != nil {
		return nil, err
	}

	res := &Result{Module: m.Name}
	for _, a := range attempts {
		if a.err != nil {
			res.Dropped = append(res.Dropped, a.err)
			mp.logger.Warn().
				Str("decl", a.src.Name).
				Str("construct", a.err.Construct).
				Strs("path", a.err.Path).
				Str("reason", a.err.Detail).
				Msg("skipping declaration without a C representation")
		}
	}

	keep := mp.survivors(attempts, failed)
	for _, a := range attempts {
		for _, h := range a.helpers {
			switch {
			case !keep[h.Name]:
			case failed[h.Name]:
				res.Decls = append(res.Decls, &Decl{Name: h.Name, Kind: model.KindOpaque})
			default:
				res.Decls = append(res.Decls, h)
			}
		}
		switch {
		case a.err == nil:
			res.Decls = append(res.Decls, a.decl)
		case keep[mp.cnames[a.src.Name]]:
			mp.logger.Debug().Str("decl", a.src.Name).Msg("keeping skipped declaration as opaque")
			res.Decls = append(res.Decls, &Decl{
				Name:   mp.cnames[a.src.Name],
				Source: a.src.Name,
				Kind:   model.KindOpaque,
				Doc:    a.src.Doc,
			})
		}
	}

	if err := checkCollisions(res.Decls); err != nil {
		return nil, err
	}

	for _, d := range res.Decls {
		if usesNullable(d) {
			res.Nullable = true
			break
		}
	}

	return res, nil
}

func (mp *mapper) cName(d *model.Declaration) string {
	if d.Kind == model.KindFunction && d.Symbol != "" {
		return d.Symbol
	}
	return mp.opts.Prefix + sanitize(d.Name)
}

// cascade fails every declaration that uses a failed one by value, until
// nothing changes. It returns the failed C names.
func (mp *mapper) cascade(attempts []*attempt) map[string]bool {
	failed := make(map[string]bool)
	owner := make(map[string]*attempt)
	for _, a := range attempts {
		owner[mp.cnames[a.src.Name]] = a
		if a.err != nil {
			failed[mp.cnames[a.src.Name]] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for _, a := range attempts {
			if a.err == nil {
				for _, e := range a.decl.Edges {
					if !e.Full || !failed[e.To] {
						continue
					}
					a.err = mp.cascadeError(a.src, e, mp.rootCause(owner, failed, e.To))
					a.cascade = true
					failed[mp.cnames[a.src.Name]] = true
					changed = true
					break
				}
			}
			for _, h := range a.helpers {
				if failed[h.Name] {
					continue
				}
				for _, e := range h.Edges {
					if e.Full && failed[e.To] {
						failed[h.Name] = true
						changed = true
						break
					}
				}
			}
		}
	}
	return failed
}

// rootCause follows failed full edges from name to a declaration that
// failed on its own.
func (mp *mapper) rootCause(owner map[string]*attempt, failed map[string]bool, name string) *model.MappingError {
	for seen := make(map[string]bool); !seen[name]; {
		seen[name] = true

		var edges []Edge
		if a, ok := owner[name]; ok {
			if !a.cascade {
				return a.err
			}
			edges = a.decl.Edges
		} else if h, ok := mp.helpers[name]; ok {
			edges = h.Edges
		}

		next := ""
		for _, e := range edges {
			if e.Full && failed[e.To] {
				next = e.To
				break
			}
		}
		if next == "" {
			break
		}
		name = next
	}
	return nil
}

func (mp *mapper) cascadeError(src *model.Declaration, e Edge, cause *model.MappingError) *model.MappingError {
	err := &model.MappingError{
		Decl:      src.Name,
		Construct: e.To,
		Detail:    "uses a declaration without a C representation by value",
	}
	if e.Via != "" {
		err.Path = []string{e.Via}
	}
	if cause != nil {
		err.Detail += " (" + cause.Error() + ")"
	}
	return err
}

// fatal returns the error that aborts the run, if any: the first failed
// function, or in strict mode the first failure that did not cascade.
func (mp *mapper) fatal(attempts []*attempt) error {
	if mp.opts.Strict {
		var first *model.MappingError
		for _, a := range attempts {
			if a.err == nil {
				continue
			}
			if !a.cascade {
				return a.err
			}
			if first == nil {
				first = a.err
			}
		}
		if first != nil {
			return first
		}
		return nil
	}

	for _, a := range attempts {
		if a.err != nil && a.src.Kind == model.KindFunction && a.src.Exported {
			return a.err
		}
	}
	return nil
}

// survivors returns the C names that end up in the header: every mapped
// source declaration, the helpers they reach, and the failed declarations
// they point at (kept as opaque).
func (mp *mapper) survivors(attempts []*attempt, failed map[string]bool) map[string]bool {
	keep := make(map[string]bool)
	var queue []*Decl
	for _, a := range attempts {
		if a.err == nil {
			keep[a.decl.Name] = true
			queue = append(queue, a.decl)
		}
	}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		for _, e := range d.Edges {
			if keep[e.To] {
				continue
			}
			if h, ok := mp.helpers[e.To]; ok && !failed[e.To] {
				keep[e.To] = true
				queue = append(queue, h)
				continue
			}
			if failed[e.To] && !e.Full {
				keep[e.To] = true
			}
		}
	}
	return keep
}

func (mp *mapper) mapDecl(d *model.Declaration) (*Decl, *model.MappingError) {
	ctx := &declCtx{src: d, decl: &Decl{
		Name:   mp.cnames[d.Name],
		Source: d.Name,
		Kind:   d.Kind,
		Doc:    d.Doc,
	}}

	if len(d.TypeParams) > 0 {
		return nil, &model.MappingError{
			Decl:      d.Name,
			Construct: fmt.Sprintf("<%s %s[%s]>", model.ConstructGeneric, d.Name, strings.Join(d.TypeParams, ", ")),
			Detail:    unsupportedDetail[model.ConstructGeneric],
		}
	}

	var err *model.MappingError
	switch d.Kind {
	case model.KindStruct:
		err = mp.mapStruct(ctx)
	case model.KindEnum:
		err = mp.mapEnum(ctx)
	case model.KindSum:
		err = mp.mapSum(ctx)
	case model.KindAlias:
		ctx.decl.Target, err = mp.typeOf(ctx, d.Target, use{byValue: true, arrays: true})
	case model.KindConstant:
		err = mp.mapConstant(ctx)
	case model.KindFunction:
		err = mp.mapFunction(ctx)
	case model.KindOpaque:
	default:
		err = ctx.fail("", fmt.Sprintf("unknown declaration kind %s", d.Kind))
	}
	if err != nil {
		return nil, err
	}
	return ctx.decl, nil
}

func (mp *mapper) mapStruct(ctx *declCtx) *model.MappingError {
	if len(ctx.src.Fields) == 0 {
		// C has no empty structs; the name stays usable behind a pointer
		ctx.decl.Kind = model.KindOpaque
		return nil
	}

	for _, f := range ctx.src.Fields {
		ctx.path = []string{f.Name}
		t, err := mp.typeOf(ctx, f.Type, use{byValue: true, arrays: true})
		if err != nil {
			return err
		}
		ctx.decl.Fields = append(ctx.decl.Fields, Field{Name: sanitize(f.Name), Type: t, Doc: f.Doc})
	}
	return nil
}

func (mp *mapper) mapEnum(ctx *declCtx) *model.MappingError {
	repr, ok := cPrimitives[ctx.src.Repr]
	if !ok || !ctx.src.Repr.IsInteger() {
		return ctx.fail("", fmt.Sprintf("enum representation %s is not an integer type", ctx.src.Repr))
	}
	if len(ctx.src.Variants) == 0 {
		return ctx.fail("", "enum has no variants")
	}

	ctx.decl.Repr = repr
	for _, v := range ctx.src.Variants {
		value := v.Value.Text
		if v.Value.Kind == model.ConstUint {
			value += "u"
		}
		ctx.decl.Enumerators = append(ctx.decl.Enumerators, Enumerator{
			Name:  mp.opts.Prefix + sanitize(v.Name),
			Value: value,
			Doc:   v.Doc,
		})
	}
	return nil
}

func (mp *mapper) mapSum(ctx *declCtx) *model.MappingError {
	if len(ctx.src.Variants) == 0 {
		return ctx.fail("", "sum type has no variants")
	}

	ctx.decl.Repr = ctx.decl.Name + "_Tag"
	for i, v := range ctx.src.Variants {
		ctx.decl.Enumerators = append(ctx.decl.Enumerators, Enumerator{
			Name:  ctx.decl.Name + "_" + v.Name,
			Value: fmt.Sprintf("%d", i),
			Doc:   v.Doc,
		})
		if v.Payload == nil {
			continue
		}

		ctx.path = []string{v.Name}
		t, err := mp.typeOf(ctx, v.Payload, use{byValue: true, arrays: true})
		if err != nil {
			return err
		}
		ctx.decl.Fields = append(ctx.decl.Fields, Field{Name: memberName(v.Name), Type: t, Doc: v.Doc})
	}
	return nil
}

func (mp *mapper) mapConstant(ctx *declCtx) *model.MappingError {
	v := ctx.src.Value
	if v.Kind == model.ConstString || v.Kind == model.ConstBool {
		if v.Kind == model.ConstString {
			ctx.decl.Value = quoteC(v.Text)
		} else {
			ctx.decl.Value = v.Text
		}
		return nil
	}

	var spelling string
	switch t := ctx.src.Target.(type) {
	case model.Primitive:
		s, ok := cPrimitives[t.Kind]
		if !ok || t.Kind == model.String || t.Kind == model.UnsafePointer {
			return ctx.fail(t.String(), "numeric constant of a non-numeric type")
		}
		spelling = s
	case model.Named:
		target, ok := mp.byName[t.Name]
		if !ok || (target.Kind != model.KindAlias && target.Kind != model.KindEnum) {
			return ctx.fail(t.Name, "constant type must be a scalar alias or an enum")
		}
		ctx.decl.Edges = append(ctx.decl.Edges, Edge{To: mp.cnames[t.Name], Full: true})
		spelling = mp.cnames[t.Name]
	default:
		if u, ok := model.FindUnsupported(ctx.src.Target); ok {
			return ctx.fail(u.String(), unsupportedDetail[u.Construct])
		}
		return ctx.fail(ctx.src.Target.String(), "constants must have a scalar type")
	}

	text := v.Text
	if v.Kind == model.ConstUint {
		text += "u"
	}
	ctx.decl.Target = CType{Spelling: spelling}
	ctx.decl.Value = fmt.Sprintf("((%s)%s)", spelling, text)
	return nil
}

func (mp *mapper) mapFunction(ctx *declCtx) *model.MappingError {
	for _, p := range ctx.src.Params {
		ctx.path = []string{p.Name}
		t, err := mp.typeOf(ctx, p.Type, use{byValue: true})
		if err != nil {
			return err
		}
		ctx.decl.Params = append(ctx.decl.Params, Field{Name: sanitize(p.Name), Type: t})
	}

	switch len(ctx.src.Results) {
	case 0:
		ctx.decl.Target = CType{Spelling: "void"}
	case 1:
		ctx.path = []string{ctx.src.Results[0].Name}
		t, err := mp.typeOf(ctx, ctx.src.Results[0].Type, use{byValue: true})
		if err != nil {
			return err
		}
		ctx.decl.Target = t
	default:
		ctx.path = nil
		h, err := mp.returnHelper(ctx)
		if err != nil {
			return err
		}
		ctx.edge(h.Name, true)
		ctx.decl.Target = CType{Spelling: h.Name}
	}
	return nil
}

// declCtx tracks the declaration being mapped. Edges go to decl; errors
// name src and the current path.
type declCtx struct {
	src  *model.Declaration
	decl *Decl
	path []string
}

func (c *declCtx) edge(to string, full bool) *Edge {
	via := ""
	if len(c.path) > 0 {
		via = c.path[0]
	}
	for i, e := range c.decl.Edges {
		if e.To == to {
			c.decl.Edges[i].Full = e.Full || full
			return &c.decl.Edges[i]
		}
	}
	c.decl.Edges = append(c.decl.Edges, Edge{To: to, Full: full, Via: via})
	return &c.decl.Edges[len(c.decl.Edges)-1]
}

func (c *declCtx) fail(construct, detail string) *model.MappingError {
	return &model.MappingError{
		Decl:      c.src.Name,
		Path:      append([]string(nil), c.path...),
		Construct: construct,
		Detail:    detail,
	}
}

// quoteC renders s as a C string literal
func quoteC(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range []byte(s) {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func usesNullable(d *Decl) bool {
	for _, f := range d.Fields {
		if strings.Contains(f.Type.Spelling, nullableMacro) {
			return true
		}
	}
	for _, p := range d.Params {
		if strings.Contains(p.Type.Spelling, nullableMacro) {
			return true
		}
	}
	return strings.Contains(d.Target.Spelling, nullableMacro)
}

// checkCollisions rejects two top-level C identifiers with the same spelling
func checkCollisions(decls []*Decl) error {
	owners := make(map[string]string)
	claim := func(d *Decl, id string) error {
		owner := d.Source
		if owner == "" {
			owner = d.Name
		}
		if other, ok := owners[id]; ok {
			return &model.MappingError{
				Decl:   owner,
				Detail: fmt.Sprintf("C name %s is also used by %s", id, other),
			}
		}
		owners[id] = owner
		return nil
	}

	for _, d := range decls {
		if err := claim(d, d.Name); err != nil {
			return err
		}
		if d.Kind == model.KindSum {
			if err := claim(d, d.Repr); err != nil {
				return err
			}
		}
		for _, e := range d.Enumerators {
			if err := claim(d, e.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
