// Package bindgen runs the header generation pipeline: extract the module
// surface, map it to C, order the declarations and render the header.
//
// Fatal errors stop the run before any text is produced. They are one of
// the tagged types re-exported below and can be matched with errors.As.
package bindgen

import (
	"fmt"

	"github.com/okra-platform/cbind/internal/codegen"
	"github.com/okra-platform/cbind/internal/extract"
	"github.com/okra-platform/cbind/internal/mapper"
	"github.com/okra-platform/cbind/internal/model"
	"github.com/okra-platform/cbind/internal/order"
	"github.com/rs/zerolog"
)

type (
	Error                 = model.Error
	ErrorKind             = model.ErrorKind
	ExtractionError       = model.ExtractionError
	MappingError          = model.MappingError
	CyclicDependencyError = model.CyclicDependencyError
)

// DefaultLanguage is the generator used when Options.Language is empty
const DefaultLanguage = "c"

// Options configures one pipeline run
type Options struct {
	Frontend extract.Frontend
	// ModuleName overrides the extracted module name
	ModuleName string
	Prefix     string
	Strict     bool

	Language        string
	IncludeComments bool
	Includes        []string

	// Registry resolves Language; nil means codegen.DefaultRegistry
	Registry *codegen.Registry
	Logger   zerolog.Logger
}

// Output is the result of a successful run
type Output struct {
	Module string
	Header []byte
	// Extension is the generator's file extension
	Extension string
	// Declarations counts the emitted declarations, helpers included
	Declarations int
	// Dropped lists the declarations skipped with a warning
	Dropped []*MappingError
}

// Generate extracts the module at root and renders its header
func Generate(root string, opts Options) (*Output, error) {
	m, err := extract.Extract(root, extract.Options{Frontend: opts.Frontend, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return Render(m, opts)
}

// Render maps, orders and renders an extracted module
func Render(m *model.Module, opts Options) (*Output, error) {
	logger := opts.Logger.With().Str("component", "bindgen").Logger()

	gen, err := generator(opts)
	if err != nil {
		return nil, err
	}

	res, err := mapper.Map(m, mapper.Options{Prefix: opts.Prefix, Strict: opts.Strict, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}

	if err := Order(res); err != nil {
		return nil, err
	}

	header, err := gen.Generate(res)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", gen.Language(), err)
	}

	module := res.Module
	if opts.ModuleName != "" {
		module = opts.ModuleName
	}

	logger.Debug().
		Str("module", module).
		Int("declarations", len(res.Decls)).
		Int("dropped", len(res.Dropped)).
		Msg("rendered header")

	return &Output{
		Module:       module,
		Header:       header,
		Extension:    gen.FileExtension(),
		Declarations: len(res.Decls),
		Dropped:      res.Dropped,
	}, nil
}

// Order sorts res.Decls so that every full edge points at an earlier
// declaration. Unrelated declarations keep their mapped order.
func Order(res *mapper.Result) error {
	names := make([]string, len(res.Decls))
	index := make(map[string]int, len(res.Decls))
	for i, d := range res.Decls {
		names[i] = d.Name
		index[d.Name] = i
	}

	g := order.NewGraph(names)
	for i, d := range res.Decls {
		for _, e := range d.Edges {
			if !e.Full {
				continue
			}
			to, ok := index[e.To]
			if !ok {
				return fmt.Errorf("%s refers to undeclared %s", d.Name, e.To)
			}
			g.AddEdge(i, to)
		}
	}

	sorted, err := g.Sort()
	if err != nil {
		return err
	}

	decls := make([]*mapper.Decl, len(sorted))
	for i, idx := range sorted {
		decls[i] = res.Decls[idx]
	}
	res.Decls = decls
	return nil
}

func generator(opts Options) (codegen.Generator, error) {
	registry := opts.Registry
	if registry == nil {
		registry = codegen.DefaultRegistry
	}
	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	return registry.Get(language, codegen.Options{
		ModuleName:      opts.ModuleName,
		IncludeComments: opts.IncludeComments,
		Includes:        opts.Includes,
	})
}
