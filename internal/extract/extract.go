// Package extract builds a model.Module from a source module root.
//
// Two front ends are supported: a directory of Go source files and an
// okra-style GraphQL IDL file. Both produce the same declaration model; the
// shared post-processing in this file checks names and drops unexported
// declarations nothing exported can reach.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/okra-platform/cbind/internal/model"
	"github.com/rs/zerolog"
)

// Frontend selects how a module root is read
type Frontend string

const (
	FrontendGo      Frontend = "go"
	FrontendGraphQL Frontend = "graphql"
)

// schemaExtensions are the file suffixes handled by the GraphQL front end,
// longest first so ".okra.gql" wins over ".gql".
var schemaExtensions = []string{".okra.gql", ".graphql", ".gql"}

// Options configures an extraction run
type Options struct {
	// Frontend forces a front end; empty means DetectFrontend
	Frontend Frontend
	Logger   zerolog.Logger
}

// Extract reads the module at root and returns its declarations in source order
func Extract(root string, opts Options) (*model.Module, error) {
	frontend := opts.Frontend
	if frontend == "" {
		frontend = DetectFrontend(root)
	}

	logger := opts.Logger.With().Str("component", "extract").Str("frontend", string(frontend)).Logger()

	var (
		m   *model.Module
		err error
	)
	switch frontend {
	case FrontendGo:
		m, err = extractGo(root, logger)
	case FrontendGraphQL:
		m, err = extractGraphQL(root)
	default:
		return nil, &model.ExtractionError{Root: root, Detail: "unknown frontend " + string(frontend)}
	}
	if err != nil {
		return nil, err
	}

	if err := checkNames(root, m); err != nil {
		return nil, err
	}

	before := len(m.Declarations)
	m.Declarations = reachable(m.Declarations)
	logger.Debug().
		Str("module", m.Name).
		Int("declarations", len(m.Declarations)).
		Int("omitted", before-len(m.Declarations)).
		Msg("extracted module")

	return m, nil
}

// DetectFrontend picks the GraphQL front end for schema files and for
// directories holding a schema but no Go sources, and the Go front end otherwise.
func DetectFrontend(root string) Frontend {
	if isSchemaFile(root) {
		return FrontendGraphQL
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return FrontendGo
	}

	hasSchema := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".go") {
			return FrontendGo
		}
		if isSchemaFile(e.Name()) {
			hasSchema = true
		}
	}
	if hasSchema {
		return FrontendGraphQL
	}
	return FrontendGo
}

func isSchemaFile(path string) bool {
	base := filepath.Base(path)
	for _, ext := range schemaExtensions {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

// checkNames rejects duplicate declaration names and references to names
// that no declaration defines.
func checkNames(root string, m *model.Module) error {
	seen := make(map[string]bool, len(m.Declarations))
	for _, d := range m.Declarations {
		if seen[d.Name] {
			return &model.ExtractionError{Root: root, Decl: d.Name, Detail: "duplicate declaration name"}
		}
		seen[d.Name] = true
	}

	for _, d := range m.Declarations {
		for _, t := range d.Refs() {
			for _, ref := range model.References(t) {
				if !seen[ref.Name] {
					return &model.ExtractionError{
						Root:   root,
						Decl:   d.Name,
						Detail: "reference to undeclared type " + ref.Name,
					}
				}
			}
		}
	}
	return nil
}

// reachable keeps exported declarations and every declaration they reach
// through any chain of references, preserving order.
func reachable(decls []*model.Declaration) []*model.Declaration {
	byName := make(map[string]*model.Declaration, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}

	keep := make(map[string]bool, len(decls))
	var stack []*model.Declaration
	for _, d := range decls {
		if d.Exported {
			keep[d.Name] = true
			stack = append(stack, d)
		}
	}

	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range d.Refs() {
			for _, ref := range model.References(t) {
				if keep[ref.Name] {
					continue
				}
				keep[ref.Name] = true
				stack = append(stack, byName[ref.Name])
			}
		}
	}

	out := make([]*model.Declaration, 0, len(keep))
	for _, d := range decls {
		if keep[d.Name] {
			out = append(out, d)
		}
	}
	return out
}
