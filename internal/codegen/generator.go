// Package codegen renders mapped declarations into output files. Each
// output dialect registers a Generator factory.
package codegen

import "github.com/okra-platform/cbind/internal/mapper"

// Generator renders a mapped module whose declarations are already in
// dependency order
type Generator interface {
	// Generate returns the complete file contents
	Generate(res *mapper.Result) ([]byte, error)

	// Language names the dialect (e.g. "c")
	Language() string

	// FileExtension is the extension of generated files (e.g. ".h")
	FileExtension() string
}

// Options are shared by every generator
type Options struct {
	// ModuleName overrides the module name recorded in the result
	ModuleName string

	// IncludeComments copies documentation into the output
	IncludeComments bool

	// Includes are extra headers included after the standard ones
	Includes []string
}
