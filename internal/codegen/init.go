package codegen

import (
	"github.com/okra-platform/cbind/internal/codegen/c"
)

// DefaultRegistry holds the built-in generators
var DefaultRegistry = NewRegistry()

func init() {
	header := func(opts Options) Generator {
		return c.NewGenerator(c.Options{
			Module:   opts.ModuleName,
			Comments: opts.IncludeComments,
			Includes: opts.Includes,
		})
	}

	DefaultRegistry.Register("c", header)
	// h is an alias for c
	DefaultRegistry.Register("h", header)
}
