package codegen

import (
	"testing"

	"github.com/okra-platform/cbind/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator is a test generator
type mockGenerator struct {
	lang string
	opts Options
}

func (m *mockGenerator) Generate(res *mapper.Result) ([]byte, error) {
	return []byte("mock output"), nil
}

func (m *mockGenerator) Language() string {
	return m.lang
}

func (m *mockGenerator) FileExtension() string {
	return ".mock"
}

func TestRegistry_NewRegistry(t *testing.T) {
	// Test: New registry is empty by default
	r := NewRegistry()
	assert.NotNil(t, r)
	assert.Empty(t, r.Languages())

	_, err := r.Get("unknown", Options{})
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	// Test: options reach the factory
	r := NewRegistry()
	r.Register("mock", func(opts Options) Generator {
		return &mockGenerator{lang: "mock", opts: opts}
	})

	gen, err := r.Get("mock", Options{ModuleName: "geo", IncludeComments: true})
	require.NoError(t, err)
	assert.Equal(t, "mock", gen.Language())

	mock := gen.(*mockGenerator)
	assert.Equal(t, "geo", mock.opts.ModuleName)
	assert.True(t, mock.opts.IncludeComments)
}

func TestRegistry_UnsupportedLanguage(t *testing.T) {
	// Test: Error for unsupported language
	r := NewRegistry()

	gen, err := r.Get("rust", Options{})
	assert.Nil(t, gen)
	assert.EqualError(t, err, "unsupported language: rust")
}

func TestRegistry_Languages(t *testing.T) {
	// Test: languages come back sorted
	r := NewRegistry()
	for _, lang := range []string{"zig", "c", "h"} {
		lang := lang
		r.Register(lang, func(Options) Generator { return &mockGenerator{lang: lang} })
	}

	assert.Equal(t, []string{"c", "h", "zig"}, r.Languages())
}

func TestDefaultRegistry(t *testing.T) {
	// Test: the C header generator is registered under c and h
	assert.Equal(t, []string{"c", "h"}, DefaultRegistry.Languages())

	for _, lang := range []string{"c", "h"} {
		gen, err := DefaultRegistry.Get(lang, Options{ModuleName: "geo"})
		require.NoError(t, err)
		assert.Equal(t, "c", gen.Language())
		assert.Equal(t, ".h", gen.FileExtension())
	}
}
