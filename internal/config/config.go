// Package config loads cbind.json project files
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okra-platform/cbind/internal/extract"
)

// FileName is the project file searched for by LoadConfig
const FileName = "cbind.json"

// ErrNotFound is returned when no cbind.json exists in the directory or any parent
var ErrNotFound = errors.New("no " + FileName + " found")

// Config represents the cbind.json configuration file
type Config struct {
	Name            string      `json:"name,omitempty"`
	Frontend        string      `json:"frontend,omitempty"`
	Source          string      `json:"source"`
	Output          string      `json:"output,omitempty"`
	Language        string      `json:"language"`
	Prefix          string      `json:"prefix"`
	Includes        []string    `json:"includes"`
	IncludeComments bool        `json:"include_comments"`
	Strict          bool        `json:"strict"`
	Watch           WatchConfig `json:"watch"`

	// fields filled in by ApplyDefaults rather than the file
	derivedOutput   bool
	derivedPatterns bool
}

// WatchConfig selects the files that trigger regeneration in watch mode
type WatchConfig struct {
	Patterns []string `json:"patterns"`
	Exclude  []string `json:"exclude"`
}

// Default returns the configuration used without a cbind.json, with
// defaults applied relative to dir
func Default(dir string) *Config {
	c := &Config{IncludeComments: true}
	c.ApplyDefaults(dir)
	return c
}

// LoadConfig loads cbind.json from the current directory or a parent directory.
// It returns the directory holding the file.
func LoadConfig() (*Config, string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return LoadConfigFromDir(dir)
}

// LoadConfigFromPath loads a specific cbind.json. Relative paths in the file
// are resolved against its directory.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{IncludeComments: true}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults(filepath.Dir(path))
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &config, nil
}

// LoadConfigFromDir searches for cbind.json in startDir and its parents
func LoadConfigFromDir(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			config, err := LoadConfigFromPath(configPath)
			if err != nil {
				return nil, "", err
			}
			return config, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return nil, "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, startDir)
}

// ApplyDefaults fills unset fields. The front end is detected from the
// source path under dir.
func (c *Config) ApplyDefaults(dir string) {
	if c.Source == "" {
		c.Source = "./"
	}
	if c.Language == "" {
		c.Language = "c"
	}
	if c.Frontend == "" {
		c.Frontend = string(extract.DetectFrontend(c.SourcePath(dir)))
	}
	if c.Output == "" && c.Name != "" {
		c.Output = DefaultOutput(c.Name)
		c.derivedOutput = true
	}
	if len(c.Watch.Patterns) == 0 {
		c.Watch.Patterns = watchPatterns(c.Frontend)
		c.derivedPatterns = true
	}
	if len(c.Watch.Exclude) == 0 {
		c.Watch.Exclude = []string{"*_test.go", ".git/", "vendor/", "include/"}
	}
}

// Rederive recomputes the defaults that follow the name and the front end
// after either changed. Values the file set are kept.
func (c *Config) Rederive() {
	if c.derivedOutput && c.Name != "" {
		c.Output = DefaultOutput(c.Name)
	}
	if c.derivedPatterns {
		c.Watch.Patterns = watchPatterns(c.Frontend)
	}
}

func watchPatterns(frontend string) []string {
	if extract.Frontend(frontend) == extract.FrontendGraphQL {
		return []string{"*.okra.gql", "**/*.okra.gql", "*.graphql", "**/*.graphql", "*.gql", "**/*.gql"}
	}
	return []string{"*.go", "**/*.go", "go.mod"}
}

// Validate rejects values the pipeline cannot use
func (c *Config) Validate() error {
	switch extract.Frontend(c.Frontend) {
	case extract.FrontendGo, extract.FrontendGraphQL:
	default:
		return fmt.Errorf("unknown frontend %q", c.Frontend)
	}
	return nil
}

// SourcePath resolves the source against the project directory
func (c *Config) SourcePath(dir string) string {
	if filepath.IsAbs(c.Source) {
		return c.Source
	}
	return filepath.Join(dir, c.Source)
}

// OutputPath resolves the output against the project directory. An unset
// output is derived from module, the name found by extraction.
func (c *Config) OutputPath(dir, module string) string {
	out := c.Output
	if out == "" {
		out = DefaultOutput(module)
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(dir, out)
}

// Marshal encodes the configuration as indented JSON
func (c *Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return append(data, '\n'), nil
}

// DefaultOutput is the header path used when none is configured
func DefaultOutput(name string) string {
	return "./include/" + name + ".h"
}
