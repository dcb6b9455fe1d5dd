// Package commands contains the CLI commands for the application
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/okra-platform/cbind/internal/bindgen"
	"github.com/okra-platform/cbind/internal/config"
	"github.com/okra-platform/cbind/internal/extract"
	"github.com/rs/zerolog"
)

// Flags are the command line values that override cbind.json
type Flags struct {
	LogLevel string

	Config   string
	Name     string
	Source   string
	Output   string
	Frontend string
	Language string
	Prefix   string
	Strict   bool
	Stdout   bool

	// Yes skips the init prompts
	Yes bool
}

// Dependencies are the side effects commands perform, replaceable in tests
type Dependencies struct {
	ConfigLoader   ConfigLoader
	SignalNotifier SignalNotifier
	Output         Output
}

// ConfigLoader finds the project configuration. An empty path searches the
// working directory and its parents.
type ConfigLoader interface {
	LoadConfig(path string) (*config.Config, string, error)
}

type SignalNotifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// Output receives user-facing messages and --stdout headers
type Output interface {
	io.Writer
	Printf(format string, a ...any)
}

type defaultConfigLoader struct{}

func (l *defaultConfigLoader) LoadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadConfigFromPath(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, filepath.Dir(path), nil
	}

	cfg, dir, err := config.LoadConfig()
	if errors.Is(err, config.ErrNotFound) {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, "", fmt.Errorf("failed to get current directory: %w", wdErr)
		}
		return config.Default(wd), wd, nil
	}
	return cfg, dir, err
}

type defaultSignalNotifier struct{}

func (defaultSignalNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (defaultSignalNotifier) Stop(c chan<- os.Signal)                     { signal.Stop(c) }

type defaultOutput struct {
	io.Writer
}

func (o defaultOutput) Printf(format string, a ...any) {
	fmt.Fprintf(o.Writer, format, a...)
}

// Controller runs the cbind commands
type Controller struct {
	Flags  *Flags
	Logger zerolog.Logger
	deps   Dependencies
}

// NewController creates a controller with the default dependencies
func NewController(flags *Flags, logger zerolog.Logger) *Controller {
	return &Controller{
		Flags:  flags,
		Logger: logger,
		deps: Dependencies{
			ConfigLoader:   &defaultConfigLoader{},
			SignalNotifier: defaultSignalNotifier{},
			Output:         defaultOutput{Writer: os.Stdout},
		},
	}
}

// WithDependencies allows injecting custom dependencies for testing
func (c *Controller) WithDependencies(deps Dependencies) *Controller {
	c.deps = deps
	return c
}

// project is a loaded configuration with flag overrides applied
type project struct {
	cfg *config.Config
	dir string
}

func (c *Controller) loadProject() (*project, error) {
	cfg, dir, err := c.deps.ConfigLoader.LoadConfig(c.Flags.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	f := c.Flags
	if f.Name != "" {
		cfg.Name = f.Name
	}
	if f.Source != "" {
		cfg.Source = f.Source
		if f.Frontend == "" {
			cfg.Frontend = string(extract.DetectFrontend(cfg.SourcePath(dir)))
		}
	}
	if f.Frontend != "" {
		cfg.Frontend = f.Frontend
	}
	cfg.Rederive()
	if f.Output != "" {
		cfg.Output = f.Output
	}
	if f.Language != "" {
		cfg.Language = f.Language
	}
	if f.Prefix != "" {
		cfg.Prefix = f.Prefix
	}
	if f.Strict {
		cfg.Strict = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &project{cfg: cfg, dir: dir}, nil
}

func (p *project) source() string {
	return p.cfg.SourcePath(p.dir)
}

func (p *project) options(logger zerolog.Logger) bindgen.Options {
	return bindgen.Options{
		Frontend:        extract.Frontend(p.cfg.Frontend),
		ModuleName:      p.cfg.Name,
		Prefix:          p.cfg.Prefix,
		Strict:          p.cfg.Strict,
		Language:        p.cfg.Language,
		IncludeComments: p.cfg.IncludeComments,
		Includes:        p.cfg.Includes,
		Logger:          logger,
	}
}

// render runs the pipeline for the project and resolves the output path
func (c *Controller) render(p *project) (*bindgen.Output, string, error) {
	out, err := bindgen.Generate(p.source(), p.options(c.Logger))
	if err != nil {
		return nil, "", err
	}
	return out, p.cfg.OutputPath(p.dir, out.Module), nil
}
