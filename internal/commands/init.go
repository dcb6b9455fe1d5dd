package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/okra-platform/cbind/internal/config"
	"github.com/okra-platform/cbind/internal/extract"
)

type InitOptions struct {
	Name            string
	Frontend        string
	Output          string
	Prefix          string
	IncludeComments bool
}

type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Getwd() (string, error)
}

type osFileSystem struct{}

func (fs *osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (fs *osFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (fs *osFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

type InitCommand struct {
	filesystem FileSystem
	output     Output
	// yes accepts the detected defaults without prompting
	yes bool
	// For testing: if set, skip prompting
	testOptions *InitOptions
}

func NewInitCommand(yes bool, output Output) *InitCommand {
	return &InitCommand{
		filesystem: &osFileSystem{},
		output:     output,
		yes:        yes,
	}
}

// Init writes a cbind.json in the working directory
func (c *Controller) Init(ctx context.Context) error {
	cmd := NewInitCommand(c.Flags.Yes, c.deps.Output)
	return cmd.Run(ctx)
}

func (ic *InitCommand) Run(ctx context.Context) error {
	return ic.RunWithOptions(ctx)
}

func (ic *InitCommand) RunWithOptions(ctx context.Context, opts ...tea.ProgramOption) error {
	dir, err := ic.filesystem.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := ic.filesystem.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	options := ic.defaults(dir)
	switch {
	case ic.testOptions != nil:
		options = ic.testOptions
	case !ic.yes:
		if err := ic.promptInitOptions(options, opts...); err != nil {
			return fmt.Errorf("failed to get init options: %w", err)
		}
	}

	cfg := &config.Config{
		Name:            options.Name,
		Frontend:        options.Frontend,
		Output:          options.Output,
		Prefix:          options.Prefix,
		IncludeComments: options.IncludeComments,
	}
	cfg.ApplyDefaults(dir)
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := ic.filesystem.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	ic.output.Printf("created %s for %s (%s front end)\n", path, cfg.Name, cfg.Frontend)
	return nil
}

// defaults derives the initial answers from the directory
func (ic *InitCommand) defaults(dir string) *InitOptions {
	name := filepath.Base(dir)
	return &InitOptions{
		Name:            name,
		Frontend:        string(extract.DetectFrontend(dir)),
		Output:          config.DefaultOutput(name),
		IncludeComments: true,
	}
}

func (ic *InitCommand) promptInitOptions(options *InitOptions, opts ...tea.ProgramOption) error {
	form := ic.createInitForm(options)

	if len(opts) > 0 {
		// For testing: run with provided options
		program := tea.NewProgram(form, opts...)
		if _, err := program.Run(); err != nil {
			return err
		}
		return nil
	}
	return form.Run()
}

func (ic *InitCommand) createInitForm(options *InitOptions) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Module name").
				Description("Used for the include guard and the default header name").
				Value(&options.Name).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("module name cannot be empty")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Front end").
				Description("Where the module surface is read from").
				Options(
					huh.NewOption("Go package", string(extract.FrontendGo)),
					huh.NewOption("GraphQL schema", string(extract.FrontendGraphQL)),
				).
				Value(&options.Frontend),

			huh.NewInput().
				Title("Output").
				Description("Path of the generated header").
				Value(&options.Output),

			huh.NewInput().
				Title("Prefix").
				Description("Prepended to every C name (optional)").
				Value(&options.Prefix),

			huh.NewConfirm().
				Title("Copy documentation comments into the header?").
				Value(&options.IncludeComments),
		),
	)
}
