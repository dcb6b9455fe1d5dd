package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/okra-platform/cbind/internal/commands"
	"github.com/okra-platform/cbind/internal/model"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

// pipelineFlags are shared by generate, check and watch
func pipelineFlags(flags *commands.Flags) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to cbind.json (default: search the working directory and its parents)",
			Destination: &flags.Config,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "module root: a Go package directory or a schema file",
			Destination: &flags.Source,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "header path",
			Destination: &flags.Output,
		},
		&cli.StringFlag{
			Name:        "name",
			Usage:       "module name used for the include guard",
			Destination: &flags.Name,
		},
		&cli.StringFlag{
			Name:        "frontend",
			Usage:       "source front end (go, graphql)",
			Destination: &flags.Frontend,
		},
		&cli.StringFlag{
			Name:        "language",
			Usage:       "output generator (c, h)",
			Destination: &flags.Language,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "prefix for every generated C name",
			Destination: &flags.Prefix,
		},
		&cli.BoolFlag{
			Name:        "strict",
			Usage:       "fail on any declaration without a C representation",
			Destination: &flags.Strict,
		},
	}
}

func main() {
	flags := &commands.Flags{}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	ctrl := commands.NewController(flags, log.Logger)

	app := &cli.Command{
		Name:    "cbind",
		Usage:   "Generate C headers for the exported surface of a module",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CBIND_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return ctx, fmt.Errorf("failed to parse log level: %w", err)
			}

			log.Logger = log.Level(level)
			ctrl.Logger = log.Logger

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate the header",
				Flags: append(pipelineFlags(flags), &cli.BoolFlag{
					Name:        "stdout",
					Usage:       "print the header instead of writing it",
					Destination: &flags.Stdout,
				}),
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Generate(ctx)
				},
			},
			{
				Name:  "check",
				Usage: "Verify the header on disk is up to date",
				Flags: pipelineFlags(flags),
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Check(ctx)
				},
			},
			{
				Name:  "watch",
				Usage: "Regenerate the header when sources change",
				Flags: pipelineFlags(flags),
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Watch(ctx)
				},
			},
			{
				Name:  "init",
				Usage: "Create a cbind.json in the working directory",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "yes",
						Aliases:     []string{"y"},
						Usage:       "accept the detected defaults without prompting",
						Destination: &flags.Yes,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Init(ctx)
				},
			},
		},
	}

	ctx := context.Background()

	if err := app.Run(ctx, os.Args); err != nil {
		var pipelineErr model.Error
		if errors.As(err, &pipelineErr) {
			log.Error().Str("kind", string(pipelineErr.ErrorKind())).Strs("names", pipelineErr.Names()).Msg(err.Error())
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("failed to run cbind")
	}
}
