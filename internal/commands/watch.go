package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/okra-platform/cbind/internal/watch"
)

// Watch regenerates the header whenever a watched source file changes.
// Pipeline errors are reported and watching continues.
func (c *Controller) Watch(ctx context.Context) error {
	p, err := c.loadProject()
	if err != nil {
		return err
	}

	root := p.source()
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		root = filepath.Dir(root)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	c.deps.SignalNotifier.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer c.deps.SignalNotifier.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			c.deps.Output.Printf("\nstopping watch\n")
			cancel()
		case <-ctx.Done():
		}
	}()

	w, err := watch.New(watch.Options{
		Patterns: p.cfg.Watch.Patterns,
		Exclude:  p.cfg.Watch.Exclude,
		Logger:   c.Logger,
	}, func(paths []string) {
		c.Logger.Info().Strs("paths", paths).Msg("sources changed")
		c.regenerate(p)
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.AddDirectory(root); err != nil {
		return err
	}

	c.deps.Output.Printf("watching %s\n", root)
	c.regenerate(p)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}

func (c *Controller) regenerate(p *project) {
	out, path, err := c.render(p)
	if err == nil {
		err = WriteFileAtomic(path, out.Header, 0644)
	}
	if err != nil {
		c.Logger.Error().Err(err).Msg("generation failed")
		c.deps.Output.Printf("error: %v\n", err)
		return
	}
	c.deps.Output.Printf("wrote %s (%d declarations)\n", path, out.Declarations)
}
