package commands

import (
	"context"
)

// Generate runs the pipeline and writes the header
func (c *Controller) Generate(ctx context.Context) error {
	p, err := c.loadProject()
	if err != nil {
		return err
	}

	out, path, err := c.render(p)
	if err != nil {
		return err
	}

	if c.Flags.Stdout {
		_, err := c.deps.Output.Write(out.Header)
		return err
	}

	if err := WriteFileAtomic(path, out.Header, 0644); err != nil {
		return err
	}

	c.Logger.Info().Str("path", path).Int("declarations", out.Declarations).Msg("header written")
	c.deps.Output.Printf("wrote %s (%d declarations", path, out.Declarations)
	if n := len(out.Dropped); n > 0 {
		c.deps.Output.Printf(", %d skipped", n)
	}
	c.deps.Output.Printf(")\n")
	return nil
}
