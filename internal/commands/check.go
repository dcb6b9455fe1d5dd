package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrOutOfDate is returned by Check when the header on disk differs from
// the generated one
var ErrOutOfDate = errors.New("header is out of date")

// Check runs the pipeline without writing and compares the result with the
// header on disk
func (c *Controller) Check(ctx context.Context) error {
	p, err := c.loadProject()
	if err != nil {
		return err
	}

	out, path, err := c.render(p)
	if err != nil {
		return err
	}

	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s does not exist; run cbind generate", ErrOutOfDate, path)
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", path, err)
	case !bytes.Equal(existing, out.Header):
		return fmt.Errorf("%w: %s differs; run cbind generate", ErrOutOfDate, path)
	}

	c.deps.Output.Printf("%s is up to date (%d declarations)\n", path, out.Declarations)
	return nil
}
