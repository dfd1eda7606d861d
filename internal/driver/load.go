package driver

import (
	"fmt"
	"io"
	"os"

	"zam/internal/tree"
)

// Load decodes function bodies in wire form and adds them to the program.
func (p *Program) Load(r io.Reader) ([]*tree.Function, error) {
	done := p.opts.Timer.Track("load")
	fns, err := tree.Decode(r, p)
	if err != nil {
		done("failed")
		return nil, fmt.Errorf("driver: load: %w", err)
	}
	if err := p.Add(fns...); err != nil {
		done("failed")
		return nil, err
	}
	done(fmt.Sprintf("%d functions", len(fns)))
	return fns, nil
}

// LoadFile is Load on the named file.
func (p *Program) LoadFile(path string) ([]*tree.Function, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	defer f.Close()
	return p.Load(f)
}
