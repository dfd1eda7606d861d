package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zam/internal/prof"
)

// setupProfiling starts the profilers requested by the persistent flags.
func setupProfiling(cmd *cobra.Command) (*prof.Session, error) {
	flags := cmd.Root().PersistentFlags()
	var paths prof.Paths
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"cpu-profile", &paths.CPU},
		{"mem-profile", &paths.Mem},
		{"runtime-trace", &paths.Trace},
	} {
		v, err := flags.GetString(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
		*f.dst = v
	}
	return prof.Start(paths)
}
