package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zam/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "zam",
	Short:         "Compile function bodies to ZAM code and run them",
	Long:          `zam lowers function bodies into flat abstract-machine code, dumps the result and runs it under a virtual-time scheduler`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		cleanup, err := setupTracing(cmd, s)
		if err != nil {
			return err
		}
		session, err := setupProfiling(cmd)
		if err != nil {
			cleanup()
			return err
		}
		active = s
		traceCleanup = cleanup
		profiling = session
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if traceCleanup != nil {
			traceCleanup()
		}
		return profiling.Stop()
	},
}

func init() {
	rootCmd.Version = version.Pretty(false)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to zam.toml (default: search upwards from the working directory)")
	flags.String("color", "", "colorize output (auto|on|off)")
	flags.Int("jobs", 0, "bodies compiled in parallel (0 = GOMAXPROCS)")
	flags.Int("max-diagnostics", 0, "maximum number of diagnostics per body")
	flags.Bool("keep-dead", false, "keep assignments to variables that are never read")
	flags.Bool("timings", false, "show timing information")
	flags.String("diag-format", "pretty", "diagnostics format (pretty|json|sarif)")
	flags.String("ui", "off", "compile progress view on stderr (auto|on|off)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace storage (stream|ring|both)")
	flags.String("trace-format", "", "trace format (text|ndjson)")
	flags.String("trace-body", "", "only dump ring events of this function body")
	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
