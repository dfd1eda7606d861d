package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zam/internal/config"
	"zam/internal/prof"
)

// active holds the settings of the running command.
var (
	active       settings
	traceCleanup func()
	profiling    *prof.Session
)

type settings struct {
	cfg     config.Config
	color   bool
	timings bool
	ui      uiMode
	// diagFormat is pretty, json or sarif.
	diagFormat string
}

// loadSettings reads zam.toml and lets explicitly set flags override it.
func loadSettings(cmd *cobra.Command) (settings, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return settings{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return settings{}, err
	}

	override := func(name string, apply func() error) error {
		if !flags.Changed(name) {
			return nil
		}
		if err := apply(); err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		return nil
	}
	steps := []struct {
		name  string
		apply func() error
	}{
		{"jobs", func() (err error) { cfg.Compile.Jobs, err = flags.GetInt("jobs"); return }},
		{"max-diagnostics", func() (err error) { cfg.Compile.MaxDiagnostics, err = flags.GetInt("max-diagnostics"); return }},
		{"keep-dead", func() error {
			keep, err := flags.GetBool("keep-dead")
			cfg.Compile.ElideDead = !keep
			return err
		}},
		{"trace", func() (err error) { cfg.Trace.Output, err = flags.GetString("trace"); return }},
		{"trace-level", func() (err error) { cfg.Trace.Level, err = flags.GetString("trace-level"); return }},
		{"trace-mode", func() (err error) { cfg.Trace.Mode, err = flags.GetString("trace-mode"); return }},
		{"trace-format", func() (err error) { cfg.Trace.Format, err = flags.GetString("trace-format"); return }},
		{"trace-body", func() (err error) { cfg.Trace.Body, err = flags.GetString("trace-body"); return }},
		{"color", func() (err error) { cfg.Dump.Color, err = flags.GetString("color"); return }},
	}
	for _, s := range steps {
		if err := override(s.name, s.apply); err != nil {
			return settings{}, err
		}
	}
	// A trace file implies tracing even when the level was left at off.
	if flags.Changed("trace") && !flags.Changed("trace-level") && cfg.Trace.Level == "off" {
		cfg.Trace.Level = "phase"
	}
	if err := cfg.Validate(); err != nil {
		return settings{}, err
	}

	timings, err := flags.GetBool("timings")
	if err != nil {
		return settings{}, fmt.Errorf("failed to get timings flag: %w", err)
	}
	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return settings{}, fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return settings{}, err
	}
	diagFormat, err := flags.GetString("diag-format")
	if err != nil {
		return settings{}, fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	switch diagFormat {
	case "pretty", "json", "sarif":
	default:
		return settings{}, fmt.Errorf("invalid --diag-format value %q (expected pretty|json|sarif)", diagFormat)
	}
	return settings{
		diagFormat: diagFormat,
		ui:         mode,
		cfg:        cfg,
		color:      cfg.Dump.Color == "on" || (cfg.Dump.Color == "auto" && isTerminal(os.Stdout)),
		timings:    timings,
	}, nil
}
