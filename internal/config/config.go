// Package config loads zam.toml, the optional per-directory settings file
// of the zam command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name searched for by Find.
const FileName = "zam.toml"

// Config is the decoded zam.toml.
type Config struct {
	Compile Compile `toml:"compile"`
	Trace   Trace   `toml:"trace"`
	Sched   Sched   `toml:"sched"`
	Dump    Dump    `toml:"dump"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type Compile struct {
	Jobs           int  `toml:"jobs"`
	MaxDiagnostics int  `toml:"max_diagnostics"`
	ElideDead      bool `toml:"elide_dead"`
}

type Trace struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
	Output string `toml:"output"`
	// Body restricts the ring dump to one function body.
	Body string `toml:"body"`
}

type Sched struct {
	TickMs uint64 `toml:"tick_ms"`
}

type Dump struct {
	Color string `toml:"color"`
}

// Default returns the settings used when no zam.toml exists.
func Default() Config {
	return Config{
		Compile: Compile{MaxDiagnostics: 100, ElideDead: true},
		Trace:   Trace{Level: "off", Mode: "stream", Format: "text", Output: "-"},
		Sched:   Sched{TickMs: 1},
		Dump:    Dump{Color: "auto"},
	}
}

var (
	traceModes   = []string{"stream", "ring", "both"}
	traceFormats = []string{"text", "ndjson"}
	traceLevels  = []string{"off", "error", "phase", "detail", "debug"}
	colorModes   = []string{"auto", "on", "off"}
)

// Find walks up from startDir to locate zam.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("config: resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("config: stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load returns the config found from startDir, or the defaults.
func Load(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return Default(), err
	}
	return LoadFile(path)
}

// LoadFile decodes path over the defaults. Unknown keys are an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Compile.Jobs < 0:
		return fmt.Errorf("compile.jobs must not be negative, got %d", c.Compile.Jobs)
	case c.Compile.MaxDiagnostics < 0:
		return fmt.Errorf("compile.max_diagnostics must not be negative, got %d", c.Compile.MaxDiagnostics)
	case !slices.Contains(traceLevels, c.Trace.Level):
		return fmt.Errorf("trace.level %q is not one of %s", c.Trace.Level, strings.Join(traceLevels, "|"))
	case !slices.Contains(traceModes, c.Trace.Mode):
		return fmt.Errorf("trace.mode %q is not one of %s", c.Trace.Mode, strings.Join(traceModes, "|"))
	case !slices.Contains(traceFormats, c.Trace.Format):
		return fmt.Errorf("trace.format %q is not one of %s", c.Trace.Format, strings.Join(traceFormats, "|"))
	case !slices.Contains(colorModes, c.Dump.Color):
		return fmt.Errorf("dump.color %q is not one of %s", c.Dump.Color, strings.Join(colorModes, "|"))
	}
	return nil
}
