// Package version holds build metadata for the zam command. The variables
// can be overridden at build time via -ldflags.
package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the command.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var partColors = []*color.Color{
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgBlue, color.Bold),
}

// Pretty renders Version with each numeric part in its own color when
// colored is set. Pre-release suffixes stay uncolored.
func Pretty(colored bool) string {
	v := strings.TrimSpace(Version)
	if v == "" {
		v = "dev"
	}
	if !colored {
		return v
	}
	core, suffix, hasSuffix := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	for i, p := range parts {
		if i < len(partColors) {
			c := *partColors[i]
			c.EnableColor()
			parts[i] = c.Sprint(p)
		}
	}
	out := strings.Join(parts, ".")
	if hasSuffix {
		out = fmt.Sprintf("%s-%s", out, suffix)
	}
	return out
}
