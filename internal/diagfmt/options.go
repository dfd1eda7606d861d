// Package diagfmt renders a diagnostics bag for people and for tools.
package diagfmt

// PrettyOpts configures Pretty.
type PrettyOpts struct {
	Color     bool
	ShowNotes bool
	// ShowInfo includes SevInfo diagnostics such as timings.
	ShowInfo bool
}

// JSONOpts configures JSON.
type JSONOpts struct {
	Max          int // cut the output, not the bag
	IncludeNotes bool
}

// SarifRunMeta provides metadata for SARIF output.
type SarifRunMeta struct {
	ToolName       string
	ToolVersion    string
	InvocationArgs []string
}
