package diag

import "zam/internal/tree"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Note adds secondary context to a diagnostic.
type Note struct {
	Loc tree.Loc
	Msg string
}

// Diagnostic is one finding.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  tree.Loc
	Notes    []Note
}

// New builds a diagnostic.
func New(sev Severity, code Code, primary tree.Loc, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

// NewError builds an error diagnostic.
func NewError(code Code, primary tree.Loc, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

// WithNote returns d with a note appended.
func (d Diagnostic) WithNote(loc tree.Loc, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}

// Error lets a diagnostic travel as an error value.
func (d Diagnostic) Error() string {
	return d.Code.ID() + " " + d.Primary.String() + ": " + d.Message
}
