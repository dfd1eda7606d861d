package diag

import (
	"fmt"
	"strings"
)

// FormatShort renders one line per diagnostic (and per note when
// includeNotes is set) in the order given:
//
//	error ZAM3002 body.zeek:12 duplicate case value 2
func FormatShort(diags []Diagnostic, includeNotes bool) string {
	var b strings.Builder
	for _, d := range diags {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s %s", severityLabel(d.Severity), d.Code.ID(), d.Primary, sanitizeMessage(d.Message))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&b, "\nnote %s %s %s", d.Code.ID(), n.Loc, sanitizeMessage(n.Msg))
		}
	}
	return b.String()
}

func severityLabel(sev Severity) string {
	switch sev {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
