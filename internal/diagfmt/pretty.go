package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"zam/internal/diag"
)

// Pretty writes one block per diagnostic in bag order:
//
//	body.zeek:12: error[ZAM3002]: duplicate case value 2
//	  = note body.zeek:9: first used here
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) error {
	paint := func(attr color.Attribute, s string) string {
		c := color.New(attr, color.Bold)
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.Sprint(s)
	}
	for _, d := range bag.Items() {
		if d.Severity == diag.SevInfo && !opts.ShowInfo {
			continue
		}
		var sev string
		switch d.Severity {
		case diag.SevError:
			sev = paint(color.FgRed, "error")
		case diag.SevWarning:
			sev = paint(color.FgYellow, "warning")
		default:
			sev = paint(color.FgCyan, "info")
		}
		msg := strings.ReplaceAll(strings.TrimSpace(d.Message), "\n", " ")
		if _, err := fmt.Fprintf(w, "%s: %s[%s]: %s\n", d.Primary, sev, d.Code.ID(), msg); err != nil {
			return err
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			if _, err := fmt.Fprintf(w, "  = %s %s: %s\n", paint(color.FgBlue, "note"), n.Loc, n.Msg); err != nil {
				return err
			}
		}
	}
	return nil
}
