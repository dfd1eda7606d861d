package diag

import "zam/internal/tree"

// Reporter receives diagnostics from producers.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder accumulates details before emitting to a Reporter.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

// ReportError starts an error diagnostic.
func ReportError(r Reporter, code Code, primary tree.Loc, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: New(SevError, code, primary, msg)}
}

// ReportWarning starts a warning diagnostic.
func ReportWarning(r Reporter, code Code, primary tree.Loc, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: New(SevWarning, code, primary, msg)}
}

// WithNote appends a note.
func (b *ReportBuilder) WithNote(loc tree.Loc, msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag = b.diag.WithNote(loc, msg)
	return b
}

// Emit sends the diagnostic exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		b.reporter.Report(b.diag)
	}
	b.emitted = true
}

// BagReporter writes into a Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Diagnostic) {}
