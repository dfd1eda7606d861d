package diag

type dedupKey struct {
	code Code
	sev  Severity
	file string
	line int
	msg  string
}

func keyOf(d Diagnostic) dedupKey {
	return dedupKey{
		code: d.Code,
		sev:  d.Severity,
		file: d.Primary.File,
		line: d.Primary.Line,
		msg:  d.Message,
	}
}

// DedupReporter suppresses diagnostics with the same code, severity,
// location and message before forwarding.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter wraps next.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	k := keyOf(d)
	if _, ok := r.seen[k]; ok {
		return
	}
	r.seen[k] = struct{}{}
	if r.next != nil {
		r.next.Report(d)
	}
}
