package diag

import (
	"sort"
	"sync"
)

// Bag collects diagnostics up to a limit. It is safe for concurrent use so
// bodies compiled in parallel can share one.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
	max   int
}

// NewBag returns a bag that keeps at most max diagnostics; max <= 0 means
// unbounded.
func NewBag(max int) *Bag {
	return &Bag{max: max}
}

// Add appends d. It returns false if the bag is full.
func (b *Bag) Add(d Diagnostic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Cap returns the limit.
func (b *Bag) Cap() int { return b.max }

// HasErrors reports whether any diagnostic is an error.
func (b *Bag) HasErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the diagnostics.
func (b *Bag) Items() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Diagnostic(nil), b.items...)
}

// Merge appends everything in other, growing the limit if needed.
func (b *Bag) Merge(other *Bag) {
	items := other.Items()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && len(b.items)+len(items) > b.max {
		b.max = len(b.items) + len(items)
	}
	b.items = append(b.items, items...)
}

// Sort orders diagnostics by file, line, severity (desc) and code.
func (b *Bag) Sort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Line != dj.Primary.Line {
			return di.Primary.Line < dj.Primary.Line
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup drops repeated code+location+message entries.
func (b *Bag) Dedup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[dedupKey]bool)
	kept := b.items[:0]
	for _, d := range b.items {
		k := keyOf(d)
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, d)
	}
	b.items = kept
}
