// Package diag defines the diagnostic model used by the compiler and the
// tooling around it.
//
// A Diagnostic carries a severity, a stable numeric code, a short message
// and the tree location it refers to. Producers emit through a Reporter so
// they do not depend on where diagnostics end up; BagReporter collects
// them into a Bag, which bounds, sorts and deduplicates.
//
// Construct-compile errors are recorded here instead of aborting the
// compile: the machine emits a placeholder instruction, keeps going, and
// the driver reports every problem in the body at once.
package diag
