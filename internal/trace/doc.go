// Package trace records what the compiler and the abstract machine are
// doing, for diagnosing slow compiles and misbehaving bodies.
//
// Tracers:
//
//   - Nop: zero-overhead when disabled
//   - StreamTracer: writes each event as it happens, as text or NDJSON
//   - RingTracer: keeps the last N events for post-mortem dumps
//   - MultiTracer: fans out to several tracers
//
// Levels pick how deep events go: phase shows the driver and each body,
// detail adds per-construct lowering and scheduler activity, debug adds
// every executed instruction.
//
// A tracer travels through the driver in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeBody, "compile:f", 0)
//	defer span.End("")
package trace
