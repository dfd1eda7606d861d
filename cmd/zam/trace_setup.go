package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"zam/internal/trace"
)

// setupTracing creates the tracer described by s and attaches it to the
// command context. The returned cleanup flushes and closes it.
func setupTracing(cmd *cobra.Command, s settings) (func(), error) {
	level, err := trace.ParseLevel(s.cfg.Trace.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	mode, err := trace.ParseMode(s.cfg.Trace.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(s.cfg.Trace.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid trace format: %w", err)
	}
	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: s.cfg.Trace.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	return func() {
		if ring, ok := tracer.(*trace.RingTracer); ok {
			if err := dumpRing(cmd.ErrOrStderr(), ring, s.cfg.Trace.Body, format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// dumpRing writes the ring to w, only the events of body if it is set.
func dumpRing(w io.Writer, ring *trace.RingTracer, body string, format trace.Format) error {
	if body == "" {
		return ring.Dump(w, format)
	}
	return trace.DumpEvents(w, ring.Body(body), format)
}
