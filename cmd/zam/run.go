package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zam/internal/val"
)

var runCmd = &cobra.Command{
	Use:   "run [file] [args...]",
	Short: "Compile and run a program",
	Long: `Run compiles every body of a wire-form file (or a built-in sample), calls the
entry function with the given arguments and drives the scheduler until no
timers remain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := cmd.Flags().GetString("sample")
		if err != nil {
			return err
		}
		entry, err := cmd.Flags().GetString("entry")
		if err != nil {
			return err
		}
		realTime, err := cmd.Flags().GetBool("real-time")
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetDuration("for")
		if err != nil {
			return err
		}

		var file string
		if sample == "" {
			if len(args) == 0 {
				return errors.New("run needs a file or --sample")
			}
			file, args = args[0], args[1:]
		}
		l, err := loadProgram(cmd, file, sample, realTime, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		callArgs := make([]val.Value, len(args))
		for i, a := range args {
			callArgs[i] = parseArg(a)
		}
		if l.sample != nil {
			if entry == "" {
				entry = l.sample.Entry
			}
			if len(callArgs) == 0 {
				callArgs = l.sample.Args
			}
		}
		if entry == "" {
			entry = "main"
		}

		done := l.timer.Track("run " + entry)
		result, err := l.prog.Call(entry, callArgs)
		if err != nil {
			done("failed")
			return err
		}
		if limit > 0 {
			l.sched.Advance(limit)
		} else if err := l.sched.Run(); err != nil {
			done("failed")
			return err
		}
		done("")

		if !result.IsVoid() {
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
		}
		val.Release(result)
		if n := l.sched.Pending(); n > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d activation(s) still waiting at %s\n", n, l.sched.Now().Format(time.RFC3339))
			l.sched.Shutdown()
		}
		if active.timings {
			fmt.Fprint(cmd.ErrOrStderr(), l.timer.Summary())
		}
		return l.sched.Err()
	},
}

func init() {
	runCmd.Flags().String("sample", "", "run a built-in sample instead of a file")
	runCmd.Flags().String("entry", "", "function to call (default: main, or the sample's entry)")
	runCmd.Flags().Bool("real-time", false, "wait for timers in wall time instead of virtual time")
	runCmd.Flags().Duration("for", 0, "advance the clock by this much instead of until idle")
}
