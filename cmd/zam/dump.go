package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"zam/internal/zam"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [file] [functions...]",
	Short: "Print the compiled code of a program",
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := cmd.Flags().GetString("sample")
		if err != nil {
			return err
		}
		locations, err := cmd.Flags().GetBool("locations")
		if err != nil {
			return err
		}
		var file string
		if sample == "" {
			if len(args) == 0 {
				return errors.New("dump needs a file or --sample")
			}
			file, args = args[0], args[1:]
		}
		l, compileErr := loadProgram(cmd, file, sample, false, cmd.OutOrStdout())
		if l == nil {
			return compileErr
		}

		opts := zam.DumpOptions{Color: active.color, Locations: locations}
		shown := 0
		for _, b := range l.prog.Bodies() {
			if len(args) > 0 && !slices.Contains(args, b.Name()) {
				continue
			}
			if b.Machine == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: not compiled: %v\n", b.Name(), b.Err)
				continue
			}
			if shown > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err := b.Machine.Dump(cmd.OutOrStdout(), opts); err != nil {
				return err
			}
			shown++
		}
		if shown == 0 && len(args) > 0 {
			return fmt.Errorf("no function named %v", args)
		}
		if active.timings {
			fmt.Fprint(cmd.ErrOrStderr(), l.timer.Summary())
		}
		return compileErr
	},
}

func init() {
	dumpCmd.Flags().String("sample", "", "dump a built-in sample instead of a file")
	dumpCmd.Flags().Bool("locations", false, "annotate instructions with source locations")
}
