package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"zam/internal/driver"
	"zam/internal/samples"
	"zam/internal/tree"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "List built-in samples or write them in wire form",
}

var sampleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in samples",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		all := samples.All()
		width := 0
		for _, s := range all {
			width = max(width, runewidth.StringWidth(s.Name))
		}
		for _, s := range all {
			mode := "sync"
			if s.Async {
				mode = "async"
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-5s  %s\n", runewidth.FillRight(s.Name, width), mode, s.Doc); err != nil {
				return err
			}
		}
		return nil
	},
}

var sampleWriteCmd = &cobra.Command{
	Use:   "write <name> <file>",
	Short: "Write a sample's bodies to a wire-form file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, ok := samples.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown sample %q", args[0])
		}
		fns := s.Build(driver.New(driver.Options{}))
		f, err := os.Create(args[1]) //nolint:gosec // path comes from the command line
		if err != nil {
			return err
		}
		if err := tree.Encode(f, fns...); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d functions to %s (entry %s)\n", len(fns), args[1], s.Entry)
		return nil
	},
}

func init() {
	sampleCmd.AddCommand(sampleListCmd, sampleWriteCmd)
}
