package driver

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"zam/internal/tree"
	"zam/internal/types"
	"zam/internal/val"
)

// builtins returns the functions every program can call without
// defining them.
func builtins(p *Program) map[string]*tree.Builtin {
	list := []*tree.Builtin{
		{FnName: "print", Fn: func(args []val.Value) (val.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				if a.Tag == types.TagString {
					parts[i] = a.S
				} else {
					parts[i] = a.String()
				}
			}
			if _, err := fmt.Fprintln(p.opts.Out, strings.Join(parts, " ")); err != nil {
				return val.Void, fmt.Errorf("print: %w", err)
			}
			return val.Void, nil
		}},
		{FnName: "network_time", Fn: func([]val.Value) (val.Value, error) {
			now := p.env.Now()
			return val.Time(float64(now.UnixNano()) / 1e9), nil
		}},
		{FnName: "length", Fn: func(args []val.Value) (val.Value, error) {
			if len(args) != 1 {
				return val.Void, fmt.Errorf("length: want 1 argument, got %d", len(args))
			}
			n, err := safecast.Conv[uint64](args[0].Len())
			if err != nil {
				return val.Void, fmt.Errorf("length: %w", err)
			}
			return val.Count(n), nil
		}},
	}
	out := make(map[string]*tree.Builtin, len(list))
	for _, b := range list {
		out[b.FnName] = b
	}
	return out
}
