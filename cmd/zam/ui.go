package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"zam/internal/driver"
	"zam/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// useTUI reports whether compile progress goes to a live view on stderr.
// Program output stays on stdout either way.
func useTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stderr)
	}
}

// compileWithUI runs prog.Compile while a progress view follows its events.
func compileWithUI(ctx context.Context, prog *driver.Program, events chan driver.Event) error {
	names := make([]string, 0, len(prog.Bodies()))
	for _, b := range prog.Bodies() {
		if b.Machine == nil {
			names = append(names, b.Name())
		}
	}
	result := make(chan error, 1)
	go func() {
		result <- prog.Compile(ctx)
		close(events)
	}()

	model := ui.NewCompileModel("compiling "+fmt.Sprint(len(names))+" bodies", names, events)
	_, uiErr := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithInput(nil)).Run()
	// The view may quit early; drain so Compile never blocks on it.
	for range events {
	}
	err := <-result
	if uiErr != nil {
		return uiErr
	}
	return err
}
