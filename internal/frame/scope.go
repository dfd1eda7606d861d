package frame

import "zam/internal/val"

// Scope ties a frame's lifetime to a call. Close tears the frame down
// unless Keep was called, in which case whoever kept it must call
// Teardown.
type Scope struct {
	f    *Frame
	kept bool
}

// Enter sets up f with args and returns its scope.
func Enter(f *Frame, args []val.Value) (*Scope, error) {
	if err := f.Setup(args); err != nil {
		return nil, err
	}
	return &Scope{f: f}, nil
}

// Frame returns the scoped frame.
func (s *Scope) Frame() *Frame { return s.f }

// Keep detaches the frame from the scope so it survives Close. Borrowed
// arguments are adopted since the caller's references end with the call.
func (s *Scope) Keep() *Frame {
	s.kept = true
	s.f.Adopt()
	return s.f
}

// Close tears the frame down unless it was kept.
func (s *Scope) Close() {
	if s == nil || s.kept {
		return
	}
	s.f.Teardown()
}
