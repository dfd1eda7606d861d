package zam

import (
	"errors"
	"fmt"

	"zam/internal/tree"
)

// ErrCode identifies a runtime fault.
type ErrCode int

// Stable error codes - do not change values.
const (
	ErrTypeMismatch  ErrCode = 5001 // ZAM5001: operand of the wrong type
	ErrOutOfBounds   ErrCode = 5002 // ZAM5002: index or slot out of range
	ErrArith         ErrCode = 5003 // ZAM5003: arithmetic fault
	ErrCall          ErrCode = 5004 // ZAM5004: callee failed
	ErrCompileFailed ErrCode = 5005 // ZAM5005: reached a construct that failed to compile
	ErrBadResumption ErrCode = 5006 // ZAM5006: resumption used in the wrong state
	ErrNoScheduler   ErrCode = 5007 // ZAM5007: environment cannot schedule
	ErrFrameSize     ErrCode = 5008 // ZAM5008: frame smaller than the layout
	ErrUnimplemented ErrCode = 5999 // ZAM5999: unknown instruction
)

func (c ErrCode) String() string {
	return fmt.Sprintf("ZAM%d", int(c))
}

// ExecError is a runtime fault raised while executing a body.
type ExecError struct {
	Code ErrCode
	Body string
	Pos  int
	Op   Op
	Loc  tree.Loc
	Msg  string
	Err  error
}

func (e *ExecError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	return fmt.Sprintf("zam: %s: %s at %s@%d (%s): %s", e.Code, e.Body, e.Op, e.Pos, e.Loc, msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

// CodeOf returns the code of the first ExecError in err's chain.
func CodeOf(err error) (ErrCode, bool) {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return 0, false
}

func (m *Machine) fault(pc int, code ErrCode, err error, format string, args ...any) *ExecError {
	e := &ExecError{Code: code, Body: m.name, Pos: pc, Err: err, Msg: fmt.Sprintf(format, args...)}
	if pc >= 0 && pc < len(m.code) {
		e.Op = m.code[pc].Op
		e.Loc = m.code[pc].Loc
	}
	return e
}
