package driver

import "time"

// Stage is the step a body is going through.
type Stage string

const (
	// StageAnalyze covers use-def and global analysis.
	StageAnalyze Stage = "analyze"
	// StageLower covers lowering the body to ZAM code.
	StageLower Stage = "lower"
	// StageValidate covers the structural checks on the emitted code.
	StageValidate Stage = "validate"
	// StageBind covers linking calls and event handlers across bodies.
	StageBind Stage = "bind"
)

// Status is the state of a body within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one body, or for the whole program when Body
// is empty.
type Event struct {
	Body    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Compile calls it from its worker
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- ev
}

func (p *Program) report(ev Event) {
	if p.opts.Progress != nil {
		p.opts.Progress.OnEvent(ev)
	}
}
