// ABOUTME: Connection lifecycle states and outcomes
// ABOUTME: Defines Phase, Outcome and the State value published by the manager

package conversation

import "fmt"

// Phase is the lifecycle phase of the current connection.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseConnecting:
		return "Connecting"
	case PhaseStreaming:
		return "Streaming"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Outcome is how a closed connection ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "None"
	case OutcomeSuccess:
		return "Success"
	case OutcomeFailure:
		return "Failure"
	case OutcomeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// State is a connection state. Outcome is only meaningful when Phase is
// PhaseClosed.
type State struct {
	Phase   Phase
	Outcome Outcome
}

// Common states.
var (
	Idle       = State{Phase: PhaseIdle}
	Connecting = State{Phase: PhaseConnecting}
	Streaming  = State{Phase: PhaseStreaming}
)

// Closed returns the closed state with outcome o.
func Closed(o Outcome) State {
	return State{Phase: PhaseClosed, Outcome: o}
}

// Busy reports whether a connection is in flight. Submission is disabled
// while busy.
func (s State) Busy() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseStreaming
}

// IsClosed reports whether the state is terminal.
func (s State) IsClosed() bool {
	return s.Phase == PhaseClosed
}

func (s State) String() string {
	if s.Phase == PhaseClosed {
		return fmt.Sprintf("Closed(%s)", s.Outcome)
	}
	return s.Phase.String()
}
