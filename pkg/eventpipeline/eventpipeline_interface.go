package eventpipeline

import "time"

// Outcome is the terminal state of one crash event.
type Outcome int

const (
	// OutcomeDiscarded means the event failed before a decision and was dropped.
	OutcomeDiscarded Outcome = iota
	OutcomeSuppressed
	OutcomeDispatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeDispatched:
		return "dispatched"
	default:
		return "discarded"
	}
}

// EventPipeline handles crash records from both feeds. Implementations are
// safe for concurrent use and never panic or return errors: failures are
// logged and the event is dropped.
type EventPipeline interface {
	// HandleTombstoneFile handles a tombstone written by the fault handler.
	HandleTombstoneFile(timestamp time.Time, record []byte) Outcome
	// HandleLogEntry handles a replayable log entry wrapping a tombstone.
	HandleLogEntry(timestamp time.Time, entry []byte) Outcome
}
