package eventpipeline

import (
	"sync"
	"time"
)

var _ EventPipeline = (*EventPipelineMock)(nil)

type Event struct {
	Timestamp    time.Time
	Bytes        []byte
	IsHistorical bool
}

// EventPipelineMock records every event it receives.
type EventPipelineMock struct {
	mu     sync.Mutex
	events []Event
}

func (e *EventPipelineMock) HandleTombstoneFile(timestamp time.Time, record []byte) Outcome {
	e.add(Event{Timestamp: timestamp, Bytes: record})
	return OutcomeSuppressed
}

func (e *EventPipelineMock) HandleLogEntry(timestamp time.Time, entry []byte) Outcome {
	e.add(Event{Timestamp: timestamp, Bytes: entry, IsHistorical: true})
	return OutcomeSuppressed
}

func (e *EventPipelineMock) add(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *EventPipelineMock) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}
