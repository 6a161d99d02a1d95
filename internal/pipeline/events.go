package pipeline

import "time"

// EventType identifies a progress event.
type EventType string

const (
	EventStepStarted  EventType = "step_started"
	EventStepFinished EventType = "step_finished"
	EventScaffoldUsed EventType = "scaffold_used"
	EventQAResult     EventType = "qa_result"
	EventDone         EventType = "done"
	EventError        EventType = "error"
)

// Event is one progress notification emitted while a run executes.
type Event struct {
	Type        EventType `json:"type"`
	RunID       string    `json:"run_id,omitempty"`
	Step        Step      `json:"step,omitempty"`
	Iteration   int       `json:"iteration,omitempty"`
	Message     string    `json:"message,omitempty"`
	TestsPassed *bool     `json:"tests_passed,omitempty"`
	Files       []string  `json:"files,omitempty"`
	Time        time.Time `json:"time"`
}

// Reporter receives progress events. Implementations must not block for long;
// the sequencer calls Event synchronously.
type Reporter interface {
	Event(Event)
}

// NullReporter is a no-op implementation.
type NullReporter struct{}

// Event is a no-op.
func (NullReporter) Event(Event) {}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Event calls f.
func (f ReporterFunc) Event(e Event) { f(e) }
