package orchestrator

import "github.com/autoversio/ragcore/schema"

type EventType string

const (
	// EventDelta carries one streamed answer fragment.
	EventDelta EventType = "delta"
	// EventCitations carries the final citation list, emitted exactly
	// once after streaming ends, also on cancellation.
	EventCitations EventType = "citations"
	// EventError terminates the stream with a failure.
	EventError EventType = "error"
	// EventDone closes a successful stream.
	EventDone EventType = "done"
)

type Event struct {
	Type      EventType
	Delta     string
	Citations []schema.Citation
	Err       error
}
