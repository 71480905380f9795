package llm

import "context"

// Provider streams model output events for a request. The concrete
// transport is an external collaborator of the orchestration core: the
// core depends only on this interface, never on a specific backend.
type Provider interface {
	Name() string
	Credential() string // credential mode, for debug logging (e.g. "api_key", "oauth")
	Capabilities() Capabilities
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Capabilities describe optional provider features.
type Capabilities struct {
	NativeSearch       bool
	ToolCalls          bool
	SupportsToolChoice bool
}

// EventType describes a single streamed delta from a Provider.
type EventType string

const (
	EventThoughtDelta EventType = "thought_delta"
	EventTextDelta    EventType = "text_delta"
	EventToolCall     EventType = "tool_call"
	EventUsage        EventType = "usage"
	EventDone         EventType = "done"
	EventError        EventType = "error"
)

// StreamedToolCall is a complete tool invocation assembled from one or more
// streamed deltas (the argument JSON may arrive in fragments).
type StreamedToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON text, possibly empty if the model emitted none
}

// Event represents one item yielded by a Stream.
type Event struct {
	Type  EventType
	Text  string // set for EventTextDelta / EventThoughtDelta
	Tool  *StreamedToolCall
	Usage *UsageMetrics
	Err   error
}

// Stream yields Events until EventDone (or an error).
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// chanStream adapts a goroutine's event production into the pull-based
// Stream interface — the producer-channel idiom the core favors over
// async-await streaming.
type chanStream struct {
	events chan Event
	cancel context.CancelFunc
}

// newChanStream starts produce in a goroutine bound to a child context and
// returns a Stream reading its output, plus the child context so the caller
// can thread cancellation through to produce.
func newChanStream(ctx context.Context, produce func(ctx context.Context, emit func(Event) bool)) (*chanStream, context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s := &chanStream{
		events: make(chan Event, 8),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		produce(runCtx, func(e Event) bool {
			select {
			case s.events <- e:
				return true
			case <-runCtx.Done():
				return false
			}
		})
	}()
	return s, runCtx
}

func (s *chanStream) Recv() (Event, error) {
	e, ok := <-s.events
	if !ok {
		return Event{Type: EventDone}, nil
	}
	return e, nil
}

func (s *chanStream) Close() error {
	s.cancel()
	return nil
}
