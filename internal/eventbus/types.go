// Package eventbus is Forrst's in-process typed event dispatcher:
// synchronous, priority-ordered dispatch of the six request lifecycle
// events with propagation control.
package eventbus

import "github.com/forrst/forrst/internal/envelope"

// EventType is one of the six request lifecycle events fired, in order,
// for every request.
type EventType string

const (
	EventRequestReceived   EventType = "RequestReceived"
	EventRequestParsed     EventType = "RequestParsed"
	EventRequestValidated  EventType = "RequestValidated"
	EventExecutingFunction EventType = "ExecutingFunction"
	EventFunctionExecuted  EventType = "FunctionExecuted"
	EventResponseReady     EventType = "ResponseReady"
)

// Ordered lists the six lifecycle events in their firing order.
var Ordered = []EventType{
	EventRequestReceived,
	EventRequestParsed,
	EventRequestValidated,
	EventExecutingFunction,
	EventFunctionExecuted,
	EventResponseReady,
}

// Event is the per-request, per-lifecycle-stage value passed to handlers.
// It carries the request/response the pipeline is assembling plus free-form
// scratch data extensions use to pass state between their own subscriptions
// within the same request.
type Event struct {
	Type     EventType
	Request  *envelope.Request
	Response *envelope.Response

	propagationStopped bool
	responseSet        bool

	// Scratch is per-request, per-extension working state, keyed by
	// extension URN so extensions cannot accidentally collide.
	Scratch map[string]any
}

// Advance moves e to the next lifecycle stage, clearing the propagation and
// response-set flags: StopPropagation and SetResponse scope to a single
// event's dispatch, not the whole request.
func (e *Event) Advance(t EventType) {
	e.Type = t
	e.propagationStopped = false
	e.responseSet = false
}

// StopPropagation halts further dispatch of this event to lower-priority
// handlers.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// PropagationStopped reports whether a handler already called
// StopPropagation for this event.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// SetResponse short-circuits the pipeline: the given response is used
// instead of continuing the normal invocation flow.
func (e *Event) SetResponse(r *envelope.Response) {
	e.Response = r
	e.responseSet = true
}

// ResponseWasSet reports whether a handler called SetResponse for this
// event.
func (e *Event) ResponseWasSet() bool { return e.responseSet }
