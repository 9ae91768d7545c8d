// Package tracing implements the distributed-tracing extension:
// trace/span ID generation, parent-span linkage, and baggage propagation,
// grounded on OpenTelemetry's trace ID/span ID types.
package tracing

import (
	"crypto/rand"
	"encoding/hex"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// Context is the per-request trace state. It is owned
// exclusively by the pipeline for the lifetime of one request and is
// cleared at FunctionExecuted; it never persists across requests.
type Context struct {
	TraceID      string
	ServerSpanID string
	ParentSpanID string
	Baggage      map[string]string
	StartNanos   int64
}

// Options is what a request's tracing extension options may carry.
type Options struct {
	TraceID string
	SpanID  string
	Baggage map[string]string
}

// Start builds a Context for ExecutingFunction: a trace_id is
// extracted from the request's tracing options or generated if absent; the
// request's span_id (if any) becomes the new parent_span_id; a fresh
// server span_id is always generated. startNanos should be a monotonic
// clock reading.
func Start(opts Options, startNanos int64) Context {
	traceID := opts.TraceID
	if traceID == "" {
		traceID = newTraceID()
	}
	return Context{
		TraceID:      traceID,
		ServerSpanID: newSpanID(),
		ParentSpanID: opts.SpanID,
		Baggage:      opts.Baggage,
		StartNanos:   startNanos,
	}
}

// Duration is a response-side tracing extension value.
type Duration struct {
	Value int64
	Unit  string
}

// Data is the response tracing extension payload attached at
// FunctionExecuted. ParentSpanID is empty when the request carried no
// span of its own.
type Data struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Duration     Duration
}

// Finish computes the response tracing extension data for a Context,
// rounding elapsed nanoseconds to the nearest integer millisecond.
func Finish(ctx Context, nowNanos int64) Data {
	elapsed := nowNanos - ctx.StartNanos
	ms := (elapsed + 500_000) / 1_000_000
	return Data{
		TraceID:      ctx.TraceID,
		SpanID:       ctx.ServerSpanID,
		ParentSpanID: ctx.ParentSpanID,
		Duration:     Duration{Value: ms, Unit: "millisecond"},
	}
}

// ChildContext constructs the context a downstream call should carry,
// making the current server span the new parent.
func ChildContext(ctx Context) Context {
	return Context{
		TraceID:      ctx.TraceID,
		ServerSpanID: newSpanID(),
		ParentSpanID: ctx.ServerSpanID,
		Baggage:      ctx.Baggage,
	}
}

// BaggageHeader encodes ctx's baggage as a W3C Baggage header value for
// propagation to downstream calls.
func BaggageHeader(ctx Context) (string, error) {
	members := make([]baggage.Member, 0, len(ctx.Baggage))
	for k, v := range ctx.Baggage {
		m, err := baggage.NewMember(k, v)
		if err != nil {
			return "", err
		}
		members = append(members, m)
	}
	bag, err := baggage.New(members...)
	if err != nil {
		return "", err
	}
	return bag.String(), nil
}

// ParseBaggageHeader decodes a W3C Baggage header value into a baggage map,
// for requests whose tracing options carry baggage in header form rather
// than as an object.
func ParseBaggageHeader(s string) (map[string]string, error) {
	bag, err := baggage.Parse(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, bag.Len())
	for _, m := range bag.Members() {
		out[m.Key()] = m.Value()
	}
	return out, nil
}

func newTraceID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	tid := trace.TraceID(b)
	return hex.EncodeToString(tid[:])
}

func newSpanID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	sid := trace.SpanID(b)
	return hex.EncodeToString(sid[:])
}
