// Package pipeline implements the request-lifecycle orchestration engine:
// the single place that ties the envelope codec, URN/version resolution,
// the extension registry and event bus, and the built-in enrichments
// (tracing, retry guidance, rate-limit, quota, redaction) into one
// per-request sequence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/forrst/forrst/internal/cancellation"
	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/eventbus"
	"github.com/forrst/forrst/internal/extension"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/maintenance"
	"github.com/forrst/forrst/internal/quota"
	"github.com/forrst/forrst/internal/ratelimit"
	"github.com/forrst/forrst/internal/redaction"
	"github.com/forrst/forrst/internal/retry"
	"github.com/forrst/forrst/internal/tracing"
	"github.com/forrst/forrst/internal/validate"
	"github.com/forrst/forrst/internal/version"
)

// FunctionFunc is a registered function's implementation signature. The
// pipeline type-asserts a version.Descriptor's Handle field to this type
// before invoking it.
type FunctionFunc func(ctx context.Context, call envelope.Call, reqContext *envelope.Value) (envelope.Value, *ferrors.Error)

// Built-in enrichment extension URNs. Tracing and retry are core,
// always-evaluated behaviors; rate-limit/quota/redaction are
// advisory and only attached when the engine was configured with the
// corresponding reporter/engine, unlike arbitrary registered extensions
// which run when selected by the active-extension-set computation.
const (
	tracingExtensionURN      = "urn:cline:forrst:ext:tracing"
	retryExtensionURN        = "urn:cline:forrst:ext:retry"
	rateLimitExtensionURN    = "urn:cline:forrst:ext:rate-limit"
	quotaExtensionURN        = "urn:cline:forrst:ext:quota"
	redactionExtensionURN    = "urn:cline:forrst:ext:redaction"
	cancellationExtensionURN = "urn:cline:forrst:ext:cancellation"
	deadlineExtensionURN     = "urn:cline:forrst:ext:deadline"
)

// Config carries process-wide pipeline settings that rarely change after
// boot.
type Config struct {
	ProtocolName string
	// SupportedMajor is the protocol major version this server accepts;
	// a request whose protocol.version has any other major is rejected.
	SupportedMajor int
	// SupportedVersions lists the full protocol version strings advertised
	// on an INVALID_PROTOCOL_VERSION error's details.
	SupportedVersions []string
	// EchoProtocolVersion is the protocol.version the server stamps onto
	// every response it emits (including parse-failure responses where no
	// request protocol could be read).
	EchoProtocolVersion string
	RateLimitScope      ratelimit.Scope
	RateLimitKeyFunc    func(req *envelope.Request) string
}

// Engine is the request pipeline. Construct with New, then call Handle
// (given an already-parsed request) or HandleBytes (given the raw wire
// payload).
type Engine struct {
	cfg         Config
	functions   *version.Registry
	extensions  *extension.Registry
	maintenance maintenance.Store
	validator   validate.Validator
	log         *slog.Logger

	rateLimiter *ratelimit.Reporter
	quotaSource quota.Source
	redactor    *redaction.Engine
}

// New constructs an Engine. The rate limiter, quota source, and redactor
// may all be nil; each is an advisory enrichment skipped when absent or
// failing, never a hard dependency of the pipeline.
func New(cfg Config, functions *version.Registry, extensions *extension.Registry, maint maintenance.Store, validator validate.Validator, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, functions: functions, extensions: extensions, maintenance: maint, validator: validator, log: log}
}

// WithRateLimiter attaches the rate-limit reporter and returns e.
func (e *Engine) WithRateLimiter(r *ratelimit.Reporter, keyFunc func(*envelope.Request) string) *Engine {
	e.rateLimiter = r
	e.cfg.RateLimitKeyFunc = keyFunc
	return e
}

// WithQuotaSource attaches the quota reporter and returns e.
func (e *Engine) WithQuotaSource(s quota.Source) *Engine {
	e.quotaSource = s
	return e
}

// WithRedactor attaches the redaction engine and returns e.
func (e *Engine) WithRedactor(r *redaction.Engine) *Engine {
	e.redactor = r
	return e
}

// HandleBytes parses raw, runs the pipeline, and serializes the result:
// the entry point a transport calls with the wire payload.
func (e *Engine) HandleBytes(ctx context.Context, raw []byte, maxBytes int) []byte {
	req, perr := envelope.Parse(raw, maxBytes)
	if perr != nil {
		resp := envelope.NewError(e.echoProtocol(), nil, perr)
		e.attachRetry(resp)
		out, err := envelope.Serialize(resp)
		if err != nil {
			e.log.Error("failed to serialize parse-error response", "error", err)
			return []byte(`{"protocol":{"name":"` + e.cfg.ProtocolName + `"},"id":null,"errors":[{"code":"INTERNAL_ERROR","message":"response serialization failed"}]}`)
		}
		return out
	}
	resp := e.Handle(ctx, req)
	out, err := envelope.Serialize(resp)
	if err != nil {
		e.log.Error("failed to serialize response", "error", err, "request_id", req.ID)
		ferr := ferrors.New(ferrors.KindInternalError, "response serialization failed")
		out, _ = envelope.Serialize(envelope.NewError(resp.Protocol, resp.ID, ferr))
	}
	return out
}

func (e *Engine) echoProtocol() envelope.Protocol {
	return envelope.Protocol{Name: e.cfg.ProtocolName, Version: e.cfg.EchoProtocolVersion}
}

// Handle runs the full per-request lifecycle over an already-parsed
// request and returns the response envelope.
func (e *Engine) Handle(ctx context.Context, req *envelope.Request) *envelope.Response {
	var id *string
	if req.HasID {
		id = &req.ID
	}

	// Step 2: protocol name and major version check.
	if req.Protocol.Name != e.cfg.ProtocolName {
		return e.respondError(req, id, ferrors.New(ferrors.KindInvalidRequest, "unknown protocol name").
			WithPointer("/protocol/name").
			WithDetail("expected", e.cfg.ProtocolName))
	}
	reqVer, verErr := version.Parse(req.Protocol.Version)
	if verErr != nil || reqVer.Major != e.cfg.SupportedMajor {
		ferr := ferrors.New(ferrors.KindInvalidProtocolVersion, "unsupported protocol version").
			WithDetails(map[string]any{
				"requested_version":  req.Protocol.Version,
				"supported_versions": e.cfg.SupportedVersions,
			})
		return e.respondError(req, id, ferr)
	}

	// RequestReceived / RequestParsed fire against global extensions only:
	// the per-function active set (which can include declared, non-global
	// extensions) isn't resolvable until the function/version lookup below
	// completes.
	globalOnly, _ := e.extensions.ActiveSet(nil, version.ExtensionScope{})
	ev := &eventbus.Event{Type: eventbus.EventRequestReceived, Request: req, Scratch: map[string]any{}}
	if resp := e.dispatchOrNil(ev, extension.Entries(globalOnly, eventbus.EventRequestReceived)); resp != nil {
		return resp
	}
	ev.Advance(eventbus.EventRequestParsed)
	if resp := e.dispatchOrNil(ev, extension.Entries(globalOnly, eventbus.EventRequestParsed)); resp != nil {
		return resp
	}

	// Step 3: resolve (function, version).
	desc, ferr := e.functions.Resolve(req.Call.Function, req.Call.Version)
	if ferr != nil {
		return e.respondError(req, id, ferr)
	}
	if desc.Disabled {
		return e.respondError(req, id, ferrors.New(ferrors.KindFunctionDisabled, "function is disabled").WithDetail("function", desc.URN))
	}

	// Step 4: maintenance gate, fatal.
	if ferr := e.checkMaintenance(desc.URN); ferr != nil {
		resp := envelope.NewError(e.protocolFor(req), id, ferr)
		e.attachMaintenanceExtension(resp, ferr)
		e.attachRetry(resp)
		return resp
	}

	// Step 5: active extension set for this function.
	active, ferr := e.extensions.ActiveSet(declaredURNs(req.Extensions), desc.Extensions)
	if ferr != nil {
		return e.respondError(req, id, ferr)
	}
	// Step 6: fire RequestValidated. A handler that short-circuits here
	// still proceeds to the enrichment/FunctionExecuted/ResponseReady steps
	// rather than returning immediately; argument validation and invocation
	// are the only steps skipped.
	ev.Advance(eventbus.EventRequestValidated)
	if resp := e.dispatchOrNil(ev, extension.Entries(active, eventbus.EventRequestValidated)); resp != nil {
		return e.finalize(ctx, req, resp, active, ev, tracing.Start(extractTracingOptions(req), time.Now().UnixNano()))
	}

	// Step 7: validate arguments.
	if validationErrs := e.validator.Validate(req.Call.Arguments, desc.Arguments); len(validationErrs) > 0 {
		return e.respondError(req, id, validationErrs...)
	}

	// Step 8: ExecutingFunction. Start tracing.
	traceOpts := extractTracingOptions(req)
	traceCtx := tracing.Start(traceOpts, time.Now().UnixNano())
	ev.Advance(eventbus.EventExecutingFunction)
	if resp := e.dispatchOrNil(ev, extension.Entries(active, eventbus.EventExecutingFunction)); resp != nil {
		return e.finalize(ctx, req, resp, active, ev, traceCtx)
	}

	// Step 9: invoke. A declared cancellation token is injected into the
	// context for cooperative polling, and a declared deadline bounds the
	// invocation wall-clock.
	invokeCtx := ctx
	if token := extractCancellationToken(req); token != "" {
		invokeCtx = cancellation.WithToken(invokeCtx, token)
	}
	if d := extractDeadline(req); d > 0 {
		var cancelInvoke context.CancelFunc
		invokeCtx, cancelInvoke = context.WithTimeout(invokeCtx, d)
		defer cancelInvoke()
	}

	handle, ok := desc.Handle.(FunctionFunc)
	var result envelope.Value
	var invokeErr *ferrors.Error
	if !ok {
		invokeErr = ferrors.New(ferrors.KindInternalError, "function handle has the wrong signature").WithDetail("function", desc.URN)
	} else {
		result, invokeErr = func() (res envelope.Value, ferr *ferrors.Error) {
			defer func() {
				if r := recover(); r != nil {
					ferr = ferrors.Newf(ferrors.KindInternalError, "function panicked: %v", r)
				}
			}()
			return handle(invokeCtx, req.Call, req.Context)
		}()
	}
	if errors.Is(invokeCtx.Err(), context.DeadlineExceeded) {
		invokeErr = ferrors.New(ferrors.KindDeadlineExceeded, "request deadline exceeded")
	}

	var resp *envelope.Response
	if invokeErr != nil {
		resp = envelope.NewError(e.protocolFor(req), id, invokeErr)
	} else {
		resp = envelope.NewSuccess(e.protocolFor(req), id, result)
	}
	if desc.Deprecated != nil {
		resp.SetMeta("deprecated", envelope.Object(map[string]envelope.Value{
			"reason": envelope.Scalar(desc.Deprecated.Reason),
			"sunset": deprecatedSunset(desc.Deprecated.Sunset),
		}))
	}

	return e.finalize(ctx, req, resp, active, ev, traceCtx)
}

// finalize runs step 10 (built-in enrichments, then the FunctionExecuted
// event) and step 11 (ResponseReady), shared by the normal invocation path
// and the RequestValidated short-circuit path.
func (e *Engine) finalize(ctx context.Context, req *envelope.Request, resp *envelope.Response, active []extension.Descriptor, ev *eventbus.Event, traceCtx tracing.Context) *envelope.Response {
	e.attachTracing(resp, traceCtx)
	// Redaction runs before retry derivation: a denied mode "none" request
	// replaces the result with FORBIDDEN, which must still pick up guidance.
	e.attachRedaction(resp, req)
	e.attachRetry(resp)
	e.attachRateLimit(ctx, resp, req)
	e.attachQuota(resp, req)

	ev.Advance(eventbus.EventFunctionExecuted)
	ev.Response = resp
	if r := e.dispatchOrNil(ev, extension.Entries(active, eventbus.EventFunctionExecuted)); r != nil {
		resp = r
	}

	ev.Advance(eventbus.EventResponseReady)
	ev.Response = resp
	if r := e.dispatchOrNil(ev, extension.Entries(active, eventbus.EventResponseReady)); r != nil {
		resp = r
	}

	return resp
}

func deprecatedSunset(sunset string) envelope.Value {
	if sunset == "" {
		return envelope.Null()
	}
	return envelope.Scalar(sunset)
}

func (e *Engine) protocolFor(req *envelope.Request) envelope.Protocol {
	return envelope.Protocol{Name: e.cfg.ProtocolName, Version: req.Protocol.Version}
}

// respondError builds an error response for a failure that short-circuits
// the pipeline before finalize runs. Retry guidance is still attached here:
// every error response carries it, and early failures never reach the
// FunctionExecuted enrichment step.
func (e *Engine) respondError(req *envelope.Request, id *string, errs ...*ferrors.Error) *envelope.Response {
	resp := envelope.NewError(e.protocolFor(req), id, errs...)
	e.attachRetry(resp)
	return resp
}

func declaredURNs(refs []envelope.ExtensionRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.URN
	}
	return out
}

// checkMaintenance evaluates the pre-execution gate: server-wide
// maintenance takes precedence over a per-function window.
func (e *Engine) checkMaintenance(fn string) *ferrors.Error {
	if e.maintenance == nil {
		return nil
	}
	if w, ok := e.maintenance.ServerWindow(); ok {
		return maintenanceError(ferrors.KindServerMaintenance, w)
	}
	if w, ok := e.maintenance.FunctionWindow(fn); ok {
		return maintenanceError(ferrors.KindFunctionMaintenance, w)
	}
	return nil
}

func maintenanceError(kind ferrors.Kind, w maintenance.Window) *ferrors.Error {
	details := map[string]any{
		"reason": w.Reason,
		"retry_after": map[string]any{
			"value": w.RetryAfter.Value,
			"unit":  w.RetryAfter.Unit,
		},
	}
	if w.Function != "" {
		details["function"] = w.Function
	}
	if w.Until != nil {
		details["until"] = w.Until.Format(time.RFC3339)
	}
	return ferrors.New(kind, "maintenance window active").WithDetails(details)
}

func (e *Engine) attachMaintenanceExtension(resp *envelope.Response, ferr *ferrors.Error) {
	fields := map[string]envelope.Value{}
	for k, v := range ferr.Details {
		fields[k] = toValue(v)
	}
	resp.AddExtension("urn:cline:forrst:ext:maintenance", envelope.Object(fields))
}

func toValue(v any) envelope.Value {
	switch t := v.(type) {
	case string:
		return envelope.Scalar(t)
	case map[string]any:
		out := make(map[string]envelope.Value, len(t))
		for k, val := range t {
			out[k] = toValue(val)
		}
		return envelope.Object(out)
	case []string:
		items := make([]envelope.Value, len(t))
		for i, s := range t {
			items[i] = envelope.Scalar(s)
		}
		return envelope.List(items...)
	default:
		return envelope.Scalar(v)
	}
}

// dispatchOrNil runs entries against ev and returns a short-circuit
// response when one was produced: either a handler called SetResponse, or
// a fatal extension's handler errored.
// Advisory failures are logged and dispatch continues.
func (e *Engine) dispatchOrNil(ev *eventbus.Event, entries []eventbus.Entry) *envelope.Response {
	failed, err := eventbus.Dispatch(ev, entries, func(entry eventbus.Entry, err error) {
		e.log.Warn("advisory extension failed", "extension", entry.ExtensionURN, "event", ev.Type, "error", err)
	})
	if failed != nil {
		code := ferrors.KindInternalError
		if ferr, ok := ferrors.AsError(err); ok {
			code = ferr.Code
		}
		e.log.Error("fatal extension failed", "extension", failed.ExtensionURN, "event", ev.Type, "error", err)
		id := (*string)(nil)
		if ev.Request != nil && ev.Request.HasID {
			id = &ev.Request.ID
		}
		protocol := envelope.Protocol{Name: e.cfg.ProtocolName}
		if ev.Request != nil {
			protocol.Version = ev.Request.Protocol.Version
		}
		resp := envelope.NewError(protocol, id, ferrors.New(code, "extension failed fatally").WithDetail("extension", failed.ExtensionURN))
		e.attachRetry(resp)
		return resp
	}
	if ev.ResponseWasSet() {
		return ev.Response
	}
	if ev.PropagationStopped() && ev.Response != nil {
		return ev.Response
	}
	return nil
}

func extractTracingOptions(req *envelope.Request) tracing.Options {
	for _, ext := range req.Extensions {
		if ext.URN != tracingExtensionURN || ext.Options == nil {
			continue
		}
		opts := tracing.Options{}
		if v, ok := ext.Options.Get("trace_id"); ok {
			if s, ok := v.Raw().(string); ok {
				opts.TraceID = s
			}
		}
		if v, ok := ext.Options.Get("span_id"); ok {
			if s, ok := v.Raw().(string); ok {
				opts.SpanID = s
			}
		}
		if v, ok := ext.Options.Get("baggage"); ok {
			switch {
			case v.IsObject():
				bag := make(map[string]string)
				for _, k := range v.Keys() {
					if item, ok := v.Get(k); ok {
						if s, ok := item.Raw().(string); ok {
							bag[k] = s
						}
					}
				}
				opts.Baggage = bag
			default:
				// W3C Baggage header form.
				if s, ok := v.Raw().(string); ok {
					if bag, err := tracing.ParseBaggageHeader(s); err == nil {
						opts.Baggage = bag
					}
				}
			}
		}
		return opts
	}
	return tracing.Options{}
}

// extractCancellationToken returns the cooperative-cancellation token a
// request opted in with, from the cancellation extension's options.
func extractCancellationToken(req *envelope.Request) string {
	for _, ext := range req.Extensions {
		if ext.URN != cancellationExtensionURN || ext.Options == nil {
			continue
		}
		if v, ok := ext.Options.Get("token"); ok {
			if s, ok := v.Raw().(string); ok {
				return s
			}
		}
	}
	return ""
}

// extractDeadline returns the per-request wall-clock budget from the
// deadline extension's options, zero when absent or malformed.
func extractDeadline(req *envelope.Request) time.Duration {
	for _, ext := range req.Extensions {
		if ext.URN != deadlineExtensionURN || ext.Options == nil {
			continue
		}
		v, ok := ext.Options.Get("timeout")
		if !ok || !v.IsObject() {
			return 0
		}
		raw, ok := v.Get("value")
		if !ok {
			return 0
		}
		n, ok := numberValue(raw)
		if !ok || n <= 0 {
			return 0
		}
		unit := "second"
		if u, ok := v.Get("unit"); ok {
			if s, ok := u.Raw().(string); ok {
				unit = s
			}
		}
		switch unit {
		case "millisecond":
			return time.Duration(n) * time.Millisecond
		case "minute":
			return time.Duration(n) * time.Minute
		default:
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

func numberValue(v envelope.Value) (int64, bool) {
	switch t := v.Raw().(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func (e *Engine) attachTracing(resp *envelope.Response, traceCtx tracing.Context) {
	data := tracing.Finish(traceCtx, time.Now().UnixNano())
	fields := map[string]envelope.Value{
		"trace_id": envelope.Scalar(data.TraceID),
		"span_id":  envelope.Scalar(data.SpanID),
		"duration": envelope.Object(map[string]envelope.Value{
			"value": envelope.Scalar(data.Duration.Value),
			"unit":  envelope.Scalar(data.Duration.Unit),
		}),
	}
	if data.ParentSpanID != "" {
		fields["parent_span_id"] = envelope.Scalar(data.ParentSpanID)
	}
	resp.AddExtension(tracingExtensionURN, envelope.Object(fields))
}

// attachRetry attaches retry guidance automatically to every error
// response, derived from the first error's kind only.
func (e *Engine) attachRetry(resp *envelope.Response) {
	if len(resp.Errors) == 0 {
		return
	}
	guidance := retry.ForKind(resp.Errors[0].Code)
	fields := map[string]envelope.Value{"allowed": envelope.Scalar(guidance.Allowed)}
	if guidance.Allowed {
		fields["strategy"] = envelope.Scalar(string(guidance.Strategy))
		fields["max_attempts"] = envelope.Scalar(guidance.MaxAttempts)
		if guidance.Strategy != retry.StrategyImmediate {
			fields["after"] = envelope.Object(map[string]envelope.Value{
				"value": envelope.Scalar(int(guidance.After.Seconds())),
				"unit":  envelope.Scalar("second"),
			})
		}
	}
	resp.AddExtension(retryExtensionURN, envelope.Object(fields))
}

// attachRateLimit is advisory and non-blocking: a nil reporter or
// any reporter error simply skips the enrichment.
func (e *Engine) attachRateLimit(ctx context.Context, resp *envelope.Response, req *envelope.Request) {
	if e.rateLimiter == nil {
		return
	}
	key := req.ID
	if e.cfg.RateLimitKeyFunc != nil {
		key = e.cfg.RateLimitKeyFunc(req)
	}
	scope := e.cfg.RateLimitScope
	if scope == "" {
		scope = ratelimit.ScopeUser
	}
	entry, err := e.rateLimiter.Report(ctx, scope, key, 1)
	if err != nil {
		e.log.Warn("rate limit reporter failed, skipping enrichment", "error", err)
		return
	}
	fields := map[string]envelope.Value{
		"limit":     envelope.Scalar(entry.Limit),
		"used":      envelope.Scalar(entry.Used),
		"remaining": envelope.Scalar(entry.Remaining),
		"scope":     envelope.Scalar(string(entry.Scope)),
		"window": envelope.Object(map[string]envelope.Value{
			"value": envelope.Scalar(entry.Window.Value),
			"unit":  envelope.Scalar(entry.Window.Unit),
		}),
		"resets_in": envelope.Object(map[string]envelope.Value{
			"value": envelope.Scalar(int(entry.ResetsIn.Seconds())),
			"unit":  envelope.Scalar("second"),
		}),
	}
	if entry.Warning != "" {
		fields["warning"] = envelope.Scalar(entry.Warning)
	}
	resp.AddExtension(rateLimitExtensionURN, envelope.Object(fields))
}

func (e *Engine) attachQuota(resp *envelope.Response, req *envelope.Request) {
	if e.quotaSource == nil {
		return
	}
	var reqCtx map[string]any
	if req.Context != nil {
		reqCtx = map[string]any{}
	}
	entries, err := e.quotaSource.Quotas(reqCtx)
	if err != nil {
		e.log.Warn("quota reporter failed, skipping enrichment", "error", err)
		return
	}
	items := make([]envelope.Value, 0, len(entries))
	for _, q := range entries {
		fields := map[string]envelope.Value{
			"type":      envelope.Scalar(q.Type),
			"name":      envelope.Scalar(q.Name),
			"limit":     envelope.Scalar(q.Limit),
			"used":      envelope.Scalar(q.Used),
			"remaining": envelope.Scalar(q.Remaining()),
			"period":    envelope.Scalar(q.Period),
			"unit":      envelope.Scalar(q.Unit),
		}
		if q.ResetsAt != nil {
			fields["resets_at"] = envelope.Scalar(q.ResetsAt.Format(time.RFC3339))
		}
		items = append(items, envelope.Object(fields))
	}
	resp.AddExtension(quotaExtensionURN, envelope.List(items...))
}

// attachRedaction runs only when the request declared the redaction
// extension (it is a function-result-shaping concern, not an always-on
// enrichment like tracing/retry).
func (e *Engine) attachRedaction(resp *envelope.Response, req *envelope.Request) {
	if e.redactor == nil || resp.Result == nil {
		return
	}
	for _, ext := range req.Extensions {
		if ext.URN != redactionExtensionURN {
			continue
		}
		mode := redaction.ModePartial
		policy := "default"
		if ext.Options != nil {
			if v, ok := ext.Options.Get("mode"); ok {
				if s, ok := v.Raw().(string); ok {
					mode = redaction.Mode(s)
				}
			}
			if v, ok := ext.Options.Get("policy"); ok {
				if s, ok := v.Raw().(string); ok {
					policy = s
				}
			}
		}
		out, result, ferr := e.redactor.Redact(*resp.Result, mode, policy, nil)
		if ferr != nil {
			resp.Errors = []*ferrors.Error{ferr}
			resp.Result = nil
			return
		}
		resp.Result = &out
		resp.AddExtension(redactionExtensionURN, envelope.Object(map[string]envelope.Value{
			"mode":            envelope.Scalar(string(result.Mode)),
			"redacted_fields": stringListValue(result.RedactedFields),
			"policy":          envelope.Scalar(result.Policy),
		}))
		return
	}
}

func stringListValue(ss []string) envelope.Value {
	items := make([]envelope.Value, len(ss))
	for i, s := range ss {
		items[i] = envelope.Scalar(s)
	}
	return envelope.List(items...)
}
