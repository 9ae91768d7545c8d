package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/forrst/forrst/internal/cancellation"
	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/eventbus"
	"github.com/forrst/forrst/internal/extension"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/maintenance"
	"github.com/forrst/forrst/internal/redaction"
	"github.com/forrst/forrst/internal/urn"
	"github.com/forrst/forrst/internal/validate"
	"github.com/forrst/forrst/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine     *Engine
	functions  *version.Registry
	extensions *extension.Registry
	maint      *maintenance.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	functions := version.NewRegistry()
	extensions := extension.NewRegistry()
	maint := maintenance.NewMemoryStore()

	for _, name := range []string{"tracing", "retry", "redaction", "cancellation", "deadline"} {
		require.NoError(t, extensions.Register(extension.Descriptor{URN: urn.Extension(name), Core: true}))
	}

	okHandler := func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		return envelope.Object(map[string]envelope.Value{"status": envelope.Scalar("created")}), nil
	}

	registrations := []version.Descriptor{
		{
			URN:       "orders.create",
			Version:   version.MustParse("1.0.0"),
			Stability: version.StabilityStable,
			Deprecated: &version.Deprecation{
				Reason: "superseded by version 2.0.0",
				Sunset: "2027-01-01",
			},
			Handle: FunctionFunc(okHandler),
		},
		{
			URN:       "orders.create",
			Version:   version.MustParse("2.0.0"),
			Stability: version.StabilityStable,
			Arguments: []version.ArgumentSpec{
				{Name: "customer_id", Type: "string", Required: true},
				{Name: "items", Type: "array", Required: true},
			},
			Handle: FunctionFunc(okHandler),
		},
		{
			URN:       "orders.create",
			Version:   version.MustParse("3.0.0-beta.1"),
			Stability: version.StabilityBeta,
			Handle:    FunctionFunc(okHandler),
		},
		{
			URN:       "reports.generate",
			Version:   version.MustParse("1.0.0"),
			Stability: version.StabilityStable,
			Handle:    FunctionFunc(okHandler),
		},
		{
			URN:       "reports.throttled",
			Version:   version.MustParse("1.0.0"),
			Stability: version.StabilityStable,
			Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
				return envelope.Value{}, ferrors.New(ferrors.KindRateLimited, "too many requests")
			}),
		},
	}
	for _, d := range registrations {
		require.NoError(t, functions.Register(d))
	}

	engine := New(Config{
		ProtocolName:        "forrst",
		SupportedMajor:      1,
		SupportedVersions:   []string{"1.0.0"},
		EchoProtocolVersion: "1.0.0",
	}, functions, extensions, maint, validate.New(), slog.Default())

	return &fixture{engine: engine, functions: functions, extensions: extensions, maint: maint}
}

func newRequest(fn string, requested *string, args *envelope.Value) *envelope.Request {
	return &envelope.Request{
		Protocol: envelope.Protocol{Name: "forrst", Version: "1.0.0"},
		ID:       "req-1",
		HasID:    true,
		Call:     envelope.Call{Function: fn, Version: requested, Arguments: args},
	}
}

func findExtension(t *testing.T, resp *envelope.Response, extURN string) envelope.Value {
	t.Helper()
	for _, e := range resp.Extensions {
		if e.URN == extURN {
			require.NotNil(t, e.Data)
			return *e.Data
		}
	}
	t.Fatalf("extension %s not attached; have %v", extURN, resp.Extensions)
	return envelope.Value{}
}

func field(t *testing.T, v envelope.Value, key string) envelope.Value {
	t.Helper()
	got, ok := v.Get(key)
	require.True(t, ok, "missing field %q", key)
	return got
}

func TestSuccessEchoesIDAndCarriesResultOnly(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	require.NotNil(t, resp.ID)
	assert.Equal(t, "req-1", *resp.ID)
	require.NotNil(t, resp.Result)
	assert.Empty(t, resp.Errors)
	require.NoError(t, resp.Validate())
}

func TestVersionNotFoundListsAvailableVersions(t *testing.T) {
	f := newFixture(t)
	requested := "5.0.0"
	resp := f.engine.Handle(context.Background(), newRequest("orders.create", &requested, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindVersionNotFound, resp.Errors[0].Code)
	assert.Equal(t, "5.0.0", resp.Errors[0].Details["requested_version"])
	assert.Equal(t, []string{"1.0.0", "2.0.0", "3.0.0-beta.1"}, resp.Errors[0].Details["available_versions"])
	assert.Nil(t, resp.Result)
}

func TestDefaultResolutionSkipsPrerelease(t *testing.T) {
	f := newFixture(t)
	args := envelope.Object(map[string]envelope.Value{
		"customer_id": envelope.Scalar("c-1"),
		"items":       envelope.List(envelope.Scalar("widget")),
	})
	resp := f.engine.Handle(context.Background(), newRequest("orders.create", nil, &args))
	require.NotNil(t, resp.Result)
	// 2.0.0 is the highest stable version; it carries no deprecation.
	assert.NotContains(t, resp.Meta, "deprecated")
}

func TestDeprecatedVersionAnnotatesMeta(t *testing.T) {
	f := newFixture(t)
	requested := "1.0.0"
	resp := f.engine.Handle(context.Background(), newRequest("orders.create", &requested, nil))
	require.NotNil(t, resp.Result)
	dep, ok := resp.Meta["deprecated"]
	require.True(t, ok)
	assert.Equal(t, "superseded by version 2.0.0", field(t, dep, "reason").Raw())
	assert.Equal(t, "2027-01-01", field(t, dep, "sunset").Raw())
}

func TestUnknownProtocolName(t *testing.T) {
	f := newFixture(t)
	req := newRequest("reports.generate", nil, nil)
	req.Protocol.Name = "jsonrpc"
	resp := f.engine.Handle(context.Background(), req)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindInvalidRequest, resp.Errors[0].Code)
	require.NotNil(t, resp.Errors[0].Source)
	assert.Equal(t, "/protocol/name", resp.Errors[0].Source.Pointer)
}

func TestInvalidProtocolVersion(t *testing.T) {
	f := newFixture(t)
	req := newRequest("reports.generate", nil, nil)
	req.Protocol.Version = "2.0.0"
	resp := f.engine.Handle(context.Background(), req)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindInvalidProtocolVersion, resp.Errors[0].Code)
	assert.Equal(t, []string{"1.0.0"}, resp.Errors[0].Details["supported_versions"])
}

func TestFunctionNotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), newRequest("does.not.exist", nil, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindFunctionNotFound, resp.Errors[0].Code)
}

func TestArgumentValidationAggregatesAllFailures(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), newRequest("orders.create", nil, nil))
	require.Len(t, resp.Errors, 2)
	pointers := []string{resp.Errors[0].Source.Pointer, resp.Errors[1].Source.Pointer}
	assert.Contains(t, pointers, "/call/arguments/customer_id")
	assert.Contains(t, pointers, "/call/arguments/items")
	for _, e := range resp.Errors {
		assert.Equal(t, ferrors.KindInvalidArguments, e.Code)
	}
	assert.Nil(t, resp.Result)
}

func TestTracingGeneratedWhenAbsent(t *testing.T) {
	f := newFixture(t)
	first := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	second := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))

	firstData := findExtension(t, first, "urn:cline:forrst:ext:tracing")
	secondData := findExtension(t, second, "urn:cline:forrst:ext:tracing")
	assert.NotEqual(t, field(t, firstData, "trace_id").Raw(), field(t, secondData, "trace_id").Raw())
	assert.NotEqual(t, field(t, firstData, "span_id").Raw(), field(t, secondData, "span_id").Raw())
	duration := field(t, firstData, "duration")
	assert.Equal(t, "millisecond", field(t, duration, "unit").Raw())
	_, hasParent := firstData.Get("parent_span_id")
	assert.False(t, hasParent)
}

func TestTracingPropagatesTraceIDAndLinksParent(t *testing.T) {
	f := newFixture(t)
	opts := envelope.Object(map[string]envelope.Value{
		"trace_id": envelope.Scalar("tr_abc"),
		"span_id":  envelope.Scalar("sp_01"),
	})
	req := newRequest("reports.throttled", nil, nil)
	req.Extensions = []envelope.ExtensionRef{{URN: "urn:cline:forrst:ext:tracing", Options: &opts}}

	resp := f.engine.Handle(context.Background(), req)
	data := findExtension(t, resp, "urn:cline:forrst:ext:tracing")
	assert.Equal(t, "tr_abc", field(t, data, "trace_id").Raw())
	assert.Equal(t, "sp_01", field(t, data, "parent_span_id").Raw())
	assert.NotEqual(t, "sp_01", field(t, data, "span_id").Raw())
}

func TestRetryGuidanceOnRateLimited(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), newRequest("reports.throttled", nil, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindRateLimited, resp.Errors[0].Code)

	data := findExtension(t, resp, "urn:cline:forrst:ext:retry")
	assert.Equal(t, true, field(t, data, "allowed").Raw())
	assert.Equal(t, "fixed", field(t, data, "strategy").Raw())
	assert.Equal(t, 3, field(t, data, "max_attempts").Raw())
	after := field(t, data, "after")
	assert.Equal(t, 60, field(t, after, "value").Raw())
	assert.Equal(t, "second", field(t, after, "unit").Raw())
}

func TestRetryGuidanceOnNonRetryableError(t *testing.T) {
	f := newFixture(t)
	requested := "5.0.0"
	resp := f.engine.Handle(context.Background(), newRequest("orders.create", &requested, nil))
	data := findExtension(t, resp, "urn:cline:forrst:ext:retry")
	assert.Equal(t, false, field(t, data, "allowed").Raw())
	_, hasStrategy := data.Get("strategy")
	assert.False(t, hasStrategy)
}

func TestNoRetryExtensionOnSuccess(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	for _, e := range resp.Extensions {
		assert.NotEqual(t, "urn:cline:forrst:ext:retry", e.URN)
	}
}

func TestFunctionMaintenanceGate(t *testing.T) {
	f := newFixture(t)
	f.maint.SetFunctionWindow("reports.generate", maintenance.Window{
		Reason:     "index rebuild",
		RetryAfter: maintenance.RetryAfter{Value: 30, Unit: "minute"},
	})

	resp := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindFunctionMaintenance, resp.Errors[0].Code)
	assert.Equal(t, "reports.generate", resp.Errors[0].Details["function"])

	maint := findExtension(t, resp, "urn:cline:forrst:ext:maintenance")
	assert.Equal(t, "index rebuild", field(t, maint, "reason").Raw())

	retryData := findExtension(t, resp, "urn:cline:forrst:ext:retry")
	assert.Equal(t, true, field(t, retryData, "allowed").Raw())
	assert.Equal(t, "fixed", field(t, retryData, "strategy").Raw())
	assert.Equal(t, 1, field(t, retryData, "max_attempts").Raw())
	after := field(t, retryData, "after")
	assert.Equal(t, 60, field(t, after, "value").Raw())

	// Other functions stay reachable.
	ok := f.engine.Handle(context.Background(), newRequest("reports.throttled", nil, nil))
	assert.NotEqual(t, ferrors.KindFunctionMaintenance, ok.Errors[0].Code)
}

func TestServerMaintenanceTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	f.maint.SetServerWindow(maintenance.Window{
		Reason:     "rolling upgrade",
		RetryAfter: maintenance.RetryAfter{Value: 5, Unit: "minute"},
	})
	f.maint.SetFunctionWindow("reports.generate", maintenance.Window{
		Reason:     "index rebuild",
		RetryAfter: maintenance.RetryAfter{Value: 30, Unit: "minute"},
	})

	resp := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindServerMaintenance, resp.Errors[0].Code)
}

func TestDeclaredExtensionOutsideSupportedSetIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.functions.Register(version.Descriptor{
		URN:       "reports.restricted",
		Version:   version.MustParse("1.0.0"),
		Stability: version.StabilityStable,
		Extensions: version.ExtensionScope{
			Supported: []string{urn.Extension("retry")},
		},
		Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
			return envelope.Scalar("ok"), nil
		}),
	}))

	req := newRequest("reports.restricted", nil, nil)
	req.Extensions = []envelope.ExtensionRef{{URN: urn.Extension("tracing")}}
	resp := f.engine.Handle(context.Background(), req)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindExtensionNotApplicable, resp.Errors[0].Code)
}

func TestUndeclaredUnregisteredExtensionIsNotSupported(t *testing.T) {
	f := newFixture(t)
	req := newRequest("reports.generate", nil, nil)
	req.Extensions = []envelope.ExtensionRef{{URN: "urn:acme:forrst:ext:mystery"}}
	resp := f.engine.Handle(context.Background(), req)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindExtensionNotSupported, resp.Errors[0].Code)
}

func TestFatalExtensionErrorReplacesResponse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.extensions.Register(extension.Descriptor{
		URN:          "urn:acme:forrst:ext:boom",
		IsGlobal:     true,
		IsErrorFatal: true,
		Subscriptions: []extension.Subscription{{
			Event:    eventbus.EventRequestValidated,
			Priority: 10,
			Handler:  func(ev *eventbus.Event) error { return errors.New("exploded") },
		}},
	}))

	resp := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindInternalError, resp.Errors[0].Code)
	assert.Equal(t, "urn:acme:forrst:ext:boom", resp.Errors[0].Details["extension"])
}

func TestAdvisoryExtensionErrorIsIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.extensions.Register(extension.Descriptor{
		URN:          "urn:acme:forrst:ext:flaky",
		IsGlobal:     true,
		IsErrorFatal: false,
		Subscriptions: []extension.Subscription{{
			Event:    eventbus.EventRequestValidated,
			Priority: 10,
			Handler:  func(ev *eventbus.Event) error { return errors.New("shrug") },
		}},
	}))

	resp := f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	require.NotNil(t, resp.Result)
	assert.Empty(t, resp.Errors)
}

func TestSetResponseShortCircuitSkipsInvocationButStillEnriches(t *testing.T) {
	f := newFixture(t)
	invoked := false
	require.NoError(t, f.functions.Register(version.Descriptor{
		URN:       "reports.cached",
		Version:   version.MustParse("1.0.0"),
		Stability: version.StabilityStable,
		Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
			invoked = true
			return envelope.Scalar("live"), nil
		}),
	}))
	require.NoError(t, f.extensions.Register(extension.Descriptor{
		URN:      "urn:acme:forrst:ext:cache",
		IsGlobal: true,
		Subscriptions: []extension.Subscription{{
			Event:    eventbus.EventRequestValidated,
			Priority: 0,
			Handler: func(ev *eventbus.Event) error {
				id := ev.Request.ID
				cached := envelope.Scalar("cached")
				ev.SetResponse(&envelope.Response{
					Protocol: ev.Request.Protocol,
					ID:       &id,
					Result:   &cached,
				})
				ev.StopPropagation()
				return nil
			},
		}},
	}))

	resp := f.engine.Handle(context.Background(), newRequest("reports.cached", nil, nil))
	assert.False(t, invoked)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "cached", resp.Result.Raw())
	// The short-circuit path still runs the FunctionExecuted enrichments.
	findExtension(t, resp, "urn:cline:forrst:ext:tracing")
}

func TestHandlerPriorityOrderingAcrossExtensions(t *testing.T) {
	f := newFixture(t)
	var order []string
	sub := func(name string, prio int) extension.Descriptor {
		return extension.Descriptor{
			URN:      "urn:acme:forrst:ext:" + name,
			IsGlobal: true,
			Subscriptions: []extension.Subscription{{
				Event:    eventbus.EventRequestValidated,
				Priority: prio,
				Handler: func(ev *eventbus.Event) error {
					order = append(order, name)
					return nil
				},
			}},
		}
	}
	require.NoError(t, f.extensions.Register(sub("late", 20)))
	require.NoError(t, f.extensions.Register(sub("early", 1)))
	require.NoError(t, f.extensions.Register(sub("tied", 20)))

	f.engine.Handle(context.Background(), newRequest("reports.generate", nil, nil))
	assert.Equal(t, []string{"early", "late", "tied"}, order)
}

func TestFunctionPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.functions.Register(version.Descriptor{
		URN:       "reports.crashy",
		Version:   version.MustParse("1.0.0"),
		Stability: version.StabilityStable,
		Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
			panic("kaboom")
		}),
	}))

	resp := f.engine.Handle(context.Background(), newRequest("reports.crashy", nil, nil))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindInternalError, resp.Errors[0].Code)
}

func TestRedactionAppliedWhenDeclared(t *testing.T) {
	f := newFixture(t)
	f.engine.WithRedactor(redaction.New(nil, nil))
	require.NoError(t, f.functions.Register(version.Descriptor{
		URN:       "customers.get",
		Version:   version.MustParse("1.0.0"),
		Stability: version.StabilityStable,
		Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
			return envelope.Object(map[string]envelope.Value{
				"name":     envelope.Scalar("Ada Lovelace"),
				"password": envelope.Scalar("hunter2"),
			}), nil
		}),
	}))

	opts := envelope.Object(map[string]envelope.Value{"mode": envelope.Scalar("full")})
	req := newRequest("customers.get", nil, nil)
	req.Extensions = []envelope.ExtensionRef{{URN: "urn:cline:forrst:ext:redaction", Options: &opts}}

	resp := f.engine.Handle(context.Background(), req)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "***", field(t, *resp.Result, "password").Raw())
	assert.Equal(t, "Ada Lovelace", field(t, *resp.Result, "name").Raw())

	data := findExtension(t, resp, "urn:cline:forrst:ext:redaction")
	assert.Equal(t, "full", field(t, data, "mode").Raw())
	redacted := field(t, data, "redacted_fields")
	require.Equal(t, 1, redacted.Len())
	assert.Equal(t, "/password", redacted.Items()[0].Raw())
}

func TestCancellationTokenInjectedIntoContext(t *testing.T) {
	f := newFixture(t)
	var seen string
	require.NoError(t, f.functions.Register(version.Descriptor{
		URN:       "reports.cancellable",
		Version:   version.MustParse("1.0.0"),
		Stability: version.StabilityStable,
		Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
			seen, _ = cancellation.TokenFromContext(ctx)
			return envelope.Scalar("ok"), nil
		}),
	}))

	opts := envelope.Object(map[string]envelope.Value{"token": envelope.Scalar("tok-123")})
	req := newRequest("reports.cancellable", nil, nil)
	req.Extensions = []envelope.ExtensionRef{{URN: urn.Extension("cancellation"), Options: &opts}}

	resp := f.engine.Handle(context.Background(), req)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "tok-123", seen)
}

func TestDeadlineExceededDuringInvocation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.functions.Register(version.Descriptor{
		URN:       "reports.slow",
		Version:   version.MustParse("1.0.0"),
		Stability: version.StabilityStable,
		Handle: FunctionFunc(func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
			<-ctx.Done()
			return envelope.Scalar("too late"), nil
		}),
	}))

	opts := envelope.Object(map[string]envelope.Value{
		"timeout": envelope.Object(map[string]envelope.Value{
			"value": envelope.Scalar(20),
			"unit":  envelope.Scalar("millisecond"),
		}),
	})
	req := newRequest("reports.slow", nil, nil)
	req.Extensions = []envelope.ExtensionRef{{URN: urn.Extension("deadline"), Options: &opts}}

	resp := f.engine.Handle(context.Background(), req)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindDeadlineExceeded, resp.Errors[0].Code)

	data := findExtension(t, resp, "urn:cline:forrst:ext:retry")
	assert.Equal(t, true, field(t, data, "allowed").Raw())
	assert.Equal(t, "immediate", field(t, data, "strategy").Raw())
	_, hasAfter := data.Get("after")
	assert.False(t, hasAfter)
}

func TestHandleBytesParseErrorCarriesPositionAndNullID(t *testing.T) {
	f := newFixture(t)
	out := f.engine.HandleBytes(context.Background(), []byte(`{"protocol": {`), 0)

	resp, ferr := envelopeFromBytes(t, out)
	require.Nil(t, ferr)
	assert.Nil(t, resp.ID)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ferrors.KindParseError, resp.Errors[0].Code)
	require.NotNil(t, resp.Errors[0].Source)
	require.NotNil(t, resp.Errors[0].Source.Position)
}

func TestHandleBytesRoundTrip(t *testing.T) {
	f := newFixture(t)
	out := f.engine.HandleBytes(context.Background(), []byte(`{
		"protocol": {"name": "forrst", "version": "1.0.0"},
		"id": "req-42",
		"call": {"function": "reports.generate"}
	}`), 0)

	resp, ferr := envelopeFromBytes(t, out)
	require.Nil(t, ferr)
	require.NotNil(t, resp.ID)
	assert.Equal(t, "req-42", *resp.ID)
	require.NotNil(t, resp.Result)
}

func envelopeFromBytes(t *testing.T, raw []byte) (*envelope.Response, error) {
	t.Helper()
	var resp envelope.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
