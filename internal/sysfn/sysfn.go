// Package sysfn registers the reserved system functions and extensions:
// ping, health, capabilities, describe, the three atomic-lock functions,
// and the cancellation extension's cancel function. All of them live in the
// reserved "cline" vendor namespace and are registered with Core: true so
// urn.CheckRegistrable accepts them.
package sysfn

import (
	"context"
	"time"

	"github.com/forrst/forrst/internal/cancellation"
	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/extension"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/lock"
	"github.com/forrst/forrst/internal/pipeline"
	"github.com/forrst/forrst/internal/urn"
	"github.com/forrst/forrst/internal/version"
)

// Capabilities carries the process-wide facts the capabilities function
// reports alongside the live function and extension registries.
type Capabilities struct {
	ProtocolName      string
	SupportedVersions []string
	MaxRequestBytes   int
	MaxResponseBytes  int
}

// Register wires every reserved system function and extension into
// functions and extensions. bootTime seeds the health function's uptime
// figure.
func Register(functions *version.Registry, extensions *extension.Registry, locks *lock.Locks, cancel *cancellation.Broker, caps Capabilities, bootTime time.Time) error {
	// The built-in enrichment extensions have no event subscriptions of
	// their own (the pipeline applies their behavior directly) but must
	// still be registered so a client declaring one in request.extensions
	// passes the active-set applicability check.
	coreExtensions := []string{
		"atomic-lock",
		"cancellation",
		"tracing",
		"retry",
		"rate-limit",
		"quota",
		"redaction",
		"maintenance",
		"deadline",
	}
	for _, name := range coreExtensions {
		if err := extensions.Register(extension.Descriptor{URN: urn.Extension(name), Core: true}); err != nil {
			return err
		}
	}

	registrations := []version.Descriptor{
		{
			URN:          urn.Function("ping"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Result:       version.ResultSpec{Type: "object"},
			Handle:       pipeline.FunctionFunc(pingHandler),
		},
		{
			URN:          urn.Function("health"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Result:       version.ResultSpec{Type: "object"},
			Handle:       pipeline.FunctionFunc(healthHandler(bootTime)),
		},
		{
			URN:          urn.Function("capabilities"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Result:       version.ResultSpec{Type: "object"},
			Handle:       pipeline.FunctionFunc(capabilitiesHandler(functions, extensions, caps)),
		},
		{
			URN:          urn.Function("describe"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Arguments: []version.ArgumentSpec{
				{Name: "function", Type: "string", Required: true},
				{Name: "version", Type: "string", Required: false},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindFunctionNotFound), When: "function is not registered"},
				{Code: string(ferrors.KindVersionNotFound), When: "requested version is not registered"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(describeHandler(functions)),
		},
		{
			URN:          urn.ExtensionFunction("atomic-lock", "release"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Arguments: []version.ArgumentSpec{
				{Name: "domain", Type: "string", Required: true},
				{Name: "resource", Type: "string", Required: true},
				{Name: "owner", Type: "string", Required: true},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindLockNotFound), When: "lock does not exist"},
				{Code: string(ferrors.KindLockOwnershipMismatch), When: "owner does not hold the lock"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(releaseHandler(locks)),
		},
		{
			URN:          urn.ExtensionFunction("atomic-lock", "force-release"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Arguments: []version.ArgumentSpec{
				{Name: "domain", Type: "string", Required: true},
				{Name: "resource", Type: "string", Required: true},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindLockNotFound), When: "lock does not exist"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(forceReleaseHandler(locks)),
		},
		{
			URN:          urn.ExtensionFunction("atomic-lock", "status"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Arguments: []version.ArgumentSpec{
				{Name: "domain", Type: "string", Required: true},
				{Name: "resource", Type: "string", Required: true},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(statusHandler(locks)),
		},
		{
			URN:          urn.ExtensionFunction("cancellation", "cancel"),
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			Core:         true,
			Arguments: []version.ArgumentSpec{
				{Name: "token", Type: "string", Required: true},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindCancellationTokenUnknown), When: "token was never issued or has expired"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(cancelHandler(cancel)),
		},
	}

	for _, d := range registrations {
		if err := functions.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func pingHandler(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
	return envelope.Object(map[string]envelope.Value{
		"status": envelope.Scalar("ok"),
	}), nil
}

func healthHandler(bootTime time.Time) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		return envelope.Object(map[string]envelope.Value{
			"status":         envelope.Scalar("healthy"),
			"uptime_seconds": envelope.Scalar(int64(time.Since(bootTime).Seconds())),
		}), nil
	}
}

func capabilitiesHandler(functions *version.Registry, extensions *extension.Registry, caps Capabilities) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		return envelope.Object(map[string]envelope.Value{
			"protocol_name":      envelope.Scalar(caps.ProtocolName),
			"supported_versions": stringList(caps.SupportedVersions),
			"max_request_bytes":  envelope.Scalar(caps.MaxRequestBytes),
			"max_response_bytes": envelope.Scalar(caps.MaxResponseBytes),
			"functions":          stringList(functions.Functions()),
			"extensions":         stringList(extensions.URNs()),
		}), nil
	}
}

func describeHandler(functions *version.Registry) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		fn, ferr := stringArg(call.Arguments, "function")
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		var requested *string
		if v := optionalStringArg(call.Arguments, "version"); v != "" {
			requested = &v
		}
		desc, ferr := functions.Resolve(fn, requested)
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		return descriptorValue(desc), nil
	}
}

func releaseHandler(locks *lock.Locks) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		key, ferr := lockArguments(call.Arguments)
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		owner, ferr := stringArg(call.Arguments, "owner")
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		if ferr := locks.Release(ctx, key, owner); ferr != nil {
			return envelope.Value{}, ferr
		}
		return envelope.Object(map[string]envelope.Value{
			"released": envelope.Scalar(true),
			"key":      envelope.Scalar(key),
		}), nil
	}
}

func forceReleaseHandler(locks *lock.Locks) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		key, ferr := lockArguments(call.Arguments)
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		if ferr := locks.ForceRelease(ctx, key); ferr != nil {
			return envelope.Value{}, ferr
		}
		return envelope.Object(map[string]envelope.Value{
			"released": envelope.Scalar(true),
			"key":      envelope.Scalar(key),
			"forced":   envelope.Scalar(true),
		}), nil
	}
}

func statusHandler(locks *lock.Locks) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		key, ferr := lockArguments(call.Arguments)
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		rec, ferr := locks.Status(ctx, key)
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		return lockRecordValue(rec), nil
	}
}

func cancelHandler(broker *cancellation.Broker) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		token, ferr := stringArg(call.Arguments, "token")
		if ferr != nil {
			return envelope.Value{}, ferr
		}
		if ferr := broker.Cancel(ctx, token); ferr != nil {
			return envelope.Value{}, ferr
		}
		return envelope.Object(map[string]envelope.Value{
			"cancelled": envelope.Scalar(true),
			"token":     envelope.Scalar(token),
		}), nil
	}
}

// lockArguments reads the domain/resource pair common to all three
// atomic-lock functions and builds the store key.
func lockArguments(args *envelope.Value) (string, *ferrors.Error) {
	domain, ferr := stringArg(args, "domain")
	if ferr != nil {
		return "", ferr
	}
	resource, ferr := stringArg(args, "resource")
	if ferr != nil {
		return "", ferr
	}
	return lockKey(domain, resource), nil
}

func lockKey(domain, resource string) string {
	return "forrst_lock:" + domain + ":" + resource
}

func lockRecordValue(rec lock.Record) envelope.Value {
	fields := map[string]envelope.Value{
		"key":    envelope.Scalar(rec.Key),
		"locked": envelope.Scalar(rec.Locked),
	}
	if rec.Locked {
		fields["owner"] = envelope.Scalar(rec.Owner)
		fields["acquired_at"] = envelope.Scalar(rec.AcquiredAt.Format(time.RFC3339))
		fields["expires_at"] = envelope.Scalar(rec.ExpiresAt.Format(time.RFC3339))
		fields["ttl_remaining"] = envelope.Scalar(int64(rec.TTLRemaining.Seconds()))
	}
	return envelope.Object(fields)
}

func descriptorValue(d version.Descriptor) envelope.Value {
	fields := map[string]envelope.Value{
		"urn":          envelope.Scalar(d.URN),
		"version":      envelope.Scalar(d.Version.String()),
		"stability":    envelope.Scalar(string(d.Stability)),
		"discoverable": envelope.Scalar(d.Discoverable),
		"side_effects": stringList(sideEffectStrings(d.SideEffects)),
		"arguments":    argumentSpecList(d.Arguments),
		"errors":       errorSpecList(d.Errors),
	}
	if d.Result.Type != "" {
		fields["result"] = envelope.Object(map[string]envelope.Value{"type": envelope.Scalar(d.Result.Type)})
	}
	if d.Deprecated != nil {
		sunset := envelope.Null()
		if d.Deprecated.Sunset != "" {
			sunset = envelope.Scalar(d.Deprecated.Sunset)
		}
		fields["deprecated"] = envelope.Object(map[string]envelope.Value{
			"reason": envelope.Scalar(d.Deprecated.Reason),
			"sunset": sunset,
		})
	}
	return envelope.Object(fields)
}

func sideEffectStrings(ses []version.SideEffect) []string {
	out := make([]string, len(ses))
	for i, s := range ses {
		out[i] = string(s)
	}
	return out
}

func argumentSpecList(specs []version.ArgumentSpec) envelope.Value {
	items := make([]envelope.Value, len(specs))
	for i, s := range specs {
		items[i] = envelope.Object(map[string]envelope.Value{
			"name":     envelope.Scalar(s.Name),
			"type":     envelope.Scalar(s.Type),
			"required": envelope.Scalar(s.Required),
		})
	}
	return envelope.List(items...)
}

func errorSpecList(specs []version.ErrorSpec) envelope.Value {
	items := make([]envelope.Value, len(specs))
	for i, s := range specs {
		items[i] = envelope.Object(map[string]envelope.Value{
			"code": envelope.Scalar(s.Code),
			"when": envelope.Scalar(s.When),
		})
	}
	return envelope.List(items...)
}

func stringList(ss []string) envelope.Value {
	items := make([]envelope.Value, len(ss))
	for i, s := range ss {
		items[i] = envelope.Scalar(s)
	}
	return envelope.List(items...)
}

func stringArg(args *envelope.Value, name string) (string, *ferrors.Error) {
	if args == nil {
		return "", missingArg(name)
	}
	v, ok := args.Get(name)
	if !ok {
		return "", missingArg(name)
	}
	s, ok := v.Raw().(string)
	if !ok {
		return "", ferrors.New(ferrors.KindInvalidArguments, "expected string").WithPointer("/call/arguments/" + name)
	}
	return s, nil
}

func optionalStringArg(args *envelope.Value, name string) string {
	if args == nil {
		return ""
	}
	if v, ok := args.Get(name); ok {
		if s, ok := v.Raw().(string); ok {
			return s
		}
	}
	return ""
}

func missingArg(name string) *ferrors.Error {
	return ferrors.Newf(ferrors.KindInvalidArguments, "missing required argument %q", name).WithPointer("/call/arguments/" + name)
}
