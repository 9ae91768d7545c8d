// Package demo registers an example domain function (orders.create) and an
// example non-core extension (audit-log), showing the shape an authoring
// team follows to add their own functions and extensions to a running
// Forrst server: plain version.Descriptor/extension.Descriptor registrations
// against the same registries the reserved system functions use.
package demo

import (
	"context"

	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/pipeline"
	"github.com/forrst/forrst/internal/version"
	"github.com/google/uuid"
)

// ordersCreateFunction is registered via the legacy dotted-name compatibility
// form rather than a URN, exercising that path of urn.Parse.
const ordersCreateFunction = "orders.create"

// RegisterFunctions registers orders.create across three versions: 1.0.0
// (deprecated, single item), 2.0.0 (stable, the version an omitted request
// version resolves to), and 3.0.0-beta.1 (a prerelease that default
// resolution skips in favor of 2.0.0).
func RegisterFunctions(functions *version.Registry) error {
	registrations := []version.Descriptor{
		{
			URN:          ordersCreateFunction,
			Version:      version.MustParse("1.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			SideEffects:  []version.SideEffect{version.SideEffectCreate},
			Deprecated: &version.Deprecation{
				Reason: "superseded by version 2.0.0, which accepts multiple line items",
				Sunset: "2027-01-01",
			},
			Arguments: []version.ArgumentSpec{
				{Name: "customer_id", Type: "string", Required: true},
				{Name: "item", Type: "string", Required: true},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindInvalidArguments), When: "customer_id or item is missing"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(createOrderV1),
		},
		{
			URN:          ordersCreateFunction,
			Version:      version.MustParse("2.0.0"),
			Stability:    version.StabilityStable,
			Discoverable: true,
			SideEffects:  []version.SideEffect{version.SideEffectCreate},
			Arguments: []version.ArgumentSpec{
				{Name: "customer_id", Type: "string", Required: true},
				{Name: "items", Type: "array", Required: true},
				{Name: "note", Type: "string", Required: false},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindInvalidArguments), When: "customer_id or items is missing"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(createOrderV2),
		},
		{
			URN:          ordersCreateFunction,
			Version:      version.MustParse("3.0.0-beta.1"),
			Stability:    version.StabilityBeta,
			Discoverable: true,
			SideEffects:  []version.SideEffect{version.SideEffectCreate},
			Arguments: []version.ArgumentSpec{
				{Name: "customer_id", Type: "string", Required: true},
				{Name: "items", Type: "array", Required: true},
				{Name: "note", Type: "string", Required: false},
				{Name: "idempotency_key", Type: "string", Required: false},
			},
			Errors: []version.ErrorSpec{
				{Code: string(ferrors.KindInvalidArguments), When: "customer_id or items is missing"},
			},
			Result: version.ResultSpec{Type: "object"},
			Handle: pipeline.FunctionFunc(createOrderV3),
		},
	}

	for _, d := range registrations {
		if err := functions.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func createOrderV1(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
	customerID, ferr := requiredString(call.Arguments, "customer_id")
	if ferr != nil {
		return envelope.Value{}, ferr
	}
	item, ferr := requiredString(call.Arguments, "item")
	if ferr != nil {
		return envelope.Value{}, ferr
	}
	return envelope.Object(map[string]envelope.Value{
		"order_id":    envelope.Scalar(uuid.NewString()),
		"customer_id": envelope.Scalar(customerID),
		"items":       envelope.List(envelope.Scalar(item)),
		"status":      envelope.Scalar("created"),
	}), nil
}

func createOrderV2(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
	customerID, ferr := requiredString(call.Arguments, "customer_id")
	if ferr != nil {
		return envelope.Value{}, ferr
	}
	items, ferr := requiredStringList(call.Arguments, "items")
	if ferr != nil {
		return envelope.Value{}, ferr
	}
	fields := map[string]envelope.Value{
		"order_id":    envelope.Scalar(uuid.NewString()),
		"customer_id": envelope.Scalar(customerID),
		"items":       stringListValue(items),
		"status":      envelope.Scalar("created"),
	}
	if note := optionalString(call.Arguments, "note"); note != "" {
		fields["note"] = envelope.Scalar(note)
	}
	return envelope.Object(fields), nil
}

func createOrderV3(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
	result, ferr := createOrderV2(ctx, call, reqCtx)
	if ferr != nil {
		return envelope.Value{}, ferr
	}
	fields := map[string]envelope.Value{"schema_version": envelope.Scalar(3)}
	for _, k := range result.Keys() {
		v, _ := result.Get(k)
		fields[k] = v
	}
	if key := optionalString(call.Arguments, "idempotency_key"); key != "" {
		fields["idempotency_key"] = envelope.Scalar(key)
	}
	return envelope.Object(fields), nil
}
