package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/forrst/forrst/internal/ferrors"
)

// DefaultMaxRequestBytes is the default request size cap (1 MB).
const DefaultMaxRequestBytes = 1 << 20

// DefaultMaxResponseBytes is the default response size cap (10 MB).
const DefaultMaxResponseBytes = 10 << 20

// wireRequest mirrors Request's JSON shape but keeps every optional member
// (ID, Version, Arguments, Context) as a raw presence-tracked field so
// Parse can tell absent from null. A pointer-typed field would not do:
// encoding/json sets a settable pointer field to nil on a literal null
// without ever invoking the pointee's UnmarshalJSON, collapsing the two
// cases.
type wireRequest struct {
	Protocol   Protocol        `json:"protocol"`
	ID         json.RawMessage `json:"id"`
	Call       wireCall        `json:"call"`
	Context    json.RawMessage `json:"context"`
	Extensions []ExtensionRef  `json:"extensions"`
}

type wireCall struct {
	Function  string          `json:"function"`
	Version   json.RawMessage `json:"version"`
	Arguments json.RawMessage `json:"arguments"`
}

// optionalValue decodes a presence-tracked free-form member: absent yields
// nil, a literal null yields a pointer to the explicit Null value, anything
// else decodes through the Value codec.
func optionalValue(raw json.RawMessage) (*Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		v := Null()
		return &v, nil
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Parse decodes a single JSON object into a Request, enforcing the
// envelope's structural invariants: UTF-8 JSON object input only (top-level
// arrays/scalars are INVALID_REQUEST), size-capped, unknown members
// ignored. Parse failures return PARSE_ERROR with source.position set to
// the byte offset the decoder last consumed.
func Parse(data []byte, maxBytes int) (*Request, *ferrors.Error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBytes
	}
	if len(data) > maxBytes {
		return nil, ferrors.New(ferrors.KindInvalidRequest, fmt.Sprintf("request exceeds %d byte cap", maxBytes)).
			WithDetail("limit_bytes", maxBytes).WithDetail("actual_bytes", len(data))
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		pos := 0
		for i, b := range data {
			if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
				pos = i
				break
			}
		}
		return nil, ferrors.New(ferrors.KindInvalidRequest, "request body must be a single JSON object").WithPosition(pos)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var wire wireRequest
	if err := dec.Decode(&wire); err != nil {
		return nil, parseErrorFrom(err, data)
	}

	args, err := optionalValue(wire.Call.Arguments)
	if err != nil {
		return nil, parseErrorFrom(err, data)
	}
	reqContext, err := optionalValue(wire.Context)
	if err != nil {
		return nil, parseErrorFrom(err, data)
	}

	req := &Request{
		Protocol:   wire.Protocol,
		Context:    reqContext,
		Extensions: wire.Extensions,
		Call: Call{
			Function:  wire.Call.Function,
			Arguments: args,
		},
	}

	if len(wire.ID) > 0 && !bytes.Equal(bytes.TrimSpace(wire.ID), []byte("null")) {
		var id string
		if err := json.Unmarshal(wire.ID, &id); err == nil {
			req.ID = id
			req.HasID = true
		}
	}

	if len(wire.Call.Version) > 0 && !bytes.Equal(bytes.TrimSpace(wire.Call.Version), []byte("null")) {
		var v string
		if err := json.Unmarshal(wire.Call.Version, &v); err == nil {
			req.Call.Version = &v
		}
	}

	return req, nil
}

// parseErrorFrom maps a json.Decoder error into a PARSE_ERROR with a best
// effort byte offset.
func parseErrorFrom(err error, data []byte) *ferrors.Error {
	pos := 0
	if se, ok := err.(*json.SyntaxError); ok {
		pos = int(se.Offset)
	} else if te, ok := err.(*json.UnmarshalTypeError); ok {
		pos = int(te.Offset)
	} else {
		pos = len(data)
	}
	return ferrors.New(ferrors.KindParseError, err.Error()).WithPosition(pos)
}

// Serialize encodes a Response envelope to its wire JSON form. Member
// order is insignificant on the wire; encoding/json's struct-field order
// is stable and deterministic, so re-parsing a serialized response yields
// an equivalent document.
func Serialize(resp *Response) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
