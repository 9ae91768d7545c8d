package envelope

import (
	"encoding/json"

	"github.com/forrst/forrst/internal/ferrors"
)

// Protocol identifies the implementation name and major.minor.patch version
// a caller or server speaks.
type Protocol struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExtensionRef is a single entry in a request's declared extension list, or
// a response's extension enrichment list. Options and Data are nil when
// absent and point at the explicit Null value when the member was a literal
// null.
type ExtensionRef struct {
	URN     string `json:"urn"`
	Options *Value `json:"options,omitempty"`
	Data    *Value `json:"data,omitempty"`
}

// UnmarshalJSON decodes Options and Data through presence-tracked raw
// members; a plain *Value field would be set to nil on a literal null
// before the Value codec ever ran, collapsing null into absent.
func (r *ExtensionRef) UnmarshalJSON(data []byte) error {
	var wire struct {
		URN     string          `json:"urn"`
		Options json.RawMessage `json:"options"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	options, err := optionalValue(wire.Options)
	if err != nil {
		return err
	}
	d, err := optionalValue(wire.Data)
	if err != nil {
		return err
	}
	*r = ExtensionRef{URN: wire.URN, Options: options, Data: d}
	return nil
}

// Call describes the target function, requested version, and arguments of a
// request envelope.
type Call struct {
	Function string `json:"function"`
	// Version is nil when absent, null or not a string (no specific
	// version requested) and non-nil (possibly empty string) when a string
	// is present.
	Version   *string `json:"version,omitempty"`
	Arguments *Value  `json:"arguments,omitempty"`
}

// Request is a parsed request envelope.
type Request struct {
	Protocol Protocol `json:"protocol"`
	ID       string   `json:"id"`
	// HasID distinguishes a successfully-parsed id (possibly "") from one
	// that could not be parsed at all; only a parsed id is echoed back.
	HasID      bool
	Call       Call            `json:"call"`
	Context    *Value          `json:"context,omitempty"`
	Extensions []ExtensionRef  `json:"extensions,omitempty"`
}

// Response is a response envelope. Exactly one of Result or Errors is set,
// enforced by the constructors in this package and checked by Validate.
type Response struct {
	Protocol   Protocol         `json:"protocol"`
	ID         *string          `json:"id"`
	Result     *Value           `json:"result,omitempty"`
	Errors     []*ferrors.Error `json:"errors,omitempty"`
	Meta       map[string]Value `json:"meta,omitempty"`
	Extensions []ExtensionRef   `json:"extensions,omitempty"`
}

// UnmarshalJSON decodes Result through a presence-tracked raw member so a
// re-parsed response keeps absent and explicit-null results distinct, the
// same way Parse treats request members.
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire struct {
		Protocol   Protocol         `json:"protocol"`
		ID         *string          `json:"id"`
		Result     json.RawMessage  `json:"result"`
		Errors     []*ferrors.Error `json:"errors"`
		Meta       map[string]Value `json:"meta"`
		Extensions []ExtensionRef   `json:"extensions"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	result, err := optionalValue(wire.Result)
	if err != nil {
		return err
	}
	*r = Response{
		Protocol:   wire.Protocol,
		ID:         wire.ID,
		Result:     result,
		Errors:     wire.Errors,
		Meta:       wire.Meta,
		Extensions: wire.Extensions,
	}
	return nil
}

// NewSuccess builds a success response envelope.
func NewSuccess(protocol Protocol, id *string, result Value) *Response {
	return &Response{Protocol: protocol, ID: id, Result: &result}
}

// NewError builds an error response envelope with one or more errors.
func NewError(protocol Protocol, id *string, errs ...*ferrors.Error) *Response {
	return &Response{Protocol: protocol, ID: id, Errors: errs}
}

// Validate enforces the exclusivity invariant: exactly one of Result or
// Errors is present, and Errors (when present) is non-empty.
func (r *Response) Validate() error {
	hasResult := r.Result != nil
	hasErrors := len(r.Errors) > 0
	if hasResult == hasErrors {
		return ferrors.New(ferrors.KindInternalError, "response must carry exactly one of result or errors")
	}
	if r.Errors != nil && len(r.Errors) == 0 {
		return ferrors.New(ferrors.KindInternalError, "errors field present but empty")
	}
	return nil
}

// AddExtension appends (or replaces, by URN) a response-side extension
// enrichment entry.
func (r *Response) AddExtension(urn string, data Value) {
	for i := range r.Extensions {
		if r.Extensions[i].URN == urn {
			r.Extensions[i].Data = &data
			return
		}
	}
	r.Extensions = append(r.Extensions, ExtensionRef{URN: urn, Data: &data})
}

// SetMeta sets a response meta[key] entry, initializing the map if needed.
func (r *Response) SetMeta(key string, value Value) {
	if r.Meta == nil {
		r.Meta = make(map[string]Value)
	}
	r.Meta[key] = value
}
