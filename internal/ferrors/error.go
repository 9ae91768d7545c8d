package ferrors

import "fmt"

// Source identifies where in the request document an error originates.
// Exactly one of Pointer or Position is set (RFC 6901 pointer rooted at the
// request document, or a byte offset for parse failures).
type Source struct {
	Pointer  string `json:"pointer,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Error is a single structured protocol error, as carried in a response
// envelope's errors[] array.
type Error struct {
	Code    Kind           `json:"code"`
	Message string         `json:"message"`
	Source  *Source        `json:"source,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface so *Error can flow through ordinary
// Go error-handling paths inside the pipeline.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Code: kind, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Code: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPointer attaches an RFC 6901 pointer source to the error and returns it.
func (e *Error) WithPointer(pointer string) *Error {
	e.Source = &Source{Pointer: pointer}
	return e
}

// WithPosition attaches a byte-offset source to the error and returns it.
func (e *Error) WithPosition(pos int) *Error {
	e.Source = &Source{Position: &pos}
	return e
}

// WithDetails attaches (and merges into) the error's details map.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key and returns the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// Internal maps an arbitrary user-function error into an INTERNAL_ERROR;
// unmapped errors never reach the wire under their own name.
func Internal(err error) *Error {
	if ferr, ok := AsError(err); ok {
		return ferr
	}
	return New(KindInternalError, err.Error())
}

// AsError extracts a *Error from err if it is one. No unwrapping: the
// pipeline never wraps these, function/extension code constructs them
// explicitly.
func AsError(err error) (*Error, bool) {
	ferr, ok := err.(*Error)
	return ferr, ok
}
