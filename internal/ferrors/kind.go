// Package ferrors defines Forrst's closed error-kind taxonomy: the protocol,
// function, operational, lock, replay, and cancellation error codes a
// response envelope may carry, together with their HTTP mapping and
// retryability flag.
package ferrors

// Kind is one of the closed set of SCREAMING_SNAKE_CASE error codes a
// response envelope may carry. The set is closed: callers must not invent
// new kinds outside this package.
type Kind string

const (
	KindParseError               Kind = "PARSE_ERROR"
	KindInvalidRequest           Kind = "INVALID_REQUEST"
	KindInvalidProtocolVersion   Kind = "INVALID_PROTOCOL_VERSION"
	KindFunctionNotFound         Kind = "FUNCTION_NOT_FOUND"
	KindVersionNotFound          Kind = "VERSION_NOT_FOUND"
	KindFunctionDisabled         Kind = "FUNCTION_DISABLED"
	KindInvalidArguments         Kind = "INVALID_ARGUMENTS"
	KindSchemaValidationFailed   Kind = "SCHEMA_VALIDATION_FAILED"
	KindExtensionNotSupported    Kind = "EXTENSION_NOT_SUPPORTED"
	KindExtensionNotApplicable   Kind = "EXTENSION_NOT_APPLICABLE"
	KindUnauthorized             Kind = "UNAUTHORIZED"
	KindForbidden                Kind = "FORBIDDEN"
	KindNotFound                 Kind = "NOT_FOUND"
	KindConflict                 Kind = "CONFLICT"
	KindGone                     Kind = "GONE"
	KindDeadlineExceeded         Kind = "DEADLINE_EXCEEDED"
	KindRateLimited              Kind = "RATE_LIMITED"
	KindInternalError            Kind = "INTERNAL_ERROR"
	KindUnavailable              Kind = "UNAVAILABLE"
	KindDependencyError          Kind = "DEPENDENCY_ERROR"
	KindIdempotencyConflict      Kind = "IDEMPOTENCY_CONFLICT"
	KindIdempotencyProcessing    Kind = "IDEMPOTENCY_PROCESSING"
	KindServerMaintenance        Kind = "SERVER_MAINTENANCE"
	KindFunctionMaintenance      Kind = "FUNCTION_MAINTENANCE"
	KindLockNotFound             Kind = "LOCK_NOT_FOUND"
	KindLockOwnershipMismatch    Kind = "LOCK_OWNERSHIP_MISMATCH"
	KindCancellationTokenUnknown Kind = "CANCELLATION_TOKEN_UNKNOWN"
	KindCancellationTooLate      Kind = "CANCELLATION_TOO_LATE"
	KindReplayNotFound           Kind = "REPLAY_NOT_FOUND"
	KindReplayExpired            Kind = "REPLAY_EXPIRED"
	KindReplayAlreadyComplete    Kind = "REPLAY_ALREADY_COMPLETE"
	KindReplayCancelled          Kind = "REPLAY_CANCELLED"
)

// taxon holds the static facts about a Kind: whether a client may retry and
// which HTTP status the canonical HTTP transport maps it to.
type taxon struct {
	retryable  bool
	httpStatus int
}

var taxonomy = map[Kind]taxon{
	KindParseError:               {false, 400},
	KindInvalidRequest:           {false, 400},
	KindInvalidProtocolVersion:   {false, 400},
	KindFunctionNotFound:         {false, 404},
	KindVersionNotFound:          {false, 404},
	KindFunctionDisabled:         {true, 503},
	KindInvalidArguments:         {false, 400},
	KindSchemaValidationFailed:   {false, 422},
	KindExtensionNotSupported:    {false, 400},
	KindExtensionNotApplicable:   {false, 400},
	KindUnauthorized:             {false, 401},
	KindForbidden:                {false, 403},
	KindNotFound:                 {false, 404},
	KindConflict:                 {false, 409},
	KindGone:                     {false, 410},
	KindDeadlineExceeded:         {true, 408},
	KindRateLimited:              {true, 429},
	KindInternalError:            {true, 500},
	KindUnavailable:              {true, 503},
	KindDependencyError:          {true, 502},
	KindIdempotencyConflict:      {false, 409},
	KindIdempotencyProcessing:    {true, 409},
	KindServerMaintenance:        {true, 503},
	KindFunctionMaintenance:      {true, 503},
	KindLockNotFound:             {false, 404},
	KindLockOwnershipMismatch:    {false, 409},
	KindCancellationTokenUnknown: {false, 404},
	KindCancellationTooLate:      {false, 409},
	KindReplayNotFound:           {false, 404},
	KindReplayExpired:            {false, 410},
	KindReplayAlreadyComplete:    {false, 409},
	KindReplayCancelled:          {false, 410},
}

// Retryable reports whether clients may retry a response carrying this kind.
// Unknown kinds are treated as non-retryable.
func (k Kind) Retryable() bool {
	return taxonomy[k].retryable
}

// HTTPStatus returns the canonical HTTP status for this kind. Unknown
// kinds map to 500, same as an unmapped internal error.
func (k Kind) HTTPStatus() int {
	t, ok := taxonomy[k]
	if !ok {
		return 500
	}
	return t.httpStatus
}

// Valid reports whether k is a member of the closed taxonomy.
func (k Kind) Valid() bool {
	_, ok := taxonomy[k]
	return ok
}

// HTTPStatusForAll returns the HTTP status for a set of kinds: a single
// error's kind maps to its own status; multiple errors carrying differing
// statuses collapse to 400.
func HTTPStatusForAll(kinds []Kind) int {
	if len(kinds) == 0 {
		return 500
	}
	status := kinds[0].HTTPStatus()
	for _, k := range kinds[1:] {
		if k.HTTPStatus() != status {
			return 400
		}
	}
	return status
}
