package eventbus

// Entry binds one extension's subscribed handler to its owning extension's
// URN and fatal/advisory policy, so Dispatch can apply the fatal-vs-
// advisory error policy without eventbus importing the extension package
// (which itself imports eventbus for EventType/Handler).
type Entry struct {
	ExtensionURN string
	Fatal        bool
	Handler      Handler
}

// Dispatch runs entries in order against ev, honoring StopPropagation and
// SetResponse. On a fatal extension's handler error, dispatch stops
// immediately and the failing entry plus its error are returned so the
// pipeline can replace the response; advisory failures are reported via
// onAdvisoryError, if non-nil, and dispatch continues with the remaining
// handlers.
func Dispatch(ev *Event, entries []Entry, onAdvisoryError func(Entry, error)) (failedFatal *Entry, fatalErr error) {
	for i := range entries {
		if ev.PropagationStopped() || ev.ResponseWasSet() {
			break
		}
		e := entries[i]
		if err := e.Handler(ev); err != nil {
			if e.Fatal {
				return &e, err
			}
			if onAdvisoryError != nil {
				onAdvisoryError(e, err)
			}
		}
	}
	return nil, nil
}
