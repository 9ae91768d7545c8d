package eventbus

// Handler processes a single lifecycle event for one extension subscription.
// It may call Event.StopPropagation and/or Event.SetResponse. Returning an
// error signals extension failure; the pipeline decides whether that is
// fatal or advisory based on the owning extension's IsErrorFatal flag.
type Handler func(ev *Event) error
