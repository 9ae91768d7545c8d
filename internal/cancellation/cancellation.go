// Package cancellation implements cooperative cancellation tokens backed by
// the abstract key/value store. A token is opaque to callers; its
// state lives entirely in the store at key "forrst:cancel:<token>" so any
// worker process can observe or flip it.
package cancellation

import (
	"context"
	"errors"
	"time"

	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/kvstore"
	"github.com/google/uuid"
)

// State is a cancellation token's lifecycle state.
type State string

const (
	StateActive    State = "active"
	StateCancelled State = "cancelled"
)

// DefaultTTL is the token lifetime from issuance.
const DefaultTTL = 300 * time.Second

const keyPrefix = "forrst:cancel:"

func key(token string) string {
	return keyPrefix + token
}

type contextKey struct{}

// WithToken returns a context carrying the request's cancellation token.
// The pipeline injects it before invoking a function whose request opted
// in to cooperative cancellation.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// TokenFromContext returns the cancellation token injected for this request,
// if the caller opted in. User function bodies pair it with
// Broker.ThrowIfCancelled at safe points.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKey{}).(string)
	return token, ok && token != ""
}

// Broker issues and checks cancellation tokens against a shared store.
type Broker struct {
	store kvstore.Store
	ttl   time.Duration
}

// New constructs a Broker over store, using DefaultTTL for issued tokens.
func New(store kvstore.Store) *Broker {
	return &Broker{store: store, ttl: DefaultTTL}
}

// Issue creates a new token in the active state and returns it.
func (b *Broker) Issue(ctx context.Context) (string, error) {
	token := uuid.NewString()
	if err := b.store.Set(ctx, key(token), string(StateActive), b.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Cancel transitions token to the cancelled state. It is idempotent:
// cancelling an already-cancelled token still succeeds.
// Unknown tokens yield CANCELLATION_TOKEN_UNKNOWN; a token that has already
// left the store's TTL window (expired, not explicitly cancelled) is
// reported the same way, since the store no longer distinguishes the two.
func (b *Broker) Cancel(ctx context.Context, token string) *ferrors.Error {
	current, err := b.store.Get(ctx, key(token))
	if errors.Is(err, kvstore.ErrNotFound) {
		return ferrors.New(ferrors.KindCancellationTokenUnknown, "unknown cancellation token").
			WithDetail("token", token)
	}
	if err != nil {
		return ferrors.Internal(err)
	}
	if State(current) == StateCancelled {
		// Already terminal: idempotent success, not CANCELLATION_TOO_LATE.
		// TOO_LATE signals a completed operation that can no longer be
		// cancelled; re-cancelling a cancelled token is a no-op success.
		return nil
	}
	if err := b.store.Set(ctx, key(token), string(StateCancelled), b.ttl); err != nil {
		return ferrors.Internal(err)
	}
	return nil
}

// IsCancelled reports whether token is currently in the cancelled state.
// Unknown tokens report false; callers that need to distinguish "never
// issued" from "not cancelled" should use Cancel's error return instead.
func (b *Broker) IsCancelled(ctx context.Context, token string) (bool, error) {
	current, err := b.store.Get(ctx, key(token))
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return State(current) == StateCancelled, nil
}

// ThrowIfCancelled returns a *ferrors.Error if token is cancelled, nil
// otherwise. User function bodies call this at safe points to cooperate
// with cancellation.
func (b *Broker) ThrowIfCancelled(ctx context.Context, token string) *ferrors.Error {
	cancelled, err := b.IsCancelled(ctx, token)
	if err != nil {
		return ferrors.Internal(err)
	}
	if cancelled {
		return ferrors.New(ferrors.KindCancellationTooLate, "operation was cancelled").
			WithDetail("token", token)
	}
	return nil
}
