// Package retry derives retry guidance from an error kind. Strategy naming and backoff shape follow github.com/cenkalti/backoff/v4's
// constant/exponential distinction, translated into the wire vocabulary
// ("immediate", "fixed", "exponential") the response extension carries.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/forrst/forrst/internal/ferrors"
)

// Strategy is the wire name for a retry backoff shape.
type Strategy string

const (
	StrategyImmediate   Strategy = "immediate"
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
)

// Guidance is the response-side retry extension payload.
type Guidance struct {
	Allowed     bool
	Strategy    Strategy
	After       time.Duration
	MaxAttempts int
}

type rule struct {
	strategy    Strategy
	after       time.Duration
	maxAttempts int
}

var byKind = map[ferrors.Kind]rule{
	ferrors.KindRateLimited:           {StrategyFixed, 60 * time.Second, 3},
	ferrors.KindUnavailable:           {StrategyExponential, 1 * time.Second, 5},
	ferrors.KindDeadlineExceeded:      {StrategyImmediate, 0, 1},
	ferrors.KindInternalError:         {StrategyExponential, 1 * time.Second, 3},
	ferrors.KindDependencyError:       {StrategyExponential, 2 * time.Second, 3},
	ferrors.KindIdempotencyProcessing: {StrategyFixed, 1 * time.Second, 3},
	ferrors.KindServerMaintenance:     {StrategyFixed, 60 * time.Second, 1},
	ferrors.KindFunctionMaintenance:   {StrategyFixed, 60 * time.Second, 1},
}

// defaultRetryable is applied to any other retryable kind not listed above,
// FUNCTION_DISABLED included: it has no dedicated entry, so it falls
// through here.
var defaultRetryable = rule{StrategyExponential, 1 * time.Second, 3}

// ForKind derives the retry guidance for the first error's kind.
// Non-retryable kinds yield {Allowed:false} with no other fields meaningful.
func ForKind(kind ferrors.Kind) Guidance {
	if !kind.Retryable() {
		return Guidance{Allowed: false}
	}
	r, ok := byKind[kind]
	if !ok {
		r = defaultRetryable
	}
	return Guidance{Allowed: true, Strategy: r.strategy, After: r.after, MaxAttempts: r.maxAttempts}
}

// BackoffPolicy returns a backoff.BackOff configured to match g, for
// callers that schedule retries themselves rather than just reporting
// guidance to a client; the demo export worker paces its reattempts with
// one.
func (g Guidance) BackoffPolicy() backoff.BackOff {
	if !g.Allowed {
		return &backoff.StopBackOff{}
	}
	switch g.Strategy {
	case StrategyImmediate:
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(g.MaxAttempts))
	case StrategyFixed:
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(g.After), uint64(g.MaxAttempts))
	default:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = g.After
		return backoff.WithMaxRetries(b, uint64(g.MaxAttempts))
	}
}
