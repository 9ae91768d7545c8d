package demo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/pipeline"
	"github.com/forrst/forrst/internal/replay"
	"github.com/forrst/forrst/internal/retry"
	"github.com/forrst/forrst/internal/version"
)

// ordersExportFunction always defers to the replay queue, standing in for
// a real function whose work can't complete inline, a bulk export job say.
// It demonstrates the "queued" response shape and a background transition
// through to a terminal state.
const ordersExportFunction = "orders.export"

// replayNotifier is the minimal interface replay_demo.go needs from
// replaynotify.Hub, kept local so this package doesn't otherwise depend on
// the transport package.
type replayNotifier interface {
	Notify(rec replay.Record)
}

// RegisterReplayFunction registers orders.export against queue, notifying
// notifier (if non-nil) once the simulated background work reaches a
// terminal state.
func RegisterReplayFunction(functions *version.Registry, queue *replay.Queue, notifier replayNotifier) error {
	return functions.Register(version.Descriptor{
		URN:          ordersExportFunction,
		Version:      version.MustParse("1.0.0"),
		Stability:    version.StabilityStable,
		Discoverable: true,
		Arguments: []version.ArgumentSpec{
			{Name: "customer_id", Type: "string", Required: true},
		},
		Result: version.ResultSpec{Type: "object"},
		Handle: pipeline.FunctionFunc(exportOrdersHandler(queue, notifier)),
	})
}

func exportOrdersHandler(queue *replay.Queue, notifier replayNotifier) pipeline.FunctionFunc {
	return func(ctx context.Context, call envelope.Call, reqCtx *envelope.Value) (envelope.Value, *ferrors.Error) {
		customerID, ferr := requiredString(call.Arguments, "customer_id")
		if ferr != nil {
			return envelope.Value{}, ferr
		}

		req := &envelope.Request{Protocol: envelope.Protocol{Name: "forrst"}, Call: call}
		rec := queue.Enqueue(req, replay.PriorityNormal, 5*time.Minute, "export queued for asynchronous processing", "")

		go simulateExport(queue, notifier, rec.ReplayID)

		fields := map[string]envelope.Value{
			"status":      envelope.Scalar(string(rec.Status)),
			"replay_id":   envelope.Scalar(rec.ReplayID),
			"reason":      envelope.Scalar(rec.Reason),
			"queued_at":   envelope.Scalar(rec.QueuedAt.Format(time.RFC3339)),
			"expires_at":  envelope.Scalar(rec.ExpiresAt.Format(time.RFC3339)),
			"customer_id": envelope.Scalar(customerID),
		}
		if pos, ok := queue.Position(rec.ReplayID); ok {
			fields["position"] = envelope.Scalar(pos)
		}
		return envelope.Object(fields), nil
	}
}

// simulateExport stands in for a worker picking the record off the queue:
// it transitions queued -> processing, runs the export under a reattempt
// loop paced by the guidance derived from the failure it hits, and
// notifies subscribers of the terminal state. A real deployment would
// replace this with an actual worker loop calling queue.Dequeue.
func simulateExport(queue *replay.Queue, notifier replayNotifier, replayID string) {
	ctx := context.Background()
	if _, ferr := queue.Transition(ctx, replayID, replay.StatusProcessing); ferr != nil {
		return
	}

	// The simulated backend times out once before succeeding; the reattempt
	// is scheduled by the same policy a client would be handed for that
	// error kind.
	timeouts := 1
	work := func() error {
		if timeouts > 0 {
			timeouts--
			return ferrors.New(ferrors.KindDeadlineExceeded, "export render timed out")
		}
		return nil
	}
	policy := retry.ForKind(ferrors.KindDeadlineExceeded).BackoffPolicy()

	next := replay.StatusCompleted
	if err := backoff.Retry(work, policy); err != nil {
		next = replay.StatusFailed
	}
	rec, ferr := queue.Transition(ctx, replayID, next)
	if ferr != nil {
		return
	}
	if notifier != nil {
		notifier.Notify(rec)
	}
}
