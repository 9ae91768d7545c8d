// Package replay implements the replay queue: records requests that
// cannot be served immediately, assigns them a replay ID, TTL, and priority,
// and tracks terminal-state transitions. The queue itself is an in-process,
// priority-ordered store; persistence across process restarts is out of
// this package's concern, which is only the record and the state machine.
package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/google/uuid"
)

// Priority orders queued replay records; High runs before Normal before Low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Status is a replay record's lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
)

func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is one of the queue's terminal states (no
// further transition is legal), for callers outside this package that need
// to decide whether a status change is worth pushing to subscribers.
func (s Status) Terminal() bool { return s.terminal() }

// legalTransitions encodes the record state machine: queued may go to
// processing, expired, or cancelled; processing may go to completed or
// failed; every other state is terminal and has no outgoing edges.
var legalTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusProcessing: true,
		StatusExpired:    true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ErrIllegalTransition is returned when a caller requests a state change
// the state machine does not permit.
var ErrIllegalTransition = errors.New("replay: illegal state transition")

// Record is a queued request awaiting later execution.
type Record struct {
	ReplayID         string
	QueuedAt         time.Time
	ExpiresAt        time.Time
	Priority         Priority
	Status           Status
	Attempts         int
	OriginalEnvelope *envelope.Request
	CallbackURL      string
	Reason           string
}

// Queue holds in-flight replay records, ordered for dequeue by
// (priority asc, queued_at asc).
type Queue struct {
	mu      sync.Mutex
	records map[string]*Record
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{records: make(map[string]*Record)}
}

// Enqueue records req for later execution and returns the new record.
func (q *Queue) Enqueue(req *envelope.Request, priority Priority, ttl time.Duration, reason, callbackURL string) Record {
	now := time.Now()
	rec := &Record{
		ReplayID:         uuid.NewString(),
		QueuedAt:         now,
		ExpiresAt:        now.Add(ttl),
		Priority:         priority,
		Status:           StatusQueued,
		OriginalEnvelope: req,
		Reason:           reason,
		CallbackURL:      callbackURL,
	}
	q.mu.Lock()
	q.records[rec.ReplayID] = rec
	q.mu.Unlock()
	return *rec
}

// Get returns the record for replayID, or REPLAY_NOT_FOUND.
func (q *Queue) Get(replayID string) (Record, *ferrors.Error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[replayID]
	if !ok {
		return Record{}, ferrors.New(ferrors.KindReplayNotFound, "replay record not found").
			WithDetail("replay_id", replayID)
	}
	return *rec, nil
}

// Transition moves the record at replayID to next, enforcing the legal
// state machine; terminal states never leave. Transitioning to processing
// or attempting a replay increments Attempts.
func (q *Queue) Transition(ctx context.Context, replayID string, next Status) (Record, *ferrors.Error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[replayID]
	if !ok {
		return Record{}, ferrors.New(ferrors.KindReplayNotFound, "replay record not found").
			WithDetail("replay_id", replayID)
	}
	if rec.Status.terminal() {
		return Record{}, terminalError(rec.Status, replayID)
	}
	if !legalTransitions[rec.Status][next] {
		return Record{}, ferrors.Newf(ferrors.KindConflict, "illegal transition from %s to %s", rec.Status, next).
			WithDetail("replay_id", replayID)
	}

	rec.Status = next
	if next == StatusProcessing {
		rec.Attempts++
	}
	return *rec, nil
}

// ExpireIfDue transitions a still-queued record to expired once its TTL has
// elapsed. A no-op for records already past queued or not yet expired.
func (q *Queue) ExpireIfDue(now time.Time, replayID string) (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[replayID]
	if !ok || rec.Status != StatusQueued || now.Before(rec.ExpiresAt) {
		return Record{}, false
	}
	rec.Status = StatusExpired
	return *rec, true
}

func terminalError(status Status, replayID string) *ferrors.Error {
	kind := ferrors.KindReplayAlreadyComplete
	switch status {
	case StatusExpired:
		kind = ferrors.KindReplayExpired
	case StatusCancelled:
		kind = ferrors.KindReplayCancelled
	}
	return ferrors.Newf(kind, "replay record %s is in terminal state %s", replayID, status).
		WithDetail("replay_id", replayID)
}

// Dequeue returns the highest-priority, oldest still-queued record, or false
// if the queue is empty. Priority ordering is high > normal > low, ties
// broken by queued_at ascending.
func (q *Queue) Dequeue() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *Record
	for _, rec := range q.records {
		if rec.Status != StatusQueued {
			continue
		}
		if best == nil || better(rec, best) {
			best = rec
		}
	}
	if best == nil {
		return Record{}, false
	}
	return *best, true
}

func better(a, b *Record) bool {
	if a.Priority.rank() != b.Priority.rank() {
		return a.Priority.rank() < b.Priority.rank()
	}
	return a.QueuedAt.Before(b.QueuedAt)
}

// Position reports replayID's 1-based position among still-queued records
// ordered the same way Dequeue would return them, for the optional
// "position" field in a queued response.
func (q *Queue) Position(replayID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	target, ok := q.records[replayID]
	if !ok || target.Status != StatusQueued {
		return 0, false
	}
	pos := 1
	for id, rec := range q.records {
		if id == replayID || rec.Status != StatusQueued {
			continue
		}
		if better(rec, target) {
			pos++
		}
	}
	return pos, true
}
