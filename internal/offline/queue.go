package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"templstack/internal/store"
)

const (
	opKeyPrefix = "queue/op/"
	clockKey    = "queue/clock"
)

var (
	ErrOperationNotFound = errors.New("queued operation not found")
	ErrUnknownKind       = errors.New("unknown operation kind")
)

// OpKind is the closed set of batch operation kinds. Adding a kind forces
// every dispatch switch to handle it.
type OpKind string

const (
	OpValidate  OpKind = "validate"
	OpBuild     OpKind = "build"
	OpPublish   OpKind = "publish"
	OpSync      OpKind = "sync"
	OpInstall   OpKind = "install"
	OpUninstall OpKind = "uninstall"
)

// Valid reports whether k names a known operation kind.
func (k OpKind) Valid() bool {
	switch k {
	case OpValidate, OpBuild, OpPublish, OpSync, OpInstall, OpUninstall:
		return true
	}
	return false
}

// Mutating reports whether the kind changes remote state and therefore
// must queue while offline. Validate and build are local-only.
func (k OpKind) Mutating() bool {
	switch k {
	case OpPublish, OpSync, OpInstall, OpUninstall:
		return true
	}
	return false
}

// OpStatus is a queued operation's lifecycle state.
type OpStatus string

const (
	StatusPending    OpStatus = "pending"
	StatusCompleted  OpStatus = "completed"
	StatusFailed     OpStatus = "failed"
	StatusConflicted OpStatus = "conflicted"
)

// QueuedOperation is one deferred mutating call. LogicalTime is a Lamport
// timestamp: replay compares it against the remote revision to decide
// between last-write-wins and surfacing a conflict.
type QueuedOperation struct {
	ID          uint64          `json:"id"`
	Kind        OpKind          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LogicalTime uint64          `json:"logical_time"`
	Attempts    int             `json:"attempts"`
	Status      OpStatus        `json:"status"`
	Detail      string          `json:"detail,omitempty"`
}

// Queue is the durable, ordered record of operations deferred while
// disconnected. All mutations are serialized under a single writer lock.
type Queue struct {
	store store.Store

	mu     sync.Mutex
	nextID uint64
	clock  uint64
}

// NewQueue opens the queue over a store, restoring the Lamport clock and
// id sequence from persisted operations.
func NewQueue(ctx context.Context, st store.Store) (*Queue, error) {
	q := &Queue{store: st}

	if raw, err := st.Get(ctx, clockKey); err == nil {
		clock, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt queue clock: %w", err)
		}
		q.clock = clock
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		return nil, err
	}

	ops, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.ID >= q.nextID {
			q.nextID = op.ID + 1
		}
		if op.LogicalTime > q.clock {
			q.clock = op.LogicalTime
		}
	}

	return q, nil
}

// Enqueue appends a mutating operation, stamping it with the next Lamport
// time.
func (q *Queue) Enqueue(ctx context.Context, kind OpKind, payload any) (*QueuedOperation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !kind.Mutating() {
		return nil, fmt.Errorf("%w: %q is local-only and never queues", ErrUnknownKind, kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.clock++
	op := &QueuedOperation{
		ID:          q.nextID,
		Kind:        kind,
		Payload:     raw,
		EnqueuedAt:  time.Now().UTC(),
		LogicalTime: q.clock,
		Status:      StatusPending,
	}
	q.nextID++

	if err := q.persist(ctx, op); err != nil {
		return nil, err
	}
	if err := q.persistClock(ctx); err != nil {
		return nil, err
	}

	return op, nil
}

// WitnessRevision folds an observed remote revision into the Lamport
// clock, so later enqueues are stamped strictly after it.
func (q *Queue) WitnessRevision(ctx context.Context, revision uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if revision > q.clock {
		q.clock = revision
		return q.persistClock(ctx)
	}
	return nil
}

// Pending returns unreplayed operations in original enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]QueuedOperation, error) {
	ops, err := q.load(ctx)
	if err != nil {
		return nil, err
	}

	out := ops[:0]
	for _, op := range ops {
		if op.Status == StatusPending {
			out = append(out, op)
		}
	}
	return out, nil
}

// All returns every persisted operation in enqueue order, including
// conflicted and failed ones awaiting manual resolution.
func (q *Queue) All(ctx context.Context) ([]QueuedOperation, error) {
	return q.load(ctx)
}

// Complete removes a successfully replayed operation.
func (q *Queue) Complete(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Delete(ctx, opKey(id))
}

// MarkStatus updates an operation's status and detail in place.
func (q *Queue) MarkStatus(ctx context.Context, id uint64, status OpStatus, detail string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.get(ctx, id)
	if err != nil {
		return err
	}

	op.Status = status
	op.Detail = detail
	return q.persist(ctx, op)
}

// RecordAttempt bumps an operation's attempt counter.
func (q *Queue) RecordAttempt(ctx context.Context, id uint64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.get(ctx, id)
	if err != nil {
		return 0, err
	}

	op.Attempts++
	if err := q.persist(ctx, op); err != nil {
		return 0, err
	}
	return op.Attempts, nil
}

// Discard removes a conflicted or failed operation after manual
// resolution. Pending operations cannot be discarded this way.
func (q *Queue) Discard(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.get(ctx, id)
	if err != nil {
		return err
	}
	if op.Status == StatusPending {
		return fmt.Errorf("operation %d is still pending; replay or let it fail first", id)
	}

	return q.store.Delete(ctx, opKey(id))
}

func (q *Queue) get(ctx context.Context, id uint64) (*QueuedOperation, error) {
	raw, err := q.store.Get(ctx, opKey(id))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOperationNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var op QueuedOperation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, fmt.Errorf("corrupt queued operation %d: %w", id, err)
	}
	return &op, nil
}

func (q *Queue) load(ctx context.Context) ([]QueuedOperation, error) {
	raws, err := q.store.ListByPrefix(ctx, opKeyPrefix)
	if err != nil {
		return nil, err
	}

	ops := make([]QueuedOperation, 0, len(raws))
	for key, raw := range raws {
		var op QueuedOperation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("corrupt queued operation at %s: %w", key, err)
		}
		ops = append(ops, op)
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops, nil
}

func (q *Queue) persist(ctx context.Context, op *QueuedOperation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode queued operation: %w", err)
	}
	return q.store.Put(ctx, opKey(op.ID), raw)
}

func (q *Queue) persistClock(ctx context.Context) error {
	return q.store.Put(ctx, clockKey, []byte(strconv.FormatUint(q.clock, 10)))
}

func opKey(id uint64) string {
	return fmt.Sprintf("%s%012d", opKeyPrefix, id)
}
