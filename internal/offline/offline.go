// Package offline defers mutating operations while disconnected and
// reconciles them on reconnect. Reads are served from a TTL cache; writes
// land in a durable queue replayed in order, with last-write-wins
// reconciliation and explicit conflict surfacing.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"templstack/internal/transport"
)

// ErrConflict marks a replayed operation whose target diverged remotely.
var ErrConflict = errors.New("offline replay conflict")

// Status classifies current connectivity.
type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// degradedProbeLatency is the probe latency above which a reachable
// network is classified degraded.
const degradedProbeLatency = 2 * time.Second

// maxReplayAttempts bounds transient retries before an operation is
// marked failed.
const maxReplayAttempts = 5

// ProbeFunc performs one cheap reachability probe.
type ProbeFunc func(ctx context.Context) (time.Duration, error)

// RemoteState is the current remote view of an operation's target.
type RemoteState struct {
	Exists   bool
	Revision uint64
}

// Remote executes queued operations against the reconnected registry
// side and answers divergence probes for their targets.
type Remote interface {
	State(ctx context.Context, op QueuedOperation) (RemoteState, error)
	Apply(ctx context.Context, op QueuedOperation) error
}

// requiresTarget reports whether a kind can only replay against a target
// that still exists remotely. Publish creates its target; sync has none.
func requiresTarget(kind OpKind) bool {
	return kind == OpInstall || kind == OpUninstall
}

// ConflictRecord reports one operation that could not be replayed because
// the remote diverged. It stays queued until explicitly discarded.
type ConflictRecord struct {
	OperationID    uint64 `json:"operation_id"`
	Kind           OpKind `json:"kind"`
	LocalTime      uint64 `json:"local_time"`
	RemoteRevision uint64 `json:"remote_revision"`
	Reason         string `json:"reason"`
}

// ReplayReport summarizes one reconnect sync.
type ReplayReport struct {
	Replayed  []uint64         `json:"replayed"`
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`
	Failed    []uint64         `json:"failed,omitempty"`
	Remaining int              `json:"remaining"`
}

// QueueStatus is the structured queue view for presentation layers.
type QueueStatus struct {
	Pending    int               `json:"pending"`
	Conflicted int               `json:"conflicted"`
	Failed     int               `json:"failed"`
	Operations []QueuedOperation `json:"operations"`
}

// Manager routes mutating calls to the queue while offline and replays
// them on reconnect.
type Manager struct {
	queue  *Queue
	cache  *Cache
	remote Remote
	probe  ProbeFunc
}

// NewManager wires the offline layer together.
func NewManager(queue *Queue, cache *Cache, remote Remote, probe ProbeFunc) *Manager {
	return &Manager{queue: queue, cache: cache, remote: remote, probe: probe}
}

// Cache exposes the read cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Queue exposes the durable operation queue.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// DetectStatus performs a cheap reachability probe and classifies the
// connection. Circuit-open probes count as offline: the transport already
// knows the endpoint is down.
func (m *Manager) DetectStatus(ctx context.Context) Status {
	latency, err := m.probe(ctx)
	switch {
	case err != nil:
		return StatusOffline
	case latency > degradedProbeLatency:
		return StatusDegraded
	default:
		return StatusOnline
	}
}

// Execute runs a mutating operation, or queues it when the transport
// reports disconnection. The returned operation is non-nil only when the
// call was queued.
func (m *Manager) Execute(ctx context.Context, kind OpKind, payload any) (*QueuedOperation, error) {
	if !kind.Mutating() {
		return nil, fmt.Errorf("%w: %q does not mutate remote state", ErrUnknownKind, kind)
	}

	if m.DetectStatus(ctx) == StatusOffline {
		op, err := m.queue.Enqueue(ctx, kind, payload)
		if err != nil {
			return nil, err
		}
		return op, nil
	}

	op := QueuedOperation{Kind: kind}
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	op.Payload = raw

	if err := m.remote.Apply(ctx, op); err != nil {
		// The call raced a dropped connection: queue it instead of
		// losing it.
		if transport.IsTransient(err) || errors.Is(err, transport.ErrCircuitOpen) {
			return m.queue.Enqueue(ctx, kind, payload)
		}
		return nil, err
	}
	return nil, nil
}

// FetchThrough refreshes the read cache from fetch, falling back to the
// cached value when the fetch fails with a connection-class error. The
// bool reports whether the result came from cache.
func (m *Manager) FetchThrough(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	payload, err := fetch(ctx)
	if err == nil {
		m.cache.Set(key, payload, ttl)
		return payload, false, nil
	}

	if transport.IsTransient(err) || errors.Is(err, transport.ErrCircuitOpen) {
		if cached, ok := m.cache.Get(key); ok {
			return cached, true, nil
		}
	}
	return nil, false, err
}

// Sync replays queued operations in original enqueue order. An operation
// whose target diverged remotely applies only when its logical timestamp
// is strictly newer than the remote revision; otherwise it is marked
// conflicted and surfaced, never silently discarded. Transient failures
// keep the operation pending and stop the replay, since the connection is
// evidently not back.
func (m *Manager) Sync(ctx context.Context) (*ReplayReport, error) {
	pending, err := m.queue.Pending(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReplayReport{}

	for i, op := range pending {
		state, err := m.remote.State(ctx, op)
		if err != nil {
			if transport.IsTransient(err) || errors.Is(err, transport.ErrCircuitOpen) {
				report.Remaining = len(pending) - i
				return report, nil
			}
			return report, err
		}

		missing := requiresTarget(op.Kind) && !state.Exists
		stale := state.Exists && state.Revision >= op.LogicalTime
		if missing || stale {
			record := ConflictRecord{
				OperationID:    op.ID,
				Kind:           op.Kind,
				LocalTime:      op.LogicalTime,
				RemoteRevision: state.Revision,
				Reason:         fmt.Sprintf("%v: remote revision %d is not older than queued time %d", ErrConflict, state.Revision, op.LogicalTime),
			}
			if missing {
				record.Reason = fmt.Sprintf("%v: target removed remotely while offline", ErrConflict)
			}
			report.Conflicts = append(report.Conflicts, record)

			if err := m.queue.MarkStatus(ctx, op.ID, StatusConflicted, record.Reason); err != nil {
				return report, err
			}
			continue
		}

		if err := m.replayOne(ctx, op, report); err != nil {
			return report, err
		}

		// Replaying advances the remote; keep the clock ahead of it.
		if err := m.queue.WitnessRevision(ctx, state.Revision); err != nil {
			return report, err
		}

		if stopped := report.Remaining > 0; stopped {
			report.Remaining = len(pending) - i
			return report, nil
		}
	}

	return report, nil
}

func (m *Manager) replayOne(ctx context.Context, op QueuedOperation, report *ReplayReport) error {
	attempts, err := m.queue.RecordAttempt(ctx, op.ID)
	if err != nil {
		return err
	}

	applyErr := m.remote.Apply(ctx, op)
	if applyErr == nil {
		report.Replayed = append(report.Replayed, op.ID)
		return m.queue.Complete(ctx, op.ID)
	}

	if transport.IsTransient(applyErr) || errors.Is(applyErr, transport.ErrCircuitOpen) {
		if attempts >= maxReplayAttempts {
			report.Failed = append(report.Failed, op.ID)
			return m.queue.MarkStatus(ctx, op.ID, StatusFailed,
				fmt.Sprintf("gave up after %d attempts: %v", attempts, applyErr))
		}
		// Signal the caller loop to stop; the operation stays pending.
		report.Remaining = 1
		return nil
	}

	report.Failed = append(report.Failed, op.ID)
	return m.queue.MarkStatus(ctx, op.ID, StatusFailed, applyErr.Error())
}

// Status returns the structured queue view.
func (m *Manager) Status(ctx context.Context) (*QueueStatus, error) {
	ops, err := m.queue.All(ctx)
	if err != nil {
		return nil, err
	}

	status := &QueueStatus{Operations: ops}
	for _, op := range ops {
		switch op.Status {
		case StatusPending:
			status.Pending++
		case StatusConflicted:
			status.Conflicted++
		case StatusFailed:
			status.Failed++
		}
	}
	return status, nil
}

func marshalPayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation payload: %w", err)
	}
	return raw, nil
}
