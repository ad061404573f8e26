package offline

import (
	"context"
	"encoding/json"
	"fmt"

	"templstack/internal/registry"
)

// OperationPayload is the wire shape of a queued registry operation.
type OperationPayload struct {
	RegistryID string                     `json:"registry_id"`
	Name       string                     `json:"name,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Metadata   *registry.TemplateMetadata `json:"metadata,omitempty"`
}

// RegistryRemote replays queued operations against configured registries.
type RegistryRemote struct {
	registries *registry.Manager
}

// NewRegistryRemote creates the replay adapter over the registry manager.
func NewRegistryRemote(registries *registry.Manager) *RegistryRemote {
	return &RegistryRemote{registries: registries}
}

func decodePayload(op QueuedOperation) (OperationPayload, error) {
	var payload OperationPayload
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		return OperationPayload{}, fmt.Errorf("corrupt payload for operation %d: %w", op.ID, err)
	}
	if payload.RegistryID == "" {
		return OperationPayload{}, fmt.Errorf("operation %d names no registry", op.ID)
	}
	return payload, nil
}

// State probes the remote side of an operation's target. Sync operations
// have no target and always report replayable.
func (r *RegistryRemote) State(ctx context.Context, op QueuedOperation) (RemoteState, error) {
	payload, err := decodePayload(op)
	if err != nil {
		return RemoteState{}, err
	}

	if op.Kind == OpSync {
		return RemoteState{Exists: true}, nil
	}

	client, err := r.registries.ClientFor(payload.RegistryID)
	if err != nil {
		return RemoteState{}, err
	}

	name := payload.Name
	if name == "" && payload.Metadata != nil {
		name = payload.Metadata.Name
	}

	state, err := client.TemplateState(ctx, name)
	if err != nil {
		return RemoteState{}, err
	}
	return RemoteState{Exists: state.Exists, Revision: state.Revision}, nil
}

// Apply executes one queued operation. The switch is exhaustive over the
// mutating kinds; local-only kinds never reach the queue.
func (r *RegistryRemote) Apply(ctx context.Context, op QueuedOperation) error {
	payload, err := decodePayload(op)
	if err != nil {
		return err
	}

	switch op.Kind {
	case OpSync:
		_, err := r.registries.SyncRegistry(ctx, payload.RegistryID, registry.SyncIncremental)
		return err

	case OpPublish:
		if payload.Metadata == nil {
			return fmt.Errorf("publish operation %d carries no metadata", op.ID)
		}
		client, err := r.registries.ClientFor(payload.RegistryID)
		if err != nil {
			return err
		}
		return client.Publish(ctx, *payload.Metadata)

	case OpInstall:
		client, err := r.registries.ClientFor(payload.RegistryID)
		if err != nil {
			return err
		}
		return client.Install(ctx, payload.Name, payload.Version)

	case OpUninstall:
		client, err := r.registries.ClientFor(payload.RegistryID)
		if err != nil {
			return err
		}
		return client.Unpublish(ctx, payload.Name, payload.Version)

	case OpValidate, OpBuild:
		return fmt.Errorf("%w: %q is local-only", ErrUnknownKind, op.Kind)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
}
