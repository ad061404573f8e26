// Package registry owns configured registries, keeps the local index
// synchronized with them, and answers searches against it.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"templstack/internal/store"
	"templstack/internal/transport"
)

const (
	registryKeyPrefix = "registry/"
	indexKeyPrefix    = "index/"

	// degradedLatency is the probe latency above which a reachable
	// registry is reported degraded instead of healthy.
	degradedLatency = 2 * time.Second
)

// SyncMode selects how a registry sync runs.
type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// SyncResult reports the outcome of one registry sync.
type SyncResult struct {
	RegistryID string   `json:"registry_id"`
	Mode       SyncMode `json:"mode"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Removed    int      `json:"removed"`
	Cursor     uint64   `json:"cursor"`
	Changed    bool     `json:"changed"`
}

// SyncOutcome is the per-registry entry of a multi-registry sync; one
// registry's failure never aborts the others.
type SyncOutcome struct {
	Result *SyncResult `json:"result,omitempty"`
	Err    error       `json:"-"`
	Error  string      `json:"error,omitempty"`
}

// CacheInvalidator is notified when a registry's cached data must go away.
type CacheInvalidator interface {
	InvalidateRegistry(registryID string)
}

// Manager owns registry configs and the combined local index. All mutations
// are serialized under a single writer lock; readers get immutable
// snapshots through an atomic pointer and never block.
type Manager struct {
	store     store.Store
	transport *transport.Transport
	sanitizer *Sanitizer
	clock     transport.Clock

	mu           sync.Mutex
	registries   map[string]*Config
	indexes      map[string]registryIndex
	nextSeq      int
	invalidators []CacheInvalidator

	healthMu sync.RWMutex
	health   map[string]HealthStatus

	snapshot atomic.Pointer[Snapshot]
}

// NewManager creates a manager, loading persisted configs and index slices.
func NewManager(ctx context.Context, st store.Store, tr *transport.Transport, clock transport.Clock) (*Manager, error) {
	if clock == nil {
		clock = transport.SystemClock{}
	}

	m := &Manager{
		store:      st,
		transport:  tr,
		sanitizer:  NewSanitizer(),
		clock:      clock,
		registries: make(map[string]*Config),
		indexes:    make(map[string]registryIndex),
		health:     make(map[string]HealthStatus),
	}

	if err := m.load(ctx); err != nil {
		return nil, err
	}

	m.swapSnapshot()
	return m, nil
}

func (m *Manager) load(ctx context.Context) error {
	configs, err := m.store.ListByPrefix(ctx, registryKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load registry configs: %w", err)
	}

	for key, raw := range configs {
		var cfg Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("corrupt registry config at %s: %w", key, err)
		}
		m.registries[cfg.ID] = &cfg
		if cfg.Seq >= m.nextSeq {
			m.nextSeq = cfg.Seq + 1
		}
		m.health[cfg.ID] = HealthUnknown
	}

	indexes, err := m.store.ListByPrefix(ctx, indexKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load index snapshots: %w", err)
	}

	for key, raw := range indexes {
		id := key[len(indexKeyPrefix):]
		if _, ok := m.registries[id]; !ok {
			continue
		}
		var idx registryIndex
		if err := json.Unmarshal(raw, &idx); err != nil {
			return fmt.Errorf("corrupt index snapshot at %s: %w", key, err)
		}
		m.indexes[id] = idx
	}

	return nil
}

// swapSnapshot rebuilds the combined snapshot from current state and swaps
// it in atomically. Caller must hold mu (or be in single-threaded init).
func (m *Manager) swapSnapshot() {
	indexes := make(map[string]registryIndex, len(m.indexes))
	for id, idx := range m.indexes {
		indexes[id] = idx
	}
	configs := make(map[string]*Config, len(m.registries))
	for id, cfg := range m.registries {
		configs[id] = cfg
	}
	m.snapshot.Store(newSnapshot(configs, indexes))
}

// Snapshot returns the current immutable index view.
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// OnRemove registers a cache invalidator for registry removal cascades.
func (m *Manager) OnRemove(inv CacheInvalidator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidators = append(m.invalidators, inv)
}

// AddRegistry validates and persists a new registry config. The id and url
// must be unique across all configured registries.
func (m *Manager) AddRegistry(ctx context.Context, cfg Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registries[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: id %q", ErrRegistryDuplicate, cfg.ID)
	}
	for _, existing := range m.registries {
		if existing.URL == cfg.URL {
			return nil, fmt.Errorf("%w: url %q already configured as %q", ErrRegistryDuplicate, cfg.URL, existing.ID)
		}
	}

	now := m.clock.Now()
	cfg.Seq = m.nextSeq
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	m.nextSeq++

	if err := m.persistConfig(ctx, &cfg); err != nil {
		return nil, err
	}

	m.registries[cfg.ID] = &cfg
	m.healthMu.Lock()
	m.health[cfg.ID] = HealthUnknown
	m.healthMu.Unlock()
	m.swapSnapshot()

	return &cfg, nil
}

// UpdateRegistry replaces the config for an existing registry, keeping its
// insertion order and creation time.
func (m *Manager) UpdateRegistry(ctx context.Context, cfg Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.registries[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRegistryNotFound, cfg.ID)
	}
	for id, existing := range m.registries {
		if id != cfg.ID && existing.URL == cfg.URL {
			return nil, fmt.Errorf("%w: url %q already configured as %q", ErrRegistryDuplicate, cfg.URL, id)
		}
	}

	cfg.Seq = current.Seq
	cfg.CreatedAt = current.CreatedAt
	cfg.UpdatedAt = m.clock.Now()

	if err := m.persistConfig(ctx, &cfg); err != nil {
		return nil, err
	}

	m.registries[cfg.ID] = &cfg
	m.swapSnapshot()
	return &cfg, nil
}

// RemoveRegistry removes a registry and cascades: its index slice is
// dropped (entries whose sole origin it was disappear with it) and any
// registered caches are invalidated.
func (m *Manager) RemoveRegistry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registries[id]; !ok {
		return fmt.Errorf("%w: %q", ErrRegistryNotFound, id)
	}

	if err := m.store.Delete(ctx, registryKeyPrefix+id); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, indexKeyPrefix+id); err != nil {
		return err
	}

	delete(m.registries, id)
	delete(m.indexes, id)
	m.healthMu.Lock()
	delete(m.health, id)
	m.healthMu.Unlock()
	m.swapSnapshot()

	for _, inv := range m.invalidators {
		inv.InvalidateRegistry(id)
	}

	return nil
}

// GetRegistry returns a copy of one registry config.
func (m *Manager) GetRegistry(id string) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.registries[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrRegistryNotFound, id)
	}
	return *cfg, nil
}

// ListRegistries returns all configs in precedence order.
func (m *Manager) ListRegistries() []Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Config, 0, len(m.registries))
	for _, cfg := range m.registries {
		out = append(out, *cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (m *Manager) persistConfig(ctx context.Context, cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode registry config: %w", err)
	}
	if err := m.store.Put(ctx, registryKeyPrefix+cfg.ID, raw); err != nil {
		return fmt.Errorf("failed to persist registry config: %w", err)
	}
	return nil
}

// ClientFor returns a transport-backed client for an enabled registry.
func (m *Manager) ClientFor(id string) (*Client, error) {
	cfg, err := m.GetRegistry(id)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %q", ErrRegistryDisabled, id)
	}
	return NewClient(cfg, m.transport), nil
}

// SyncRegistry brings the local index slice for one registry up to date.
// Full mode replaces the slice wholesale; incremental mode fetches a delta
// since the stored cursor and merges it. The merge lands as a whole new
// snapshot or not at all, so cancellation mid-sync never leaves a partial
// state behind.
func (m *Manager) SyncRegistry(ctx context.Context, id string, mode SyncMode) (*SyncResult, error) {
	client, err := m.ClientFor(id)
	if err != nil {
		return nil, err
	}

	switch mode {
	case SyncFull:
		return m.syncFull(ctx, id, client)
	case SyncIncremental:
		return m.syncIncremental(ctx, id, client)
	default:
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}
}

func (m *Manager) syncFull(ctx context.Context, id string, client *Client) (*SyncResult, error) {
	entries, cursor, err := client.FetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	cleaned := make([]TemplateMetadata, 0, len(entries))
	for _, entry := range entries {
		entry.OriginRegistryID = id
		cleaned = append(cleaned, m.sanitizer.CleanMetadata(entry))
	}

	byID := make(map[string]TemplateMetadata, len(cleaned))
	for _, entry := range cleaned {
		byID[entry.ID] = entry
	}
	next := registryIndex{Entries: sortedEntries(byID), Cursor: cursor}

	if err := m.commitIndex(ctx, id, func(registryIndex) (registryIndex, error) {
		return next, nil
	}); err != nil {
		return nil, err
	}

	return &SyncResult{
		RegistryID: id,
		Mode:       SyncFull,
		Added:      len(next.Entries),
		Cursor:     cursor,
		Changed:    true,
	}, nil
}

func (m *Manager) syncIncremental(ctx context.Context, id string, client *Client) (*SyncResult, error) {
	since := m.Snapshot().Cursor(id)

	delta, err := client.FetchDelta(ctx, since)
	if err != nil {
		return nil, err
	}

	for i, entry := range delta.Added {
		entry.OriginRegistryID = id
		delta.Added[i] = m.sanitizer.CleanMetadata(entry)
	}
	for i, entry := range delta.Updated {
		entry.OriginRegistryID = id
		delta.Updated[i] = m.sanitizer.CleanMetadata(entry)
	}

	changed := false
	if err := m.commitIndex(ctx, id, func(current registryIndex) (registryIndex, error) {
		next, err := applyDelta(current, *delta)
		if err != nil {
			return registryIndex{}, err
		}
		changed = next.Cursor != current.Cursor
		return next, nil
	}); err != nil {
		return nil, err
	}

	result := &SyncResult{
		RegistryID: id,
		Mode:       SyncIncremental,
		Cursor:     delta.Cursor,
		Changed:    changed,
	}
	if changed {
		result.Added = len(delta.Added)
		result.Updated = len(delta.Updated)
		result.Removed = len(delta.Removed)
	}
	return result, nil
}

// commitIndex applies an index mutation under the writer lock: compute the
// next slice, persist it, then swap the combined snapshot. A cancelled
// context aborts before anything is written.
func (m *Manager) commitIndex(ctx context.Context, id string, mutate func(registryIndex) (registryIndex, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registries[id]; !ok {
		return fmt.Errorf("%w: %q", ErrRegistryNotFound, id)
	}

	next, err := mutate(m.indexes[id])
	if err != nil {
		return err
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := m.store.Put(ctx, indexKeyPrefix+id, raw); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	m.indexes[id] = next
	m.swapSnapshot()
	return nil
}

// SyncAll syncs every enabled registry concurrently, bounded by the given
// concurrency limit. Each registry reports its own outcome; partial
// failures never abort the rest.
func (m *Manager) SyncAll(ctx context.Context, mode SyncMode, concurrency int) map[string]SyncOutcome {
	if concurrency < 1 {
		concurrency = 1
	}

	configs := m.ListRegistries()
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var outMu sync.Mutex
	out := make(map[string]SyncOutcome, len(configs))

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outMu.Lock()
				out[id] = SyncOutcome{Err: ctx.Err(), Error: ctx.Err().Error()}
				outMu.Unlock()
				return
			}

			result, err := m.SyncRegistry(ctx, id, mode)
			outcome := SyncOutcome{Result: result, Err: err}
			if err != nil {
				outcome.Error = err.Error()
			}

			outMu.Lock()
			out[id] = outcome
			outMu.Unlock()
		}(cfg.ID)
	}

	wg.Wait()
	return out
}

// SearchIndex searches the combined index; see Snapshot.Search for the
// collision and pattern rules.
func (m *Manager) SearchIndex(query string) []TemplateMetadata {
	return m.Snapshot().Search(query)
}

// Health returns the last probe classification for a registry.
func (m *Manager) Health(id string) HealthStatus {
	m.healthMu.RLock()
	defer m.healthMu.RUnlock()

	status, ok := m.health[id]
	if !ok {
		return HealthUnknown
	}
	return status
}

// HealthStatuses returns the probe classification for every registry.
func (m *Manager) HealthStatuses() map[string]HealthStatus {
	m.healthMu.RLock()
	defer m.healthMu.RUnlock()

	out := make(map[string]HealthStatus, len(m.health))
	for id, status := range m.health {
		out[id] = status
	}
	return out
}

// StartHealthCheck schedules periodic reachability probes for every
// registry. Probes run concurrently off the writer lock, so they never
// interfere with in-flight sync or install calls. The returned stop
// function cancels the schedule.
func (m *Manager) StartHealthCheck(ctx context.Context, interval time.Duration) (stop func()) {
	probeCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.probeAll(probeCtx)
		for {
			select {
			case <-probeCtx.Done():
				return
			case <-ticker.C:
				m.probeAll(probeCtx)
			}
		}
	}()

	return cancel
}

func (m *Manager) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, cfg := range m.ListRegistries() {
		if !cfg.Enabled {
			continue
		}

		wg.Add(1)
		go func(cfg Config) {
			defer wg.Done()

			client := NewClient(cfg, m.transport)
			latency, err := client.Health(ctx)

			status := HealthHealthy
			switch {
			case err != nil:
				status = HealthUnreachable
			case latency > degradedLatency:
				status = HealthDegraded
			}

			m.healthMu.Lock()
			m.health[cfg.ID] = status
			m.healthMu.Unlock()
		}(cfg)
	}
	wg.Wait()
}
