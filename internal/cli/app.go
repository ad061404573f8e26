package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"templstack/internal/advisory"
	"templstack/internal/config"
	"templstack/internal/offline"
	"templstack/internal/registry"
	"templstack/internal/store"
	"templstack/internal/transport"
)

// app wires the full stack behind every command: config, state store,
// resilient transport, registry manager and the offline layer.
type app struct {
	cfg        config.CLIConfig
	store      store.Store
	transport  *transport.Transport
	registries *registry.Manager
	offline    *offline.Manager
	advisories advisory.Source

	closer func() error
}

// openApp loads config and opens the state database. Callers must Close.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dataPath, err := cfg.DataPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.OpenSQLite(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	bandwidth := transport.NewBandwidthManager(transport.NetworkProfile(cfg.NetworkProfile))
	tr := transport.New(transport.NewHTTPDoer(), bandwidth, transport.DefaultBreakerConfig(), nil)

	registries, err := registry.NewManager(ctx, st, tr, nil)
	if err != nil {
		st.Close()
		return nil, err
	}

	queue, err := offline.NewQueue(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	cache := offline.NewCache()
	registries.OnRemove(cache)

	a := &app{
		cfg:        cfg,
		store:      st,
		transport:  tr,
		registries: registries,
		advisories: advisory.NewStoreSource(st),
		closer:     st.Close,
	}
	a.offline = offline.NewManager(queue, cache, offline.NewRegistryRemote(registries), a.probe)

	return a, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// probe checks reachability of the active registry.
func (a *app) probe(ctx context.Context) (time.Duration, error) {
	if a.cfg.Current == "" {
		return 0, errors.New("no active registry configured")
	}
	client, err := a.registries.ClientFor(a.cfg.Current)
	if err != nil {
		return 0, err
	}
	return client.Health(ctx)
}

// policy returns the advisory policy from config.
func (a *app) policy() advisory.Policy {
	return advisory.Policy{Strict: a.cfg.StrictPolicy}
}

// currentRegistry resolves the registry a command should talk to: the
// --registry flag when given, otherwise the configured active registry.
func (a *app) currentRegistry(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if a.cfg.Current == "" {
		return "", errors.New("no active registry; add one with 'templstack registry add' or pass --registry")
	}
	return a.cfg.Current, nil
}
