package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"templstack/internal/store"
)

const storePrefix = "advisory/"

// StoreSource reads advisory reports persisted in the local state store,
// so lookups keep working offline. Reports land in the store via Put,
// typically imported from a registry's advisory feed.
type StoreSource struct {
	store store.Store
}

var _ Source = (*StoreSource)(nil)

// NewStoreSource creates a source over the given store.
func NewStoreSource(st store.Store) *StoreSource {
	return &StoreSource{store: st}
}

// Lookup returns the stored report for name@version; unknown pairs get an
// empty report, never an error.
func (s *StoreSource) Lookup(ctx context.Context, name, version string) (Report, error) {
	raw, err := s.store.Get(ctx, storePrefix+key(name, version))
	if errors.Is(err, store.ErrKeyNotFound) {
		return Report{}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("advisory load for %s@%s: %w", name, version, err)
	}

	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return Report{}, fmt.Errorf("advisory entry for %s@%s is corrupt: %w", name, version, err)
	}
	return report, nil
}

// Put persists the report for name@version, replacing any existing one.
func (s *StoreSource) Put(ctx context.Context, name, version string, report Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, storePrefix+key(name, version), raw)
}
