package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// TemplateMetadata is one local index entry for a template or plugin.
type TemplateMetadata struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Version          string `json:"version"`
	Category         string `json:"category,omitempty"`
	Author           string `json:"author,omitempty"`
	Description      string `json:"description,omitempty"`
	OriginRegistryID string `json:"origin_registry_id"`
}

// SyncDelta is the change set bringing a registry's local index slice up to
// date. It is applied atomically: all of it or none of it.
type SyncDelta struct {
	Added   []TemplateMetadata `json:"added,omitempty"`
	Updated []TemplateMetadata `json:"updated,omitempty"`
	Removed []string           `json:"removed,omitempty"`
	Cursor  uint64             `json:"cursor"`
}

// registryIndex is the persisted per-registry index slice.
type registryIndex struct {
	Entries []TemplateMetadata `json:"entries"`
	Cursor  uint64             `json:"cursor"`
}

// applyDelta merges a delta into a registry index, producing a new index.
// Re-applying the delta at the stored cursor is a no-op; a cursor behind
// the stored one fails with ErrStaleDelta. The input is never mutated.
func applyDelta(current registryIndex, delta SyncDelta) (registryIndex, error) {
	if delta.Cursor < current.Cursor {
		return registryIndex{}, fmt.Errorf("%w: delta cursor %d behind stored cursor %d",
			ErrStaleDelta, delta.Cursor, current.Cursor)
	}

	if delta.Cursor == current.Cursor {
		return current, nil
	}

	byID := make(map[string]TemplateMetadata, len(current.Entries))
	for _, entry := range current.Entries {
		byID[entry.ID] = entry
	}

	for _, entry := range delta.Added {
		byID[entry.ID] = entry
	}
	for _, entry := range delta.Updated {
		byID[entry.ID] = entry
	}
	for _, id := range delta.Removed {
		delete(byID, id)
	}

	return registryIndex{Entries: sortedEntries(byID), Cursor: delta.Cursor}, nil
}

// sortedEntries flattens an id map into the canonical entry order.
func sortedEntries(byID map[string]TemplateMetadata) []TemplateMetadata {
	entries := make([]TemplateMetadata, 0, len(byID))
	for _, entry := range byID {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Snapshot is an immutable view of the combined local index. Writers build
// a fresh snapshot and swap it in whole; readers never see a partial merge.
type Snapshot struct {
	// order holds registry ids sorted by ascending priority, then
	// insertion order.
	order   []string
	indexes map[string]registryIndex
}

// newSnapshot builds a combined snapshot from per-registry slices.
func newSnapshot(configs map[string]*Config, indexes map[string]registryIndex) *Snapshot {
	order := make([]string, 0, len(configs))
	for id := range configs {
		if _, ok := indexes[id]; ok {
			order = append(order, id)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := configs[order[i]], configs[order[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Seq < b.Seq
	})

	return &Snapshot{order: order, indexes: indexes}
}

// Cursor returns the stored sync cursor for a registry.
func (s *Snapshot) Cursor(registryID string) uint64 {
	return s.indexes[registryID].Cursor
}

// Entries returns every index entry in registry precedence order.
func (s *Snapshot) Entries() []TemplateMetadata {
	var out []TemplateMetadata
	for _, id := range s.order {
		out = append(out, s.indexes[id].Entries...)
	}
	return out
}

// VersionsOf returns all known versions of a template name across
// registries, deduplicated, unordered.
func (s *Snapshot) VersionsOf(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range s.order {
		for _, entry := range s.indexes[id].Entries {
			if entry.Name == name && !seen[entry.Version] {
				seen[entry.Version] = true
				out = append(out, entry.Version)
			}
		}
	}
	return out
}

// Search returns entries whose name matches the query. Queries may use
// glob patterns ("ui/**", "tmpl_*"); a plain query matches by substring.
// Name collisions across registries resolve by ascending priority, ties by
// registry insertion order: the first hit for a (name, version) wins.
func (s *Snapshot) Search(query string) []TemplateMetadata {
	isPattern := strings.ContainsAny(query, "*?[{")

	seen := make(map[string]bool)
	var out []TemplateMetadata
	for _, id := range s.order {
		for _, entry := range s.indexes[id].Entries {
			if !matchQuery(entry.Name, query, isPattern) {
				continue
			}
			key := entry.Name + "@" + entry.Version
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, entry)
		}
	}
	return out
}

func matchQuery(name, query string, isPattern bool) bool {
	if query == "" {
		return true
	}
	if isPattern {
		ok, err := doublestar.Match(query, name)
		return err == nil && ok
	}
	return strings.Contains(name, query)
}
