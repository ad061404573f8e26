package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDelta(t *testing.T) {
	current := registryIndex{
		Entries: []TemplateMetadata{
			{ID: "t1", Name: "tmpl_one", Version: "1.0.0"},
			{ID: "t2", Name: "tmpl_two", Version: "1.0.0"},
		},
		Cursor: 10,
	}

	delta := SyncDelta{
		Added:   []TemplateMetadata{{ID: "t3", Name: "tmpl_three", Version: "0.1.0"}},
		Updated: []TemplateMetadata{{ID: "t1", Name: "tmpl_one", Version: "1.1.0"}},
		Removed: []string{"t2"},
		Cursor:  11,
	}

	next, err := applyDelta(current, delta)
	require.NoError(t, err)
	require.EqualValues(t, 11, next.Cursor)
	require.Len(t, next.Entries, 2)

	// Entries come back in canonical name order.
	require.Equal(t, "tmpl_one", next.Entries[0].Name)
	require.Equal(t, "1.1.0", next.Entries[0].Version)
	require.Equal(t, "tmpl_three", next.Entries[1].Name)

	// The input index was not mutated.
	require.Len(t, current.Entries, 2)
	require.EqualValues(t, 10, current.Cursor)
}

func TestApplyDeltaIdempotent(t *testing.T) {
	current := registryIndex{
		Entries: []TemplateMetadata{{ID: "t1", Name: "tmpl_one", Version: "1.0.0"}},
		Cursor:  5,
	}
	delta := SyncDelta{
		Added:  []TemplateMetadata{{ID: "t2", Name: "tmpl_two", Version: "1.0.0"}},
		Cursor: 6,
	}

	once, err := applyDelta(current, delta)
	require.NoError(t, err)

	twice, err := applyDelta(once, delta)
	require.NoError(t, err)
	require.Equal(t, once, twice, "re-applying a delta must be a no-op")
}

func TestApplyDeltaRejectsRegression(t *testing.T) {
	current := registryIndex{Cursor: 9}
	_, err := applyDelta(current, SyncDelta{Cursor: 8})
	require.ErrorIs(t, err, ErrStaleDelta)
}

func TestSanitizerScrubsMetadata(t *testing.T) {
	s := NewSanitizer()

	entry := s.CleanMetadata(TemplateMetadata{
		ID:          "t1",
		Name:        "tmpl_one",
		Description: `Fast scaffold <script>alert("x")</script> for services`,
		Author:      "<b>team</b>",
	})

	require.Equal(t, "Fast scaffold  for services", entry.Description)
	require.Equal(t, "team", entry.Author)
}

func TestSnapshotVersionsOf(t *testing.T) {
	configs := map[string]*Config{
		"a": {ID: "a", Priority: 10, Seq: 0},
		"b": {ID: "b", Priority: 50, Seq: 1},
	}
	indexes := map[string]registryIndex{
		"a": {Entries: []TemplateMetadata{
			{ID: "a1", Name: "tmpl_x", Version: "1.0.0"},
			{ID: "a2", Name: "tmpl_x", Version: "1.1.0"},
		}},
		"b": {Entries: []TemplateMetadata{
			{ID: "b1", Name: "tmpl_x", Version: "1.1.0"},
			{ID: "b2", Name: "tmpl_x", Version: "2.0.0"},
		}},
	}

	snap := newSnapshot(configs, indexes)
	versions := snap.VersionsOf("tmpl_x")
	require.ElementsMatch(t, []string{"1.0.0", "1.1.0", "2.0.0"}, versions)
	require.Empty(t, snap.VersionsOf("tmpl_missing"))
}
