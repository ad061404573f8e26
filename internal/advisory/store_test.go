package advisory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"templstack/internal/store"
)

func TestStoreSourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := NewStoreSource(store.NewMemoryStore())

	want := Report{
		CVEs:      []CVE{{ID: "CVE-2026-0001", Severity: "high", Summary: "template injection"}},
		LicenseID: "GPL-3.0",
	}
	require.NoError(t, source.Put(ctx, "flutter-starter", "1.2.0", want))

	got, err := source.Lookup(ctx, "flutter-starter", "1.2.0")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStoreSourceUnknownPairIsEmpty(t *testing.T) {
	source := NewStoreSource(store.NewMemoryStore())

	got, err := source.Lookup(context.Background(), "nobody", "9.9.9")
	require.NoError(t, err)
	require.Empty(t, got.CVEs)
	require.Empty(t, got.LicenseID)
}

func TestStoreSourceRejectsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Put(ctx, "advisory/bad@1.0.0", []byte("not json")))

	_, err := NewStoreSource(st).Lookup(ctx, "bad", "1.0.0")
	require.Error(t, err)
}
