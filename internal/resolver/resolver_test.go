package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"templstack/internal/advisory"
)

// mapIndex is a deterministic test Index.
type mapIndex map[string][]string

func (m mapIndex) VersionsOf(name string) []string { return m[name] }

var testIndex = mapIndex{
	"flutter":  {"2.8.0", "3.0.0", "3.2.1", "3.4.0"},
	"provider": {"5.0.0", "6.0.5", "6.1.2"},
	"pkg":      {"1.0.0", "1.4.2", "2.3.0"},
	"theme":    {"0.9.0"},
}

func resolve(t *testing.T, deps []Dependency, installed map[string]string, src advisory.Source, policy advisory.Policy) (*Result, error) {
	t.Helper()
	return New(src).Resolve(context.Background(), deps, installed, testIndex, policy)
}

func TestResolvePicksHighestSatisfying(t *testing.T) {
	deps := []Dependency{
		{Name: "flutter", Constraint: "^3.0.0", Kind: KindRuntime},
		{Name: "provider", Constraint: "^6.0.0", Kind: KindRuntime},
	}

	result, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
	require.Equal(t, map[string]string{
		"flutter":  "3.4.0",
		"provider": "6.1.2",
	}, result.ResolvedVersions)
}

func TestResolveConflictWithSuggestion(t *testing.T) {
	deps := []Dependency{
		{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime, Requester: "app"},
		{Name: "pkg", Constraint: "^2.0.0", Kind: KindPeer, Requester: "ui-kit"},
	}

	result, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.NoError(t, err)
	require.Empty(t, result.ResolvedVersions)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	require.Equal(t, "pkg", conflict.DependencyName)
	require.Equal(t, []string{"app", "ui-kit"}, conflict.Requesters)
	require.NotEmpty(t, conflict.SuggestedResolution)
	require.Contains(t, conflict.SuggestedResolution, "drop constraint")
}

func TestResolveStabilityBias(t *testing.T) {
	deps := []Dependency{{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime}}

	// The installed version still satisfies ^1.0.0, so no upgrade happens
	// even though 1.4.2 is available.
	result, err := resolve(t, deps, map[string]string{"pkg": "1.2.0"}, nil, advisory.Policy{})
	require.NoError(t, err)
	require.Equal(t, "1.2.0", result.ResolvedVersions["pkg"])

	// An installed version outside the constraint is upgraded.
	result, err = resolve(t, deps, map[string]string{"pkg": "0.9.0"}, nil, advisory.Policy{})
	require.NoError(t, err)
	require.Equal(t, "1.4.2", result.ResolvedVersions["pkg"])
}

func TestResolveOptionalDegradesToAdvisory(t *testing.T) {
	deps := []Dependency{
		{Name: "theme", Constraint: "^4.0.0", Kind: KindOptional, Requester: "app"},
		{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime},
	}

	result, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.NoError(t, err)
	require.Empty(t, result.Conflicts, "optional failures must not conflict")
	require.Len(t, result.Advisories, 1)
	require.Contains(t, result.Advisories[0], "theme")
	require.Equal(t, "1.4.2", result.ResolvedVersions["pkg"])
}

func TestResolveMissingIndexVersionSuggestsSync(t *testing.T) {
	deps := []Dependency{{Name: "pkg", Constraint: "^9.0.0", Kind: KindRuntime}}

	result, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Contains(t, result.Conflicts[0].SuggestedResolution, "local index")
}

func TestResolveAdvisoriesAreNonBlocking(t *testing.T) {
	src := advisory.NewStaticSource()
	src.Add("pkg", "1.4.2", advisory.Report{
		CVEs:      []advisory.CVE{{ID: "CVE-2025-0001", Severity: "high"}},
		LicenseID: "AGPL-3.0",
	})

	deps := []Dependency{{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime}}
	policy := advisory.Policy{BlockedLicenses: []string{"AGPL-3.0"}}

	result, err := resolve(t, deps, nil, src, policy)
	require.NoError(t, err, "findings are advisory by default")
	require.Equal(t, "1.4.2", result.ResolvedVersions["pkg"])
	require.True(t, result.HasSecurityIssues)
	require.True(t, result.HasLicenseIssues)
	require.Len(t, result.Vulnerabilities, 1)
	require.Equal(t, "CVE-2025-0001", result.Vulnerabilities[0].CVEs[0].ID)
	require.Len(t, result.LicenseIssues, 1)
}

func TestResolveStrictPolicyBlocks(t *testing.T) {
	src := advisory.NewStaticSource()
	src.Add("pkg", "1.4.2", advisory.Report{
		CVEs: []advisory.CVE{{ID: "CVE-2025-0001", Severity: "high"}},
	})

	deps := []Dependency{{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime}}

	_, err := resolve(t, deps, nil, src, advisory.Policy{Strict: true})
	require.ErrorIs(t, err, ErrPolicyViolation)
}

func TestResolveDeterministic(t *testing.T) {
	deps := []Dependency{
		{Name: "provider", Constraint: "^6.0.0", Kind: KindRuntime, Requester: "app"},
		{Name: "flutter", Constraint: "^3.0.0", Kind: KindRuntime, Requester: "app"},
		{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime, Requester: "app"},
		{Name: "pkg", Constraint: "^2.0.0", Kind: KindPeer, Requester: "ui-kit"},
	}

	first, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := resolve(t, deps, nil, nil, advisory.Policy{})
		require.NoError(t, err)
		require.Equal(t, first, again, "identical inputs must resolve identically")
	}
}

func TestResolveRejectsDuplicateNonPeer(t *testing.T) {
	deps := []Dependency{
		{Name: "pkg", Constraint: "^1.0.0", Kind: KindRuntime, Requester: "app"},
		{Name: "pkg", Constraint: "^1.2.0", Kind: KindRuntime, Requester: "app"},
	}

	_, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.ErrorIs(t, err, ErrDuplicateDependency)
}

func TestResolveBadConstraintSurfacesParseError(t *testing.T) {
	deps := []Dependency{{Name: "pkg", Constraint: ">=banana", Kind: KindRuntime}}

	_, err := resolve(t, deps, nil, nil, advisory.Policy{})
	require.Error(t, err)
}
