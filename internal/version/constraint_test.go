package version

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantErr    bool
	}{
		{name: "exact", constraint: "1.2.3"},
		{name: "exact with prerelease", constraint: "1.2.3-beta.2"},
		{name: "caret", constraint: "^1.2.3"},
		{name: "caret zero major", constraint: "^0.2.3"},
		{name: "caret zero minor", constraint: "^0.0.3"},
		{name: "tilde", constraint: "~1.2.3"},
		{name: "range", constraint: ">=1.0.0 <2.0.0"},
		{name: "range comma separated", constraint: ">=1.0.0, <2.0.0"},
		{name: "single lower comparator", constraint: ">1.0.0"},
		{name: "single upper comparator", constraint: "<=3.1.4"},
		{name: "star wildcard", constraint: "*"},
		{name: "major wildcard", constraint: "1.x"},
		{name: "minor wildcard", constraint: "1.2.x"},
		{name: "abbreviated major", constraint: "2"},
		{name: "empty", constraint: "", wantErr: true},
		{name: "garbage", constraint: "not-a-version", wantErr: true},
		{name: "inverted range", constraint: ">=2.0.0 <1.0.0", wantErr: true},
		{name: "bad operator operand", constraint: ">=banana", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConstraint(tt.constraint)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConstraintSatisfies(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"^1.2.3", "1.2.3", true},
		{"^1.2.3", "1.9.0", true},
		{"^1.2.3", "2.0.0", false},
		{"^1.2.3", "1.2.2", false},
		{"^0.2.3", "0.2.9", true},
		{"^0.2.3", "0.3.0", false},
		{"^0.0.3", "0.0.3", true},
		{"^0.0.3", "0.0.4", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{">=1.0.0 <2.0.0", "1.5.0", true},
		{">=1.0.0 <2.0.0", "2.0.0", false},
		{">=1.0.0 <2.0.0", "1.0.0", true},
		{">1.0.0", "1.0.0", false},
		{"<=1.0.0", "1.0.0", true},
		{"*", "0.1.0", true},
		{"*", "99.99.99", true},
		{"1.x", "1.9.9", true},
		{"1.x", "2.0.0", false},
		{"1.2.x", "1.2.7", true},
		{"1.2.x", "1.3.0", false},

		// Pre-release handling: a pre-release only matches when the
		// constraint names a pre-release for the same release core.
		{"<2.0.0", "2.0.0-alpha", false},
		{"^1.0.0", "1.5.0-rc.1", false},
		{"1.2.3-beta.2", "1.2.3-beta.2", true},
		{"^1.2.3-beta", "1.2.3-rc", true},
		{"^1.2.3-beta", "1.2.3-alpha", false},
		{"^1.2.3-beta", "1.3.0", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s vs %s", tt.constraint, tt.version), func(t *testing.T) {
			c, err := ParseConstraint(tt.constraint)
			require.NoError(t, err)
			require.Equal(t, tt.want, c.SatisfiesString(tt.version))
		})
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name  string
		a     string
		b     string
		empty bool
		yes   []string
		no    []string
	}{
		{
			name: "overlapping carets",
			a:    "^1.2.0",
			b:    ">=1.4.0 <1.9.0",
			yes:  []string{"1.4.0", "1.8.9"},
			no:   []string{"1.3.9", "1.9.0", "2.0.0"},
		},
		{
			name:  "disjoint majors",
			a:     "^1.0.0",
			b:     "^2.0.0",
			empty: true,
		},
		{
			name: "exact within range",
			a:    ">=1.0.0 <2.0.0",
			b:    "1.5.0",
			yes:  []string{"1.5.0"},
			no:   []string{"1.5.1"},
		},
		{
			name: "wildcard is identity",
			a:    "*",
			b:    "~2.3.0",
			yes:  []string{"2.3.5"},
			no:   []string{"2.4.0"},
		},
		{
			name:  "touching open bounds",
			a:     "<2.0.0",
			b:     ">=2.0.0",
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := MustParseConstraint(tt.a)
			b := MustParseConstraint(tt.b)

			got := Intersect(a, b)
			require.Equal(t, tt.empty, got.Empty())

			for _, v := range tt.yes {
				require.True(t, got.SatisfiesString(v), "expected %s to satisfy %s", v, got)
			}
			for _, v := range tt.no {
				require.False(t, got.SatisfiesString(v), "expected %s to not satisfy %s", v, got)
			}
		})
	}
}

// releaseVersionGen draws versions without pre-release tags.
func releaseVersionGen() *rapid.Generator[string] {
	return rapid.Custom(func(rt *rapid.T) string {
		major := rapid.IntRange(0, 9).Draw(rt, "major")
		minor := rapid.IntRange(0, 9).Draw(rt, "minor")
		patch := rapid.IntRange(0, 9).Draw(rt, "patch")
		return fmt.Sprintf("%d.%d.%d", major, minor, patch)
	})
}

// constraintGen draws constraint expressions with release-only bounds.
func constraintGen() *rapid.Generator[string] {
	return rapid.Custom(func(rt *rapid.T) string {
		base := releaseVersionGen().Draw(rt, "base")
		switch rapid.IntRange(0, 5).Draw(rt, "form") {
		case 0:
			return base
		case 1:
			return "^" + base
		case 2:
			return "~" + base
		case 3:
			return ">=" + base
		case 4:
			return "<" + base
		default:
			upper := releaseVersionGen().Draw(rt, "upper")
			if cmp, _ := CompareVersions(base, upper); cmp > 0 {
				base, upper = upper, base
			}
			return fmt.Sprintf(">=%s <=%s", base, upper)
		}
	})
}

func TestParseConstraint_Stable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := constraintGen().Draw(rt, "expr")
		v := releaseVersionGen().Draw(rt, "v")

		c1, err := ParseConstraint(expr)
		require.NoError(rt, err)
		c2, err := ParseConstraint(expr)
		require.NoError(rt, err)

		require.Equal(rt, c1.SatisfiesString(v), c2.SatisfiesString(v))

		// String round-trip preserves semantics.
		c3, err := ParseConstraint(c1.String())
		require.NoError(rt, err)
		require.Equal(rt, c1.SatisfiesString(v), c3.SatisfiesString(v))
	})
}

func TestIntersect_Conjunctive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e1 := constraintGen().Draw(rt, "c1")
		e2 := constraintGen().Draw(rt, "c2")
		v := releaseVersionGen().Draw(rt, "v")

		c1, err := ParseConstraint(e1)
		require.NoError(rt, err)
		c2, err := ParseConstraint(e2)
		require.NoError(rt, err)

		both := c1.SatisfiesString(v) && c2.SatisfiesString(v)
		require.Equal(rt, both, Intersect(c1, c2).SatisfiesString(v))
	})
}
