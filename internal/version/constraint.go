package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	ErrParse = errors.New("constraint parse error")
)

// Constraint is an immutable predicate over semantic versions, held in
// interval normal form: a lower bound, an upper bound, or both. A nil bound
// means unbounded on that side. Every supported operator (exact, caret,
// tilde, comparator ranges, wildcards) reduces to one interval, which is what
// makes intersection and inspection possible.
type Constraint struct {
	raw string

	lower    *semver.Version
	lowerInc bool
	upper    *semver.Version
	upperInc bool

	// empty marks an unsatisfiable interval produced by intersection.
	empty bool
}

// ParseConstraint parses a version constraint expression.
//
// Supported forms:
//
//	1.2.3            exact
//	^1.2.3           compatible within leftmost non-zero component
//	~1.2.3           compatible within minor
//	>=1.0.0 <2.0.0   comparator range (also >, <=, < and single comparators)
//	*  1.x  1.2.x    wildcards
func ParseConstraint(text string) (Constraint, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Constraint{}, fmt.Errorf("%w: constraint cannot be empty", ErrParse)
	}

	c := Constraint{raw: trimmed}

	// Comparator ranges may hold several space- or comma-separated parts;
	// every other form is a single token.
	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == ','
	})

	for _, part := range parts {
		piece, err := parsePiece(part)
		if err != nil {
			return Constraint{}, err
		}
		c = intersectIntervals(c, piece)
	}

	if c.empty {
		return Constraint{}, fmt.Errorf("%w: %q bounds exclude every version", ErrParse, trimmed)
	}

	c.raw = trimmed
	return c, nil
}

// MustParseConstraint is ParseConstraint that panics on error, for tests and
// compile-time-known expressions.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

// parsePiece parses one token of a constraint expression into an interval.
func parsePiece(part string) (Constraint, error) {
	switch {
	case part == "*" || part == "x" || part == "X":
		return Constraint{raw: part}, nil

	case strings.HasPrefix(part, "^"):
		v, err := parseBound(part[1:])
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{raw: part, lower: v, lowerInc: true, upper: caretUpper(v)}, nil

	case strings.HasPrefix(part, "~"):
		v, err := parseBound(part[1:])
		if err != nil {
			return Constraint{}, err
		}
		upper := v.IncMinor()
		return Constraint{raw: part, lower: v, lowerInc: true, upper: &upper}, nil

	case strings.HasPrefix(part, ">="):
		v, err := parseBound(part[2:])
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{raw: part, lower: v, lowerInc: true}, nil

	case strings.HasPrefix(part, "<="):
		v, err := parseBound(part[2:])
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{raw: part, upper: v, upperInc: true}, nil

	case strings.HasPrefix(part, ">"):
		v, err := parseBound(part[1:])
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{raw: part, lower: v}, nil

	case strings.HasPrefix(part, "<"):
		v, err := parseBound(part[1:])
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{raw: part, upper: v}, nil

	case strings.HasPrefix(part, "="):
		return parseExactOrWildcard(part[1:])

	default:
		return parseExactOrWildcard(part)
	}
}

// parseExactOrWildcard handles "1.2.3", "1.2.x", "1.x" and "1" (treated as
// the 1.x wildcard, matching how registries abbreviate majors).
func parseExactOrWildcard(text string) (Constraint, error) {
	segs := strings.SplitN(text, ".", 3)

	wildcardAt := -1
	for i, s := range segs {
		if s == "x" || s == "X" || s == "*" {
			wildcardAt = i
			break
		}
	}

	if wildcardAt == 0 {
		return Constraint{raw: text}, nil
	}

	if wildcardAt == -1 && len(segs) == 3 {
		v, err := parseBound(text)
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{raw: text, lower: v, lowerInc: true, upper: v, upperInc: true}, nil
	}

	// Everything else is an abbreviated wildcard: "1", "1.2", "1.x", "1.2.x".
	major, err := strconv.ParseUint(segs[0], 10, 64)
	if err != nil {
		return Constraint{}, fmt.Errorf("%w: invalid major version %q", ErrParse, segs[0])
	}

	if len(segs) == 1 || wildcardAt == 1 {
		lower := semver.New(major, 0, 0, "", "")
		upper := semver.New(major+1, 0, 0, "", "")
		return Constraint{raw: text, lower: lower, lowerInc: true, upper: upper}, nil
	}

	minor, err := strconv.ParseUint(segs[1], 10, 64)
	if err != nil {
		return Constraint{}, fmt.Errorf("%w: invalid minor version %q", ErrParse, segs[1])
	}

	lower := semver.New(major, minor, 0, "", "")
	upper := semver.New(major, minor+1, 0, "", "")
	return Constraint{raw: text, lower: lower, lowerInc: true, upper: upper}, nil
}

func parseBound(text string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q: %v", ErrParse, text, err)
	}
	return v, nil
}

// caretUpper computes the exclusive upper bound for a caret constraint:
// the next increment of the leftmost non-zero component.
func caretUpper(v *semver.Version) *semver.Version {
	switch {
	case v.Major() > 0:
		u := v.IncMajor()
		return &u
	case v.Minor() > 0:
		return semver.New(0, v.Minor()+1, 0, "", "")
	default:
		return semver.New(0, 0, v.Patch()+1, "", "")
	}
}

// String returns the original constraint expression, or a normalized interval
// form for constraints produced by intersection.
func (c Constraint) String() string {
	if c.raw != "" {
		return c.raw
	}
	if c.empty {
		return "<unsatisfiable>"
	}

	var parts []string
	if c.lower != nil {
		op := ">"
		if c.lowerInc {
			op = ">="
		}
		parts = append(parts, op+c.lower.String())
	}
	if c.upper != nil {
		op := "<"
		if c.upperInc {
			op = "<="
		}
		parts = append(parts, op+c.upper.String())
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// Empty reports whether no version can satisfy the constraint.
func (c Constraint) Empty() bool {
	return c.empty
}

// LowerBound returns the lower bound version and whether it is inclusive.
// The version is nil when the constraint is unbounded below.
func (c Constraint) LowerBound() (*semver.Version, bool) {
	return c.lower, c.lowerInc
}

// UpperBound returns the upper bound version and whether it is inclusive.
// The version is nil when the constraint is unbounded above.
func (c Constraint) UpperBound() (*semver.Version, bool) {
	return c.upper, c.upperInc
}

// Satisfies reports whether the version matches the constraint.
//
// Pre-release versions only match when the constraint itself names a
// pre-release with the same major.minor.patch, so "2.0.0-alpha" never
// sneaks in under "<2.0.0".
func (c Constraint) Satisfies(v *semver.Version) bool {
	if v == nil || c.empty {
		return false
	}

	if v.Prerelease() != "" && !c.allowsPrerelease(v) {
		return false
	}

	if c.lower != nil {
		cmp := v.Compare(c.lower)
		if cmp < 0 || (cmp == 0 && !c.lowerInc) {
			return false
		}
	}

	if c.upper != nil {
		cmp := v.Compare(c.upper)
		if cmp > 0 || (cmp == 0 && !c.upperInc) {
			return false
		}
	}

	return true
}

// SatisfiesString is Satisfies over a raw version string; unparsable
// versions never satisfy.
func (c Constraint) SatisfiesString(versionStr string) bool {
	v, err := ParseVersion(versionStr)
	if err != nil {
		return false
	}
	return c.Satisfies(v)
}

// allowsPrerelease reports whether a constraint bound opts this version's
// release core into pre-release matching.
func (c Constraint) allowsPrerelease(v *semver.Version) bool {
	for _, bound := range []*semver.Version{c.lower, c.upper} {
		if bound == nil || bound.Prerelease() == "" {
			continue
		}
		if bound.Major() == v.Major() && bound.Minor() == v.Minor() && bound.Patch() == v.Patch() {
			return true
		}
	}
	return false
}

// Intersect returns the conjunction of two constraints. The result satisfies
// a version exactly when both inputs do. When the bounds exclude every
// version the result reports Empty.
func Intersect(a, b Constraint) Constraint {
	c := intersectIntervals(a, b)
	c.raw = ""
	return c
}

func intersectIntervals(a, b Constraint) Constraint {
	if a.empty || b.empty {
		return Constraint{empty: true}
	}

	out := Constraint{
		lower:    a.lower,
		lowerInc: a.lowerInc,
		upper:    a.upper,
		upperInc: a.upperInc,
	}

	// Tighter lower bound wins; on a tie inclusivity narrows.
	if b.lower != nil {
		switch {
		case out.lower == nil:
			out.lower, out.lowerInc = b.lower, b.lowerInc
		case b.lower.GreaterThan(out.lower):
			out.lower, out.lowerInc = b.lower, b.lowerInc
		case b.lower.Equal(out.lower) && !b.lowerInc:
			out.lowerInc = false
		}
	}

	if b.upper != nil {
		switch {
		case out.upper == nil:
			out.upper, out.upperInc = b.upper, b.upperInc
		case b.upper.LessThan(out.upper):
			out.upper, out.upperInc = b.upper, b.upperInc
		case b.upper.Equal(out.upper) && !b.upperInc:
			out.upperInc = false
		}
	}

	if out.lower != nil && out.upper != nil {
		cmp := out.lower.Compare(out.upper)
		if cmp > 0 || (cmp == 0 && !(out.lowerInc && out.upperInc)) {
			return Constraint{empty: true}
		}
	}

	return out
}

// IntersectAll folds Intersect over a non-empty constraint list.
func IntersectAll(constraints []Constraint) Constraint {
	if len(constraints) == 0 {
		return Constraint{}
	}
	out := constraints[0]
	for _, c := range constraints[1:] {
		out = Intersect(out, c)
	}
	out.raw = ""
	return out
}
