// Package resolver turns a requested dependency set plus the local index
// and installed graph into a deterministic resolution plan.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"templstack/internal/advisory"
	"templstack/internal/version"
)

var (
	ErrPolicyViolation     = errors.New("policy violation")
	ErrDuplicateDependency = errors.New("duplicate dependency")
)

// Kind classifies a dependency edge.
type Kind string

const (
	KindRuntime     Kind = "runtime"
	KindDevelopment Kind = "development"
	KindOptional    Kind = "optional"
	KindPeer        Kind = "peer"
	KindConditional Kind = "conditional"
)

// Dependency is one requested dependency. Requester identifies who asked,
// so peer dependencies may repeat across requesters and conflicts can name
// their origins.
type Dependency struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
	Kind       Kind   `json:"kind"`
	Optional   bool   `json:"optional"`
	License    string `json:"license,omitempty"`
	Requester  string `json:"requester,omitempty"`
}

// isOptional reports whether an unsatisfiable dependency degrades to an
// advisory instead of a conflict.
func (d Dependency) isOptional() bool {
	return d.Optional || d.Kind == KindOptional
}

// Conflict is emitted when no version satisfies the intersected constraint
// set for a required dependency.
type Conflict struct {
	DependencyName      string   `json:"dependency_name"`
	Requesters          []string `json:"requesters"`
	Constraints         []string `json:"constraints"`
	SuggestedResolution string   `json:"suggested_resolution,omitempty"`
}

// Finding is one advisory hit against a resolved version.
type Finding struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	CVEs      []advisory.CVE `json:"cves,omitempty"`
	LicenseID string         `json:"license_id,omitempty"`
	Reason    string         `json:"reason"`
}

// Result is the resolution plan. Every resolved version satisfies the
// intersection of all applicable constraints for its name.
type Result struct {
	ResolvedVersions  map[string]string `json:"resolved_versions"`
	Conflicts         []Conflict        `json:"conflicts,omitempty"`
	Advisories        []string          `json:"advisories,omitempty"`
	Vulnerabilities   []Finding         `json:"vulnerabilities,omitempty"`
	LicenseIssues     []Finding         `json:"license_issues,omitempty"`
	HasSecurityIssues bool              `json:"has_security_issues"`
	HasLicenseIssues  bool              `json:"has_license_issues"`
}

// Index supplies the available versions per name, usually a registry
// snapshot. Resolution reads it only; it may run concurrently with sync.
type Index interface {
	VersionsOf(name string) []string
}

// Resolver computes resolution plans.
type Resolver struct {
	advisories advisory.Source
}

// New creates a resolver over an advisory source. A nil source disables
// vulnerability and license reporting.
func New(advisories advisory.Source) *Resolver {
	return &Resolver{advisories: advisories}
}

// group collects every requester constraint for one dependency name.
type group struct {
	name        string
	deps        []Dependency
	constraints []version.Constraint
}

// Resolve groups constraints by name, intersects them, and picks one
// version per name: the installed version when it still satisfies the
// intersection (stability bias), otherwise the highest satisfying version
// from the index. Identical inputs always produce identical results.
func (r *Resolver) Resolve(ctx context.Context, deps []Dependency, installed map[string]string, index Index, policy advisory.Policy) (*Result, error) {
	groups, err := groupByName(deps)
	if err != nil {
		return nil, err
	}

	result := &Result{ResolvedVersions: make(map[string]string)}

	for _, g := range groups {
		intersection := version.IntersectAll(g.constraints)

		if intersection.Empty() {
			r.recordUnsatisfiable(result, g, "")
			continue
		}

		if installedVersion, ok := installed[g.name]; ok && intersection.SatisfiesString(installedVersion) {
			result.ResolvedVersions[g.name] = installedVersion
			continue
		}

		picked := highestSatisfying(index.VersionsOf(g.name), intersection)
		if picked == "" {
			r.recordUnsatisfiable(result, g, intersection.String())
			continue
		}
		result.ResolvedVersions[g.name] = picked
	}

	if err := r.applyAdvisories(ctx, result, policy); err != nil {
		return nil, err
	}

	return result, nil
}

// groupByName validates and groups the request, preserving insertion order
// within each name and producing a name-sorted group list.
func groupByName(deps []Dependency) ([]*group, error) {
	byName := make(map[string]*group)
	var groups []*group

	seen := make(map[string]bool)
	for i, dep := range deps {
		if dep.Name == "" {
			return nil, fmt.Errorf("dependency %d has no name", i)
		}

		// A single requester may not ask for the same name twice,
		// except through peer edges.
		if dep.Kind != KindPeer {
			key := dep.Requester + "\x00" + dep.Name
			if seen[key] {
				return nil, fmt.Errorf("%w: %s requested %s twice", ErrDuplicateDependency, dep.Requester, dep.Name)
			}
			seen[key] = true
		}

		constraint, err := version.ParseConstraint(dep.Constraint)
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", dep.Name, err)
		}

		g, ok := byName[dep.Name]
		if !ok {
			g = &group{name: dep.Name}
			byName[dep.Name] = g
			groups = append(groups, g)
		}
		g.deps = append(g.deps, dep)
		g.constraints = append(g.constraints, constraint)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups, nil
}

// recordUnsatisfiable emits a Conflict for a required group or degrades an
// all-optional group to an advisory line.
func (r *Resolver) recordUnsatisfiable(result *Result, g *group, intersection string) {
	required := false
	for _, dep := range g.deps {
		if !dep.isOptional() {
			required = true
			break
		}
	}

	if !required {
		result.Advisories = append(result.Advisories,
			fmt.Sprintf("optional dependency %s skipped: no version satisfies %s", g.name, describeConstraints(g)))
		return
	}

	conflict := Conflict{
		DependencyName:      g.name,
		SuggestedResolution: suggestResolution(g, intersection),
	}
	for i, dep := range g.deps {
		conflict.Requesters = append(conflict.Requesters, requesterName(dep))
		conflict.Constraints = append(conflict.Constraints, g.constraints[i].String())
	}
	result.Conflicts = append(result.Conflicts, conflict)
}

// suggestResolution proposes the widest relaxation making the set
// satisfiable: the first single requester whose constraint, when dropped,
// leaves a non-empty intersection. When the constraints agree but the
// local index has no matching version, it points at the index instead.
func suggestResolution(g *group, intersection string) string {
	if intersection != "" {
		return fmt.Sprintf("no version of %s in the local index satisfies %s; sync registries or relax the constraint", g.name, intersection)
	}

	for i := range g.constraints {
		rest := make([]version.Constraint, 0, len(g.constraints)-1)
		for j, c := range g.constraints {
			if j != i {
				rest = append(rest, c)
			}
		}
		if !version.IntersectAll(rest).Empty() {
			return fmt.Sprintf("drop constraint %q from requester %s to make %s satisfiable",
				g.constraints[i].String(), requesterName(g.deps[i]), g.name)
		}
	}

	return fmt.Sprintf("constraints on %s are mutually exclusive: %s", g.name, describeConstraints(g))
}

// highestSatisfying picks the highest version matching the constraint;
// empty when none do. Unparsable index versions are skipped.
func highestSatisfying(available []string, constraint version.Constraint) string {
	var matching []string
	for _, v := range available {
		if constraint.SatisfiesString(v) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return ""
	}

	highest, err := version.HighestVersion(matching)
	if err != nil {
		return ""
	}
	return highest
}

// applyAdvisories consults the vulnerability/license source for every
// resolved version. Findings are advisory only unless the policy is
// strict, in which case any finding fails with ErrPolicyViolation.
func (r *Resolver) applyAdvisories(ctx context.Context, result *Result, policy advisory.Policy) error {
	if r.advisories == nil {
		return nil
	}

	names := make([]string, 0, len(result.ResolvedVersions))
	for name := range result.ResolvedVersions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		resolved := result.ResolvedVersions[name]

		report, err := r.advisories.Lookup(ctx, name, resolved)
		if err != nil {
			return fmt.Errorf("advisory lookup for %s@%s failed: %w", name, resolved, err)
		}

		if len(report.CVEs) > 0 {
			result.HasSecurityIssues = true
			result.Vulnerabilities = append(result.Vulnerabilities, Finding{
				Name:    name,
				Version: resolved,
				CVEs:    report.CVEs,
				Reason:  fmt.Sprintf("%d known vulnerabilities", len(report.CVEs)),
			})
		}

		if !policy.LicenseAllowed(report.LicenseID) {
			result.HasLicenseIssues = true
			result.LicenseIssues = append(result.LicenseIssues, Finding{
				Name:      name,
				Version:   resolved,
				LicenseID: report.LicenseID,
				Reason:    fmt.Sprintf("license %s not permitted by policy", report.LicenseID),
			})
		}
	}

	if policy.Strict && (result.HasSecurityIssues || result.HasLicenseIssues) {
		return fmt.Errorf("%w: %d security, %d license findings",
			ErrPolicyViolation, len(result.Vulnerabilities), len(result.LicenseIssues))
	}

	return nil
}

func requesterName(dep Dependency) string {
	if dep.Requester != "" {
		return dep.Requester
	}
	return "project"
}

func describeConstraints(g *group) string {
	parts := make([]string, len(g.constraints))
	for i, c := range g.constraints {
		parts[i] = fmt.Sprintf("%s (%s)", c, requesterName(g.deps[i]))
	}
	return strings.Join(parts, ", ")
}
